package diff

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pilot/pkg/workset"
)

// committedVCS restores files from an in-memory "HEAD".
type committedVCS struct {
	root      string
	committed map[string]string
	fail      map[string]error
	checkouts []string
}

func (v *committedVCS) CheckoutFile(_ context.Context, path string) error {
	v.checkouts = append(v.checkouts, path)
	if err := v.fail[path]; err != nil {
		return err
	}
	content, ok := v.committed[path]
	if !ok {
		return errors.New("pathspec did not match any file known to git")
	}
	return os.WriteFile(filepath.Join(v.root, path), []byte(content), 0644)
}

func (v *committedVCS) RevertFile(context.Context, string) error { return nil }

func (v *committedVCS) Commit(context.Context, string, string) error { return nil }

func lines(l ...string) string {
	return strings.Join(l, "\n") + "\n"
}

const mainGo = "package main\n\nfunc main() {\n}\n"

type fixture struct {
	root   string
	ws     *workset.Set
	vcs    *committedVCS
	engine *Engine
}

func newFixture(t *testing.T, files map[string]string) *fixture {
	t.Helper()
	root := t.TempDir()
	ws := workset.New(root)
	vcs := &committedVCS{root: root, committed: map[string]string{}, fail: map[string]error{}}
	for name, content := range files {
		path := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
		vcs.committed[name] = content
		_, err := ws.Add(name)
		require.NoError(t, err)
	}
	return &fixture{root: root, ws: ws, vcs: vcs, engine: NewEngine(root, ws, vcs)}
}

func (f *fixture) read(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(f.root, name))
	require.NoError(t, err)
	return string(data)
}

func (f *fixture) exists(name string) bool {
	_, err := os.Stat(filepath.Join(f.root, name))
	return err == nil
}

var modifyAndCreate = lines(
	"--- a/main.go",
	"+++ b/main.go",
	"@@ -1,4 +1,5 @@",
	" package main",
	" ",
	" func main() {",
	"+\tprintln(\"hi\")",
	" }",
	"--- /dev/null",
	"+++ b/cmd/hello.go",
	"@@ -0,0 +1,3 @@",
	"+package main",
	"+",
	"+func hello() {}",
)

func TestParse(t *testing.T) {
	patches, err := Parse(modifyAndCreate)
	require.NoError(t, err)
	require.Len(t, patches, 2)

	assert.Equal(t, "main.go", patches[0].Source)
	assert.Equal(t, "main.go", patches[0].Target)
	assert.False(t, patches[0].IsCreation())

	assert.Equal(t, DevNull, patches[1].Source)
	assert.Equal(t, "cmd/hello.go", patches[1].Target)
	assert.True(t, patches[1].IsCreation())

	_, err = Parse("just some prose, no diff here\n")
	assert.True(t, errors.Is(err, ErrEmptyDiff))
}

func TestSummary(t *testing.T) {
	assert.Equal(t, "modify main.go\ncreate cmd/hello.go", Summary(modifyAndCreate))
}

func TestApplyThenUndoRestoresOriginals(t *testing.T) {
	f := newFixture(t, map[string]string{"main.go": mainGo})
	ctx := context.Background()

	res, err := f.engine.Apply(ctx, modifyAndCreate)
	require.NoError(t, err)
	require.Len(t, res.Files, 2)
	assert.True(t, res.Files[1].Created)
	assert.Contains(t, res.String(), "cmd/hello.go (created)")

	assert.Equal(t, "package main\n\nfunc main() {\n\tprintln(\"hi\")\n}\n", f.read(t, "main.go"))
	assert.Equal(t, "package main\n\nfunc hello() {}\n", f.read(t, "cmd/hello.go"))
	assert.Equal(t, modifyAndCreate, f.engine.LastApplied())
	assert.True(t, f.ws.Contains("cmd/hello.go"), "created files join the working set")

	restored, err := f.engine.Undo(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"main.go", "cmd/hello.go"}, restored)

	assert.Equal(t, mainGo, f.read(t, "main.go"))
	assert.False(t, f.exists("cmd/hello.go"))
	assert.False(t, f.ws.Contains("cmd/hello.go"))
	assert.Empty(t, f.engine.LastApplied())
	assert.Equal(t, []string{"main.go"}, f.vcs.checkouts)
}

func TestApplyFailureLeavesLastDiffUnset(t *testing.T) {
	f := newFixture(t, map[string]string{
		"main.go":  mainGo,
		"other.go": "package other\n",
	})
	ctx := context.Background()

	create := lines(
		"--- /dev/null",
		"+++ b/new.go",
		"@@ -0,0 +1 @@",
		"+package main",
	)
	_, err := f.engine.Apply(ctx, create)
	require.NoError(t, err)
	require.NotEmpty(t, f.engine.LastApplied())

	// First file applies, second has stale context.
	bad := lines(
		"--- a/main.go",
		"+++ b/main.go",
		"@@ -1,4 +1,4 @@",
		"-package main",
		"+package app",
		" ",
		" func main() {",
		" }",
		"--- a/other.go",
		"+++ b/other.go",
		"@@ -1 +1 @@",
		"-package nothere",
		"+package other2",
	)
	_, err = f.engine.Apply(ctx, bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "other.go")
	assert.Empty(t, f.engine.LastApplied(), "a failed apply clears the last diff")

	// No multi-file rollback: the first file stays written.
	assert.Equal(t, "package app\n\nfunc main() {\n}\n", f.read(t, "main.go"))
	assert.Equal(t, "package other\n", f.read(t, "other.go"))
}

func TestApplyRequiresWorkingSetExceptCreation(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, os.WriteFile(filepath.Join(f.root, "untracked.go"), []byte("package x\n"), 0644))

	modify := lines(
		"--- a/untracked.go",
		"+++ b/untracked.go",
		"@@ -1 +1 @@",
		"-package x",
		"+package y",
	)
	_, err := f.engine.Apply(context.Background(), modify)
	assert.True(t, errors.Is(err, ErrNotInWorkingSet))
	assert.Equal(t, "package x\n", f.read(t, "untracked.go"))

	gitCreate := lines(
		"diff --git a/fresh.go b/fresh.go",
		"new file mode 100644",
		"--- /dev/null",
		"+++ b/fresh.go",
		"@@ -0,0 +1 @@",
		"+package fresh",
	)
	res, err := f.engine.Apply(context.Background(), gitCreate)
	require.NoError(t, err)
	assert.Equal(t, "fresh.go", res.Files[0].Path)
	assert.Equal(t, "package fresh\n", f.read(t, "fresh.go"))
}

func TestApplyRejectsPathsOutsideRoot(t *testing.T) {
	f := newFixture(t, nil)
	escape := lines(
		"--- /dev/null",
		"+++ b/../escape.go",
		"@@ -0,0 +1 @@",
		"+package escape",
	)
	_, err := f.engine.Apply(context.Background(), escape)
	assert.True(t, errors.Is(err, ErrOutsideRoot))
}

func TestApplyCreationOfExistingFileFails(t *testing.T) {
	f := newFixture(t, map[string]string{"main.go": mainGo})
	create := lines(
		"--- /dev/null",
		"+++ b/main.go",
		"@@ -0,0 +1 @@",
		"+package main",
	)
	_, err := f.engine.Apply(context.Background(), create)
	require.Error(t, err)
	assert.Equal(t, mainGo, f.read(t, "main.go"))
}

func TestDeletionAndUndo(t *testing.T) {
	f := newFixture(t, map[string]string{"old.go": "package old\n"})
	ctx := context.Background()

	del := lines(
		"--- a/old.go",
		"+++ /dev/null",
		"@@ -1 +0,0 @@",
		"-package old",
	)
	res, err := f.engine.Apply(ctx, del)
	require.NoError(t, err)
	assert.True(t, res.Files[0].Deleted)
	assert.False(t, f.exists("old.go"))

	_, err = f.engine.Undo(ctx)
	require.NoError(t, err)
	assert.Equal(t, "package old\n", f.read(t, "old.go"))
	assert.True(t, f.ws.Contains("old.go"))
}

func TestUndoWithoutLastDiff(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.engine.Undo(context.Background())
	assert.True(t, errors.Is(err, ErrNoLastDiff))
}

func TestUndoClearsLastDiffOnPartialFailure(t *testing.T) {
	f := newFixture(t, map[string]string{"main.go": mainGo})
	ctx := context.Background()

	_, err := f.engine.Apply(ctx, modifyAndCreate)
	require.NoError(t, err)

	f.vcs.fail["main.go"] = errors.New("checkout failed")
	restored, err := f.engine.Undo(ctx)
	require.Error(t, err)
	assert.Equal(t, []string{"cmd/hello.go"}, restored)
	assert.Empty(t, f.engine.LastApplied())

	_, err = f.engine.Undo(ctx)
	assert.True(t, errors.Is(err, ErrNoLastDiff))
}
