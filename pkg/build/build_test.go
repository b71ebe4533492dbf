package build

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pilot/pkg/config"
	"pilot/pkg/exec"
)

type fakeExecutor struct {
	calls  [][]string
	opts   []*exec.Opts
	result exec.Result
	err    error
}

func (f *fakeExecutor) Run(_ context.Context, cmd []string, opts *exec.Opts) (exec.Result, error) {
	f.calls = append(f.calls, cmd)
	f.opts = append(f.opts, opts)
	return f.result, f.err
}

func (f *fakeExecutor) Name() exec.ExecutorType { return "fake" }

func touch(t *testing.T, dir, name string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(""), 0o644))
}

func TestRegistryDetect(t *testing.T) {
	tests := []struct {
		name  string
		files []string
		want  string
	}{
		{"go module", []string{"go.mod", "Makefile"}, "go"},
		{"python", []string{"pyproject.toml"}, "python"},
		{"node", []string{"package.json"}, "node"},
		{"makefile only", []string{"Makefile"}, "make"},
		{"empty", nil, "null"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			for _, f := range tt.files {
				touch(t, dir, f)
			}
			backend, err := NewRegistry("bin/app").Detect(dir)
			require.NoError(t, err)
			assert.Equal(t, tt.want, backend.Name())
		})
	}
}

func TestRegistryGetByName(t *testing.T) {
	r := NewRegistry("")
	b, err := r.GetByName("make")
	require.NoError(t, err)
	assert.Equal(t, "make", b.Name())

	_, err = r.GetByName("cargo")
	assert.Error(t, err)
}

func TestGoBackendPackageCommand(t *testing.T) {
	dir := t.TempDir()
	g := NewGoBackend("/tmp/out/pilot")
	assert.Equal(t, "go build -o '/tmp/out/pilot' .", g.PackageCommand(dir))

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "cmd", "pilot"), 0o755))
	assert.Equal(t, "go build -o '/tmp/out/pilot' ./cmd/pilot", g.PackageCommand(dir))

	assert.Empty(t, NewGoBackend("").PackageCommand(dir))
}

func TestCommandBuilderConfiguredOverridesDetected(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "go.mod")
	fake := &fakeExecutor{}

	b := NewCommandBuilder(fake, dir, &config.BuildConfig{Compile: " make check "}, NewRegistry("out/pilot"))
	compile, pkg := b.Commands()
	assert.Equal(t, "make check", compile)
	assert.Equal(t, "go build -o 'out/pilot' .", pkg)

	res := b.Compile(context.Background())
	assert.True(t, res.Success)
	require.Len(t, fake.calls, 1)
	assert.Equal(t, []string{"sh", "-c", "make check"}, fake.calls[0])
	assert.Equal(t, dir, fake.opts[0].WorkDir)
	assert.True(t, fake.opts[0].MergeOutput)
}

func TestCommandBuilderConfiguredBackend(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "go.mod")

	b := NewCommandBuilder(&fakeExecutor{}, dir, &config.BuildConfig{Backend: "make"}, NewRegistry("out/pilot"))
	compile, pkg := b.Commands()
	assert.Equal(t, "make build", compile)
	assert.Equal(t, "make package", pkg)

	// Unknown names fall back to detection.
	b = NewCommandBuilder(&fakeExecutor{}, dir, &config.BuildConfig{Backend: "cargo"}, NewRegistry("out/pilot"))
	compile, _ = b.Commands()
	assert.Equal(t, "go build ./...", compile)
}

func TestCommandBuilderBlankCommandSkips(t *testing.T) {
	fake := &fakeExecutor{}
	b := NewCommandBuilder(fake, t.TempDir(), nil, NewRegistry(""))

	res := b.Package(context.Background())
	assert.True(t, res.Success)
	assert.Contains(t, res.Output, "skipped")
	assert.Empty(t, fake.calls)
}

func TestCommandBuilderFailure(t *testing.T) {
	fake := &fakeExecutor{result: exec.Result{ExitCode: 2, Stdout: "undefined: foo"}}
	b := NewCommandBuilder(fake, t.TempDir(), &config.BuildConfig{Compile: "go build ./..."}, nil)

	res := b.Compile(context.Background())
	assert.False(t, res.Success)
	assert.Equal(t, "undefined: foo", res.Output)
}

func TestRunCommandStartFailure(t *testing.T) {
	fake := &fakeExecutor{err: errors.New("executable file not found")}
	b := NewCommandBuilder(fake, t.TempDir(), nil, nil)

	code, out := b.RunCommand(context.Background(), []string{"nope"})
	assert.Equal(t, -1, code)
	assert.Contains(t, out, "executable file not found")
}
