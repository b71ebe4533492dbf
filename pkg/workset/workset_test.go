package workset

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	root := t.TempDir()

	abs, rel, err := Resolve(root, "pkg/../main.go")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "main.go"), abs)
	assert.Equal(t, "main.go", rel)

	_, rel, err = Resolve(root, filepath.Join(root, "a", "b.go"))
	require.NoError(t, err)
	assert.Equal(t, "a/b.go", rel)

	for _, bad := range []string{"../etc/passwd", "/etc/passwd", ".", "a/../../x"} {
		_, _, err := Resolve(root, bad)
		assert.True(t, errors.Is(err, ErrOutsideRoot), bad)
	}
}

func TestAddRequiresExistingFile(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "main.go"), []byte("package main\n"), 0644))
	require.NoError(t, os.Mkdir(filepath.Join(root, "pkg"), 0755))

	s := New(root)
	rel, err := s.Add("./main.go")
	require.NoError(t, err)
	assert.Equal(t, "main.go", rel)
	assert.True(t, s.Contains("main.go"))

	_, err = s.Add("missing.go")
	assert.Error(t, err)
	_, err = s.Add("pkg")
	assert.Error(t, err)

	assert.Equal(t, []string{"main.go"}, s.List())
}

func TestTrackAndRemove(t *testing.T) {
	s := New(t.TempDir())
	require.NoError(t, s.Track("new/file.go"))
	assert.True(t, s.Contains("new/file.go"))

	assert.True(t, s.Remove("new/file.go"))
	assert.False(t, s.Remove("new/file.go"))
	assert.Empty(t, s.List())
}

func TestReplaceDropsMissing(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.go"), nil, 0644))

	s := New(root)
	require.NoError(t, s.Track("old.go"))

	dropped := s.Replace([]string{"a.go", "gone.go"})
	assert.Equal(t, []string{"gone.go"}, dropped)
	assert.Equal(t, []string{"a.go"}, s.List())
}
