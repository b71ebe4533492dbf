package build

import (
	"os"
	"path/filepath"
)

// PythonBackend handles Python projects.
type PythonBackend struct{}

// NewPythonBackend creates a new Python backend.
func NewPythonBackend() *PythonBackend {
	return &PythonBackend{}
}

// Name returns the backend name.
func (p *PythonBackend) Name() string {
	return "python"
}

// Detect checks for Python project files.
func (p *PythonBackend) Detect(root string) bool {
	for _, file := range []string{"pyproject.toml", "requirements.txt", "setup.py", "Pipfile", "poetry.lock"} {
		if _, err := os.Stat(filepath.Join(root, file)); err == nil {
			return true
		}
	}
	return false
}

// CompileCommand byte-compiles the tree to catch syntax errors.
func (p *PythonBackend) CompileCommand(_ string) string {
	return "python3 -m compileall -q ."
}

// PackageCommand is blank: Python projects run from source.
func (p *PythonBackend) PackageCommand(_ string) string {
	return ""
}
