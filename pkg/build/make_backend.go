package build

import (
	"os"
	"path/filepath"
)

// MakeBackend handles projects with existing Makefiles.
type MakeBackend struct{}

// NewMakeBackend creates a new make backend.
func NewMakeBackend() *MakeBackend {
	return &MakeBackend{}
}

// Name returns the backend name.
func (m *MakeBackend) Name() string {
	return "make"
}

// Detect checks if a Makefile exists in the project root.
func (m *MakeBackend) Detect(root string) bool {
	for _, makefile := range []string{"Makefile", "makefile", "GNUmakefile"} {
		if _, err := os.Stat(filepath.Join(root, makefile)); err == nil {
			return true
		}
	}
	return false
}

// CompileCommand runs the build target.
func (m *MakeBackend) CompileCommand(_ string) string {
	return "make build"
}

// PackageCommand runs the package target.
func (m *MakeBackend) PackageCommand(_ string) string {
	return "make package"
}
