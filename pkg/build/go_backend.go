package build

import (
	"fmt"
	"os"
	"path/filepath"
)

// GoBackend handles Go projects with go.mod files.
type GoBackend struct {
	// binary is where PackageCommand writes the executable.
	binary string
}

// NewGoBackend creates a Go backend that packages into binary.
func NewGoBackend(binary string) *GoBackend {
	return &GoBackend{binary: binary}
}

// Name returns the backend name.
func (g *GoBackend) Name() string {
	return "go"
}

// Detect checks if a go.mod file exists in the project root.
func (g *GoBackend) Detect(root string) bool {
	_, err := os.Stat(filepath.Join(root, "go.mod"))
	return err == nil
}

// CompileCommand builds every package without writing artifacts.
func (g *GoBackend) CompileCommand(_ string) string {
	return "go build ./..."
}

// PackageCommand builds the main package named after the binary when
// cmd/<name> exists, else the root package.
func (g *GoBackend) PackageCommand(root string) string {
	if g.binary == "" {
		return ""
	}
	mainPkg := "."
	candidate := filepath.Join("cmd", filepath.Base(g.binary))
	if info, err := os.Stat(filepath.Join(root, candidate)); err == nil && info.IsDir() {
		mainPkg = "./" + filepath.ToSlash(candidate)
	}
	return fmt.Sprintf("go build -o %s %s", shellQuote(g.binary), mainPkg)
}
