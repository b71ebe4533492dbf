package build

import (
	"os"
	"path/filepath"
)

// NodeBackend handles Node.js/JavaScript projects.
type NodeBackend struct{}

// NewNodeBackend creates a new Node backend.
func NewNodeBackend() *NodeBackend {
	return &NodeBackend{}
}

// Name returns the backend name.
func (n *NodeBackend) Name() string {
	return "node"
}

// Detect checks for package.json.
func (n *NodeBackend) Detect(root string) bool {
	_, err := os.Stat(filepath.Join(root, "package.json"))
	return err == nil
}

// CompileCommand runs the build script if the project defines one.
func (n *NodeBackend) CompileCommand(_ string) string {
	return "npm run build --if-present"
}

// PackageCommand is blank: the build script produces the artifact.
func (n *NodeBackend) PackageCommand(_ string) string {
	return ""
}
