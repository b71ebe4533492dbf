package build

// NullBackend is the fallback for projects without a recognised build system.
// It compiles and packages nothing.
type NullBackend struct{}

// NewNullBackend creates a new null backend.
func NewNullBackend() *NullBackend {
	return &NullBackend{}
}

// Name returns the backend name.
func (n *NullBackend) Name() string {
	return "null"
}

// Detect always matches; the registry consults it last.
func (n *NullBackend) Detect(_ string) bool {
	return true
}

// CompileCommand is blank.
func (n *NullBackend) CompileCommand(_ string) string {
	return ""
}

// PackageCommand is blank.
func (n *NullBackend) PackageCommand(_ string) string {
	return ""
}
