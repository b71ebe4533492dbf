// Package build compiles and packages the project, used by the self-update
// rollback to rebuild after a revert.
package build

// Backend describes how a kind of project is compiled and packaged.
type Backend interface {
	// Name returns the backend name for logging and identification
	Name() string

	// Detect determines if this backend applies to the given project root
	Detect(root string) bool

	// CompileCommand returns the shell command that checks the project builds.
	// Blank means there is nothing to compile.
	CompileCommand(root string) string

	// PackageCommand returns the shell command that produces the runnable
	// artifact. Blank means there is nothing to package.
	PackageCommand(root string) string
}

// BackendPriority defines the priority order for backend detection
type BackendPriority int

const (
	// PriorityHigh is for specific project types (go.mod, package.json, etc.)
	PriorityHigh BackendPriority = 100

	// PriorityMedium is for generic build files (Makefile)
	PriorityMedium BackendPriority = 50

	// PriorityLow is for the fallback NullBackend
	PriorityLow BackendPriority = 10
)

// BackendRegistration combines a backend with its priority
type BackendRegistration struct {
	Backend  Backend
	Priority BackendPriority
}
