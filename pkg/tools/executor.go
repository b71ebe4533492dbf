package tools

import (
	"context"
	"fmt"
	"runtime/debug"

	"pilot/pkg/logx"
)

// Executor resolves requests against a registry and invokes the tool.
type Executor struct {
	registry *Registry
	logger   *logx.Logger
}

// NewExecutor creates an executor over registry.
func NewExecutor(registry *Registry) *Executor {
	return &Executor{registry: registry, logger: logx.NewLogger("tools")}
}

// Registry returns the underlying registry.
func (e *Executor) Registry() *Registry {
	return e.registry
}

// Execute runs req. Tool panics are recovered and returned as errors.
func (e *Executor) Execute(ctx context.Context, req Request) (result string, err error) {
	tool, err := e.registry.Get(req.Name)
	if err != nil {
		return "", err
	}
	args, err := ParseArguments(req.Arguments)
	if err != nil {
		return "", err
	}

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("💥 Tool %s panicked: %v\n%s", req.Name, r, debug.Stack())
			result, err = "", fmt.Errorf("tool %s panicked: %v", req.Name, r)
		}
	}()

	logx.Debug(ctx, "tools", "exec %s (id=%s)", req.Name, req.ID)
	res, err := tool.Exec(ctx, args)
	if err != nil {
		return "", err
	}
	if res == nil {
		return "", nil
	}
	return res.Content, nil
}
