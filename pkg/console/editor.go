package console

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// Editor lets the human rewrite a block of text.
type Editor interface {
	Edit(ctx context.Context, text string) (string, error)
}

// EditorFunc adapts a function to Editor.
type EditorFunc func(ctx context.Context, text string) (string, error)

// Edit implements Editor.
func (f EditorFunc) Edit(ctx context.Context, text string) (string, error) { return f(ctx, text) }

// ExternalEditor opens the text in $VISUAL, $EDITOR or vi, attached to the
// process's terminal.
type ExternalEditor struct {
	// Command overrides the environment lookup. It may carry arguments.
	Command string
}

// Edit implements Editor.
func (e ExternalEditor) Edit(ctx context.Context, text string) (string, error) {
	command := e.command()
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return "", fmt.Errorf("no editor configured")
	}

	f, err := os.CreateTemp("", "pilot-*.diff")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	path := f.Name()
	defer os.Remove(path)

	if _, err := f.WriteString(text); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close temp file: %w", err)
	}

	//nolint:gosec // the editor command comes from the user's environment
	cmd := exec.CommandContext(ctx, fields[0], append(fields[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("%s exited: %w", fields[0], err)
	}

	edited, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read edited file: %w", err)
	}
	return string(edited), nil
}

func (e ExternalEditor) command() string {
	if e.Command != "" {
		return e.Command
	}
	for _, env := range []string{"VISUAL", "EDITOR"} {
		if v := strings.TrimSpace(os.Getenv(env)); v != "" {
			return v
		}
	}
	return "vi"
}
