// Package git implements the version-control collaborator on top of the git CLI.
package git

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"pilot/pkg/exec"
	"pilot/pkg/logx"
)

// ErrNoHistory is returned when a file has no commit to revert from.
var ErrNoHistory = errors.New("file has no commit history")

// VCS is the version-control surface the pipeline depends on.
type VCS interface {
	// RevertFile restores path to its content before the most recent commit
	// that touched it. The change is left in the working tree and index.
	RevertFile(ctx context.Context, path string) error

	// CheckoutFile discards working-tree changes to path (restores HEAD).
	CheckoutFile(ctx context.Context, path string) error

	// Commit records path alone in a new commit.
	Commit(ctx context.Context, path, message string) error
}

// Repo runs git commands in a repository root.
type Repo struct {
	root     string
	executor exec.Executor
	logger   *logx.Logger
}

// NewRepo creates a Repo rooted at root.
func NewRepo(root string, executor exec.Executor) *Repo {
	return &Repo{
		root:     root,
		executor: executor,
		logger:   logx.NewLogger("git"),
	}
}

// RevertFile implements VCS.
func (r *Repo) RevertFile(ctx context.Context, path string) error {
	sha, err := r.git(ctx, "log", "-n", "1", "--format=%H", "--", path)
	if err != nil {
		return fmt.Errorf("failed to find last commit for %s: %w", path, err)
	}
	if sha == "" {
		return fmt.Errorf("%w: %s", ErrNoHistory, path)
	}

	parent := sha + "^"
	if _, err := r.git(ctx, "rev-parse", "--verify", "--quiet", parent); err != nil {
		return fmt.Errorf("%w: %s was introduced by the root commit", ErrNoHistory, path)
	}

	// The commit created the file: reverting means removing it.
	if _, err := r.git(ctx, "cat-file", "-e", parent+":"+path); err != nil {
		r.logger.Info("↩️  %s did not exist before %s, removing", path, short(sha))
		if _, rmErr := r.git(ctx, "rm", "-q", "-f", "--", path); rmErr != nil {
			return fmt.Errorf("failed to remove %s: %w", path, rmErr)
		}
		return nil
	}

	if _, err := r.git(ctx, "checkout", parent, "--", path); err != nil {
		return fmt.Errorf("failed to revert %s to %s: %w", path, short(parent), err)
	}
	r.logger.Info("↩️  Reverted %s to %s", path, short(parent))
	return nil
}

// CheckoutFile implements VCS.
func (r *Repo) CheckoutFile(ctx context.Context, path string) error {
	if _, err := r.git(ctx, "checkout", "--", path); err != nil {
		return fmt.Errorf("failed to checkout %s: %w", path, err)
	}
	return nil
}

// Commit implements VCS.
func (r *Repo) Commit(ctx context.Context, path, message string) error {
	if strings.TrimSpace(message) == "" {
		return fmt.Errorf("commit message is required")
	}
	if _, err := r.git(ctx, "add", "--", path); err != nil {
		return fmt.Errorf("failed to stage %s: %w", path, err)
	}
	if _, err := r.git(ctx, "commit", "-q", "-m", message, "--", path); err != nil {
		return fmt.Errorf("failed to commit %s: %w", path, err)
	}
	r.logger.Info("📝 Committed %s: %s", path, message)
	return nil
}

// git runs a git subcommand and returns trimmed stdout. Non-zero exits are errors.
func (r *Repo) git(ctx context.Context, args ...string) (string, error) {
	cmd := append([]string{"git"}, args...)
	res, err := r.executor.Run(ctx, cmd, &exec.Opts{WorkDir: r.root})
	if err != nil {
		return "", err
	}
	if res.ExitCode != 0 {
		return "", fmt.Errorf("git %s exited %d: %s", args[0], res.ExitCode, strings.TrimSpace(res.Stderr))
	}
	return strings.TrimSpace(res.Stdout), nil
}

func short(ref string) string {
	if len(ref) > 8 {
		return ref[:8] + strings.TrimLeft(ref[8:], "0123456789abcdef")
	}
	return ref
}
