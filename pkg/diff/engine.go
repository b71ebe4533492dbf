package diff

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bluekeyes/go-gitdiff/gitdiff"

	"pilot/pkg/git"
	"pilot/pkg/logx"
	"pilot/pkg/workset"
)

var (
	// ErrNotInWorkingSet is returned when a diff modifies a file the agent
	// has not been given.
	ErrNotInWorkingSet = errors.New("file is not in the working set")

	// ErrOutsideRoot is returned when a diff path escapes the project root.
	ErrOutsideRoot = workset.ErrOutsideRoot

	// ErrNoLastDiff is returned by Undo when nothing has been applied.
	ErrNoLastDiff = errors.New("no applied diff to undo")
)

// FileChange describes what happened to one file.
type FileChange struct {
	Path    string
	Created bool
	Deleted bool
	Renamed string // previous path when the patch renamed the file
}

// ApplyResult lists the files changed by a successful application.
type ApplyResult struct {
	Files []FileChange
}

// String renders the result as the tool output shown to the agent.
func (r *ApplyResult) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Diff applied successfully to %d file(s):", len(r.Files))
	for _, f := range r.Files {
		switch {
		case f.Created:
			fmt.Fprintf(&sb, "\n- %s (created)", f.Path)
		case f.Deleted:
			fmt.Fprintf(&sb, "\n- %s (deleted)", f.Path)
		case f.Renamed != "":
			fmt.Fprintf(&sb, "\n- %s (renamed from %s)", f.Path, f.Renamed)
		default:
			fmt.Fprintf(&sb, "\n- %s", f.Path)
		}
	}
	return sb.String()
}

// Engine applies diffs under a project root and remembers the last one that
// applied in full.
type Engine struct {
	root        string
	workingSet  *workset.Set
	vcs         git.VCS
	lastApplied string
	logger      *logx.Logger
	mu          sync.Mutex
}

// NewEngine creates a diff engine.
func NewEngine(root string, ws *workset.Set, vcs git.VCS) *Engine {
	return &Engine{
		root:       root,
		workingSet: ws,
		vcs:        vcs,
		logger:     logx.NewLogger("diff"),
	}
}

// LastApplied returns the last fully applied diff, or "".
func (e *Engine) LastApplied() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastApplied
}

// SetLastApplied restores the last applied diff from a session snapshot.
func (e *Engine) SetLastApplied(text string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastApplied = text
}

// Apply parses text and applies every file patch in order. The first
// failure aborts the rest; files already written stay written. The diff
// becomes the last applied diff only if every file succeeds, and any
// attempt clears the previous one.
func (e *Engine) Apply(ctx context.Context, text string) (*ApplyResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastApplied = ""

	patches, err := Parse(text)
	if err != nil {
		return nil, err
	}

	result := &ApplyResult{}
	for i, p := range patches {
		change, err := e.applyPatch(p)
		if err != nil {
			if i > 0 {
				e.logger.Warn("⚠️  Diff aborted at file %d/%d; %d earlier file(s) remain written", i+1, len(patches), i)
			}
			return nil, fmt.Errorf("failed to apply patch to %s: %w", p.Path(), err)
		}
		logx.Debug(ctx, "diff", "applied %s (%d hunks)", change.Path, p.Fragments())
		result.Files = append(result.Files, change)
	}

	e.lastApplied = text
	e.logger.Info("✅ Applied diff to %d file(s)", len(result.Files))
	return result, nil
}

func (e *Engine) applyPatch(p *Patch) (FileChange, error) {
	if p.IsCreation() {
		return e.create(p)
	}

	srcAbs, srcRel, err := workset.Resolve(e.root, p.Source)
	if err != nil {
		return FileChange{}, err
	}
	if !e.workingSet.Contains(srcRel) {
		return FileChange{}, fmt.Errorf("%w: %s (add it first)", ErrNotInWorkingSet, srcRel)
	}

	original, err := os.ReadFile(srcAbs)
	if err != nil {
		return FileChange{}, fmt.Errorf("failed to read %s: %w", srcRel, err)
	}

	var out bytes.Buffer
	if err := gitdiff.Apply(&out, bytes.NewReader(original), p.file); err != nil {
		return FileChange{}, err
	}

	if p.IsDeletion() {
		if err := os.Remove(srcAbs); err != nil {
			return FileChange{}, fmt.Errorf("failed to delete %s: %w", srcRel, err)
		}
		e.workingSet.Remove(srcRel)
		return FileChange{Path: srcRel, Deleted: true}, nil
	}

	dstAbs, dstRel, err := workset.Resolve(e.root, p.Target)
	if err != nil {
		return FileChange{}, err
	}
	if err := writeFile(dstAbs, out.Bytes(), fileMode(srcAbs)); err != nil {
		return FileChange{}, err
	}

	change := FileChange{Path: dstRel}
	if dstRel != srcRel {
		if err := os.Remove(srcAbs); err != nil {
			return FileChange{}, fmt.Errorf("failed to remove renamed %s: %w", srcRel, err)
		}
		e.workingSet.Remove(srcRel)
		if err := e.workingSet.Track(dstRel); err != nil {
			return FileChange{}, err
		}
		change.Renamed = srcRel
	}
	return change, nil
}

func (e *Engine) create(p *Patch) (FileChange, error) {
	abs, rel, err := workset.Resolve(e.root, p.Target)
	if err != nil {
		return FileChange{}, err
	}
	if _, err := os.Stat(abs); err == nil {
		return FileChange{}, fmt.Errorf("cannot create %s: file already exists", rel)
	}

	var out bytes.Buffer
	if err := gitdiff.Apply(&out, bytes.NewReader(nil), p.file); err != nil {
		return FileChange{}, err
	}
	if err := writeFile(abs, out.Bytes(), 0644); err != nil {
		return FileChange{}, err
	}
	if err := e.workingSet.Track(rel); err != nil {
		return FileChange{}, err
	}
	return FileChange{Path: rel, Created: true}, nil
}

// Undo reverses the last applied diff: created files are deleted and dropped
// from the working set, everything else is checked out from version control.
// The last applied diff is cleared even when some files fail.
func (e *Engine) Undo(ctx context.Context) ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	text := e.lastApplied
	if text == "" {
		return nil, ErrNoLastDiff
	}
	defer func() { e.lastApplied = "" }()

	patches, err := Parse(text)
	if err != nil {
		return nil, err
	}

	var (
		restored []string
		errs     []error
	)
	for _, p := range patches {
		if p.IsCreation() {
			abs, rel, err := workset.Resolve(e.root, p.Target)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			if err := os.Remove(abs); err != nil && !os.IsNotExist(err) {
				errs = append(errs, fmt.Errorf("failed to delete %s: %w", rel, err))
				continue
			}
			e.workingSet.Remove(rel)
			restored = append(restored, rel)
			continue
		}

		_, srcRel, err := workset.Resolve(e.root, p.Source)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := e.vcs.CheckoutFile(ctx, srcRel); err != nil {
			errs = append(errs, err)
			continue
		}
		if !p.IsDeletion() && p.Target != p.Source {
			if abs, rel, err := workset.Resolve(e.root, p.Target); err == nil {
				if err := os.Remove(abs); err != nil && !os.IsNotExist(err) {
					errs = append(errs, fmt.Errorf("failed to remove %s: %w", rel, err))
				}
				e.workingSet.Remove(rel)
			}
		}
		if err := e.workingSet.Track(srcRel); err != nil {
			errs = append(errs, err)
		}
		restored = append(restored, srcRel)
	}

	if len(errs) > 0 {
		e.logger.Warn("⚠️  Undo finished with %d error(s); last diff cleared", len(errs))
		return restored, errors.Join(errs...)
	}
	e.logger.Info("↩️  Undid last diff (%d file(s))", len(restored))
	return restored, nil
}

func writeFile(path string, data []byte, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, mode); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func fileMode(path string) os.FileMode {
	if info, err := os.Stat(path); err == nil {
		return info.Mode().Perm()
	}
	return 0644
}
