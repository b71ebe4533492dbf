// Package diff parses unified diffs, applies them to the working tree and
// undoes the last successful application.
package diff

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bluekeyes/go-gitdiff/gitdiff"
)

// DevNull is the source marker of a file creation.
const DevNull = "/dev/null"

// ErrEmptyDiff is returned when the text contains no file patches.
var ErrEmptyDiff = errors.New("diff contains no file changes")

// Patch is the change to a single file.
type Patch struct {
	Source string // DevNull for creations
	Target string // DevNull for deletions
	file   *gitdiff.File
}

// IsCreation reports whether the patch creates a new file.
func (p *Patch) IsCreation() bool {
	return p.Source == DevNull
}

// IsDeletion reports whether the patch removes the file.
func (p *Patch) IsDeletion() bool {
	return p.Target == DevNull
}

// Path is the file the patch writes (or removes, for deletions).
func (p *Patch) Path() string {
	if p.IsDeletion() {
		return p.Source
	}
	return p.Target
}

// Fragments returns the number of hunks.
func (p *Patch) Fragments() int {
	return len(p.file.TextFragments)
}

// Parse splits unified diff text into per-file patches. Both git-style
// ("diff --git") and plain "---/+++" diffs are accepted; plain diffs have
// their a/ and b/ prefixes stripped.
func Parse(text string) ([]*Patch, error) {
	files, _, err := gitdiff.Parse(strings.NewReader(text))
	if err != nil {
		return nil, fmt.Errorf("failed to parse diff: %w", err)
	}
	if len(files) == 0 {
		return nil, ErrEmptyDiff
	}

	gitStyle := strings.HasPrefix(text, "diff --git ") || strings.Contains(text, "\ndiff --git ")
	patches := make([]*Patch, 0, len(files))
	for _, f := range files {
		if f.IsBinary {
			return nil, fmt.Errorf("binary patch for %s is not supported", firstNonEmpty(f.NewName, f.OldName))
		}
		p := &Patch{Source: f.OldName, Target: f.NewName, file: f}
		if !gitStyle {
			p.Source = stripPrefix(p.Source)
			p.Target = stripPrefix(p.Target)
		}
		if f.IsNew || p.Source == "" {
			p.Source = DevNull
		}
		if f.IsDelete || p.Target == "" {
			p.Target = DevNull
		}
		if p.Source == DevNull && p.Target == DevNull {
			return nil, fmt.Errorf("patch has neither source nor target")
		}
		patches = append(patches, p)
	}
	return patches, nil
}

// Summary lists the files a diff touches, one per line, for review prompts.
func Summary(text string) string {
	patches, err := Parse(text)
	if err != nil {
		return err.Error()
	}
	var sb strings.Builder
	for _, p := range patches {
		switch {
		case p.IsCreation():
			sb.WriteString("create ")
		case p.IsDeletion():
			sb.WriteString("delete ")
		case p.Source != p.Target:
			sb.WriteString("rename " + p.Source + " -> ")
		default:
			sb.WriteString("modify ")
		}
		sb.WriteString(p.Path())
		sb.WriteString("\n")
	}
	return strings.TrimSuffix(sb.String(), "\n")
}

// stripPrefix removes the a/ or b/ prefix of plain diffs. Such diffs name
// both sides after the new file, so either prefix can appear on either side.
func stripPrefix(name string) string {
	for _, prefix := range []string{"a/", "b/"} {
		if strings.HasPrefix(name, prefix) {
			return name[len(prefix):]
		}
	}
	return name
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
