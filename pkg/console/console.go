// Package console is the line-oriented interactive surface: it renders
// pending interactions and agent messages, and parses the human's replies.
package console

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"pilot/pkg/interaction"
	"pilot/pkg/logx"
)

// Console writes to a terminal-like stream.
type Console struct {
	out    io.Writer
	editor Editor
	logger *logx.Logger
	mu     sync.Mutex
}

// New creates a console writing to out. editor serves the "edit" choice of
// diff review; nil disables editing.
func New(out io.Writer, editor Editor) *Console {
	return &Console{
		out:    out,
		editor: editor,
		logger: logx.NewLogger("console"),
	}
}

// Printf writes a formatted line.
func (c *Console) Printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, format, args...)
	if !strings.HasSuffix(format, "\n") {
		fmt.Fprintln(c.out)
	}
}

// Prompt writes the input prompt for free-form requests.
func (c *Console) Prompt() {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprint(c.out, "> ")
}

// Render shows a pending request and the choices it accepts.
func (c *Console) Render(req interaction.Request) {
	c.mu.Lock()
	defer c.mu.Unlock()

	fmt.Fprintln(c.out)
	switch req.Kind {
	case interaction.KindDiffReview:
		fmt.Fprintln(c.out, req.Title)
		fmt.Fprintln(c.out, strings.TrimRight(req.Text, "\n"))
		fmt.Fprint(c.out, "Apply these changes? [y]es / [n]o / [e]dit: ")
	case interaction.KindPlanApproval:
		fmt.Fprintln(c.out, "📋 Proposed plan:")
		fmt.Fprintln(c.out, strings.TrimRight(req.Text, "\n"))
		fmt.Fprintf(c.out, "%s [y]es / [n]o [feedback]: ", req.Title)
	default:
		fmt.Fprint(c.out, req.Title)
		if req.Text != "" {
			fmt.Fprintf(c.out, " (%s)", req.Text)
		}
		if req.DefaultHint != "" {
			fmt.Fprintf(c.out, " [y/n, last: %s]: ", req.DefaultHint)
		} else {
			fmt.Fprint(c.out, " [y/n]: ")
		}
	}
}

// ParseReply interprets line as an answer to req. ok is false when the line
// is not a valid answer and the request should be shown again. A blank line
// is never an answer, even when the request carries a default hint.
func (c *Console) ParseReply(ctx context.Context, req interaction.Request, line string) (reply interaction.Reply, ok bool) {
	answer, rest := splitAnswer(line)

	switch answer {
	case "y", "yes":
		return interaction.Reply{Approved: true}, true
	case "n", "no":
		if req.Kind == interaction.KindPlanApproval {
			return interaction.Reply{Approved: false, Text: rest}, true
		}
		return interaction.Reply{Approved: false}, true
	case "e", "edit":
		if req.Kind != interaction.KindDiffReview {
			return interaction.Reply{}, false
		}
		return c.edit(ctx, req)
	default:
		return interaction.Reply{}, false
	}
}

func (c *Console) edit(ctx context.Context, req interaction.Request) (interaction.Reply, bool) {
	if c.editor == nil {
		c.Printf("Editing is not available.")
		return interaction.Reply{}, false
	}
	edited, err := c.editor.Edit(ctx, req.Text)
	if err != nil {
		c.logger.Warn("Editor failed: %v", err)
		c.Printf("❌ Editor failed: %v", err)
		return interaction.Reply{}, false
	}
	if strings.TrimSpace(edited) == "" {
		c.Printf("Edited diff is empty; choose again.")
		return interaction.Reply{}, false
	}
	return interaction.Reply{Approved: true, Edited: true, Text: edited}, true
}

// splitAnswer returns the lower-cased first word and the trimmed remainder.
func splitAnswer(line string) (string, string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return "", ""
	}
	word, rest, _ := strings.Cut(line, " ")
	return strings.ToLower(word), strings.TrimSpace(rest)
}
