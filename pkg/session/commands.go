package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"pilot/pkg/agent"
	"pilot/pkg/console"
	"pilot/pkg/diff"
	"pilot/pkg/metrics"
)

func (c *Coordinator) runCommand(ctx context.Context, cmd console.Command) {
	switch cmd.Name {
	case console.CmdAdd:
		if cmd.Arg == "" {
			c.console.Printf("Usage: /add <path>")
			return
		}
		rel, err := c.ws.Add(cmd.Arg)
		if err != nil {
			c.console.Printf("❌ %v", err)
			return
		}
		c.console.Printf("➕ Added %s", rel)

	case console.CmdDrop:
		if c.ws.Remove(cmd.Arg) {
			c.console.Printf("➖ Dropped %s", cmd.Arg)
		} else {
			c.console.Printf("%s is not in the working set", cmd.Arg)
		}

	case console.CmdFiles:
		files := c.ws.List()
		if len(files) == 0 {
			c.console.Printf("The working set is empty.")
			return
		}
		c.console.Printf("Working set:\n  %s", strings.Join(files, "\n  "))

	case console.CmdUndo:
		c.undo(ctx)

	case console.CmdPlan:
		if cmd.Arg == "" {
			c.console.Printf("Usage: /plan <request>")
			return
		}
		c.submit(ctx, cmd.Arg, true)

	case console.CmdMetrics:
		if c.gatherer == nil {
			c.console.Printf("Metrics are not enabled.")
			return
		}
		var buf bytes.Buffer
		if err := metrics.WriteText(&buf, c.gatherer); err != nil {
			c.console.Printf("❌ %v", err)
			return
		}
		c.console.Printf("%s", strings.TrimRight(buf.String(), "\n"))

	case console.CmdHelp:
		c.console.Printf("%s", console.Help)

	default:
		c.console.Printf("Unknown command /%s. Type /help for commands.", cmd.Name)
	}
}

func (c *Coordinator) undo(ctx context.Context) {
	if !c.turn.AcceptsInput() {
		c.console.Printf("⏳ Wait for the current turn to finish before undoing.")
		return
	}
	files, err := c.engine.Undo(ctx)
	if errors.Is(err, diff.ErrNoLastDiff) {
		c.console.Printf("Nothing to undo.")
		return
	}
	if err != nil {
		c.console.Printf("⚠️  Undo finished with errors: %v", err)
	}
	if len(files) > 0 {
		c.console.Printf("↩️  Reverted %s", strings.Join(files, ", "))
		c.history.Append(agent.Message{
			Role:    agent.RoleNote,
			Content: fmt.Sprintf("The user undid the last applied diff (%s).", strings.Join(files, ", ")),
		})
	}
	c.saveSnapshot()
}

func normalizeAnswer(line string) string {
	return strings.ToLower(strings.TrimSpace(line))
}
