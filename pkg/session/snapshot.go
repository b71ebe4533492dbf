package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pilot/pkg/persistence"
	"pilot/pkg/turn"
)

// saveSnapshot writes the session state. Failures are logged, never fatal.
func (c *Coordinator) saveSnapshot() {
	if c.db == nil {
		return
	}
	history, err := c.history.Marshal()
	if err != nil {
		c.logger.Error("Failed to serialize history: %v", err)
		return
	}
	snap := &persistence.Snapshot{
		SessionID:   c.sessionID,
		TurnState:   c.turn.Current().String(),
		WorkingSet:  c.ws.List(),
		HistoryJSON: history,
		LastDiff:    c.engine.LastApplied(),
		UpdatedAt:   time.Now(),
	}
	if err := persistence.SaveSnapshot(c.db, snap); err != nil {
		c.logger.Error("Failed to save session snapshot: %v", err)
		return
	}
	c.logger.Debug("💾 Snapshot saved (%d messages, %d files)", c.history.Len(), len(snap.WorkingSet))
}

func (c *Coordinator) markSession(status string) {
	if c.db == nil {
		return
	}
	if err := persistence.UpdateSessionStatus(c.db, c.sessionID, status); err != nil {
		c.logger.Warn("Failed to mark session %s: %v", status, err)
	}
}

// Restore offers the most recent snapshot of an earlier session. With
// prompt set the human is asked first. It returns whether state was
// restored. Restored sessions always resume in IDLE.
func (c *Coordinator) Restore(ctx context.Context, prompt bool) (bool, error) {
	if c.db == nil {
		return false, nil
	}
	snap, err := persistence.LatestSnapshot(c.db, c.sessionID)
	if errors.Is(err, persistence.ErrSnapshotNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to load snapshot: %w", err)
	}

	if prompt && !c.confirmRestore(ctx, snap) {
		c.logger.Info("User declined restoring session %s", snap.SessionID)
		if ctx.Err() == nil {
			c.pruneSnapshots()
		}
		return false, nil
	}

	if err := c.history.Restore(snap.HistoryJSON); err != nil {
		return false, fmt.Errorf("failed to restore history of %s: %w", snap.SessionID, err)
	}
	if dropped := c.ws.Replace(snap.WorkingSet); len(dropped) > 0 {
		c.console.Printf("⚠️  Dropped missing files from the working set: %v", dropped)
	}
	c.engine.SetLastApplied(snap.LastDiff)
	c.turn.Restore(turn.ParseState(snap.TurnState))

	c.console.Printf("♻️  Restored session %s: %d messages, %d files in the working set.",
		snap.SessionID, c.history.Len(), len(c.ws.List()))
	c.saveSnapshot()
	c.pruneSnapshots()
	return true, nil
}

// pruneSnapshots drops snapshots of earlier sessions once the restore
// decision is made.
func (c *Coordinator) pruneSnapshots() {
	n, err := persistence.CleanupOldSnapshots(c.db, c.sessionID)
	if err != nil {
		c.logger.Warn("Failed to prune old snapshots: %v", err)
		return
	}
	if n > 0 {
		c.logger.Debug("🧹 Pruned %d old snapshot(s)", n)
	}
}

func (c *Coordinator) confirmRestore(ctx context.Context, snap *persistence.Snapshot) bool {
	for {
		c.console.Printf("Restore the previous session from %s (%d files)? [y/n]: ",
			snap.UpdatedAt.Format(time.DateTime), len(snap.WorkingSet))
		c.input.Next()
		select {
		case <-ctx.Done():
			return false
		case line, ok := <-c.input.Lines():
			if !ok {
				return false
			}
			switch normalizeAnswer(line) {
			case "y", "yes":
				return true
			case "n", "no":
				return false
			}
		}
	}
}
