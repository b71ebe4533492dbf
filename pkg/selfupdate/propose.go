package selfupdate

import (
	"context"
	"fmt"
	"time"

	"pilot/pkg/logx"
)

// Committer records a single file in a new commit.
type Committer interface {
	Commit(ctx context.Context, path, message string) error
}

// Proposer commits a change to the program's own source and arms the
// startup check for it.
type Proposer struct {
	committer Committer
	store     *Store
	now       func() time.Time
	logger    *logx.Logger
}

// NewProposer creates a Proposer.
func NewProposer(committer Committer, store *Store) *Proposer {
	return &Proposer{
		committer: committer,
		store:     store,
		now:       time.Now,
		logger:    logx.NewLogger("selfupdate"),
	}
}

// Propose commits filePath and writes a first-attempt sentinel.
func (p *Proposer) Propose(ctx context.Context, filePath, commitMessage string) error {
	if err := p.committer.Commit(ctx, filePath, commitMessage); err != nil {
		return fmt.Errorf("failed to commit self-update: %w", err)
	}
	sentinel := &Sentinel{
		FilePath:        filePath,
		CommitMessage:   commitMessage,
		TimestampMillis: p.now().UnixMilli(),
		Attempt:         1,
	}
	if err := p.store.Save(sentinel); err != nil {
		return fmt.Errorf("committed %s but failed to record sentinel: %w", filePath, err)
	}
	p.logger.Info("🧬 Self-update to %s committed; it will be validated on restart", filePath)
	return nil
}

// Pending reports whether a proposed update awaits a restart.
func (p *Proposer) Pending() bool {
	return p.store.Exists()
}
