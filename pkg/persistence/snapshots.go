package persistence

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrSnapshotNotFound is returned when no snapshot is available.
var ErrSnapshotNotFound = errors.New("session snapshot not found")

// Snapshot is the restorable state of a session, written at every turn end.
type Snapshot struct {
	SessionID   string
	TurnState   string
	WorkingSet  []string
	HistoryJSON []byte
	LastDiff    string
	UpdatedAt   time.Time
}

// SaveSnapshot inserts or replaces the snapshot for its session.
func SaveSnapshot(db *sql.DB, snap *Snapshot) error {
	if snap.SessionID == "" {
		return fmt.Errorf("snapshot has no session id")
	}
	workingSet := snap.WorkingSet
	if workingSet == nil {
		workingSet = []string{}
	}
	wsJSON, err := json.Marshal(workingSet)
	if err != nil {
		return fmt.Errorf("failed to marshal working set: %w", err)
	}
	history := snap.HistoryJSON
	if len(history) == 0 {
		history = []byte("[]")
	}
	updatedAt := snap.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}

	_, err = db.Exec(`
		INSERT INTO session_snapshots (session_id, turn_state, working_set_json, history_json, last_diff, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			turn_state = excluded.turn_state,
			working_set_json = excluded.working_set_json,
			history_json = excluded.history_json,
			last_diff = excluded.last_diff,
			updated_at = excluded.updated_at
	`, snap.SessionID, snap.TurnState, string(wsJSON), string(history), snap.LastDiff, updatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

// LatestSnapshot returns the most recently written snapshot of any session
// other than excludeSessionID.
func LatestSnapshot(db *sql.DB, excludeSessionID string) (*Snapshot, error) {
	var snap Snapshot
	var wsJSON, historyJSON string
	var updatedAt int64
	err := db.QueryRow(`
		SELECT session_id, turn_state, working_set_json, history_json, last_diff, updated_at
		FROM session_snapshots
		WHERE session_id != ?
		ORDER BY updated_at DESC
		LIMIT 1
	`, excludeSessionID).Scan(&snap.SessionID, &snap.TurnState, &wsJSON, &historyJSON, &snap.LastDiff, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}

	if err := json.Unmarshal([]byte(wsJSON), &snap.WorkingSet); err != nil {
		return nil, fmt.Errorf("failed to parse working set of %s: %w", snap.SessionID, err)
	}
	snap.HistoryJSON = []byte(historyJSON)
	snap.UpdatedAt = time.UnixMilli(updatedAt)
	return &snap, nil
}

// CleanupOldSnapshots removes snapshots of sessions other than the specified
// one. Only the most recent session is ever offered for restore.
func CleanupOldSnapshots(db *sql.DB, keepSessionID string) (int64, error) {
	result, err := db.Exec(`DELETE FROM session_snapshots WHERE session_id != ?`, keepSessionID)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup snapshots: %w", err)
	}
	affected, _ := result.RowsAffected()
	return affected, nil
}
