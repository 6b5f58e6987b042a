package strategy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"futures-core/internal/position"
	"futures-core/internal/risk"
	"futures-core/pkg/db"
)

// Snapshot is the crash-recovery state written periodically and on shutdown,
// read once at startup.
type Snapshot struct {
	Risk           risk.State     `json:"risk"`
	Position       position.State `json:"position"`
	PendingReverse string         `json:"pending_reverse,omitempty"`
	LastResetDate  string         `json:"last_reset_date"`
}

func snapshotKey(symbol string) string {
	return "strategy:" + symbol
}

// SaveSnapshot persists the snapshot for one symbol.
func SaveSnapshot(ctx context.Context, store *db.Database, symbol string, s Snapshot) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	return store.SaveState(ctx, snapshotKey(symbol), string(data))
}

// LoadSnapshot reads the snapshot for one symbol. Returns (nil, nil) when no
// usable snapshot exists; snapshots older than maxAge are ignored so a
// long-dead process does not resume stale positions.
func LoadSnapshot(ctx context.Context, store *db.Database, symbol string, maxAge time.Duration) (*Snapshot, error) {
	data, err := store.LoadState(ctx, snapshotKey(symbol), maxAge)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	var s Snapshot
	if err := json.Unmarshal([]byte(data), &s); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return &s, nil
}
