package strategy

import (
	"context"
	"testing"
	"time"

	"futures-core/internal/position"
	"futures-core/internal/risk"
	"futures-core/pkg/db"
)

func TestSnapshotRoundTrip(t *testing.T) {
	store, err := db.NewInMemory()
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer store.Close()
	if err := db.ApplyMigrations(store); err != nil {
		t.Fatalf("migrations: %v", err)
	}

	ctx := context.Background()
	in := Snapshot{
		Risk: risk.State{
			EntryPrice:        21000,
			PositionDirection: "long",
			StopLossPrice:     20950,
			DailyPnL:          -80,
			DailyTradeCount:   3,
		},
		Position: position.State{
			Direction:  "long",
			EntryPrice: 21000,
			Quantity:   2,
		},
		PendingReverse: "short",
		LastResetDate:  "2026-03-02",
	}

	if err := SaveSnapshot(ctx, store, "MXFR1", in); err != nil {
		t.Fatalf("save: %v", err)
	}

	out, err := LoadSnapshot(ctx, store, "MXFR1", time.Hour)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if out == nil {
		t.Fatalf("expected a snapshot")
	}
	if out.Risk != in.Risk || out.Position != in.Position ||
		out.PendingReverse != in.PendingReverse || out.LastResetDate != in.LastResetDate {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", out, in)
	}
}

func TestLoadSnapshotMissing(t *testing.T) {
	store, err := db.NewInMemory()
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer store.Close()
	if err := db.ApplyMigrations(store); err != nil {
		t.Fatalf("migrations: %v", err)
	}

	out, err := LoadSnapshot(context.Background(), store, "TXFR1", time.Hour)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if out != nil {
		t.Fatalf("expected nil snapshot, got %+v", out)
	}
}
