package db

import (
	"context"
	"errors"
	"testing"
	"time"
)

func testDB(t *testing.T) *Database {
	t.Helper()
	d, err := NewInMemory()
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := ApplyMigrations(d); err != nil {
		t.Fatalf("migrations: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}

func TestOrderRecordLifecycle(t *testing.T) {
	d := testDB(t)
	ctx := context.Background()

	rec := &OrderRecord{
		ID:         "01ARZ3NDEKTSV4RRFFQ69G5FAV",
		Symbol:     "MXFR1",
		Code:       "MXF",
		Action:     "buy",
		Quantity:   2,
		PriceType:  "market",
		Status:     "submitted",
		OrderID:    "ord-1",
		Seqno:      "000001",
		Simulation: true,
	}
	if err := d.InsertOrderRecord(ctx, rec); err != nil {
		t.Fatalf("insert: %v", err)
	}

	if err := d.UpdateOrderFill(ctx, rec.ID, "filled", "Filled", 2, 21000, 0); err != nil {
		t.Fatalf("update fill: %v", err)
	}

	got, err := d.GetOrderRecord(ctx, rec.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != "filled" || got.FillQuantity != 2 || got.FillPrice != 21000 {
		t.Fatalf("after fill update: %+v", got)
	}
	if !got.Simulation {
		t.Fatalf("simulation flag lost")
	}

	if err := d.MarkOrderFailed(ctx, rec.ID, "boom"); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	got, _ = d.GetOrderRecord(ctx, rec.ID)
	if got.Status != "failed" || got.ErrorMessage != "boom" {
		t.Fatalf("after failure: %+v", got)
	}

	if _, err := d.GetOrderRecord(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRecentOrdersOrdering(t *testing.T) {
	d := testDB(t)
	ctx := context.Background()

	for i, id := range []string{"a", "b", "c"} {
		rec := &OrderRecord{ID: id, Symbol: "MXFR1", Action: "buy", Quantity: 1 + i, Status: "submitted"}
		if err := d.InsertOrderRecord(ctx, rec); err != nil {
			t.Fatalf("insert %s: %v", id, err)
		}
	}

	orders, err := d.RecentOrders(ctx, 2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(orders) != 2 {
		t.Fatalf("got %d orders, expected 2", len(orders))
	}
}

func TestQuoteBatchInsert(t *testing.T) {
	d := testDB(t)
	ctx := context.Background()

	rows := []QuoteRow{
		{Symbol: "MXFR1", Close: 21000, Volume: 3, TickTime: time.Now()},
		{Symbol: "MXFR1", Close: 21001, Volume: 1, TickTime: time.Now()},
	}
	if err := d.InsertQuotes(ctx, rows); err != nil {
		t.Fatalf("insert quotes: %v", err)
	}

	var count int
	if err := d.DB.QueryRow("SELECT COUNT(*) FROM quote_history").Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 2 {
		t.Fatalf("count=%d, expected 2", count)
	}
}

func TestStateSnapshotExpiry(t *testing.T) {
	d := testDB(t)
	ctx := context.Background()

	if err := d.SaveState(ctx, "strategy:MXFR1", `{"x":1}`); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := d.LoadState(ctx, "strategy:MXFR1", time.Hour)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got != `{"x":1}` {
		t.Fatalf("got %q", got)
	}

	// A fresh row read with a zero-width window is stale by definition.
	if _, err := d.LoadState(ctx, "strategy:MXFR1", time.Nanosecond); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected stale snapshot to be absent, got %v", err)
	}

	if _, err := d.LoadState(ctx, "nope", time.Hour); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing state, got %v", err)
	}
}
