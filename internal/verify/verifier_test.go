package verify

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"futures-core/internal/events"
	"futures-core/internal/execution"
	"futures-core/pkg/db"
)

func testStack(t *testing.T) (*execution.Client, *db.Database, *events.Bus) {
	t.Helper()

	store, err := db.NewInMemory()
	require.NoError(t, err)
	require.NoError(t, db.ApplyMigrations(store))
	t.Cleanup(func() { store.Close() })

	pq, err := execution.NewPersistentQueue(t.TempDir(), 64)
	require.NoError(t, err)

	w := execution.NewWorker(pq, execution.NewSimBroker(map[string]float64{"MXFR1": 21000}), execution.Options{
		RetryDelay:          10 * time.Millisecond,
		HealthCheckInterval: time.Hour,
		RatePerSecond:       1000,
	})
	ctx, cancel := context.WithCancel(context.Background())
	go w.Run(ctx)
	t.Cleanup(func() {
		cancel()
		pq.Close()
	})

	return w.Client(true), store, events.NewBus()
}

func TestVerifyReachesTerminalAndUpdatesRecord(t *testing.T) {
	client, store, bus := testStack(t)
	ctx := context.Background()

	res, err := client.PlaceEntryOrder(ctx, execution.EntryOrderParams{
		Symbol: "MXFR1", Quantity: 2, Action: "buy", PriceType: "market",
	})
	require.NoError(t, err)

	record := &db.OrderRecord{
		ID: "rec-1", Symbol: "MXFR1", Action: "buy", Quantity: 2,
		PriceType: "market", Status: "submitted",
		OrderID: res.OrderID, Seqno: res.Seqno, Simulation: true,
	}
	require.NoError(t, store.InsertOrderRecord(ctx, record))

	done, unsub := bus.Subscribe(events.OrderVerified, 1)
	defer unsub()

	v := NewVerifier(client, store, bus, 10*time.Millisecond, 10*time.Millisecond, 5)
	go v.Verify(ctx, record.ID, res.OrderID, res.Seqno)

	select {
	case payload := <-done:
		result := payload.(Result)
		require.Equal(t, StatusFilled, result.Status)
		require.Equal(t, 2, result.FillQuantity)
	case <-time.After(2 * time.Second):
		t.Fatalf("verification never reached a terminal status")
	}

	stored, err := store.GetOrderRecord(ctx, record.ID)
	require.NoError(t, err)
	require.Equal(t, string(StatusFilled), stored.Status)
	require.Equal(t, 2, stored.FillQuantity)
	require.Equal(t, 21000.0, stored.FillPrice)
	require.Equal(t, "Filled", stored.FillStatus)
}

func TestVerifyStopsAfterMaxAttempts(t *testing.T) {
	client, store, bus := testStack(t)
	ctx := context.Background()

	record := &db.OrderRecord{
		ID: "rec-missing", Symbol: "MXFR1", Action: "buy", Quantity: 1,
		PriceType: "market", Status: "submitted",
		OrderID: "no-such-order", Seqno: "000000", Simulation: true,
	}
	require.NoError(t, store.InsertOrderRecord(ctx, record))

	published, unsub := bus.Subscribe(events.OrderVerified, 1)
	defer unsub()

	v := NewVerifier(client, store, bus, time.Millisecond, time.Millisecond, 3)

	doneCh := make(chan struct{})
	go func() {
		v.Verify(ctx, record.ID, "no-such-order", "000000")
		close(doneCh)
	}()

	select {
	case <-doneCh:
	case <-time.After(2 * time.Second):
		t.Fatalf("verifier did not stop after attempt exhaustion")
	}

	// Giving up still publishes, carrying the last non-terminal status, so
	// listeners can release guards and reconcile.
	select {
	case payload := <-published:
		result := payload.(Result)
		require.Equal(t, record.ID, result.RecordID)
		require.Equal(t, StatusSubmitted, result.Status)
		require.False(t, result.Status.IsTerminal())
	case <-time.After(time.Second):
		t.Fatalf("no result published after attempt exhaustion")
	}

	// Record keeps its last non-terminal state.
	stored, err := store.GetOrderRecord(ctx, record.ID)
	require.NoError(t, err)
	require.Equal(t, "submitted", stored.Status)
}
