package execution

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testRequest(id string, op Operation) Request {
	return Request{ID: id, Operation: op, Simulation: true, CreatedAt: time.Now()}
}

func TestQueueFIFO(t *testing.T) {
	q := NewQueue(8)
	for _, id := range []string{"a", "b", "c"} {
		require.True(t, q.Enqueue(testRequest(id, OpPing)))
	}
	require.Equal(t, 3, q.Len())

	ctx, cancel := context.WithCancel(context.Background())
	var got []string
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()
	q.Drain(ctx, func(r Request) { got = append(got, r.ID) })
	require.Equal(t, []string{"a", "b", "c"}, got)
}

func TestQueueFullRejects(t *testing.T) {
	q := NewQueue(1)
	require.True(t, q.Enqueue(testRequest("a", OpPing)))
	require.False(t, q.Enqueue(testRequest("b", OpPing)))
}

func TestPersistentQueueRecovery(t *testing.T) {
	dir := t.TempDir()

	pq, err := NewPersistentQueue(dir, 16)
	require.NoError(t, err)
	require.True(t, pq.Enqueue(testRequest("pending-1", OpGetPositions)))
	require.True(t, pq.Enqueue(testRequest("done-1", OpPing)))
	require.True(t, pq.Enqueue(testRequest("pending-2", OpGetMargin)))
	pq.MarkComplete("done-1")
	pq.Close()

	// Restart: only requests without a COMPLETE entry come back.
	pq2, err := NewPersistentQueue(dir, 16)
	require.NoError(t, err)
	defer pq2.Close()
	require.NoError(t, pq2.Recover())

	require.Equal(t, uint64(2), pq2.GetMetrics().Recovered)

	recovered := map[string]bool{}
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	pq2.Drain(ctx, func(r Request) { recovered[r.ID] = true })

	require.True(t, recovered["pending-1"])
	require.True(t, recovered["pending-2"])
	require.False(t, recovered["done-1"])
}

// A closed queue is a distinct, immediate failure: Submit must not burn its
// enqueue retries and must surface ErrQueueClosed, not ErrConnection.
func TestSubmitAfterCloseReturnsQueueClosed(t *testing.T) {
	pq, err := NewPersistentQueue(t.TempDir(), 16)
	require.NoError(t, err)

	w := NewWorker(pq, NewSimBroker(map[string]float64{"MXFR1": 21000}), Options{})
	client := w.Client(true)

	pq.Close()

	_, err = client.Submit(context.Background(), OpPing, nil)
	require.ErrorIs(t, err, ErrQueueClosed)
}

// Each waiter receives exactly the response carrying its own correlation id.
func TestRouterExactlyOnceDelivery(t *testing.T) {
	r := newRouter()

	const n = 50
	chans := make(map[string]chan Response, n)
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("req-%03d", i)
		chans[id] = r.register(id)
	}

	for id := range chans {
		r.deliver(Response{ID: id, Success: true, Data: id})
	}

	for id, ch := range chans {
		select {
		case resp := <-ch:
			require.Equal(t, id, resp.ID)
			require.Equal(t, id, resp.Data)
		default:
			t.Fatalf("waiter %s received no response", id)
		}
	}
}

func TestRouterDropsUnknownResponse(t *testing.T) {
	r := newRouter()
	ch := r.register("known")
	r.unregister("known")

	// Must not panic or block.
	r.deliver(Response{ID: "known", Success: true})
	r.deliver(Response{ID: "never-registered", Success: true})

	select {
	case <-ch:
		t.Fatalf("unregistered waiter received a response")
	default:
	}
}
