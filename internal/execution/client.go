package execution

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"futures-core/internal/position"
)

// router delivers each response to exactly the one waiter with the matching
// correlation id.
type router struct {
	mu      sync.Mutex
	waiters map[string]chan Response
}

func newRouter() *router {
	return &router{waiters: make(map[string]chan Response)}
}

// register creates the response channel for a correlation id.
func (r *router) register(id string) chan Response {
	ch := make(chan Response, 1)
	r.mu.Lock()
	r.waiters[id] = ch
	r.mu.Unlock()
	return ch
}

// unregister drops the waiter, e.g. after a client-side timeout.
func (r *router) unregister(id string) {
	r.mu.Lock()
	delete(r.waiters, id)
	r.mu.Unlock()
}

// deliver hands the response to its waiter. A response whose waiter already
// timed out is dropped; the channel buffer of 1 means delivery never blocks
// the worker.
func (r *router) deliver(resp Response) {
	r.mu.Lock()
	ch, ok := r.waiters[resp.ID]
	if ok {
		delete(r.waiters, resp.ID)
	}
	r.mu.Unlock()
	if ok {
		ch <- resp
	}
}

// Client submits requests to the shared broker session through the durable
// queue. Safe for concurrent use by many goroutines.
type Client struct {
	pq         *PersistentQueue
	router     *router
	simulation bool

	enqueueRetries int
	enqueueBackoff time.Duration
}

// Submit sends one operation and blocks until its response arrives or the
// operation's timeout elapses. On ErrTimeout the underlying broker call may
// still have happened.
func (c *Client) Submit(ctx context.Context, op Operation, params any) (Response, error) {
	req := Request{
		ID:         uuid.New().String(),
		Operation:  op,
		Simulation: c.simulation,
		CreatedAt:  time.Now(),
	}
	if params != nil {
		req.Params = mustMarshal(params)
	}

	ch := c.router.register(req.ID)

	// The queue may be momentarily full; retry with backoff before giving up.
	// A closed queue never recovers, so that rejection is immediate.
	enqueued := false
	for attempt := 0; attempt <= c.enqueueRetries; attempt++ {
		if c.pq.Enqueue(req) {
			enqueued = true
			break
		}
		if c.pq.Closed() {
			c.router.unregister(req.ID)
			return Response{}, ErrQueueClosed
		}
		select {
		case <-ctx.Done():
			c.router.unregister(req.ID)
			return Response{}, ctx.Err()
		case <-time.After(c.enqueueBackoff):
		}
	}
	if !enqueued {
		c.router.unregister(req.ID)
		return Response{}, ErrConnection
	}

	timeout := TimeoutFor(op)
	select {
	case resp := <-ch:
		if !resp.Success {
			return resp, &ApplicationError{Message: resp.Error}
		}
		return resp, nil
	case <-time.After(timeout):
		c.router.unregister(req.ID)
		return Response{}, fmt.Errorf("%w: %s after %v", ErrTimeout, op, timeout)
	case <-ctx.Done():
		c.router.unregister(req.ID)
		return Response{}, ctx.Err()
	}
}

// Ping checks the target session through the queue.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.Submit(ctx, OpPing, nil)
	return err
}

// GetSymbols lists tradable contract symbols.
func (c *Client) GetSymbols(ctx context.Context) ([]string, error) {
	resp, err := c.Submit(ctx, OpGetSymbols, nil)
	if err != nil {
		return nil, err
	}
	return payloadAs[[]string](resp)
}

// GetSymbolInfo fetches contract details for one symbol.
func (c *Client) GetSymbolInfo(ctx context.Context, symbol string) (*SymbolInfo, error) {
	resp, err := c.Submit(ctx, OpGetSymbolInfo, SymbolParams{Symbol: symbol})
	if err != nil {
		return nil, err
	}
	return payloadAs[*SymbolInfo](resp)
}

// GetSnapshot fetches the current market snapshot for one symbol.
func (c *Client) GetSnapshot(ctx context.Context, symbol string) (*Snapshot, error) {
	resp, err := c.Submit(ctx, OpGetSnapshot, SymbolParams{Symbol: symbol})
	if err != nil {
		return nil, err
	}
	return payloadAs[*Snapshot](resp)
}

// GetPositions lists broker-reported open positions.
func (c *Client) GetPositions(ctx context.Context) ([]position.BrokerPosition, error) {
	resp, err := c.Submit(ctx, OpGetPositions, nil)
	if err != nil {
		return nil, err
	}
	return payloadAs[[]position.BrokerPosition](resp)
}

// GetMargin fetches account margin figures.
func (c *Client) GetMargin(ctx context.Context) (*Margin, error) {
	resp, err := c.Submit(ctx, OpGetMargin, nil)
	if err != nil {
		return nil, err
	}
	return payloadAs[*Margin](resp)
}

// ListTrades lists today's trades on the target session.
func (c *Client) ListTrades(ctx context.Context) ([]TradeInfo, error) {
	resp, err := c.Submit(ctx, OpListTrades, nil)
	if err != nil {
		return nil, err
	}
	return payloadAs[[]TradeInfo](resp)
}

// PlaceEntryOrder submits an entry. The worker widens the quantity when an
// opposite position exists so a single order flattens and reverses.
func (c *Client) PlaceEntryOrder(ctx context.Context, p EntryOrderParams) (*OrderResult, error) {
	resp, err := c.Submit(ctx, OpPlaceEntryOrder, p)
	if err != nil {
		return nil, err
	}
	return payloadAs[*OrderResult](resp)
}

// PlaceExitOrder submits an exit against the held direction.
func (c *Client) PlaceExitOrder(ctx context.Context, p ExitOrderParams) (*OrderResult, error) {
	resp, err := c.Submit(ctx, OpPlaceExitOrder, p)
	if err != nil {
		return nil, err
	}
	return payloadAs[*OrderResult](resp)
}

// CheckOrderStatus refreshes one order's state from the exchange.
func (c *Client) CheckOrderStatus(ctx context.Context, orderID, seqno string) (*OrderStatus, error) {
	resp, err := c.Submit(ctx, OpOrderStatus, OrderStatusParams{OrderID: orderID, Seqno: seqno})
	if err != nil {
		return nil, err
	}
	return payloadAs[*OrderStatus](resp)
}

func payloadAs[T any](resp Response) (T, error) {
	v, ok := resp.Data.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("execution: unexpected payload type %T", resp.Data)
	}
	return v, nil
}
