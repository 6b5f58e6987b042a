package execution

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"golang.org/x/time/rate"

	"futures-core/internal/monitor"
	"futures-core/internal/position"
)

// opHealthCheck is an internal request the worker enqueues for itself so the
// periodic session check runs on the same single consumer as everything else.
const opHealthCheck Operation = "_health_check"

// Options tune the worker's retry and session maintenance behavior.
type Options struct {
	MaxRetries          int           // transparent retries on transient errors
	RetryDelay          time.Duration // backoff base between retries
	HealthCheckInterval time.Duration
	SessionStaleAfter   time.Duration // idle sessions older than this are re-dialed
	RatePerSecond       float64       // broker call pacing
}

func (o *Options) fill() {
	if o.MaxRetries <= 0 {
		o.MaxRetries = 3
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = time.Second
	}
	if o.HealthCheckInterval <= 0 {
		o.HealthCheckInterval = 5 * time.Minute
	}
	if o.SessionStaleAfter <= 0 {
		o.SessionStaleAfter = 10 * time.Minute
	}
	if o.RatePerSecond <= 0 {
		o.RatePerSecond = 5
	}
}

type sessionSlot struct {
	session  Session
	lastUsed time.Time
}

// Worker is the single consumer of the request queue and the single owner of
// the broker session(s). Request handling is strictly sequential; the one
// session per target is never touched by any other goroutine.
type Worker struct {
	pq      *PersistentQueue
	router  *router
	dialer  Dialer
	opts    Options
	limiter *rate.Limiter

	// Keyed by the simulation flag. Owned by the worker goroutine only.
	sessions map[bool]*sessionSlot
}

// NewWorker creates a worker over the durable queue.
func NewWorker(pq *PersistentQueue, dialer Dialer, opts Options) *Worker {
	opts.fill()
	return &Worker{
		pq:       pq,
		router:   newRouter(),
		dialer:   dialer,
		opts:     opts,
		limiter:  rate.NewLimiter(rate.Limit(opts.RatePerSecond), 1),
		sessions: make(map[bool]*sessionSlot),
	}
}

// Client returns a submit handle targeting the simulation or live session.
func (w *Worker) Client(simulation bool) *Client {
	return &Client{
		pq:             w.pq,
		router:         w.router,
		simulation:     simulation,
		enqueueRetries: 3,
		enqueueBackoff: 200 * time.Millisecond,
	}
}

// QueueDepth reports current queue length.
func (w *Worker) QueueDepth() int {
	return w.pq.Len()
}

// Run recovers the WAL and drains the queue until ctx is cancelled. Blocks;
// run in its own goroutine.
func (w *Worker) Run(ctx context.Context) error {
	if err := w.pq.Recover(); err != nil {
		return fmt.Errorf("queue recovery: %w", err)
	}

	// Health checks ride the queue so they serialize with real requests.
	go func() {
		ticker := time.NewTicker(w.opts.HealthCheckInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				w.pq.Enqueue(Request{
					ID:        "health-" + time.Now().Format("150405.000"),
					Operation: opHealthCheck,
					CreatedAt: time.Now(),
				})
			}
		}
	}()

	log.Printf("✓ Execution worker started (retries=%d, health every %v)",
		w.opts.MaxRetries, w.opts.HealthCheckInterval)

	w.pq.Drain(ctx, func(r Request) {
		w.handle(ctx, r)
		monitor.QueueDepth.Set(float64(w.pq.Len()))
	})

	for target, slot := range w.sessions {
		if err := slot.session.Close(); err != nil {
			log.Printf("⚠️ session close (simulation=%v): %v", target, err)
		}
	}
	log.Printf("✓ Execution worker stopped")
	return nil
}

func (w *Worker) handle(ctx context.Context, req Request) {
	if req.Operation == opHealthCheck {
		w.healthCheck(ctx)
		return
	}

	resp := w.process(ctx, req)

	outcome := "ok"
	if !resp.Success {
		outcome = "error"
	}
	monitor.RequestsProcessed.WithLabelValues(string(req.Operation), outcome).Inc()

	w.router.deliver(resp)
}

// process runs one request with the transparent transient-error retry loop.
// Application errors and unclassified failures return to the caller
// unchanged; transient failures invalidate the cached session and retry
// against a fresh one.
func (w *Worker) process(ctx context.Context, req Request) Response {
	var lastErr error

	for attempt := 0; attempt <= w.opts.MaxRetries; attempt++ {
		if attempt > 0 {
			monitor.WorkerRetries.Inc()
			select {
			case <-ctx.Done():
				return Response{ID: req.ID, Error: ctx.Err().Error()}
			case <-time.After(w.opts.RetryDelay * time.Duration(attempt)):
			}
		}

		sess, err := w.session(ctx, req.Simulation)
		if err != nil {
			lastErr = err
			if isTransient(err) {
				continue
			}
			return Response{ID: req.ID, Error: err.Error()}
		}

		if err := w.limiter.Wait(ctx); err != nil {
			return Response{ID: req.ID, Error: err.Error()}
		}

		data, err := w.dispatch(ctx, sess, req)
		if err == nil {
			return Response{ID: req.ID, Success: true, Data: data}
		}
		lastErr = err

		var appErr *ApplicationError
		if errors.As(err, &appErr) {
			return Response{ID: req.ID, Error: appErr.Message}
		}
		if !isTransient(err) {
			return Response{ID: req.ID, Error: err.Error()}
		}

		log.Printf("⚠️ transient broker error on %s (attempt %d/%d): %v",
			req.Operation, attempt+1, w.opts.MaxRetries+1, err)
		w.invalidate(req.Simulation)
	}

	return Response{ID: req.ID, Error: fmt.Sprintf("retries exhausted: %v", lastErr)}
}

// session returns the cached session for the target, dialing lazily.
func (w *Worker) session(ctx context.Context, simulation bool) (Session, error) {
	if slot, ok := w.sessions[simulation]; ok {
		slot.lastUsed = time.Now()
		return slot.session, nil
	}

	sess, err := w.dialer.Dial(ctx, simulation)
	if err != nil {
		return nil, fmt.Errorf("dial broker (simulation=%v): %w", simulation, err)
	}
	w.sessions[simulation] = &sessionSlot{session: sess, lastUsed: time.Now()}
	log.Printf("✓ Broker session established (simulation=%v)", simulation)
	return sess, nil
}

func (w *Worker) invalidate(simulation bool) {
	if slot, ok := w.sessions[simulation]; ok {
		slot.session.Close()
		delete(w.sessions, simulation)
		monitor.SessionReconnects.Inc()
	}
}

// healthCheck pings each cached session and re-dials ones that fail or have
// idled past the staleness window, so the next real request does not pay the
// reconnect cost out of its own timeout budget.
func (w *Worker) healthCheck(ctx context.Context) {
	for target, slot := range w.sessions {
		stale := time.Since(slot.lastUsed) > w.opts.SessionStaleAfter
		var pingErr error
		if !stale {
			pingErr = slot.session.Ping(ctx)
		}
		if !stale && pingErr == nil {
			continue
		}

		if stale {
			log.Printf("Session idle past %v (simulation=%v), re-dialing", w.opts.SessionStaleAfter, target)
		} else {
			log.Printf("⚠️ Session health check failed (simulation=%v): %v", target, pingErr)
		}
		w.invalidate(target)
		if _, err := w.session(ctx, target); err != nil {
			log.Printf("⚠️ Session re-dial failed (simulation=%v): %v", target, err)
		}
	}
}

// dispatch maps one operation to its broker call and builds the typed result
// at this boundary.
func (w *Worker) dispatch(ctx context.Context, sess Session, req Request) (any, error) {
	switch req.Operation {
	case OpPing:
		return "pong", sess.Ping(ctx)

	case OpGetSymbols:
		return sess.Symbols(ctx)

	case OpGetSymbolInfo:
		var p SymbolParams
		if err := unmarshalParams(req.Params, &p); err != nil {
			return nil, err
		}
		return sess.SymbolInfo(ctx, p.Symbol)

	case OpGetSnapshot:
		var p SymbolParams
		if err := unmarshalParams(req.Params, &p); err != nil {
			return nil, err
		}
		return sess.Snapshot(ctx, p.Symbol)

	case OpGetPositions:
		return sess.Positions(ctx)

	case OpGetMargin:
		return sess.Margin(ctx)

	case OpListTrades:
		return sess.ListTrades(ctx)

	case OpPlaceEntryOrder:
		var p EntryOrderParams
		if err := unmarshalParams(req.Params, &p); err != nil {
			return nil, err
		}
		return w.placeEntry(ctx, sess, p)

	case OpPlaceExitOrder:
		var p ExitOrderParams
		if err := unmarshalParams(req.Params, &p); err != nil {
			return nil, err
		}
		return w.placeExit(ctx, sess, p)

	case OpOrderStatus:
		var p OrderStatusParams
		if err := unmarshalParams(req.Params, &p); err != nil {
			return nil, err
		}
		return sess.RefreshStatus(ctx, p.OrderID, p.Seqno)

	default:
		return nil, &ApplicationError{Message: fmt.Sprintf("unknown operation: %s", req.Operation)}
	}
}

// placeEntry submits an entry order. When the broker reports an opposite
// position for the symbol, the quantity is widened so the single order both
// flattens and reverses.
func (w *Worker) placeEntry(ctx context.Context, sess Session, p EntryOrderParams) (*OrderResult, error) {
	if p.Quantity <= 0 {
		return nil, &ApplicationError{Message: "quantity must be positive"}
	}
	if p.Action != "buy" && p.Action != "sell" {
		return nil, &ApplicationError{Message: fmt.Sprintf("invalid action: %s", p.Action)}
	}

	positions, err := sess.Positions(ctx)
	if err != nil {
		return nil, fmt.Errorf("check positions before entry: %w", err)
	}

	quantity := p.Quantity
	opposite := oppositeDirection(p.Action)
	for _, bp := range positions {
		if position.ContinuousContractMatcher(p.Symbol, bp.Code) && bp.Direction == opposite {
			quantity += bp.Quantity
			log.Printf("Entry widened to %d to flatten opposite %s x%d", quantity, bp.Direction, bp.Quantity)
			break
		}
	}

	return sess.PlaceOrder(ctx, OrderIntent{
		Symbol:    p.Symbol,
		Action:    p.Action,
		Quantity:  quantity,
		PriceType: p.PriceType,
		Price:     p.Price,
	})
}

// placeExit submits the flattening order for the held direction. Exiting a
// flat book is a broker rejection, not a silent success.
func (w *Worker) placeExit(ctx context.Context, sess Session, p ExitOrderParams) (*OrderResult, error) {
	positions, err := sess.Positions(ctx)
	if err != nil {
		return nil, fmt.Errorf("check positions before exit: %w", err)
	}

	var held *position.BrokerPosition
	for i := range positions {
		if position.ContinuousContractMatcher(p.Symbol, positions[i].Code) &&
			positions[i].Direction == p.PositionDirection {
			held = &positions[i]
			break
		}
	}
	if held == nil {
		return nil, &ApplicationError{Message: "no position to exit"}
	}

	action := "sell"
	if p.PositionDirection == "short" {
		action = "buy"
	}

	return sess.PlaceOrder(ctx, OrderIntent{
		Symbol:    p.Symbol,
		Action:    action,
		Quantity:  held.Quantity,
		PriceType: p.PriceType,
		Price:     p.Price,
	})
}

func oppositeDirection(action string) string {
	if action == "buy" {
		return "short"
	}
	return "long"
}

func unmarshalParams(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return &ApplicationError{Message: "missing params"}
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return &ApplicationError{Message: fmt.Sprintf("bad params: %v", err)}
	}
	return nil
}
