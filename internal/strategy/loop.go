package strategy

import (
	"context"
	"log"
	"time"

	"github.com/oklog/ulid/v2"

	"futures-core/internal/events"
	"futures-core/internal/execution"
	"futures-core/internal/market"
	"futures-core/internal/monitor"
	"futures-core/internal/persistence"
	"futures-core/internal/position"
	"futures-core/internal/risk"
	"futures-core/internal/signal"
	"futures-core/internal/verify"
	"futures-core/pkg/db"
)

// Loop orchestrates the pipeline: ticks into bars, signals on bar
// completion, stop checks every tick, orders through the execution queue,
// and its own state persisted for crash recovery.
//
// All state mutation happens on the Run goroutine; bar completion callbacks
// fire synchronously inside OnTick.
type Loop struct {
	cfg     Config
	hours   TradingHours
	bars    *market.BarBuilder
	engine  *signal.Engine
	risk    *risk.Manager
	tracker *position.Tracker
	client  *execution.Client
	verify  *verify.Verifier
	store   *db.Database
	bus     *events.Bus
	quotes  *persistence.QuoteWriter // optional
	sim     bool

	// inFlightID is the record id of the most recent order whose terminal
	// status is unknown; no new order is placed while it is set.
	inFlightID string
	// kind of the in-flight order, "entry" or "exit"
	inFlightKind string
	// direction to re-enter after a signal-driven exit fills
	pendingReverse string
	lastResetDate  string
	lastPrice      float64
	barCtx         context.Context
}

// NewLoop wires the orchestrator. quotes may be nil.
func NewLoop(cfg Config, client *execution.Client, verifier *verify.Verifier,
	store *db.Database, bus *events.Bus, quotes *persistence.QuoteWriter, simulation bool) *Loop {

	l := &Loop{
		cfg:     cfg,
		hours:   TaifexHours(),
		engine:  signal.NewEngine(cfg.FastPeriod, cfg.SlowPeriod),
		risk:    risk.NewManager(cfg.Risk, store),
		tracker: position.NewTracker(cfg.Symbol, cfg.Quantity, cfg.SyncInterval, nil),
		client:  client,
		verify:  verifier,
		store:   store,
		bus:     bus,
		quotes:  quotes,
		sim:     simulation,
	}
	l.bars = market.NewBarBuilder(cfg.IntervalMinutes, cfg.MaxBarHistory, l.onBarComplete)
	return l
}

// Restore resumes from the persisted snapshot, if a fresh one exists.
func (l *Loop) Restore(ctx context.Context) error {
	snap, err := LoadSnapshot(ctx, l.store, l.cfg.Symbol, l.cfg.SnapshotMaxAge)
	if err != nil {
		return err
	}
	if snap == nil {
		log.Printf("No usable snapshot for %s, starting fresh", l.cfg.Symbol)
		return nil
	}
	l.risk.RestoreState(snap.Risk)
	l.tracker.RestoreState(snap.Position)
	l.pendingReverse = snap.PendingReverse
	l.lastResetDate = snap.LastResetDate
	log.Printf("✓ Strategy state restored for %s", l.cfg.Symbol)
	return nil
}

// Run consumes the tick stream until it closes or ctx is cancelled. Blocks.
func (l *Loop) Run(ctx context.Context, ticks <-chan market.Tick) error {
	l.barCtx = ctx

	verified, unsub := l.bus.Subscribe(events.OrderVerified, 16)
	defer unsub()

	persist := time.NewTicker(l.cfg.StatePersistInterval)
	defer persist.Stop()

	log.Printf("✓ Strategy loop started: %s %dmin MA(%d/%d) x%d",
		l.cfg.Symbol, l.cfg.IntervalMinutes, l.cfg.FastPeriod, l.cfg.SlowPeriod, l.cfg.Quantity)

	for {
		select {
		case <-ctx.Done():
			l.saveSnapshot()
			return ctx.Err()

		case tick, ok := <-ticks:
			if !ok {
				l.saveSnapshot()
				return nil
			}
			l.onTick(ctx, tick)

		case v := <-verified:
			if res, ok := v.(verify.Result); ok {
				l.onVerified(ctx, res)
			}

		case <-persist.C:
			l.saveSnapshot()
		}
	}
}

func (l *Loop) onTick(ctx context.Context, tick market.Tick) {
	// Daily counters reset when the tick date rolls, not on wall clock.
	date := tick.Time.Format("2006-01-02")
	if l.lastResetDate != "" && date != l.lastResetDate {
		l.risk.ResetDaily()
	}
	l.lastResetDate = date

	if !l.hours.Contains(tick.Time) {
		return
	}

	monitor.TicksReceived.Inc()
	l.lastPrice = tick.Close
	if l.quotes != nil {
		l.quotes.Add(db.QuoteRow{
			Symbol:   tick.Symbol,
			Close:    tick.Close,
			Volume:   tick.Volume,
			TickTime: tick.Time,
		})
	}
	l.bus.Publish(events.TickReceived, tick)

	// May fire the bar-completion callback synchronously.
	l.bars.OnTick(tick.Close, tick.Volume, tick.Time)

	l.tracker.UpdateUnrealizedPnL(tick.Close)

	if reason := l.risk.CheckStopLoss(tick.Close); reason != "" {
		monitor.StopsTriggered.WithLabelValues(string(reason)).Inc()
		l.bus.Publish(events.StopTriggered, reason)
		// A stop-loss exit abandons any queued re-entry.
		l.pendingReverse = ""
		l.placeExit(ctx, string(reason))
	}

	if l.tracker.ShouldSync() {
		l.syncPositions(ctx)
	}
}

// onBarComplete evaluates the crossover on every finalized bar.
func (l *Loop) onBarComplete(bar market.Bar) {
	ctx := l.barCtx
	monitor.BarsCompleted.Inc()
	l.bus.Publish(events.BarCompleted, bar)

	held := signal.Direction(l.tracker.Direction())
	sig := l.engine.Evaluate(l.bars.ClosePrices(), held)
	monitor.SignalsGenerated.WithLabelValues(string(sig.Action)).Inc()

	if sig.Action == signal.None {
		return
	}
	log.Printf("Signal: %s (%s) fast=%.1f slow=%.1f", sig.Action, sig.Reason, sig.FastMA, sig.SlowMA)
	l.bus.Publish(events.SignalGenerated, sig)

	switch sig.Action {
	case signal.Buy:
		l.placeEntry(ctx, "long", bar.Close)
	case signal.Sell:
		l.placeEntry(ctx, "short", bar.Close)
	case signal.Close:
		// Re-enter in the cross direction once the exit is confirmed.
		if held == signal.Long {
			l.pendingReverse = "short"
		} else {
			l.pendingReverse = "long"
		}
		l.placeExit(ctx, "signal_reverse")
	}
}

// placeEntry submits an entry order if risk and the in-flight guard allow.
func (l *Loop) placeEntry(ctx context.Context, direction string, refPrice float64) {
	if l.inFlightID != "" {
		log.Printf("Entry skipped: order %s still unverified", l.inFlightID)
		return
	}
	if ok, why := l.risk.CanTrade(); !ok {
		log.Printf("Entry blocked: %s", why)
		l.bus.Publish(events.TradingHalted, why)
		return
	}

	action := "buy"
	if direction == "short" {
		action = "sell"
	}

	result, err := l.client.PlaceEntryOrder(ctx, execution.EntryOrderParams{
		Symbol:    l.cfg.Symbol,
		Quantity:  l.cfg.Quantity,
		Action:    action,
		PriceType: "market",
	})
	if err != nil {
		log.Printf("❌ entry order failed (%s %s): %v", action, l.cfg.Symbol, err)
		return
	}

	monitor.OrdersSubmitted.WithLabelValues(action).Inc()
	recordID := l.recordOrder(ctx, result, action, "submitted")
	l.inFlightID = recordID
	l.inFlightKind = "entry"

	entryPrice := result.Price
	if entryPrice <= 0 {
		entryPrice = refPrice
	}
	l.tracker.OpenPosition(direction, entryPrice)
	l.risk.OnEntry(entryPrice, direction)

	l.bus.Publish(events.OrderSubmitted, recordID)
	go l.verify.Verify(ctx, recordID, result.OrderID, result.Seqno)
}

// placeExit submits the flattening order for the believed direction.
func (l *Loop) placeExit(ctx context.Context, reason string) {
	if l.inFlightID != "" {
		log.Printf("Exit skipped: order %s still unverified", l.inFlightID)
		return
	}
	direction := l.tracker.Direction()
	if direction == "flat" {
		return
	}

	result, err := l.client.PlaceExitOrder(ctx, execution.ExitOrderParams{
		Symbol:            l.cfg.Symbol,
		PositionDirection: direction,
		PriceType:         "market",
	})
	if err != nil {
		log.Printf("❌ exit order failed (%s, %s): %v", direction, reason, err)
		return
	}

	monitor.OrdersSubmitted.WithLabelValues(result.Action).Inc()
	recordID := l.recordOrder(ctx, result, result.Action, "submitted")
	l.inFlightID = recordID
	l.inFlightKind = "exit"

	exitPrice := result.Price
	if exitPrice <= 0 {
		exitPrice = l.lastPrice
	}
	l.tracker.ClosePosition(exitPrice)
	l.risk.OnExit(exitPrice)
	log.Printf("Exit submitted (%s): %s @ %.1f", reason, direction, exitPrice)

	l.bus.Publish(events.OrderSubmitted, recordID)
	go l.verify.Verify(ctx, recordID, result.OrderID, result.Seqno)
}

// onVerified clears the in-flight guard and runs a queued reversal once its
// exit is confirmed filled. The guard is always released here, even for a
// non-terminal give-up result: blocking risk-driven exits on an order whose
// outcome will never resolve is worse than acting on reconciled broker truth.
func (l *Loop) onVerified(ctx context.Context, res verify.Result) {
	if res.RecordID != l.inFlightID {
		return
	}
	kind := l.inFlightKind
	l.inFlightID = ""
	l.inFlightKind = ""

	switch res.Status {
	case verify.StatusFilled:
		if kind == "exit" && l.pendingReverse != "" {
			direction := l.pendingReverse
			l.pendingReverse = ""
			log.Printf("Executing queued reversal: %s", direction)
			l.placeEntry(ctx, direction, res.FillPrice)
		}
	case verify.StatusCancelled, verify.StatusFailed:
		// Local belief was updated optimistically at submit time; the next
		// broker sync corrects it.
		log.Printf("⚠️ order %s ended %s, awaiting reconciliation", res.OrderID, res.Status)
		l.pendingReverse = ""
	default:
		// Verification gave up without a terminal status. Reconcile now so
		// local belief matches whatever actually happened at the broker.
		log.Printf("⚠️ order %s unverified (last status %s), reconciling with broker", res.OrderID, res.Status)
		l.pendingReverse = ""
		l.syncPositions(ctx)
	}
}

// syncPositions reconciles local belief against broker truth.
func (l *Loop) syncPositions(ctx context.Context) {
	positions, err := l.client.GetPositions(ctx)
	if err != nil {
		log.Printf("⚠️ position sync failed: %v", err)
		return
	}
	if corrected := l.tracker.SyncWithBroker(positions); corrected {
		monitor.ReconciliationCorrections.Inc()
		l.bus.Publish(events.PositionCorrected, l.tracker.GetState())
		if l.tracker.IsFlat() {
			l.risk.AbandonPosition()
			l.pendingReverse = ""
		} else {
			st := l.tracker.GetState()
			l.risk.Rearm(st.EntryPrice, st.Direction)
		}
	}
}

// recordOrder writes the durable order record and returns its id.
func (l *Loop) recordOrder(ctx context.Context, result *execution.OrderResult, action, status string) string {
	record := &db.OrderRecord{
		ID:         ulid.Make().String(),
		Symbol:     l.cfg.Symbol,
		Code:       result.Code,
		Action:     action,
		Quantity:   result.Quantity,
		PriceType:  "market",
		Price:      result.Price,
		Status:     status,
		OrderID:    result.OrderID,
		Seqno:      result.Seqno,
		Ordno:      result.Ordno,
		FillStatus: result.Status,
		Simulation: l.sim,
	}
	if err := l.store.InsertOrderRecord(ctx, record); err != nil {
		log.Printf("⚠️ order record insert failed: %v", err)
	}
	return record.ID
}

func (l *Loop) saveSnapshot() {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	snap := Snapshot{
		Risk:           l.risk.GetState(),
		Position:       l.tracker.GetState(),
		PendingReverse: l.pendingReverse,
		LastResetDate:  l.lastResetDate,
	}
	if err := SaveSnapshot(ctx, l.store, l.cfg.Symbol, snap); err != nil {
		log.Printf("⚠️ snapshot save failed: %v", err)
	}
}

// RiskState exposes the current risk posture for the ops surface.
func (l *Loop) RiskState() risk.State {
	return l.risk.GetState()
}

// PositionState exposes the believed position for the ops surface.
func (l *Loop) PositionState() position.State {
	return l.tracker.GetState()
}
