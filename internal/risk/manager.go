package risk

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"futures-core/pkg/db"
)

// Manager is a per-instrument risk state machine: fixed stop, favorable-only
// trailing stop, and daily loss/trade-count circuit breakers.
type Manager struct {
	cfg Config

	mu    sync.Mutex
	state State

	store *db.Database // optional, persists daily metrics
}

// NewManager creates a risk manager. store may be nil for in-memory use.
func NewManager(cfg Config, store *db.Database) *Manager {
	return &Manager{
		cfg:   cfg,
		state: State{PositionDirection: "flat"},
		store: store,
	}
}

// OnEntry records a new position: sets the fixed stop and the trailing stop
// relative to entry, anchors the best price, and counts the trade.
func (m *Manager) OnEntry(entryPrice float64, direction string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.state.EntryPrice = entryPrice
	m.state.PositionDirection = direction
	m.state.BestPrice = entryPrice
	m.state.DailyTradeCount++

	switch direction {
	case "long":
		m.state.StopLossPrice = entryPrice - m.cfg.StopLossPoints
		m.state.TrailingStopPrice = entryPrice - m.cfg.TrailingStopPoints
	case "short":
		m.state.StopLossPrice = entryPrice + m.cfg.StopLossPoints
		m.state.TrailingStopPrice = entryPrice + m.cfg.TrailingStopPoints
	}

	log.Printf("Risk armed: %s entry=%.1f stop=%.1f trail=%.1f",
		direction, entryPrice, m.state.StopLossPrice, m.state.TrailingStopPrice)
}

// OnExit books the realized P&L into the daily total, clears position-scoped
// fields, and halts trading when the daily loss floor is hit. Returns the
// realized P&L in points.
func (m *Manager) OnExit(exitPrice float64) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	var pnl float64
	switch m.state.PositionDirection {
	case "long":
		pnl = exitPrice - m.state.EntryPrice
	case "short":
		pnl = m.state.EntryPrice - exitPrice
	}

	m.state.DailyPnL += pnl
	log.Printf("Exit P&L: %.1f pts, daily total: %.1f pts", pnl, m.state.DailyPnL)

	m.state.EntryPrice = 0
	m.state.PositionDirection = "flat"
	m.state.StopLossPrice = 0
	m.state.TrailingStopPrice = 0
	m.state.BestPrice = 0

	if m.state.DailyPnL <= -m.cfg.DailyMaxLossPoints {
		m.state.TradingHalted = true
		m.state.HaltReason = string(DailyLossLimit)
		log.Printf("⚠️ Daily loss limit hit: %.1f pts, trading halted", m.state.DailyPnL)
	}

	m.persistMetrics()
	return pnl
}

// CheckStopLoss advances the trailing stop in the favorable direction only,
// then reports the first breached stop. Returns "" while no stop is hit or
// the position is flat.
func (m *Manager) CheckStopLoss(currentPrice float64) StopReason {
	m.mu.Lock()
	defer m.mu.Unlock()

	direction := m.state.PositionDirection
	if direction == "flat" {
		return ""
	}

	m.updateTrailingStop(currentPrice)

	if direction == "long" && currentPrice <= m.state.StopLossPrice {
		log.Printf("⚠️ Fixed stop hit: %.1f <= %.1f", currentPrice, m.state.StopLossPrice)
		return FixedStopLoss
	}
	if direction == "short" && currentPrice >= m.state.StopLossPrice {
		log.Printf("⚠️ Fixed stop hit: %.1f >= %.1f", currentPrice, m.state.StopLossPrice)
		return FixedStopLoss
	}

	if direction == "long" && currentPrice <= m.state.TrailingStopPrice {
		log.Printf("⚠️ Trailing stop hit: %.1f <= %.1f", currentPrice, m.state.TrailingStopPrice)
		return TrailingStop
	}
	if direction == "short" && currentPrice >= m.state.TrailingStopPrice {
		log.Printf("⚠️ Trailing stop hit: %.1f >= %.1f", currentPrice, m.state.TrailingStopPrice)
		return TrailingStop
	}

	return ""
}

// updateTrailingStop moves the trailing stop only when the price makes a new
// favorable extreme; it never loosens.
func (m *Manager) updateTrailingStop(currentPrice float64) {
	switch m.state.PositionDirection {
	case "long":
		if currentPrice > m.state.BestPrice {
			m.state.BestPrice = currentPrice
			if t := currentPrice - m.cfg.TrailingStopPoints; t > m.state.TrailingStopPrice {
				m.state.TrailingStopPrice = t
			}
		}
	case "short":
		if currentPrice < m.state.BestPrice {
			m.state.BestPrice = currentPrice
			if t := currentPrice + m.cfg.TrailingStopPoints; t < m.state.TrailingStopPrice {
				m.state.TrailingStopPrice = t
			}
		}
	}
}

// Rearm resets the stops around a broker-reported entry without counting a
// new trade, used after reconciliation overwrites local belief.
func (m *Manager) Rearm(entryPrice float64, direction string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.state.EntryPrice = entryPrice
	m.state.PositionDirection = direction
	m.state.BestPrice = entryPrice

	switch direction {
	case "long":
		m.state.StopLossPrice = entryPrice - m.cfg.StopLossPoints
		m.state.TrailingStopPrice = entryPrice - m.cfg.TrailingStopPoints
	case "short":
		m.state.StopLossPrice = entryPrice + m.cfg.StopLossPoints
		m.state.TrailingStopPrice = entryPrice + m.cfg.TrailingStopPoints
	}
}

// AbandonPosition clears position-scoped fields without booking P&L, used
// when reconciliation reveals the broker already flattened us.
func (m *Manager) AbandonPosition() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.state.EntryPrice = 0
	m.state.PositionDirection = "flat"
	m.state.StopLossPrice = 0
	m.state.TrailingStopPrice = 0
	m.state.BestPrice = 0
}

// CanTrade reports whether a new entry is allowed and why not.
func (m *Manager) CanTrade() (bool, string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state.TradingHalted {
		return false, fmt.Sprintf("trading halted: %s", m.state.HaltReason)
	}
	if m.cfg.DailyMaxTrades > 0 && m.state.DailyTradeCount >= m.cfg.DailyMaxTrades {
		m.state.TradingHalted = true
		m.state.HaltReason = string(DailyTradeLimit)
		return false, fmt.Sprintf("daily trade limit reached (%d)", m.cfg.DailyMaxTrades)
	}
	return true, ""
}

// Halted reports the standing halt flag.
func (m *Manager) Halted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.TradingHalted
}

// ResetDaily clears the daily counters at a new trading day.
func (m *Manager) ResetDaily() {
	m.mu.Lock()
	defer m.mu.Unlock()

	log.Printf("Daily risk reset. Prev: pnl=%.1f trades=%d", m.state.DailyPnL, m.state.DailyTradeCount)
	m.state.DailyPnL = 0
	m.state.DailyTradeCount = 0
	m.state.TradingHalted = false
	m.state.HaltReason = ""
}

// GetState returns a copy of the current state.
func (m *Manager) GetState() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// RestoreState replaces the state from a persisted snapshot.
func (m *Manager) RestoreState(s State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.PositionDirection == "" {
		s.PositionDirection = "flat"
	}
	m.state = s
	log.Printf("Risk state restored: daily_pnl=%.1f trades=%d", s.DailyPnL, s.DailyTradeCount)
}

// persistMetrics upserts today's aggregated row. Caller holds m.mu.
func (m *Manager) persistMetrics() {
	if m.store == nil {
		return
	}
	row := db.RiskMetricsRow{
		Date:        time.Now().Format("2006-01-02"),
		DailyPnL:    m.state.DailyPnL,
		DailyTrades: m.state.DailyTradeCount,
		Halted:      m.state.TradingHalted,
		HaltReason:  m.state.HaltReason,
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := m.store.UpsertRiskMetrics(ctx, row); err != nil {
		log.Printf("⚠️ risk metrics persist failed: %v", err)
	}
}
