package position

import (
	"log"
	"strings"
	"sync"
	"time"
)

// BrokerPosition is one broker-reported open position.
type BrokerPosition struct {
	Code      string  `json:"code"` // concrete contract code, e.g. MXFH6
	Direction string  `json:"direction"`
	Quantity  int     `json:"quantity"`
	Price     float64 `json:"price"`
}

// State is the locally believed position, serializable for crash recovery.
type State struct {
	Direction     string  `json:"direction"` // "long", "short", "flat"
	EntryPrice    float64 `json:"entry_price"`
	Quantity      int     `json:"quantity"`
	UnrealizedPnL float64 `json:"unrealized_pnl"`
	LastSyncTime  int64   `json:"last_sync_time"` // unix seconds
}

// SymbolMatcher decides whether a broker contract code belongs to the
// tracked symbol.
type SymbolMatcher func(symbol, brokerCode string) bool

// ContinuousContractMatcher matches a rolling-contract alias (symbol ending
// in "R1") against any concrete expiry code sharing the root prefix, and
// otherwise requires an exact match.
func ContinuousContractMatcher(symbol, brokerCode string) bool {
	if brokerCode == symbol {
		return true
	}
	if strings.HasSuffix(symbol, "R1") {
		return strings.HasPrefix(brokerCode, strings.TrimSuffix(symbol, "R1"))
	}
	return false
}

// Tracker holds the believed position for one instrument and reconciles it
// against broker truth on a timer. Broker truth always wins.
type Tracker struct {
	symbol          string
	defaultQuantity int
	syncInterval    time.Duration
	matches         SymbolMatcher

	mu    sync.Mutex
	state State
}

// NewTracker creates a tracker. matcher may be nil to use the continuous
// contract rule.
func NewTracker(symbol string, defaultQuantity int, syncInterval time.Duration, matcher SymbolMatcher) *Tracker {
	if matcher == nil {
		matcher = ContinuousContractMatcher
	}
	return &Tracker{
		symbol:          symbol,
		defaultQuantity: defaultQuantity,
		syncInterval:    syncInterval,
		matches:         matcher,
		state:           State{Direction: "flat"},
	}
}

// Direction returns the believed direction.
func (t *Tracker) Direction() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state.Direction
}

// IsFlat reports whether no position is believed held.
func (t *Tracker) IsFlat() bool {
	return t.Direction() == "flat"
}

// EntryPrice returns the believed entry price.
func (t *Tracker) EntryPrice() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state.EntryPrice
}

// OpenPosition records a new believed position.
func (t *Tracker) OpenPosition(direction string, entryPrice float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.state.Direction = direction
	t.state.EntryPrice = entryPrice
	t.state.Quantity = t.defaultQuantity
	t.state.UnrealizedPnL = 0

	log.Printf("Position opened: %s %s x%d @ %.1f", direction, t.symbol, t.defaultQuantity, entryPrice)
}

// ClosePosition flattens the believed position and returns the realized
// delta in points.
func (t *Tracker) ClosePosition(exitPrice float64) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	var pnl float64
	switch t.state.Direction {
	case "long":
		pnl = exitPrice - t.state.EntryPrice
	case "short":
		pnl = t.state.EntryPrice - exitPrice
	}

	log.Printf("Position closed: %s %s @ %.1f pnl=%.1f pts", t.state.Direction, t.symbol, exitPrice, pnl)

	t.state.Direction = "flat"
	t.state.EntryPrice = 0
	t.state.Quantity = 0
	t.state.UnrealizedPnL = 0

	return pnl
}

// UpdateUnrealizedPnL refreshes the mark-to-market P&L in points.
func (t *Tracker) UpdateUnrealizedPnL(currentPrice float64) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch t.state.Direction {
	case "long":
		t.state.UnrealizedPnL = currentPrice - t.state.EntryPrice
	case "short":
		t.state.UnrealizedPnL = t.state.EntryPrice - currentPrice
	default:
		t.state.UnrealizedPnL = 0
	}
	return t.state.UnrealizedPnL
}

// ShouldSync is an elapsed-time gate against the configured sync interval.
func (t *Tracker) ShouldSync() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state.LastSyncTime == 0 {
		return true
	}
	return time.Since(time.Unix(t.state.LastSyncTime, 0)) >= t.syncInterval
}

// SyncWithBroker reconciles against broker-reported positions. If the broker
// shows no matching position the local state is force-flattened; if the
// directions disagree the broker record overwrites local belief. Returns
// whether a correction occurred.
func (t *Tracker) SyncWithBroker(brokerPositions []BrokerPosition) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.state.LastSyncTime = time.Now().Unix()

	var matched *BrokerPosition
	for i := range brokerPositions {
		if t.matches(t.symbol, brokerPositions[i].Code) {
			matched = &brokerPositions[i]
			break
		}
	}

	if matched == nil {
		if t.state.Direction != "flat" {
			log.Printf("⚠️ Reconciliation: local %s but broker flat, force-flattening", t.state.Direction)
			t.state.Direction = "flat"
			t.state.EntryPrice = 0
			t.state.Quantity = 0
			t.state.UnrealizedPnL = 0
			return true
		}
		return false
	}

	if matched.Direction != t.state.Direction {
		log.Printf("⚠️ Reconciliation: local %s -> broker %s", t.state.Direction, matched.Direction)
		t.state.Direction = matched.Direction
		t.state.EntryPrice = matched.Price
		t.state.Quantity = matched.Quantity
		return true
	}

	return false
}

// GetState returns a copy of the believed position.
func (t *Tracker) GetState() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// RestoreState replaces the believed position from a persisted snapshot.
func (t *Tracker) RestoreState(s State) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if s.Direction == "" {
		s.Direction = "flat"
	}
	t.state = s
	log.Printf("Position state restored: %s @ %.1f", s.Direction, s.EntryPrice)
}
