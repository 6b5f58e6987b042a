package events

// Event identifies a topic on the bus.
type Event string

const (
	// TickReceived carries a market.Tick for every accepted tick.
	TickReceived Event = "tick.received"
	// BarCompleted carries the finalized market.Bar on bucket transition.
	BarCompleted Event = "bar.completed"
	// SignalGenerated carries a signal.TradeSignal with action != None.
	SignalGenerated Event = "signal.generated"
	// OrderSubmitted carries the internal order record id.
	OrderSubmitted Event = "order.submitted"
	// OrderVerified carries a verify.Result once polling reaches a terminal state.
	OrderVerified Event = "order.verified"
	// StopTriggered carries the risk.StopReason that forced an exit.
	StopTriggered Event = "risk.stop_triggered"
	// PositionCorrected fires when broker reconciliation overwrote local belief.
	PositionCorrected Event = "position.corrected"
	// TradingHalted fires when a daily circuit breaker trips.
	TradingHalted Event = "risk.trading_halted"
)
