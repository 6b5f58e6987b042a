package risk

// StopReason names the rule that forced an exit or a halt.
type StopReason string

const (
	FixedStopLoss   StopReason = "fixed_stop_loss"
	TrailingStop    StopReason = "trailing_stop"
	DailyLossLimit  StopReason = "daily_loss_limit"
	DailyTradeLimit StopReason = "daily_trade_limit"
)

// Config holds the risk thresholds. All values are in index points.
type Config struct {
	StopLossPoints     float64 `yaml:"stop_loss_points"`
	TrailingStopPoints float64 `yaml:"trailing_stop_points"`
	DailyMaxLossPoints float64 `yaml:"daily_max_loss_points"`
	DailyMaxTrades     int     `yaml:"daily_max_trades"`
}

// DefaultConfig returns the stock thresholds for small index futures.
func DefaultConfig() Config {
	return Config{
		StopLossPoints:     50,
		TrailingStopPoints: 30,
		DailyMaxLossPoints: 200,
		DailyMaxTrades:     10,
	}
}

// State is the serializable risk posture for one instrument.
type State struct {
	EntryPrice        float64 `json:"entry_price"`
	PositionDirection string  `json:"position_direction"` // "long", "short", "flat"

	StopLossPrice     float64 `json:"stop_loss_price"`
	TrailingStopPrice float64 `json:"trailing_stop_price"`

	// Most favorable price seen since entry; anchors the trailing stop.
	BestPrice float64 `json:"best_price"`

	DailyPnL        float64 `json:"daily_pnl"`
	DailyTradeCount int     `json:"daily_trade_count"`

	TradingHalted bool   `json:"trading_halted"`
	HaltReason    string `json:"halt_reason"`
}
