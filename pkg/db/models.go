package db

import "time"

// OrderRecord is the durable record of one submitted order. Created when an
// order is accepted for submission, updated by fill verification until a
// terminal status is reached, never deleted.
type OrderRecord struct {
	ID             string
	Symbol         string
	Code           string // broker's concrete contract code
	Action         string // "buy" or "sell"
	Quantity       int
	PriceType      string
	Price          float64
	Status         string // submitted, partial_filled, filled, cancelled, failed
	OrderID        string // broker-assigned
	Seqno          string
	Ordno          string
	FillStatus     string // raw exchange status string from the last poll
	FillQuantity   int
	FillPrice      float64
	CancelQuantity int
	ErrorMessage   string
	Simulation     bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// QuoteRow is one persisted tick.
type QuoteRow struct {
	Symbol   string
	Close    float64
	Volume   int64
	TickTime time.Time
}

// RiskMetricsRow aggregates one trading day.
type RiskMetricsRow struct {
	Date        string
	DailyPnL    float64
	DailyTrades int
	Halted      bool
	HaltReason  string
}
