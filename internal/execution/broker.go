package execution

import (
	"context"

	"futures-core/internal/position"
)

// OrderIntent is the worker's fully-resolved instruction to the broker.
type OrderIntent struct {
	Symbol    string
	Action    string // "buy" or "sell"
	Quantity  int
	PriceType string
	Price     float64
}

// Session is one logged-in broker connection. Sessions are stateful and not
// safe for concurrent use; the queue worker is their only owner.
type Session interface {
	Ping(ctx context.Context) error
	Symbols(ctx context.Context) ([]string, error)
	SymbolInfo(ctx context.Context, symbol string) (*SymbolInfo, error)
	Snapshot(ctx context.Context, symbol string) (*Snapshot, error)
	Positions(ctx context.Context) ([]position.BrokerPosition, error)
	Margin(ctx context.Context) (*Margin, error)
	ListTrades(ctx context.Context) ([]TradeInfo, error)
	PlaceOrder(ctx context.Context, intent OrderIntent) (*OrderResult, error)
	RefreshStatus(ctx context.Context, orderID, seqno string) (*OrderStatus, error)
	Close() error
}

// Dialer establishes broker sessions. simulation selects the paper-trading
// endpoint; the credential allows only one live session, which the worker
// owns exclusively.
type Dialer interface {
	Dial(ctx context.Context, simulation bool) (Session, error)
}
