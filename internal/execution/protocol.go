package execution

import (
	"encoding/json"
	"time"
)

// Operation identifies one broker call kind on the queue.
type Operation string

const (
	OpPing            Operation = "ping"
	OpGetSymbols      Operation = "get_symbols"
	OpGetSymbolInfo   Operation = "get_symbol_info"
	OpGetSnapshot     Operation = "get_snapshot"
	OpGetPositions    Operation = "get_positions"
	OpGetMargin       Operation = "get_margin"
	OpListTrades      Operation = "list_trades"
	OpPlaceEntryOrder Operation = "place_entry_order"
	OpPlaceExitOrder  Operation = "place_exit_order"
	OpOrderStatus     Operation = "check_order_status"
)

// TimeoutFor returns the client-side budget per operation kind. Status
// polling may require a live round-trip to the exchange, so it gets a longer
// budget than simple queries.
func TimeoutFor(op Operation) time.Duration {
	switch op {
	case OpPing:
		return 5 * time.Second
	case OpOrderStatus:
		return 30 * time.Second
	case OpPlaceEntryOrder, OpPlaceExitOrder:
		return 15 * time.Second
	default:
		return 10 * time.Second
	}
}

// Request is one unit of work for the broker session. Serialized to the WAL,
// so params travel as raw JSON.
type Request struct {
	ID         string          `json:"id"` // correlation id
	Operation  Operation       `json:"operation"`
	Simulation bool            `json:"simulation"` // target-session selector
	Params     json.RawMessage `json:"params,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// Response pairs one result to its request by correlation id. Delivered to
// exactly the one waiter with the matching id, never broadcast.
type Response struct {
	ID      string `json:"id"`
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Typed operation parameters.

type SymbolParams struct {
	Symbol string `json:"symbol"`
}

type EntryOrderParams struct {
	Symbol    string  `json:"symbol"`
	Quantity  int     `json:"quantity"`
	Action    string  `json:"action"`     // "buy" or "sell"
	PriceType string  `json:"price_type"` // "market" or "limit"
	Price     float64 `json:"price,omitempty"`
}

type ExitOrderParams struct {
	Symbol            string  `json:"symbol"`
	PositionDirection string  `json:"position_direction"` // "long" or "short"
	PriceType         string  `json:"price_type"`
	Price             float64 `json:"price,omitempty"`
}

type OrderStatusParams struct {
	OrderID string `json:"order_id"`
	Seqno   string `json:"seqno"`
}

// Typed operation results, constructed at the worker boundary so the rest of
// the system never inspects loosely-typed payloads.

type SymbolInfo struct {
	Symbol       string  `json:"symbol"`
	Code         string  `json:"code"`
	Name         string  `json:"name"`
	Exchange     string  `json:"exchange"`
	DeliveryDate string  `json:"delivery_date"`
	LimitUp      float64 `json:"limit_up"`
	LimitDown    float64 `json:"limit_down"`
	Reference    float64 `json:"reference"`
}

type Snapshot struct {
	Symbol    string    `json:"symbol"`
	Close     float64   `json:"close"`
	Bid       float64   `json:"bid"`
	Ask       float64   `json:"ask"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Volume    int64     `json:"volume"`
	Timestamp time.Time `json:"timestamp"`
}

type Margin struct {
	Available     float64 `json:"available"`
	Equity        float64 `json:"equity"`
	InitialMargin float64 `json:"initial_margin"`
	RiskIndicator float64 `json:"risk_indicator"`
}

type TradeInfo struct {
	OrderID  string  `json:"order_id"`
	Code     string  `json:"code"`
	Action   string  `json:"action"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
	Status   string  `json:"status"`
}

// OrderResult is the broker's acknowledgement of a placed order.
type OrderResult struct {
	OrderID  string  `json:"order_id"`
	Seqno    string  `json:"seqno"`
	Ordno    string  `json:"ordno"`
	Code     string  `json:"code"` // concrete contract traded
	Action   string  `json:"action"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
	Status   string  `json:"status"` // raw exchange status
}

// Deal is one partial execution reported by the exchange.
type Deal struct {
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
}

// OrderStatus is the refreshed state of one order.
type OrderStatus struct {
	OrderID        string  `json:"order_id"`
	Seqno          string  `json:"seqno"`
	Ordno          string  `json:"ordno"`
	Status         string  `json:"status"` // raw exchange status
	DealQuantity   int     `json:"deal_quantity"`
	FillAvgPrice   float64 `json:"fill_avg_price"`
	CancelQuantity int     `json:"cancel_quantity"`
	Deals          []Deal  `json:"deals"`
}

func mustMarshal(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		// All params structs marshal cleanly; reaching here is a bug.
		panic(err)
	}
	return data
}
