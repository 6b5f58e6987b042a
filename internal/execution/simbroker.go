package execution

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"futures-core/internal/position"
)

// SimBroker is an in-process broker for simulation runs and tests. Market
// orders fill immediately at the current mark price; the net position per
// contract root is tracked like a margin account.
type SimBroker struct {
	mu     sync.Mutex
	prices map[string]float64 // by contract root
	books  map[string]*simPosition
	orders map[string]*OrderStatus
	seq    int
}

type simPosition struct {
	code     string
	net      int // signed, long positive
	avgPrice float64
}

// NewSimBroker creates a simulated broker with the given starting prices,
// keyed by symbol (rolling alias accepted).
func NewSimBroker(prices map[string]float64) *SimBroker {
	b := &SimBroker{
		prices: make(map[string]float64),
		books:  make(map[string]*simPosition),
		orders: make(map[string]*OrderStatus),
	}
	for sym, p := range prices {
		b.prices[contractRoot(sym)] = p
	}
	return b
}

// SetPrice updates the mark price for a symbol.
func (b *SimBroker) SetPrice(symbol string, price float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.prices[contractRoot(symbol)] = price
}

// Dial implements Dialer. The simulated broker ignores the target flag and
// hands back itself; session state is shared across dials on purpose so
// reconnects keep the book.
func (b *SimBroker) Dial(ctx context.Context, simulation bool) (Session, error) {
	return b, nil
}

func (b *SimBroker) Ping(ctx context.Context) error { return nil }

func (b *SimBroker) Symbols(ctx context.Context) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.prices))
	for root := range b.prices {
		out = append(out, root+"R1")
	}
	return out, nil
}

func (b *SimBroker) SymbolInfo(ctx context.Context, symbol string) (*SymbolInfo, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	root := contractRoot(symbol)
	price, ok := b.prices[root]
	if !ok {
		return nil, &ApplicationError{Message: fmt.Sprintf("unknown symbol: %s", symbol)}
	}
	return &SymbolInfo{
		Symbol:    symbol,
		Code:      root,
		Name:      root + " futures (sim)",
		Exchange:  "SIM",
		LimitUp:   price * 1.1,
		LimitDown: price * 0.9,
		Reference: price,
	}, nil
}

func (b *SimBroker) Snapshot(ctx context.Context, symbol string) (*Snapshot, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	price, ok := b.prices[contractRoot(symbol)]
	if !ok {
		return nil, &ApplicationError{Message: fmt.Sprintf("unknown symbol: %s", symbol)}
	}
	return &Snapshot{
		Symbol:    symbol,
		Close:     price,
		Bid:       price - 1,
		Ask:       price + 1,
		High:      price,
		Low:       price,
		Timestamp: time.Now(),
	}, nil
}

func (b *SimBroker) Positions(ctx context.Context) ([]position.BrokerPosition, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []position.BrokerPosition
	for _, p := range b.books {
		if p.net == 0 {
			continue
		}
		direction := "long"
		qty := p.net
		if p.net < 0 {
			direction = "short"
			qty = -p.net
		}
		out = append(out, position.BrokerPosition{
			Code:      p.code,
			Direction: direction,
			Quantity:  qty,
			Price:     p.avgPrice,
		})
	}
	return out, nil
}

func (b *SimBroker) Margin(ctx context.Context) (*Margin, error) {
	return &Margin{Available: 1_000_000, Equity: 1_000_000}, nil
}

func (b *SimBroker) ListTrades(ctx context.Context) ([]TradeInfo, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []TradeInfo
	for id, st := range b.orders {
		out = append(out, TradeInfo{
			OrderID:  id,
			Quantity: st.DealQuantity,
			Price:    st.FillAvgPrice,
			Status:   st.Status,
		})
	}
	return out, nil
}

func (b *SimBroker) PlaceOrder(ctx context.Context, intent OrderIntent) (*OrderResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	root := contractRoot(intent.Symbol)
	price, ok := b.prices[root]
	if !ok {
		return nil, &ApplicationError{Message: fmt.Sprintf("unknown symbol: %s", intent.Symbol)}
	}
	if intent.PriceType == "limit" && intent.Price > 0 {
		price = intent.Price
	}

	signed := intent.Quantity
	if intent.Action == "sell" {
		signed = -signed
	}

	book, ok := b.books[root]
	if !ok {
		book = &simPosition{code: root}
		b.books[root] = book
	}
	prevNet := book.net
	book.net += signed
	// Average price only matters while position grows in one direction.
	if prevNet == 0 || (prevNet > 0) != (book.net > 0) {
		book.avgPrice = price
	}

	b.seq++
	orderID := ulid.Make().String()
	seqno := fmt.Sprintf("%06d", b.seq)

	b.orders[orderID] = &OrderStatus{
		OrderID:      orderID,
		Seqno:        seqno,
		Ordno:        seqno,
		Status:       "Filled",
		DealQuantity: intent.Quantity,
		FillAvgPrice: price,
		Deals:        []Deal{{Price: price, Quantity: intent.Quantity}},
	}

	return &OrderResult{
		OrderID:  orderID,
		Seqno:    seqno,
		Ordno:    seqno,
		Code:     root,
		Action:   intent.Action,
		Quantity: intent.Quantity,
		Price:    price,
		Status:   "Submitted",
	}, nil
}

func (b *SimBroker) RefreshStatus(ctx context.Context, orderID, seqno string) (*OrderStatus, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	st, ok := b.orders[orderID]
	if !ok {
		return nil, &ApplicationError{Message: fmt.Sprintf("unknown order: %s", orderID)}
	}
	cp := *st
	return &cp, nil
}

func (b *SimBroker) Close() error { return nil }

func contractRoot(symbol string) string {
	return strings.TrimSuffix(symbol, "R1")
}
