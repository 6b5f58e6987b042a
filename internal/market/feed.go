package market

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/gorilla/websocket"
)

// Feed delivers live ticks for one instrument.
type Feed interface {
	// Subscribe starts the feed. The returned channel closes when ctx is
	// cancelled or the feed shuts down.
	Subscribe(ctx context.Context, symbol string) (<-chan Tick, error)
}

// wireTick is the feed's wire shape. Bid/ask variants carry no close price
// and are dropped.
type wireTick struct {
	Symbol    string  `json:"symbol"`
	Close     float64 `json:"close"`
	Volume    int64   `json:"volume"`
	Timestamp int64   `json:"timestamp"` // unix milliseconds
}

// WebSocketFeed consumes ticks from an external quote publisher.
type WebSocketFeed struct {
	url string
}

// NewWebSocketFeed creates a feed against the given ws:// endpoint.
func NewWebSocketFeed(url string) *WebSocketFeed {
	return &WebSocketFeed{url: url}
}

// Subscribe dials the publisher and streams ticks for symbol. The connection
// is re-established with backoff after read failures until ctx is cancelled.
func (f *WebSocketFeed) Subscribe(ctx context.Context, symbol string) (<-chan Tick, error) {
	if f.url == "" {
		return nil, fmt.Errorf("quote feed url is empty")
	}

	out := make(chan Tick, 256)
	go func() {
		defer close(out)
		backoff := time.Second
		for {
			if ctx.Err() != nil {
				return
			}
			if err := f.run(ctx, symbol, out); err != nil {
				log.Printf("⚠️ quote feed disconnected: %v (reconnect in %v)", err, backoff)
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
		}
	}()
	return out, nil
}

func (f *WebSocketFeed) run(ctx context.Context, symbol string, out chan<- Tick) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, f.url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", f.url, err)
	}
	defer conn.Close()

	sub := map[string]any{"op": "subscribe", "symbol": symbol}
	if err := conn.WriteJSON(sub); err != nil {
		return fmt.Errorf("subscribe %s: %w", symbol, err)
	}
	log.Printf("✓ quote feed connected: %s (%s)", f.url, symbol)

	// Unblock ReadMessage on cancellation.
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}

		var wt wireTick
		if err := json.Unmarshal(msg, &wt); err != nil {
			log.Printf("⚠️ quote feed parse error (skipping): %v", err)
			continue
		}
		if wt.Close <= 0 || (wt.Symbol != "" && wt.Symbol != symbol) {
			continue
		}

		tick := Tick{
			Symbol: symbol,
			Close:  wt.Close,
			Volume: wt.Volume,
			Time:   time.UnixMilli(wt.Timestamp),
		}
		select {
		case out <- tick:
		case <-ctx.Done():
			return nil
		}
	}
}
