package market

import (
	"context"
	"math/rand"
	"time"
)

// MockFeed generates a random-walk tick stream for development and
// simulation runs without a live quote publisher.
type MockFeed struct {
	StartPrice float64
	Interval   time.Duration
	StepRange  float64
}

// NewMockFeed creates a mock feed around startPrice emitting one tick per
// interval.
func NewMockFeed(startPrice float64, interval time.Duration) *MockFeed {
	if interval <= 0 {
		interval = time.Second
	}
	return &MockFeed{StartPrice: startPrice, Interval: interval, StepRange: 5}
}

// Subscribe emits synthetic ticks until ctx is cancelled.
func (f *MockFeed) Subscribe(ctx context.Context, symbol string) (<-chan Tick, error) {
	out := make(chan Tick, 64)
	go func() {
		defer close(out)
		rng := rand.New(rand.NewSource(time.Now().UnixNano()))
		price := f.StartPrice
		ticker := time.NewTicker(f.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				price += (rng.Float64()*2 - 1) * f.StepRange
				if price < 1 {
					price = 1
				}
				tick := Tick{
					Symbol: symbol,
					Close:  float64(int(price*100)) / 100,
					Volume: int64(rng.Intn(10) + 1),
					Time:   now,
				}
				select {
				case out <- tick:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
