package market

import (
	"sync"
	"time"
)

// Tick is one trade print from the quote feed.
type Tick struct {
	Symbol string    `json:"symbol"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
	Time   time.Time `json:"time"`
}

// Bar is one time-bucketed OHLCV candle.
type Bar struct {
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume int64
	Start  time.Time
	End    time.Time
}

// BarBuilder aggregates ticks into fixed-interval bars aligned to wall-clock
// minute boundaries. Bucket edges depend only on the tick timestamp and the
// interval, never on when the stream started.
type BarBuilder struct {
	interval   int // minutes
	maxHistory int

	mu      sync.Mutex
	current *Bar
	history []Bar

	onComplete func(Bar)
}

// NewBarBuilder creates a builder for intervalMinutes bars keeping at most
// maxHistory finalized bars.
func NewBarBuilder(intervalMinutes, maxHistory int, onComplete func(Bar)) *BarBuilder {
	if intervalMinutes <= 0 {
		intervalMinutes = 1
	}
	if maxHistory <= 0 {
		maxHistory = 200
	}
	return &BarBuilder{
		interval:   intervalMinutes,
		maxHistory: maxHistory,
		onComplete: onComplete,
	}
}

// BucketStart truncates ts down to the containing bucket's start using
// minute-of-day arithmetic.
func (b *BarBuilder) BucketStart(ts time.Time) time.Time {
	minuteOfDay := ts.Hour()*60 + ts.Minute()
	bucketMinute := minuteOfDay / b.interval * b.interval
	return time.Date(ts.Year(), ts.Month(), ts.Day(), bucketMinute/60, bucketMinute%60, 0, 0, ts.Location())
}

// OnTick feeds one tick. When the tick belongs to a strictly later bucket the
// current bar is finalized and the completion callback fires before the new
// bucket's first tick is applied. A tick bucketed earlier than the current bar
// (late arrival) is folded into the current bar and never re-opens a closed
// bucket.
func (b *BarBuilder) OnTick(price float64, volume int64, ts time.Time) {
	bucket := b.BucketStart(ts)

	b.mu.Lock()
	if b.current == nil {
		b.current = b.openBar(price, volume, bucket)
		b.mu.Unlock()
		return
	}

	if bucket.After(b.current.Start) {
		done := *b.current
		done.End = done.Start.Add(time.Duration(b.interval) * time.Minute)
		b.history = append(b.history, done)
		if len(b.history) > b.maxHistory {
			b.history = b.history[len(b.history)-b.maxHistory:]
		}
		b.current = b.openBar(price, volume, bucket)
		b.mu.Unlock()

		if b.onComplete != nil {
			b.onComplete(done)
		}
		return
	}

	b.current.High = max(b.current.High, price)
	b.current.Low = min(b.current.Low, price)
	b.current.Close = price
	b.current.Volume += volume
	b.mu.Unlock()
}

func (b *BarBuilder) openBar(price float64, volume int64, bucket time.Time) *Bar {
	return &Bar{
		Open:   price,
		High:   price,
		Low:    price,
		Close:  price,
		Volume: volume,
		Start:  bucket,
		End:    bucket.Add(time.Duration(b.interval) * time.Minute),
	}
}

// ClosePrices returns the close of every finalized bar, oldest first.
func (b *BarBuilder) ClosePrices() []float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]float64, len(b.history))
	for i, bar := range b.history {
		out[i] = bar.Close
	}
	return out
}

// History returns a copy of the finalized bars, oldest first.
func (b *BarBuilder) History() []Bar {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Bar, len(b.history))
	copy(out, b.history)
	return out
}

// Current returns a copy of the in-progress bar, if any.
func (b *BarBuilder) Current() (Bar, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.current == nil {
		return Bar{}, false
	}
	return *b.current, true
}
