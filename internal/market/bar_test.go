package market

import (
	"testing"
	"time"
)

func ts(h, m, s int) time.Time {
	return time.Date(2026, 3, 2, h, m, s, 0, time.UTC)
}

func TestBucketStartDeterminism(t *testing.T) {
	tests := []struct {
		name     string
		interval int
		in       time.Time
		want     time.Time
	}{
		{"3min mid-bucket", 3, ts(9, 1, 30), ts(9, 0, 0)},
		{"3min bucket edge", 3, ts(9, 4, 59), ts(9, 3, 0)},
		{"3min exact boundary", 3, ts(9, 3, 0), ts(9, 3, 0)},
		{"1min", 1, ts(13, 44, 59), ts(13, 44, 0)},
		{"5min across hour", 5, ts(10, 2, 10), ts(10, 0, 0)},
		{"15min", 15, ts(8, 46, 0), ts(8, 45, 0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBarBuilder(tt.interval, 10, nil)
			got := b.BucketStart(tt.in)
			if !got.Equal(tt.want) {
				t.Fatalf("BucketStart(%v)=%v, expected %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestBarAggregation(t *testing.T) {
	b := NewBarBuilder(3, 10, nil)

	prices := []float64{100, 99, 102, 101}
	for i, p := range prices {
		b.OnTick(p, 2, ts(9, 0, 10+i))
	}

	bar, ok := b.Current()
	if !ok {
		t.Fatalf("expected an open bar")
	}
	if bar.Open != 100 || bar.High != 102 || bar.Low != 99 || bar.Close != 101 {
		t.Fatalf("OHLC=%v/%v/%v/%v, expected 100/102/99/101", bar.Open, bar.High, bar.Low, bar.Close)
	}
	if bar.Volume != 8 {
		t.Fatalf("Volume=%d, expected 8", bar.Volume)
	}
}

func TestBarFinalizeThenOpen(t *testing.T) {
	var completed []Bar
	b := NewBarBuilder(3, 10, func(bar Bar) {
		completed = append(completed, bar)
	})

	b.OnTick(100, 1, ts(9, 0, 5))
	b.OnTick(101, 1, ts(9, 2, 59))
	if len(completed) != 0 {
		t.Fatalf("callback fired before bucket transition")
	}

	// First tick of the next bucket finalizes the previous bar first.
	b.OnTick(105, 1, ts(9, 3, 0))
	if len(completed) != 1 {
		t.Fatalf("completed=%d bars, expected 1", len(completed))
	}
	if completed[0].Close != 101 {
		t.Fatalf("finalized close=%v, expected 101", completed[0].Close)
	}
	if !completed[0].Start.Equal(ts(9, 0, 0)) || !completed[0].End.Equal(ts(9, 3, 0)) {
		t.Fatalf("finalized bounds=%v..%v", completed[0].Start, completed[0].End)
	}

	cur, _ := b.Current()
	if cur.Open != 105 || !cur.Start.Equal(ts(9, 3, 0)) {
		t.Fatalf("new bucket open=%v start=%v", cur.Open, cur.Start)
	}
}

func TestBarLateTickFoldsIntoCurrent(t *testing.T) {
	var completed int
	b := NewBarBuilder(3, 10, func(Bar) { completed++ })

	b.OnTick(100, 1, ts(9, 0, 5))
	b.OnTick(101, 1, ts(9, 3, 1))
	if completed != 1 {
		t.Fatalf("completed=%d, expected 1", completed)
	}

	// A tick from the already-closed bucket must not re-open it.
	b.OnTick(120, 1, ts(9, 2, 50))
	if completed != 1 {
		t.Fatalf("late tick re-fired completion")
	}
	cur, _ := b.Current()
	if cur.High != 120 || cur.Close != 120 {
		t.Fatalf("late tick not folded into current bar: high=%v close=%v", cur.High, cur.Close)
	}
}

func TestBarHistoryBounded(t *testing.T) {
	b := NewBarBuilder(1, 3, nil)
	for i := 0; i < 10; i++ {
		b.OnTick(float64(100+i), 1, ts(9, i, 0))
	}
	hist := b.History()
	if len(hist) != 3 {
		t.Fatalf("history=%d bars, expected 3", len(hist))
	}
	// Oldest evicted first.
	if hist[0].Close != 106 {
		t.Fatalf("oldest retained close=%v, expected 106", hist[0].Close)
	}
}
