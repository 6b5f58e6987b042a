package signal

import "testing"

func flatCloses(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestEvaluateInsufficientHistory(t *testing.T) {
	e := NewEngine(2, 4)
	sig := e.Evaluate([]float64{1, 2, 3, 4}, Flat)
	if sig.Action != None {
		t.Fatalf("Action=%s, expected none", sig.Action)
	}
}

func TestEvaluateNoCrossIsIdempotent(t *testing.T) {
	e := NewEngine(2, 4)

	// Strictly rising series: fast stays above slow, diff never changes sign.
	closes := []float64{100, 101, 102, 103, 104, 105, 106}
	for _, held := range []Direction{Flat, Long, Short} {
		sig := e.Evaluate(closes, held)
		if sig.Action != None {
			t.Fatalf("held=%s Action=%s, expected none", held, sig.Action)
		}
	}

	// Perfectly flat series: diff is always zero, ties must not fire.
	sig := e.Evaluate(flatCloses(10, 100), Flat)
	if sig.Action != None {
		t.Fatalf("flat series Action=%s, expected none", sig.Action)
	}
}

func TestEvaluateGoldenCross(t *testing.T) {
	e := NewEngine(2, 4)
	// Falling then sharp rise: the fast average crosses above the slow on
	// the final close.
	closes := []float64{105, 103, 101, 99, 97, 110}

	tests := []struct {
		held Direction
		want Action
	}{
		{Flat, Buy},
		{Short, Close},
		{Long, None},
	}
	for _, tt := range tests {
		sig := e.Evaluate(closes, tt.held)
		if sig.Action != tt.want {
			t.Fatalf("held=%s Action=%s, expected %s (%s)", tt.held, sig.Action, tt.want, sig.Reason)
		}
	}
}

func TestEvaluateDeathCross(t *testing.T) {
	e := NewEngine(2, 4)
	closes := []float64{95, 97, 99, 101, 103, 90}

	tests := []struct {
		held Direction
		want Action
	}{
		{Flat, Sell},
		{Long, Close},
		{Short, None},
	}
	for _, tt := range tests {
		sig := e.Evaluate(closes, tt.held)
		if sig.Action != tt.want {
			t.Fatalf("held=%s Action=%s, expected %s (%s)", tt.held, sig.Action, tt.want, sig.Reason)
		}
	}
}

func TestEvaluateDeterministic(t *testing.T) {
	e := NewEngine(5, 20)
	closes := make([]float64, 25)
	for i := range closes {
		closes[i] = 21000 + float64(i%7)
	}
	a := e.Evaluate(closes, Flat)
	b := e.Evaluate(closes, Flat)
	if a != b {
		t.Fatalf("identical inputs gave %+v and %+v", a, b)
	}
}
