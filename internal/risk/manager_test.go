package risk

import "testing"

func testConfig() Config {
	return Config{
		StopLossPoints:     50,
		TrailingStopPoints: 30,
		DailyMaxLossPoints: 200,
		DailyMaxTrades:     10,
	}
}

func TestOnEntrySetsStops(t *testing.T) {
	tests := []struct {
		name      string
		direction string
		entry     float64
		wantStop  float64
		wantTrail float64
	}{
		{"long", "long", 21000, 20950, 20970},
		{"short", "short", 21000, 21050, 21030},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewManager(testConfig(), nil)
			m.OnEntry(tt.entry, tt.direction)

			st := m.GetState()
			if st.StopLossPrice != tt.wantStop {
				t.Fatalf("StopLossPrice=%v, expected %v", st.StopLossPrice, tt.wantStop)
			}
			if st.TrailingStopPrice != tt.wantTrail {
				t.Fatalf("TrailingStopPrice=%v, expected %v", st.TrailingStopPrice, tt.wantTrail)
			}
			if st.DailyTradeCount != 1 {
				t.Fatalf("DailyTradeCount=%d, expected 1", st.DailyTradeCount)
			}
		})
	}
}

func TestTrailingStopMonotonicity(t *testing.T) {
	m := NewManager(testConfig(), nil)
	m.OnEntry(21000, "long")

	prices := []float64{21010, 21050, 21030, 21100, 21080, 21100, 21060}
	prevTrail := m.GetState().TrailingStopPrice
	for _, p := range prices {
		m.CheckStopLoss(p)
		trail := m.GetState().TrailingStopPrice
		if trail < prevTrail {
			t.Fatalf("trailing stop loosened: %v -> %v at price %v", prevTrail, trail, p)
		}
		prevTrail = trail
	}
	// Best price 21100, so the trail must sit 30 under it.
	if prevTrail != 21070 {
		t.Fatalf("final trailing stop=%v, expected 21070", prevTrail)
	}

	m = NewManager(testConfig(), nil)
	m.OnEntry(21000, "short")
	prevTrail = m.GetState().TrailingStopPrice
	for _, p := range []float64{20990, 20950, 20970, 20900, 20920} {
		m.CheckStopLoss(p)
		trail := m.GetState().TrailingStopPrice
		if trail > prevTrail {
			t.Fatalf("short trailing stop loosened: %v -> %v at price %v", prevTrail, trail, p)
		}
		prevTrail = trail
	}
	if prevTrail != 20930 {
		t.Fatalf("final short trailing stop=%v, expected 20930", prevTrail)
	}
}

func TestStopLossBreaches(t *testing.T) {
	tests := []struct {
		name      string
		direction string
		entry     float64
		price     float64
		want      StopReason
	}{
		{"long fixed stop", "long", 21000, 20950, FixedStopLoss},
		{"long trailing stop", "long", 21000, 20970, TrailingStop},
		{"long no breach", "long", 21000, 20990, ""},
		{"short fixed stop", "short", 21000, 21050, FixedStopLoss},
		{"short trailing stop", "short", 21000, 21030, TrailingStop},
		{"short no breach", "short", 21000, 21010, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewManager(testConfig(), nil)
			m.OnEntry(tt.entry, tt.direction)
			if got := m.CheckStopLoss(tt.price); got != tt.want {
				t.Fatalf("CheckStopLoss(%v)=%q, expected %q", tt.price, got, tt.want)
			}
		})
	}
}

func TestCheckStopLossWhileFlat(t *testing.T) {
	m := NewManager(testConfig(), nil)
	if got := m.CheckStopLoss(21000); got != "" {
		t.Fatalf("flat CheckStopLoss=%q, expected none", got)
	}
}

// Two sequential round-trips each losing 100 points must halt trading
// exactly after the second exit.
func TestDailyLossHalt(t *testing.T) {
	m := NewManager(testConfig(), nil)

	m.OnEntry(21000, "long")
	if pnl := m.OnExit(20900); pnl != -100 {
		t.Fatalf("first exit pnl=%v, expected -100", pnl)
	}
	if ok, _ := m.CanTrade(); !ok {
		t.Fatalf("halted after first loss, expected still tradable")
	}

	m.OnEntry(21000, "long")
	if pnl := m.OnExit(20900); pnl != -100 {
		t.Fatalf("second exit pnl=%v, expected -100", pnl)
	}
	if ok, why := m.CanTrade(); ok {
		t.Fatalf("expected halt after -200 daily, got tradable (%s)", why)
	}
	if st := m.GetState(); st.HaltReason != string(DailyLossLimit) {
		t.Fatalf("HaltReason=%q, expected %q", st.HaltReason, DailyLossLimit)
	}

	m.ResetDaily()
	if ok, _ := m.CanTrade(); !ok {
		t.Fatalf("ResetDaily did not lift the halt")
	}
	if st := m.GetState(); st.DailyPnL != 0 || st.DailyTradeCount != 0 {
		t.Fatalf("daily counters not reset: %+v", st)
	}
}

func TestDailyTradeLimit(t *testing.T) {
	cfg := testConfig()
	cfg.DailyMaxTrades = 2
	m := NewManager(cfg, nil)

	m.OnEntry(21000, "long")
	m.OnExit(21010)
	m.OnEntry(21010, "short")
	m.OnExit(21000)

	if ok, _ := m.CanTrade(); ok {
		t.Fatalf("expected trade-count halt after %d trades", cfg.DailyMaxTrades)
	}
	if st := m.GetState(); st.HaltReason != string(DailyTradeLimit) {
		t.Fatalf("HaltReason=%q, expected %q", st.HaltReason, DailyTradeLimit)
	}
}

func TestShortPnLConvention(t *testing.T) {
	m := NewManager(testConfig(), nil)
	m.OnEntry(21000, "short")
	if pnl := m.OnExit(20950); pnl != 50 {
		t.Fatalf("short exit pnl=%v, expected 50", pnl)
	}
}
