package position

import (
	"testing"
	"time"
)

func newTestTracker() *Tracker {
	return NewTracker("MXFR1", 2, time.Minute, nil)
}

func TestContinuousContractMatcher(t *testing.T) {
	tests := []struct {
		symbol string
		code   string
		want   bool
	}{
		{"MXFR1", "MXFR1", true},
		{"MXFR1", "MXFH6", true},
		{"MXFR1", "MXF202606", true},
		{"MXFR1", "TXFH6", false},
		{"TXFH6", "TXFH6", true},
		{"TXFH6", "TXFM6", false},
	}
	for _, tt := range tests {
		if got := ContinuousContractMatcher(tt.symbol, tt.code); got != tt.want {
			t.Fatalf("match(%s, %s)=%v, expected %v", tt.symbol, tt.code, got, tt.want)
		}
	}
}

func TestOpenClosePnL(t *testing.T) {
	tr := newTestTracker()

	tr.OpenPosition("long", 21000)
	if tr.IsFlat() {
		t.Fatalf("expected held position")
	}
	if pnl := tr.UpdateUnrealizedPnL(21030); pnl != 30 {
		t.Fatalf("unrealized=%v, expected 30", pnl)
	}
	if pnl := tr.ClosePosition(21050); pnl != 50 {
		t.Fatalf("realized=%v, expected 50", pnl)
	}
	if !tr.IsFlat() {
		t.Fatalf("expected flat after close")
	}

	tr.OpenPosition("short", 21000)
	if pnl := tr.ClosePosition(21040); pnl != -40 {
		t.Fatalf("short realized=%v, expected -40", pnl)
	}
}

// Broker truth wins: a broker-flat report force-flattens local belief.
func TestSyncWithBrokerFlattens(t *testing.T) {
	tr := newTestTracker()
	tr.OpenPosition("long", 21000)

	corrected := tr.SyncWithBroker(nil)
	if !corrected {
		t.Fatalf("expected a correction")
	}
	if !tr.IsFlat() {
		t.Fatalf("expected flat after broker-empty sync, got %s", tr.Direction())
	}
}

func TestSyncWithBrokerOverwritesDirection(t *testing.T) {
	tr := newTestTracker()
	tr.OpenPosition("long", 21000)

	corrected := tr.SyncWithBroker([]BrokerPosition{
		{Code: "MXFH6", Direction: "short", Quantity: 3, Price: 20980},
	})
	if !corrected {
		t.Fatalf("expected a correction")
	}
	st := tr.GetState()
	if st.Direction != "short" || st.EntryPrice != 20980 || st.Quantity != 3 {
		t.Fatalf("state after sync=%+v, expected broker values", st)
	}
}

func TestSyncWithBrokerAgreement(t *testing.T) {
	tr := newTestTracker()
	tr.OpenPosition("long", 21000)

	corrected := tr.SyncWithBroker([]BrokerPosition{
		{Code: "MXFH6", Direction: "long", Quantity: 2, Price: 21000},
	})
	if corrected {
		t.Fatalf("agreeing sync reported a correction")
	}
}

func TestShouldSyncGate(t *testing.T) {
	tr := NewTracker("MXFR1", 2, time.Hour, nil)
	if !tr.ShouldSync() {
		t.Fatalf("first sync should be due immediately")
	}
	tr.SyncWithBroker(nil)
	if tr.ShouldSync() {
		t.Fatalf("sync due again immediately after syncing")
	}
}
