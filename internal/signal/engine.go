package signal

import (
	"fmt"

	"futures-core/internal/indicators"
)

// Action is the directional decision of one evaluation.
type Action string

const (
	Buy   Action = "buy"
	Sell  Action = "sell"
	Close Action = "close"
	None  Action = "none"
)

// Direction mirrors the held position when evaluating.
type Direction string

const (
	Long  Direction = "long"
	Short Direction = "short"
	Flat  Direction = "flat"
)

// TradeSignal is the output of one evaluation. Created fresh each time, never
// persisted.
type TradeSignal struct {
	Action Action
	Reason string
	FastMA float64
	SlowMA float64
}

// Engine evaluates a dual-SMA crossover. It is stateless: identical inputs
// always produce identical output.
type Engine struct {
	fastPeriod int
	slowPeriod int
}

// NewEngine creates a crossover engine with the given SMA periods.
func NewEngine(fastPeriod, slowPeriod int) *Engine {
	return &Engine{fastPeriod: fastPeriod, slowPeriod: slowPeriod}
}

// Evaluate computes the crossover decision from the close history and the
// currently held direction. Needs slowPeriod+1 closes so the previous
// fast-slow difference is defined.
//
// A golden cross is prevDiff <= 0 && currDiff > 0; a death cross is
// prevDiff >= 0 && currDiff < 0. Ties count as not-yet-crossed on one side
// only, so a flat difference never double-fires.
func (e *Engine) Evaluate(closes []float64, held Direction) TradeSignal {
	if len(closes) < e.slowPeriod+1 {
		return TradeSignal{
			Action: None,
			Reason: fmt.Sprintf("insufficient history: %d/%d closes", len(closes), e.slowPeriod+1),
		}
	}

	currFast, _ := indicators.SMA(closes, e.fastPeriod)
	currSlow, _ := indicators.SMA(closes, e.slowPeriod)
	prevFast, _ := indicators.SMA(closes[:len(closes)-1], e.fastPeriod)
	prevSlow, _ := indicators.SMA(closes[:len(closes)-1], e.slowPeriod)

	currDiff := currFast - currSlow
	prevDiff := prevFast - prevSlow

	goldenCross := prevDiff <= 0 && currDiff > 0
	deathCross := prevDiff >= 0 && currDiff < 0

	sig := TradeSignal{Action: None, FastMA: currFast, SlowMA: currSlow}

	switch {
	case goldenCross:
		switch held {
		case Flat:
			sig.Action = Buy
			sig.Reason = "golden cross"
		case Short:
			sig.Action = Close
			sig.Reason = "golden cross against short"
		default:
			sig.Reason = "golden cross, already long"
		}
	case deathCross:
		switch held {
		case Flat:
			sig.Action = Sell
			sig.Reason = "death cross"
		case Long:
			sig.Action = Close
			sig.Reason = "death cross against long"
		default:
			sig.Reason = "death cross, already short"
		}
	default:
		sig.Reason = "no cross"
	}

	return sig
}
