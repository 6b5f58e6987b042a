package verify

import (
	"context"
	"log"
	"time"

	"futures-core/internal/events"
	"futures-core/internal/execution"
	"futures-core/pkg/db"
)

// Result is published on the bus once polling reaches a terminal status, or
// with the last observed non-terminal status when polling gives up. Listeners
// must treat a non-terminal Status as "outcome unknown" and reconcile against
// broker truth.
type Result struct {
	RecordID     string
	OrderID      string
	Status       Status
	FillQuantity int
	FillPrice    float64
}

// Verifier confirms an order's true fill status out-of-band from the request
// path that submitted it. One Verify call per submitted order.
type Verifier struct {
	client *execution.Client
	store  *db.Database
	bus    *events.Bus

	grace       time.Duration // settle time before the first poll
	interval    time.Duration
	maxAttempts int
}

// NewVerifier creates a verifier. bus may be nil.
func NewVerifier(client *execution.Client, store *db.Database, bus *events.Bus,
	grace, interval time.Duration, maxAttempts int) *Verifier {
	if grace <= 0 {
		grace = 2 * time.Second
	}
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if maxAttempts <= 0 {
		maxAttempts = 120
	}
	return &Verifier{
		client:      client,
		store:       store,
		bus:         bus,
		grace:       grace,
		interval:    interval,
		maxAttempts: maxAttempts,
	}
}

// Verify polls the order status until a terminal mapped status or attempt
// exhaustion, updating the durable record on every poll. Blocks; run in its
// own goroutine. On exhaustion the record keeps its last non-terminal state
// and the give-up Result is still published so listeners can fall back to
// broker reconciliation instead of waiting forever.
func (v *Verifier) Verify(ctx context.Context, recordID, orderID, seqno string) {
	select {
	case <-ctx.Done():
		return
	case <-time.After(v.grace):
	}

	lastStatus := StatusSubmitted

	for attempt := 1; attempt <= v.maxAttempts; attempt++ {
		st, err := v.client.CheckOrderStatus(ctx, orderID, seqno)
		if err != nil {
			// Timeouts and transport errors count against the attempt
			// budget; the order's true state is resolved on a later poll.
			log.Printf("⚠️ fill verify poll %d/%d failed for %s: %v", attempt, v.maxAttempts, orderID, err)
		} else {
			mapped := MapExchangeStatus(st.Status)
			if mapped != StatusUnknown {
				lastStatus = mapped
			} else {
				log.Printf("⚠️ unknown exchange status %q for %s", st.Status, orderID)
			}

			if err := v.store.UpdateOrderFill(ctx, recordID, string(lastStatus), st.Status,
				st.DealQuantity, st.FillAvgPrice, st.CancelQuantity); err != nil {
				log.Printf("⚠️ order record update failed for %s: %v", recordID, err)
			}

			if mapped.IsTerminal() {
				log.Printf("✓ Order %s verified: %s (filled %d @ %.1f)",
					orderID, mapped, st.DealQuantity, st.FillAvgPrice)
				if v.bus != nil {
					v.bus.Publish(events.OrderVerified, Result{
						RecordID:     recordID,
						OrderID:      orderID,
						Status:       mapped,
						FillQuantity: st.DealQuantity,
						FillPrice:    st.FillAvgPrice,
					})
				}
				return
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(v.interval):
		}
	}

	log.Printf("⚠️ fill verification gave up on %s after %d attempts, last status %s",
		orderID, v.maxAttempts, lastStatus)
	if v.bus != nil {
		v.bus.Publish(events.OrderVerified, Result{
			RecordID: recordID,
			OrderID:  orderID,
			Status:   lastStatus,
		})
	}
}
