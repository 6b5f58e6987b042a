package persistence

import (
	"context"
	"log"
	"time"

	"futures-core/internal/monitor"
	"futures-core/pkg/db"
)

// QuoteWriter batches ticks into periodic SQLite transactions so quote
// history never blocks the trading path. A batch that still fails after
// bounded retries is dropped; losing telemetry beats stalling the loop.
type QuoteWriter struct {
	store      *db.Database
	buffer     chan db.QuoteRow
	batchSize  int
	flushEvery time.Duration
	maxRetries int
}

// NewQuoteWriter creates a writer flushing every flushEvery or when
// batchSize rows accumulate.
func NewQuoteWriter(store *db.Database, batchSize int, flushEvery time.Duration) *QuoteWriter {
	if batchSize <= 0 {
		batchSize = 100
	}
	if flushEvery <= 0 {
		flushEvery = 5 * time.Second
	}
	return &QuoteWriter{
		store:      store,
		buffer:     make(chan db.QuoteRow, batchSize*4),
		batchSize:  batchSize,
		flushEvery: flushEvery,
		maxRetries: 3,
	}
}

// Add buffers one tick. Never blocks; ticks are dropped when the buffer is
// saturated.
func (w *QuoteWriter) Add(row db.QuoteRow) {
	select {
	case w.buffer <- row:
	default:
	}
}

// Run flushes until ctx is cancelled, then drains the remaining buffer.
// Blocks; run in its own goroutine.
func (w *QuoteWriter) Run(ctx context.Context) {
	ticker := time.NewTicker(w.flushEvery)
	defer ticker.Stop()

	batch := make([]db.QuoteRow, 0, w.batchSize)

	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case row := <-w.buffer:
					batch = append(batch, row)
				default:
					w.flush(batch)
					return
				}
			}
		case row := <-w.buffer:
			batch = append(batch, row)
			if len(batch) >= w.batchSize {
				w.flush(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				w.flush(batch)
				batch = batch[:0]
			}
		}
	}
}

func (w *QuoteWriter) flush(batch []db.QuoteRow) {
	if len(batch) == 0 {
		return
	}

	backoff := 100 * time.Millisecond
	for attempt := 0; attempt <= w.maxRetries; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := w.store.InsertQuotes(ctx, batch)
		cancel()
		if err == nil {
			return
		}
		log.Printf("⚠️ quote batch write failed (attempt %d/%d): %v", attempt+1, w.maxRetries+1, err)
		time.Sleep(backoff)
		backoff *= 2
	}

	monitor.QuoteBatchesDropped.Inc()
	log.Printf("❌ dropping quote batch of %d rows after retry exhaustion", len(batch))
}
