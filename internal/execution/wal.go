package execution

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"
)

// PersistentQueue wraps Queue with a write-ahead log for crash recovery.
// Requests are persisted before dispatch; a restart replays requests that
// never completed, so an accepted order request is never silently lost.
type PersistentQueue struct {
	queue      *Queue
	walPath    string
	walFile    *os.File
	mu         sync.Mutex
	metrics    PersistentQueueMetrics
	processing map[string]bool
	closed     bool
}

// PersistentQueueMetrics tracks persistence statistics.
type PersistentQueueMetrics struct {
	Written   uint64
	Recovered uint64
	Completed uint64
	Failed    uint64
}

// walEntry is a single WAL line.
type walEntry struct {
	Action    string    `json:"action"` // "ENQUEUE" or "COMPLETE"
	Request   Request   `json:"request"`
	Timestamp time.Time `json:"timestamp"`
}

// NewPersistentQueue creates a persistent queue with its WAL under walDir.
func NewPersistentQueue(walDir string, queueSize int) (*PersistentQueue, error) {
	if err := os.MkdirAll(walDir, 0755); err != nil {
		return nil, fmt.Errorf("create WAL directory: %w", err)
	}

	walPath := filepath.Join(walDir, "execution_queue.wal")
	file, err := os.OpenFile(walPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("open WAL file: %w", err)
	}

	return &PersistentQueue{
		queue:      NewQueue(queueSize),
		walPath:    walPath,
		walFile:    file,
		processing: make(map[string]bool),
	}, nil
}

// Recover replays pending requests from the WAL after restart. Call before
// the worker starts draining.
func (pq *PersistentQueue) Recover() error {
	pq.mu.Lock()
	defer pq.mu.Unlock()

	file, err := os.Open(pq.walPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open WAL for recovery: %w", err)
	}
	defer file.Close()

	enqueued := make(map[string]Request)
	completed := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)

	for scanner.Scan() {
		var entry walEntry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			log.Printf("⚠️ WAL parse error (skipping): %v", err)
			continue
		}
		switch entry.Action {
		case "ENQUEUE":
			enqueued[entry.Request.ID] = entry.Request
		case "COMPLETE":
			completed[entry.Request.ID] = true
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("WAL scan error: %w", err)
	}

	recoveredCount := 0
	for id, req := range enqueued {
		if !completed[id] {
			pq.processing[id] = true
			pq.queue.Enqueue(req)
			recoveredCount++
		}
	}

	atomic.AddUint64(&pq.metrics.Recovered, uint64(recoveredCount))
	if recoveredCount > 0 {
		log.Printf("🔄 Recovered %d pending requests from WAL", recoveredCount)
	}

	if recoveredCount > 0 || len(completed) > 10 {
		if err := pq.compactWAL(enqueued, completed); err != nil {
			log.Printf("⚠️ WAL compaction failed: %v", err)
		}
	}

	return nil
}

// compactWAL rewrites the WAL with only pending entries.
func (pq *PersistentQueue) compactWAL(enqueued map[string]Request, completed map[string]bool) error {
	tempPath := pq.walPath + ".tmp"
	tempFile, err := os.Create(tempPath)
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(tempFile)
	kept := 0
	for id, req := range enqueued {
		if !completed[id] {
			entry := walEntry{Action: "ENQUEUE", Request: req, Timestamp: req.CreatedAt}
			if err := encoder.Encode(entry); err != nil {
				tempFile.Close()
				os.Remove(tempPath)
				return err
			}
			kept++
		}
	}

	if err := tempFile.Sync(); err != nil {
		tempFile.Close()
		os.Remove(tempPath)
		return err
	}
	tempFile.Close()

	pq.walFile.Close()
	if err := os.Rename(tempPath, pq.walPath); err != nil {
		return err
	}

	pq.walFile, err = os.OpenFile(pq.walPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}

	log.Printf("✓ WAL compacted: kept %d pending entries", kept)
	return nil
}

// Enqueue adds a request with WAL persistence. Durability first: the entry
// is fsynced before the request becomes visible to the worker.
func (pq *PersistentQueue) Enqueue(r Request) bool {
	pq.mu.Lock()
	if pq.closed {
		pq.mu.Unlock()
		return false
	}

	entry := walEntry{Action: "ENQUEUE", Request: r, Timestamp: time.Now()}
	data, err := json.Marshal(entry)
	if err != nil {
		pq.mu.Unlock()
		atomic.AddUint64(&pq.metrics.Failed, 1)
		log.Printf("❌ WAL marshal failed: %v", err)
		return false
	}

	if _, err := pq.walFile.Write(append(data, '\n')); err != nil {
		pq.mu.Unlock()
		atomic.AddUint64(&pq.metrics.Failed, 1)
		log.Printf("❌ WAL write failed: %v", err)
		return false
	}
	if err := pq.walFile.Sync(); err != nil {
		pq.mu.Unlock()
		atomic.AddUint64(&pq.metrics.Failed, 1)
		log.Printf("❌ WAL sync failed: %v", err)
		return false
	}

	pq.processing[r.ID] = true
	atomic.AddUint64(&pq.metrics.Written, 1)
	pq.mu.Unlock()

	return pq.queue.Enqueue(r)
}

// MarkComplete records request completion in the WAL.
func (pq *PersistentQueue) MarkComplete(requestID string) {
	pq.mu.Lock()
	defer pq.mu.Unlock()

	if !pq.processing[requestID] {
		return
	}

	entry := walEntry{Action: "COMPLETE", Request: Request{ID: requestID}, Timestamp: time.Now()}
	data, _ := json.Marshal(entry)
	pq.walFile.Write(append(data, '\n'))
	// No sync here; a crash re-runs the request, which reconciliation absorbs.

	delete(pq.processing, requestID)
	atomic.AddUint64(&pq.metrics.Completed, 1)
}

// Drain consumes requests with automatic completion tracking.
func (pq *PersistentQueue) Drain(ctx context.Context, handler func(Request)) {
	pq.queue.Drain(ctx, func(r Request) {
		handler(r)
		pq.MarkComplete(r.ID)
	})
}

// GetMetrics returns persistence metrics.
func (pq *PersistentQueue) GetMetrics() PersistentQueueMetrics {
	return PersistentQueueMetrics{
		Written:   atomic.LoadUint64(&pq.metrics.Written),
		Recovered: atomic.LoadUint64(&pq.metrics.Recovered),
		Completed: atomic.LoadUint64(&pq.metrics.Completed),
		Failed:    atomic.LoadUint64(&pq.metrics.Failed),
	}
}

// Len returns queue depth.
func (pq *PersistentQueue) Len() int {
	return pq.queue.Len()
}

// Closed reports whether Close has been called.
func (pq *PersistentQueue) Closed() bool {
	pq.mu.Lock()
	defer pq.mu.Unlock()
	return pq.closed
}

// Close closes the queue and the WAL file.
func (pq *PersistentQueue) Close() {
	pq.mu.Lock()
	defer pq.mu.Unlock()

	pq.closed = true
	pq.queue.Close()
	if pq.walFile != nil {
		pq.walFile.Sync()
		pq.walFile.Close()
	}
	log.Printf("✓ PersistentQueue closed: written=%d completed=%d",
		atomic.LoadUint64(&pq.metrics.Written),
		atomic.LoadUint64(&pq.metrics.Completed))
}
