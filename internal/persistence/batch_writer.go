package persistence

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"perp-trader/pkg/db"
)

// WriteOp is one journal write executed inside a batch transaction.
type WriteOp struct {
	Name string
	Exec func(ctx context.Context, q *db.Queries) error
}

// BatchWriterMetrics are cumulative batch statistics.
type BatchWriterMetrics struct {
	TotalWrites   uint64    `json:"total_writes"`
	TotalBatches  uint64    `json:"total_batches"`
	TotalErrors   uint64    `json:"total_errors"`
	LastBatchSize int       `json:"last_batch_size"`
	LastFlushTime time.Time `json:"last_flush_time"`
}

// BatchWriter buffers journal writes and commits them in one transaction
// when the buffer reaches maxSize, on every interval, and on Close.
type BatchWriter struct {
	database *db.Database
	maxSize  int
	log      *logrus.Entry

	mu      sync.Mutex // guards pending, stats, closed
	pending []WriteOp
	stats   BatchWriterMetrics
	closed  bool

	commitMu sync.Mutex // one transaction at a time
	stop     chan struct{}
	loopDone chan struct{}
	stopOnce sync.Once
}

// NewBatchWriter starts a writer over database. Zero maxSize or interval
// fall back to 50 ops and 500ms.
func NewBatchWriter(database *db.Database, maxSize int, interval time.Duration, log *logrus.Entry) *BatchWriter {
	if maxSize <= 0 {
		maxSize = 50
	}
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	bw := &BatchWriter{
		database: database,
		maxSize:  maxSize,
		log:      log.WithField("component", "batch_writer"),
		stop:     make(chan struct{}),
		loopDone: make(chan struct{}),
	}
	go bw.loop(interval)
	return bw
}

// Write queues op. It commits synchronously once the buffer is full or the
// writer has been closed.
func (bw *BatchWriter) Write(op WriteOp) {
	bw.mu.Lock()
	bw.pending = append(bw.pending, op)
	full := len(bw.pending) >= bw.maxSize || bw.closed
	bw.mu.Unlock()

	if full {
		if err := bw.Flush(); err != nil {
			bw.log.WithError(err).Warn("flush failed")
		}
	}
}

// Flush commits everything buffered so far.
func (bw *BatchWriter) Flush() error {
	bw.commitMu.Lock()
	defer bw.commitMu.Unlock()

	bw.mu.Lock()
	ops := bw.pending
	bw.pending = nil
	bw.mu.Unlock()
	if len(ops) == 0 {
		return nil
	}

	failed, err := bw.commit(ops)

	bw.mu.Lock()
	bw.stats.TotalWrites += uint64(len(ops))
	bw.stats.TotalBatches++
	bw.stats.TotalErrors += uint64(failed)
	bw.stats.LastBatchSize = len(ops)
	bw.stats.LastFlushTime = time.Now()
	bw.mu.Unlock()
	return err
}

// commit runs ops in one transaction. A failing op is logged and skipped;
// only transaction failures abort the batch.
func (bw *BatchWriter) commit(ops []WriteOp) (failed int, err error) {
	ctx := context.Background()
	tx, err := bw.database.DB.BeginTx(ctx, nil)
	if err != nil {
		return 1, fmt.Errorf("begin journal batch: %w", err)
	}

	q := bw.database.Queries().WithTx(tx)
	for _, op := range ops {
		if opErr := op.Exec(ctx, q); opErr != nil {
			failed++
			bw.log.WithError(opErr).WithField("op", op.Name).Warn("journal write failed")
		}
	}

	if err := tx.Commit(); err != nil {
		return failed + 1, fmt.Errorf("commit journal batch: %w", err)
	}
	bw.log.WithFields(logrus.Fields{"ops": len(ops), "failed": failed}).Debug("journal batch committed")
	return failed, nil
}

func (bw *BatchWriter) loop(interval time.Duration) {
	defer close(bw.loopDone)
	tick := time.NewTicker(interval)
	defer tick.Stop()

	for {
		select {
		case <-tick.C:
			if err := bw.Flush(); err != nil {
				bw.log.WithError(err).Warn("periodic flush failed")
			}
		case <-bw.stop:
			return
		}
	}
}

// Pending returns the number of buffered ops.
func (bw *BatchWriter) Pending() int {
	bw.mu.Lock()
	defer bw.mu.Unlock()
	return len(bw.pending)
}

// GetMetrics returns a copy of the batch statistics.
func (bw *BatchWriter) GetMetrics() BatchWriterMetrics {
	bw.mu.Lock()
	defer bw.mu.Unlock()
	return bw.stats
}

// Close stops the periodic flush and commits what is pending. Writes after
// Close are committed immediately. Close is idempotent.
func (bw *BatchWriter) Close() error {
	bw.stopOnce.Do(func() {
		bw.mu.Lock()
		bw.closed = true
		bw.mu.Unlock()
		close(bw.stop)
	})
	<-bw.loopDone
	return bw.Flush()
}
