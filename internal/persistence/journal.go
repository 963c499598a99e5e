package persistence

import (
	"context"
	"time"

	"perp-trader/internal/events"
	"perp-trader/pkg/db"
)

// Journal records signals, orders, cycles and status changes through a BatchWriter.
// It is write-only: nothing is read back to restore engine state.
type Journal struct {
	w   *BatchWriter
	now func() time.Time
}

// NewJournal wraps w.
func NewJournal(w *BatchWriter) *Journal {
	return &Journal{w: w, now: func() time.Time { return time.Now().UTC() }}
}

func (j *Journal) RecordSignal(e events.SignalEvent) {
	rec := db.SignalRecord{
		CycleID:   e.CycleID,
		Symbol:    e.Symbol,
		Candidate: e.Candidate,
		Decision:  e.Decision,
		Price:     e.Price,
		Histogram: e.Histogram,
		HasDepth:  e.HasDepth,
		HasTicker: e.HasTicker,
		CreatedAt: j.now(),
	}
	j.w.Write(WriteOp{Name: "signal", Exec: func(ctx context.Context, q *db.Queries) error {
		return q.InsertSignal(ctx, rec)
	}})
}

func (j *Journal) RecordOrderSubmitted(e events.OrderEvent) {
	rec := db.OrderRecord{
		ClientID:   e.ClientID,
		Symbol:     e.Symbol,
		Side:       e.Side,
		Qty:        e.Qty,
		Price:      e.Price,
		TakeProfit: e.TakeProfit,
		StopLoss:   e.StopLoss,
		Status:     db.OrderSubmitted,
		CreatedAt:  j.now(),
	}
	j.w.Write(WriteOp{Name: "order", Exec: func(ctx context.Context, q *db.Queries) error {
		return q.InsertOrder(ctx, rec)
	}})
}

func (j *Journal) RecordOrderResult(e events.OrderEvent, accepted bool) {
	status := db.OrderAccepted
	if !accepted {
		status = db.OrderRejected
	}
	at := j.now()
	j.w.Write(WriteOp{Name: "order_result", Exec: func(ctx context.Context, q *db.Queries) error {
		return q.UpdateOrderResult(ctx, e.ClientID, e.OrderID, status, e.Error, at)
	}})
}

func (j *Journal) RecordCycle(e events.CycleSummary) {
	rec := db.CycleRecord{
		ID:        e.CycleID,
		StartedAt: e.Started.UTC(),
		Duration:  e.Duration,
		Symbols:   e.Symbols,
		Orders:    e.Orders,
		Errors:    e.Errors,
	}
	j.w.Write(WriteOp{Name: "cycle", Exec: func(ctx context.Context, q *db.Queries) error {
		return q.InsertCycle(ctx, rec)
	}})
}

func (j *Journal) RecordStatus(e events.StatusChange) {
	rec := db.StatusRecord{Symbol: e.Symbol, Status: e.Status, Reason: e.Reason, CreatedAt: j.now()}
	j.w.Write(WriteOp{Name: "status", Exec: func(ctx context.Context, q *db.Queries) error {
		return q.InsertStatusChange(ctx, rec)
	}})
}

// Flush writes everything pending.
func (j *Journal) Flush() error { return j.w.Flush() }
