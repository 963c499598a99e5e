// Package db stores the trader's write-only audit journal in SQLite.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

var ErrNotFound = errors.New("record not found")

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Queries provides journal inserts and read-back for display.
type Queries struct {
	db DBTX
}

// NewQueries creates a Queries instance.
func NewQueries(db DBTX) *Queries {
	return &Queries{db: db}
}

// WithTx returns a Queries bound to tx.
func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

// ----------------------------------------
// Orders
// ----------------------------------------

// InsertOrder records a submitted order.
func (q *Queries) InsertOrder(ctx context.Context, o OrderRecord) error {
	if o.ClientID == "" {
		return errors.New("client_id is required")
	}
	if o.Status == "" {
		o.Status = OrderSubmitted
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC()
	}
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO orders (client_id, order_id, symbol, side, qty, price, take_profit, stop_loss, status, error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, o.ClientID, o.OrderID, o.Symbol, o.Side, o.Qty, o.Price, o.TakeProfit, o.StopLoss, o.Status, o.Error, o.CreatedAt, o.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

// UpdateOrderResult stores the venue outcome of an order.
func (q *Queries) UpdateOrderResult(ctx context.Context, clientID, orderID, status, errMsg string, at time.Time) error {
	if at.IsZero() {
		at = time.Now().UTC()
	}
	res, err := q.db.ExecContext(ctx, `
		UPDATE orders SET order_id = ?, status = ?, error = ?, updated_at = ?
		WHERE client_id = ?
	`, orderID, status, errMsg, at, clientID)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// RecentOrders returns the newest orders first, optionally filtered by symbol.
func (q *Queries) RecentOrders(ctx context.Context, symbol string, limit int) ([]OrderRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := q.db.QueryContext(ctx, `
		SELECT client_id, COALESCE(order_id, ''), symbol, side, qty, price, take_profit, stop_loss,
		       status, COALESCE(error, ''), created_at, updated_at
		FROM orders
		WHERE (? = '' OR symbol = ?)
		ORDER BY created_at DESC, client_id
		LIMIT ?
	`, symbol, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	var out []OrderRecord
	for rows.Next() {
		var o OrderRecord
		if err := rows.Scan(&o.ClientID, &o.OrderID, &o.Symbol, &o.Side, &o.Qty, &o.Price, &o.TakeProfit, &o.StopLoss,
			&o.Status, &o.Error, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// ----------------------------------------
// Signals
// ----------------------------------------

// InsertSignal records a strategy verdict.
func (q *Queries) InsertSignal(ctx context.Context, s SignalRecord) error {
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO signals (cycle_id, symbol, candidate, decision, price, histogram, has_depth, has_ticker, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, s.CycleID, s.Symbol, s.Candidate, s.Decision, s.Price, s.Histogram, s.HasDepth, s.HasTicker, s.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert signal: %w", err)
	}
	return nil
}

// RecentSignals returns the newest verdicts first, optionally filtered by symbol.
func (q *Queries) RecentSignals(ctx context.Context, symbol string, limit int) ([]SignalRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := q.db.QueryContext(ctx, `
		SELECT COALESCE(cycle_id, ''), symbol, candidate, decision, price, COALESCE(histogram, 0),
		       has_depth, has_ticker, created_at
		FROM signals
		WHERE (? = '' OR symbol = ?)
		ORDER BY id DESC
		LIMIT ?
	`, symbol, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("query signals: %w", err)
	}
	defer rows.Close()

	var out []SignalRecord
	for rows.Next() {
		var s SignalRecord
		if err := rows.Scan(&s.CycleID, &s.Symbol, &s.Candidate, &s.Decision, &s.Price, &s.Histogram,
			&s.HasDepth, &s.HasTicker, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan signal: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ----------------------------------------
// Cycles and status changes
// ----------------------------------------

// InsertCycle records a finished monitoring cycle.
func (q *Queries) InsertCycle(ctx context.Context, c CycleRecord) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO cycles (id, started_at, duration_ms, symbols, orders, errors)
		VALUES (?, ?, ?, ?, ?, ?)
	`, c.ID, c.StartedAt, c.Duration.Milliseconds(), c.Symbols, c.Orders, c.Errors)
	if err != nil {
		return fmt.Errorf("insert cycle: %w", err)
	}
	return nil
}

// CountCycles returns how many cycles have been journaled.
func (q *Queries) CountCycles(ctx context.Context) (int, error) {
	var n int
	if err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM cycles`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count cycles: %w", err)
	}
	return n, nil
}

// InsertStatusChange records a lifecycle transition.
func (q *Queries) InsertStatusChange(ctx context.Context, s StatusRecord) error {
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO status_changes (symbol, status, reason, created_at)
		VALUES (?, ?, ?, ?)
	`, s.Symbol, s.Status, s.Reason, s.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert status change: %w", err)
	}
	return nil
}
