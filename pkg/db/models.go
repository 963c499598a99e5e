package db

import "time"

// Order statuses recorded in the journal.
const (
	OrderSubmitted = "SUBMITTED"
	OrderAccepted  = "ACCEPTED"
	OrderRejected  = "REJECTED"
)

// OrderRecord is one order attempt.
type OrderRecord struct {
	ClientID   string    `json:"client_id"`
	OrderID    string    `json:"order_id"`
	Symbol     string    `json:"symbol"`
	Side       string    `json:"side"`
	Qty        float64   `json:"qty"`
	Price      float64   `json:"price"`
	TakeProfit float64   `json:"take_profit"`
	StopLoss   float64   `json:"stop_loss"`
	Status     string    `json:"status"`
	Error      string    `json:"error"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// SignalRecord is one strategy verdict.
type SignalRecord struct {
	CycleID   string    `json:"cycle_id"`
	Symbol    string    `json:"symbol"`
	Candidate string    `json:"candidate"`
	Decision  string    `json:"decision"`
	Price     float64   `json:"price"`
	Histogram float64   `json:"histogram"`
	HasDepth  bool      `json:"has_depth"`
	HasTicker bool      `json:"has_ticker"`
	CreatedAt time.Time `json:"created_at"`
}

// CycleRecord summarizes one monitoring cycle.
type CycleRecord struct {
	ID        string
	StartedAt time.Time
	Duration  time.Duration
	Symbols   int
	Orders    int
	Errors    int
}

// StatusRecord is a symbol lifecycle transition.
type StatusRecord struct {
	Symbol    string
	Status    string
	Reason    string
	CreatedAt time.Time
}
