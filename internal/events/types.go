package events

import "time"

// Event enumerates topics published by the trader.
type Event string

const (
	EventPriceTick      Event = "price_tick"
	EventMomentum       Event = "momentum"
	EventStrategySignal Event = "strategy_signal"
	EventOrderSubmitted Event = "order.submitted"
	EventOrderAccepted  Event = "order.accepted"
	EventOrderRejected  Event = "order.rejected"
	EventPositionChange Event = "position_change"
	EventStatusChange   Event = "status_change"
	EventCycleCompleted Event = "cycle_completed"
)

// PriceTick is a candle close fed to the indicator engine.
type PriceTick struct {
	Symbol   string    `json:"symbol"`
	Close    float64   `json:"close"`
	OpenTime time.Time `json:"open_time"`
}

// MomentumUpdate carries a freshly computed momentum point.
type MomentumUpdate struct {
	Symbol    string  `json:"symbol"`
	Momentum  float64 `json:"momentum"`
	Signal    float64 `json:"signal"`
	Histogram float64 `json:"histogram"`
}

// SignalEvent is a strategy verdict for one symbol in one cycle.
type SignalEvent struct {
	CycleID   string  `json:"cycle_id"`
	Symbol    string  `json:"symbol"`
	Candidate string  `json:"candidate"`
	Decision  string  `json:"decision"`
	Price     float64 `json:"price"`
	Histogram float64 `json:"histogram"`
	HasDepth  bool    `json:"has_depth"`
	HasTicker bool    `json:"has_ticker"`
}

// OrderEvent describes an order attempt and its outcome.
type OrderEvent struct {
	ClientID   string  `json:"client_id"`
	OrderID    string  `json:"order_id,omitempty"`
	Symbol     string  `json:"symbol"`
	Side       string  `json:"side"`
	Qty        float64 `json:"qty"`
	Price      float64 `json:"price"`
	TakeProfit float64 `json:"take_profit"`
	StopLoss   float64 `json:"stop_loss"`
	Error      string  `json:"error,omitempty"`
}

// PositionChange is published when the stored position of a symbol is replaced.
type PositionChange struct {
	Symbol     string  `json:"symbol"`
	Side       string  `json:"side"`
	Quantity   float64 `json:"quantity"`
	EntryPrice float64 `json:"entry_price"`
	Leverage   int     `json:"leverage"`
}

// StatusChange is published when a symbol is added, removed or changes lifecycle state.
type StatusChange struct {
	Symbol string `json:"symbol"`
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

// CycleSummary closes out one monitoring cycle.
type CycleSummary struct {
	CycleID  string        `json:"cycle_id"`
	Started  time.Time     `json:"started"`
	Duration time.Duration `json:"duration"`
	Symbols  int           `json:"symbols"`
	Orders   int           `json:"orders"`
	Errors   int           `json:"errors"`
}
