package strategy

import "perp-trader/internal/indicators"

// Signal is a decision emitted by a strategy.
type Signal string

const (
	SignalBuy  Signal = "BUY"
	SignalSell Signal = "SELL"
	SignalHold Signal = "HOLD"
)

// HistorySource provides the momentum history a strategy evaluates.
type HistorySource interface {
	History(symbol string) []indicators.MomentumPoint
}
