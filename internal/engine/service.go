// Package engine runs the trading loop: it fetches market data per symbol,
// feeds the indicator engine, asks the momentum strategy for a decision and
// places bracketed orders through the venue gateway.
package engine

import (
	"context"

	"perp-trader/internal/state"
	"perp-trader/pkg/cache"
	"perp-trader/pkg/exchanges/common"
)

// Service is the contract exposed to the API and CLI layers.
type Service interface {
	// Symbol management
	AddSymbol(cfg common.SymbolConfig) error
	RemoveSymbol(symbol string) bool
	GetStatus(symbol string) (state.SymbolStatus, bool)
	ListStatuses() []state.SymbolStatus
	SetStatus(symbol string, status state.TradingStatus) error

	// Trading
	PlaceOrder(ctx context.Context, symbol string, side common.Side, refPrice float64) (OrderOutcome, error)
	ResolvePrice(ctx context.Context, symbol string) (float64, error)

	// Market data
	LatestPrices() map[string]cache.Quote

	// System
	GetSystemStatus() SystemStatus
}

var _ Service = (*Orchestrator)(nil)
