package common

import (
	"context"
	"time"
)

// Gateway abstracts the perpetual-swap venue the engine trades on.
// Zero start/end/limit arguments mean the parameter is omitted.
type Gateway interface {
	GetCandles(ctx context.Context, symbol, interval string, start, end time.Time, limit int) ([]Candle, error)
	GetDepth(ctx context.Context, symbol string, limit int) (DepthSnapshot, error)
	GetTicker(ctx context.Context, symbol string) ([]Ticker, error)
	PlaceOrder(ctx context.Context, req OrderRequest) (OrderResult, error)
}

// PriceSource is implemented by gateways that can quote a latest trade price.
type PriceSource interface {
	GetLatestPrice(ctx context.Context, symbol string) (float64, error)
}
