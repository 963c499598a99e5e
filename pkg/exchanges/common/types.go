package common

import (
	"strings"
	"time"
)

// Side denotes order side.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// ParseSide accepts buy/sell in any case.
func ParseSide(s string) (Side, bool) {
	switch Side(strings.ToUpper(strings.TrimSpace(s))) {
	case SideBuy:
		return SideBuy, true
	case SideSell:
		return SideSell, true
	}
	return "", false
}

// OrderType denotes the order types the engine sends or attaches.
type OrderType string

const (
	OrderTypeMarket           OrderType = "MARKET"
	OrderTypeTakeProfitMarket OrderType = "TAKE_PROFIT_MARKET"
	OrderTypeStopMarket       OrderType = "STOP_MARKET"
)

// WorkingTypeMarkPrice triggers attached orders on the mark price.
const WorkingTypeMarkPrice = "MARK_PRICE"

// PositionSideLong is the only position side the engine submits.
const PositionSideLong = "LONG"

// SymbolConfig is the static trading configuration of one symbol.
type SymbolConfig struct {
	Symbol         string  `yaml:"symbol" json:"symbol"`
	BaseAsset      string  `yaml:"base_asset" json:"base_asset"`
	QuoteAsset     string  `yaml:"quote_asset" json:"quote_asset"`
	MinQty         float64 `yaml:"min_qty" json:"min_qty"`
	PricePrecision int     `yaml:"price_precision" json:"price_precision"`
	QtyPrecision   int     `yaml:"qty_precision" json:"qty_precision"`
	MinNotional    float64 `yaml:"min_notional" json:"min_notional"`
	Leverage       int     `yaml:"leverage" json:"leverage"`
}

// Validate checks the invariants every registered symbol must hold.
func (c SymbolConfig) Validate() error {
	switch {
	case strings.TrimSpace(c.Symbol) == "":
		return &ConfigError{Field: "symbol", Reason: "must not be empty"}
	case c.MinQty <= 0:
		return &ConfigError{Field: "min_qty", Reason: "must be positive"}
	case c.Leverage < 1:
		return &ConfigError{Field: "leverage", Reason: "must be at least 1"}
	case c.PricePrecision < 0:
		return &ConfigError{Field: "price_precision", Reason: "must not be negative"}
	case c.QtyPrecision < 0:
		return &ConfigError{Field: "qty_precision", Reason: "must not be negative"}
	case c.MinNotional < 0:
		return &ConfigError{Field: "min_notional", Reason: "must not be negative"}
	}
	return nil
}

// Candle is one OHLCV bar.
type Candle struct {
	OpenTime  time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
	CloseTime time.Time
}

// Level is a single order book price level.
type Level struct {
	Price float64
	Qty   float64
}

// DepthSnapshot is a point-in-time view of the order book.
type DepthSnapshot struct {
	Timestamp time.Time
	Asks      []Level
	Bids      []Level
}

// Ticker holds 24h rolling statistics. PriceChangePercent is already in percent.
type Ticker struct {
	Symbol             string
	PriceChangePercent float64
	High               float64
	Low                float64
	Last               float64
	Volume             float64
	QuoteVolume        float64
	Bid                float64
	Ask                float64
	Open               float64
	OpenTime           time.Time
	CloseTime          time.Time
}

// ProtectionOrder is a conditional order attached to an entry.
type ProtectionOrder struct {
	Type          OrderType `json:"type"`
	StopPrice     float64   `json:"stopPrice"`
	WorkingType   string    `json:"workingType"`
	ClosePosition bool      `json:"closePosition"`
}

// OrderRequest captures a market entry with its take-profit and stop-loss attachments.
type OrderRequest struct {
	Symbol       string
	Side         Side
	Type         OrderType
	Qty          float64
	QtyPrecision int // -1 renders the quantity unrounded
	PositionSide string
	ClientID     string
	TakeProfit   *ProtectionOrder
	StopLoss     *ProtectionOrder
}

// OrderResult returns the venue ack.
type OrderResult struct {
	OrderID  string
	ClientID string
	Status   string
	Symbol   string
	Side     Side
	Qty      float64
	Price    float64
}
