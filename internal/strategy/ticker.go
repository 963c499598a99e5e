package strategy

import "perp-trader/pkg/exchanges/common"

// 24h ticker thresholds, all in percent.
const (
	TickerChangeThreshold = 0.2
	TickerLowZone         = 20.0
	TickerHighZone        = 80.0
	TickerVolatilityGate  = 2.0
	TickerGatedLongBelow  = 40.0
	TickerGatedShortAbove = 60.0
	TickerMaxSpread       = 0.1
)

// TickerStats are percentages derived from a 24h ticker.
// Degenerate inputs (zero low, flat range, zero bid) yield Inf or NaN.
type TickerStats struct {
	Volatility    float64 // (high-low)/low
	Position      float64 // where last sits in [low, high]
	Spread        float64 // (ask-bid)/bid
	AveragePrice  float64 // quote volume / volume, 0 without volume
	ChangePercent float64
}

// MeasureTicker derives the ticker statistics used for confirmation and display.
func MeasureTicker(t common.Ticker) TickerStats {
	s := TickerStats{
		Volatility:    (t.High - t.Low) / t.Low * 100,
		Position:      (t.Last - t.Low) / (t.High - t.Low) * 100,
		Spread:        (t.Ask - t.Bid) / t.Bid * 100,
		ChangePercent: t.PriceChangePercent,
	}
	if t.Volume > 0 {
		s.AveragePrice = t.QuoteVolume / t.Volume
	}
	return s
}

// AnalyzeTicker classifies the 24h market as bullish and/or bearish.
// Rules apply in order: change, range position, volatility gate, spread veto.
func AnalyzeTicker(t common.Ticker) (bullish, bearish bool) {
	s := MeasureTicker(t)

	if s.ChangePercent > TickerChangeThreshold {
		bullish = true
	} else if s.ChangePercent < -TickerChangeThreshold {
		bearish = true
	}

	if s.Position < TickerLowZone {
		bullish = true
	} else if s.Position > TickerHighZone {
		bearish = true
	}

	if s.Volatility > TickerVolatilityGate {
		bullish = bullish && s.Position < TickerGatedLongBelow
		bearish = bearish && s.Position > TickerGatedShortAbove
	}

	// Wide spread means thin liquidity.
	if s.Spread > TickerMaxSpread {
		bullish, bearish = false, false
	}
	return bullish, bearish
}
