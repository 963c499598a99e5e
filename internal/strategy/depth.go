package strategy

import (
	"math"

	"perp-trader/pkg/exchanges/common"
)

// Order book pressure thresholds.
const (
	// Bids priced above refPrice*DepthBidBand are counted.
	DepthBidBand = 0.99
	// Asks priced below refPrice*DepthAskBand are counted.
	DepthAskBand = 1.01
	// One side must exceed the other by this ratio to count as strong.
	DepthPressureRatio = 1.2
)

// DepthPressure is the near-price volume on each side of the book.
type DepthPressure struct {
	BidVolume float64
	AskVolume float64
	BuyRatio  float64 // bid/ask; +Inf when only bids, 0 when no bids
	SellRatio float64 // ask/bid; +Inf when only asks, 0 when no asks
}

// MeasureDepth sums the volume within 1% of refPrice on each side.
func MeasureDepth(d common.DepthSnapshot, refPrice float64) DepthPressure {
	var p DepthPressure
	for _, lv := range d.Bids {
		if lv.Price > refPrice*DepthBidBand {
			p.BidVolume += lv.Qty
		}
	}
	for _, lv := range d.Asks {
		if lv.Price < refPrice*DepthAskBand {
			p.AskVolume += lv.Qty
		}
	}
	p.BuyRatio = ratio(p.BidVolume, p.AskVolume)
	p.SellRatio = ratio(p.AskVolume, p.BidVolume)
	return p
}

// ratio is num/den with a one-sided book mapped to +Inf and an empty one to 0.
func ratio(num, den float64) float64 {
	switch {
	case den > 0:
		return num / den
	case num > 0:
		return math.Inf(1)
	default:
		return 0
	}
}

// AnalyzeDepth reports whether near-price bids or asks dominate the book.
func AnalyzeDepth(d common.DepthSnapshot, refPrice float64) (strongBuy, strongSell bool) {
	p := MeasureDepth(d, refPrice)
	return p.BuyRatio > DepthPressureRatio, p.SellRatio > DepthPressureRatio
}
