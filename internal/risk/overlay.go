package risk

import "perp-trader/pkg/exchanges/common"

// Fixed bracket multipliers: 10% target, 5% stop.
const (
	TakeProfitPct = 0.10
	StopLossPct   = 0.05
)

// Bounds are the take-profit and stop-loss trigger prices for an entry.
type Bounds struct {
	TakeProfit float64 `json:"take_profit"`
	StopLoss   float64 `json:"stop_loss"`
}

// Overlay computes the bracket for an entry at price.
func Overlay(side common.Side, price float64) Bounds {
	if side == common.SideSell {
		return Bounds{
			TakeProfit: price * (1 - TakeProfitPct),
			StopLoss:   price * (1 + StopLossPct),
		}
	}
	return Bounds{
		TakeProfit: price * (1 + TakeProfitPct),
		StopLoss:   price * (1 - StopLossPct),
	}
}

// ProtectionOrders returns the take-profit and stop-loss attachments for b.
// Both close the whole position and trigger on the mark price.
func ProtectionOrders(b Bounds) (takeProfit, stopLoss *common.ProtectionOrder) {
	takeProfit = &common.ProtectionOrder{
		Type:          common.OrderTypeTakeProfitMarket,
		StopPrice:     b.TakeProfit,
		WorkingType:   common.WorkingTypeMarkPrice,
		ClosePosition: true,
	}
	stopLoss = &common.ProtectionOrder{
		Type:          common.OrderTypeStopMarket,
		StopPrice:     b.StopLoss,
		WorkingType:   common.WorkingTypeMarkPrice,
		ClosePosition: true,
	}
	return takeProfit, stopLoss
}

// BuildOrder shapes a market entry for cfg at the configured minimum quantity,
// with the bracket for price attached.
func BuildOrder(cfg common.SymbolConfig, side common.Side, price float64, clientID string) (common.OrderRequest, Bounds) {
	b := Overlay(side, price)
	tp, sl := ProtectionOrders(b)
	return common.OrderRequest{
		Symbol:       cfg.Symbol,
		Side:         side,
		Type:         common.OrderTypeMarket,
		Qty:          cfg.MinQty,
		QtyPrecision: cfg.QtyPrecision,
		PositionSide: common.PositionSideLong,
		ClientID:     clientID,
		TakeProfit:   tp,
		StopLoss:     sl,
	}, b
}
