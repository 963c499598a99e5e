package bingx

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"

	"perp-trader/pkg/exchanges/common"
)

// PlaceOrder submits a market entry with take-profit and stop-loss attachments.
func (c *Client) PlaceOrder(ctx context.Context, req common.OrderRequest) (common.OrderResult, error) {
	params, err := orderParams(req)
	if err != nil {
		return common.OrderResult{}, err
	}

	var raw orderWire
	if err := c.doSigned(ctx, "order", "POST", pathOrder, params, &raw); err != nil {
		return common.OrderResult{}, err
	}
	o := raw.Order
	res := common.OrderResult{
		OrderID:  o.OrderID.String(),
		ClientID: o.ClientOrderID,
		Status:   o.Status,
		Symbol:   o.Symbol,
		Side:     common.Side(strings.ToUpper(o.Side)),
		Qty:      float64(o.Quantity),
		Price:    float64(o.Price),
	}
	if res.Symbol == "" {
		res.Symbol = req.Symbol
	}
	if res.Side == "" {
		res.Side = req.Side
	}
	if res.ClientID == "" {
		res.ClientID = req.ClientID
	}
	return res, nil
}

func orderParams(req common.OrderRequest) (url.Values, error) {
	if req.Qty <= 0 {
		return nil, &common.GatewayError{Op: "order", Message: "quantity must be positive"}
	}
	orderType := req.Type
	if orderType == "" {
		orderType = common.OrderTypeMarket
	}
	positionSide := req.PositionSide
	if positionSide == "" {
		positionSide = common.PositionSideLong
	}

	params := url.Values{}
	params.Set("symbol", req.Symbol)
	params.Set("side", strings.ToUpper(string(req.Side)))
	params.Set("positionSide", positionSide)
	params.Set("type", string(orderType))
	params.Set("quantity", formatQty(req.Qty, req.QtyPrecision))
	if req.ClientID != "" {
		params.Set("clientOrderID", req.ClientID)
	}
	if req.TakeProfit != nil {
		b, err := json.Marshal(req.TakeProfit)
		if err != nil {
			return nil, fmt.Errorf("encode take profit: %w", err)
		}
		params.Set("takeProfit", string(b))
	}
	if req.StopLoss != nil {
		b, err := json.Marshal(req.StopLoss)
		if err != nil {
			return nil, fmt.Errorf("encode stop loss: %w", err)
		}
		params.Set("stopLoss", string(b))
	}
	return params, nil
}

// formatQty renders q at the given precision; a negative precision keeps it unrounded.
func formatQty(q float64, precision int) string {
	d := decimal.NewFromFloat(q)
	if precision < 0 {
		return d.String()
	}
	return d.Truncate(int32(precision)).StringFixed(int32(precision))
}
