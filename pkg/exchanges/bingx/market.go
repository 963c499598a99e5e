package bingx

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"
	"strings"
	"time"

	"perp-trader/pkg/exchanges/common"
)

// GetCandles fetches klines. The venue returns them newest first; order is preserved.
func (c *Client) GetCandles(ctx context.Context, symbol, interval string, start, end time.Time, limit int) ([]common.Candle, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("interval", interval)
	if !start.IsZero() {
		params.Set("startTime", strconv.FormatInt(start.UnixMilli(), 10))
	}
	if !end.IsZero() {
		params.Set("endTime", strconv.FormatInt(end.UnixMilli(), 10))
	}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	var raw []klineWire
	if err := c.doPublic(ctx, "klines", pathKlines, params, &raw); err != nil {
		return nil, err
	}
	out := make([]common.Candle, 0, len(raw))
	for _, k := range raw {
		candle, err := k.toCandle()
		if err != nil {
			return nil, err
		}
		out = append(out, candle)
	}
	return out, nil
}

// GetDepth fetches the order book. A malformed level fails the whole snapshot.
func (c *Client) GetDepth(ctx context.Context, symbol string, limit int) (common.DepthSnapshot, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	var raw depthWire
	if err := c.doPublic(ctx, "depth", pathDepth, params, &raw); err != nil {
		return common.DepthSnapshot{}, err
	}
	return raw.toSnapshot()
}

// GetTicker fetches 24h statistics for symbol, or for every symbol when it is empty.
func (c *Client) GetTicker(ctx context.Context, symbol string) ([]common.Ticker, error) {
	params := url.Values{}
	if symbol != "" {
		params.Set("symbol", symbol)
	}
	var data json.RawMessage
	if err := c.doPublic(ctx, "ticker", pathTicker, params, &data); err != nil {
		return nil, err
	}
	wires, err := decodeTickers(data)
	if err != nil {
		return nil, &common.GatewayError{Op: "ticker", Err: err}
	}
	out := make([]common.Ticker, 0, len(wires))
	for _, w := range wires {
		t, err := w.toTicker()
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// GetLatestPrice returns the last trade price.
func (c *Client) GetLatestPrice(ctx context.Context, symbol string) (float64, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	var raw priceWire
	if err := c.doPublic(ctx, "price", pathPrice, params, &raw); err != nil {
		return 0, err
	}
	if strings.TrimSpace(raw.Price) == "" {
		return 0, &common.GatewayError{Op: "price", Message: "no price data"}
	}
	return parseFloat("price", raw.Price)
}
