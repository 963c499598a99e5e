package bingx

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"perp-trader/pkg/exchanges/common"
)

type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

type klineWire struct {
	Open   string `json:"open"`
	Close  string `json:"close"`
	High   string `json:"high"`
	Low    string `json:"low"`
	Volume string `json:"volume"`
	Time   int64  `json:"time"`
}

type depthWire struct {
	Timestamp int64       `json:"T"`
	Asks      [][2]string `json:"asks"`
	Bids      [][2]string `json:"bids"`
}

type tickerWire struct {
	Symbol             string `json:"symbol"`
	PriceChange        string `json:"priceChange"`
	PriceChangePercent string `json:"priceChangePercent"`
	LastPrice          string `json:"lastPrice"`
	HighPrice          string `json:"highPrice"`
	LowPrice           string `json:"lowPrice"`
	Volume             string `json:"volume"`
	QuoteVolume        string `json:"quoteVolume"`
	OpenPrice          string `json:"openPrice"`
	OpenTime           int64  `json:"openTime"`
	CloseTime          int64  `json:"closeTime"`
	BidPrice           string `json:"bidPrice"`
	AskPrice           string `json:"askPrice"`
}

type priceWire struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
	Time   int64  `json:"time"`
}

type orderWire struct {
	Order struct {
		OrderID       json.Number `json:"orderId"`
		Symbol        string      `json:"symbol"`
		Side          string      `json:"side"`
		PositionSide  string      `json:"positionSide"`
		Type          string      `json:"type"`
		Status        string      `json:"status"`
		ClientOrderID string      `json:"clientOrderID"`
		Price         flexFloat   `json:"price"`
		Quantity      flexFloat   `json:"quantity"`
	} `json:"order"`
}

// flexFloat accepts a JSON number or a numeric string.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return &common.ParseError{Field: "number", Value: s, Err: err}
	}
	*f = flexFloat(v)
	return nil
}

func parseFloat(field, s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, &common.ParseError{Field: field, Value: s, Err: err}
	}
	return v, nil
}

func millis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

// The venue reports a single timestamp per kline; it is used for both ends.
func (k klineWire) toCandle() (common.Candle, error) {
	var (
		c   common.Candle
		err error
	)
	if c.Open, err = parseFloat("open", k.Open); err != nil {
		return c, err
	}
	if c.High, err = parseFloat("high", k.High); err != nil {
		return c, err
	}
	if c.Low, err = parseFloat("low", k.Low); err != nil {
		return c, err
	}
	if c.Close, err = parseFloat("close", k.Close); err != nil {
		return c, err
	}
	if c.Volume, err = parseFloat("volume", k.Volume); err != nil {
		return c, err
	}
	c.OpenTime = millis(k.Time)
	c.CloseTime = c.OpenTime
	return c, nil
}

func parseLevels(side string, raw [][2]string) ([]common.Level, error) {
	out := make([]common.Level, 0, len(raw))
	for _, lv := range raw {
		price, err := parseFloat(side+".price", lv[0])
		if err != nil {
			return nil, err
		}
		qty, err := parseFloat(side+".qty", lv[1])
		if err != nil {
			return nil, err
		}
		out = append(out, common.Level{Price: price, Qty: qty})
	}
	return out, nil
}

func (d depthWire) toSnapshot() (common.DepthSnapshot, error) {
	asks, err := parseLevels("asks", d.Asks)
	if err != nil {
		return common.DepthSnapshot{}, err
	}
	bids, err := parseLevels("bids", d.Bids)
	if err != nil {
		return common.DepthSnapshot{}, err
	}
	return common.DepthSnapshot{Timestamp: millis(d.Timestamp), Asks: asks, Bids: bids}, nil
}

type numField struct {
	name string
	raw  string
	dst  *float64
}

func (t tickerWire) toTicker() (common.Ticker, error) {
	out := common.Ticker{Symbol: t.Symbol, OpenTime: millis(t.OpenTime), CloseTime: millis(t.CloseTime)}
	fields := []numField{
		{"priceChangePercent", t.PriceChangePercent, &out.PriceChangePercent},
		{"lastPrice", t.LastPrice, &out.Last},
		{"highPrice", t.HighPrice, &out.High},
		{"lowPrice", t.LowPrice, &out.Low},
		{"volume", t.Volume, &out.Volume},
		{"quoteVolume", t.QuoteVolume, &out.QuoteVolume},
		{"bidPrice", t.BidPrice, &out.Bid},
		{"askPrice", t.AskPrice, &out.Ask},
	}
	for _, f := range fields {
		v, err := parseFloat(f.name, f.raw)
		if err != nil {
			return common.Ticker{}, err
		}
		*f.dst = v
	}
	// openPrice is informational; older payloads omit it.
	if t.OpenPrice != "" {
		v, err := parseFloat("openPrice", t.OpenPrice)
		if err != nil {
			return common.Ticker{}, err
		}
		out.Open = v
	}
	return out, nil
}

// decodeTickers accepts either a single ticker object or an array.
func decodeTickers(data json.RawMessage) ([]tickerWire, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var many []tickerWire
		if err := json.Unmarshal(trimmed, &many); err != nil {
			return nil, err
		}
		return many, nil
	}
	var one tickerWire
	if err := json.Unmarshal(trimmed, &one); err != nil {
		return nil, err
	}
	return []tickerWire{one}, nil
}
