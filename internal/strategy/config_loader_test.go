package strategy

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"perp-trader/pkg/exchanges/common"
)

func TestParseSymbolConfig(t *testing.T) {
	cfg, err := ParseSymbolConfig(" btc-usdt, BTC, USDT, 0.001, 1, 3, 5.0, 20 ")
	require.NoError(t, err)
	assert.Equal(t, common.SymbolConfig{
		Symbol: "BTC-USDT", BaseAsset: "BTC", QuoteAsset: "USDT",
		MinQty: 0.001, PricePrecision: 1, QtyPrecision: 3, MinNotional: 5, Leverage: 20,
	}, cfg)

	bad := map[string]string{
		"BTC-USDT,BTC,USDT":                  "entry",
		"BTC-USDT,BTC,USDT,x,1,3,5,20":       "min_qty",
		"BTC-USDT,BTC,USDT,1,1.5,3,5,20":     "price_precision",
		"BTC-USDT,BTC,USDT,1,1,three,5,20":   "qty_precision",
		"BTC-USDT,BTC,USDT,1,1,3,five,20":    "min_notional",
		"BTC-USDT,BTC,USDT,1,1,3,5,":         "leverage",
		"BTC-USDT,BTC,USDT,0,1,3,5,20":       "min_qty",
		",BTC,USDT,1,1,3,5,20":               "symbol",
		"BTC-USDT,BTC,USDT,1,1,3,5,20,extra": "entry",
	}
	for line, field := range bad {
		t.Run(line, func(t *testing.T) {
			_, err := ParseSymbolConfig(line)
			var ce *common.ConfigError
			require.True(t, errors.As(err, &ce), "got %v", err)
			assert.Equal(t, field, ce.Field)
		})
	}
}

func TestDefaultSymbols(t *testing.T) {
	presets := DefaultSymbols()
	require.Len(t, presets, 8)
	for _, p := range presets {
		assert.NoError(t, p.Validate(), p.Symbol)
		assert.Equal(t, "USDT", p.QuoteAsset)
		assert.Equal(t, 20, p.Leverage)
		assert.Equal(t, 5.0, p.MinNotional)
	}
	assert.Equal(t, "BTC-USDT", presets[0].Symbol)
	assert.Equal(t, 1.0, presets[0].MinQty)
	assert.Equal(t, "1000PEPE-USDT", presets[5].Symbol)
	assert.Equal(t, 980000.0, presets[5].MinQty)
}

func TestLoadSymbolsRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "symbols.yaml")
	require.NoError(t, WriteSymbols(path, DefaultSymbols()[:2]))

	got, err := LoadSymbols(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultSymbols()[:2], got)
}

func TestLoadSymbolsRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "symbols.yaml")
	require.NoError(t, os.WriteFile(path, []byte("symbols:\n  - symbol: BTC-USDT\n    min_qty: 0\n    leverage: 20\n"), 0o644))

	_, err := LoadSymbols(path)
	var ce *common.ConfigError
	assert.True(t, errors.As(err, &ce))
}
