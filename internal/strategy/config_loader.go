package strategy

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"perp-trader/pkg/exchanges/common"
)

// SymbolsFile represents the top-level YAML structure of the symbols file.
type SymbolsFile struct {
	Symbols []common.SymbolConfig `yaml:"symbols"`
}

// LoadSymbols reads symbol presets from a YAML file and validates each entry.
func LoadSymbols(path string) ([]common.SymbolConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var file SymbolsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	for i, cfg := range file.Symbols {
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("symbol #%d (%s): %w", i+1, cfg.Symbol, err)
		}
	}
	return file.Symbols, nil
}

// WriteSymbols writes presets to path as YAML.
func WriteSymbols(path string, symbols []common.SymbolConfig) error {
	data, err := yaml.Marshal(SymbolsFile{Symbols: symbols})
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// DefaultSymbols returns the built-in USDT perpetual presets.
func DefaultSymbols() []common.SymbolConfig {
	preset := func(symbol, base string, minQty float64, pricePrec, qtyPrec int) common.SymbolConfig {
		return common.SymbolConfig{
			Symbol:         symbol,
			BaseAsset:      base,
			QuoteAsset:     "USDT",
			MinQty:         minQty,
			PricePrecision: pricePrec,
			QtyPrecision:   qtyPrec,
			MinNotional:    5.0,
			Leverage:       20,
		}
	}
	return []common.SymbolConfig{
		preset("BTC-USDT", "BTC", 1.0, 1, 3),
		preset("ETH-USDT", "ETH", 30.0, 2, 3),
		preset("SOL-USDT", "SOL", 410.0, 3, 1),
		preset("XRP-USDT", "XRP", 10000.0, 4, 1),
		preset("BNB-USDT", "BNB", 16.0, 4, 1),
		preset("1000PEPE-USDT", "1000PEPE", 980000.0, 4, 1),
		preset("SUI-USDT", "SUI", 5800.0, 4, 1),
		preset("ARB-USDT", "ARB", 38000.0, 4, 1),
	}
}

// ParseSymbolConfig parses "symbol,base,quote,min_qty,price_prec,qty_prec,min_notional,leverage".
// Every field is required; malformed input returns a *common.ConfigError.
func ParseSymbolConfig(line string) (common.SymbolConfig, error) {
	parts := strings.Split(strings.TrimSpace(line), ",")
	if len(parts) != 8 {
		return common.SymbolConfig{}, &common.ConfigError{Field: "entry", Reason: fmt.Sprintf("expected 8 comma-separated fields, got %d", len(parts))}
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	cfg := common.SymbolConfig{
		Symbol:     strings.ToUpper(parts[0]),
		BaseAsset:  strings.ToUpper(parts[1]),
		QuoteAsset: strings.ToUpper(parts[2]),
	}
	var err error
	if cfg.MinQty, err = parseFloatField("min_qty", parts[3]); err != nil {
		return common.SymbolConfig{}, err
	}
	if cfg.PricePrecision, err = parseIntField("price_precision", parts[4]); err != nil {
		return common.SymbolConfig{}, err
	}
	if cfg.QtyPrecision, err = parseIntField("qty_precision", parts[5]); err != nil {
		return common.SymbolConfig{}, err
	}
	if cfg.MinNotional, err = parseFloatField("min_notional", parts[6]); err != nil {
		return common.SymbolConfig{}, err
	}
	if cfg.Leverage, err = parseIntField("leverage", parts[7]); err != nil {
		return common.SymbolConfig{}, err
	}
	if err := cfg.Validate(); err != nil {
		return common.SymbolConfig{}, err
	}
	return cfg, nil
}

func parseFloatField(field, s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, &common.ConfigError{Field: field, Reason: fmt.Sprintf("%q is not a number", s)}
	}
	return v, nil
}

func parseIntField(field, s string) (int, error) {
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, &common.ConfigError{Field: field, Reason: fmt.Sprintf("%q is not an integer", s)}
	}
	return v, nil
}
