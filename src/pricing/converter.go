package pricing

import (
	"strings"
	"time"
)

// usdLike covers the dollar and the USD-pegged stablecoins treated as 1:1
// with it for conversion purposes.
var usdLike = map[string]bool{
	"usd":   true,
	"usdt":  true,
	"usdc":  true,
	"busd":  true,
	"dai":   true,
	"tusd":  true,
	"fdusd": true,
}

// Converter values amounts denominated in arbitrary currencies in EUR and
// normalizes the raw symbols found in exchange exports. The known-symbol set
// is injected configuration, not package state.
type Converter struct {
	oracle Oracle
	known  map[string]bool
}

// NewConverter builds a converter over an oracle. knownSymbols are kept as-is
// during normalization even when they end in a USD-style suffix.
func NewConverter(oracle Oracle, knownSymbols []string) *Converter {
	known := make(map[string]bool, len(knownSymbols)+len(usdLike)+1)
	for _, s := range knownSymbols {
		known[strings.ToLower(strings.TrimSpace(s))] = true
	}
	for s := range usdLike {
		known[s] = true
	}
	known["eur"] = true
	return &Converter{oracle: oracle, known: known}
}

// NormalizeSymbol cleans a raw symbol from a CSV: lowercase, trimmed, known
// currencies kept verbatim, and trading-pair suffixes like "pepe-usdt"
// stripped to the base asset.
func (c *Converter) NormalizeSymbol(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return ""
	}
	if c.known[s] {
		return s
	}
	for _, suffix := range []string{"-usdt", "usdt", "-usd", "usd"} {
		if strings.HasSuffix(s, suffix) && len(s) > len(suffix) {
			return strings.TrimSuffix(s, suffix)
		}
	}
	return s
}

// Rate is a direct oracle lookup on an already-normalized symbol.
func (c *Converter) Rate(symbol string, day time.Time) (float64, error) {
	return c.oracle.EURRate(symbol, day)
}

// ToEUR converts an amount denominated in a fiat-or-stablecoin currency to
// EUR. EUR passes through; USD-like currencies convert at the day's usd rate
// (ErrRateUnavailable when the rate is missing); anything else is
// ErrUnsupportedCurrency.
func (c *Converter) ToEUR(value float64, currency string, day time.Time) (float64, error) {
	symbol := c.NormalizeSymbol(currency)
	if symbol == "eur" {
		return value, nil
	}
	if usdLike[symbol] {
		rate, err := c.oracle.EURRate("usd", day)
		if err != nil {
			return 0, err
		}
		return value * rate, nil
	}
	return 0, ErrUnsupportedCurrency
}
