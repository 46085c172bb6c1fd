package pricing

import (
	"errors"
	"time"
)

// ErrRateUnavailable is returned when no EUR rate exists for a symbol/date
// pair. Callers treat it as a soft failure: the affected value is omitted or
// zeroed and the gap is reported, never raised.
var ErrRateUnavailable = errors.New("pricing: EUR rate unavailable")

// ErrUnsupportedCurrency is returned by the converter for currencies that are
// neither EUR nor USD-pegged. Unlike ErrRateUnavailable it does not indicate
// a missing observation, so callers do not record a price gap for it.
var ErrUnsupportedCurrency = errors.New("pricing: unsupported conversion currency")

// Oracle resolves the EUR value of one unit of an asset on a given day.
type Oracle interface {
	EURRate(symbol string, day time.Time) (float64, error)
}

// OracleFunc adapts a plain function to the Oracle interface.
type OracleFunc func(symbol string, day time.Time) (float64, error)

func (f OracleFunc) EURRate(symbol string, day time.Time) (float64, error) {
	return f(symbol, day)
}

// Chain tries each oracle in order and returns the first available rate.
type Chain []Oracle

func (c Chain) EURRate(symbol string, day time.Time) (float64, error) {
	for _, oracle := range c {
		rate, err := oracle.EURRate(symbol, day)
		if err == nil {
			return rate, nil
		}
		if !errors.Is(err, ErrRateUnavailable) {
			return 0, err
		}
	}
	return 0, ErrRateUnavailable
}
