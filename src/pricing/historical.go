package pricing

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/alejo7774/crypto-tax-calculator-2025/src/logger"
	"github.com/alejo7774/crypto-tax-calculator-2025/src/models"
	"github.com/alejo7774/crypto-tax-calculator-2025/src/utils"
)

// HistoricalStore serves EUR rates from a file of daily observations loaded
// once at startup. It is the first oracle in the lookup chain.
type HistoricalStore struct {
	rates map[string]map[string]float64 // symbol -> yyyy-mm-dd -> rate
}

// NewHistoricalStore builds a store from an already-indexed rate table.
// A nil table yields an empty store that misses every lookup.
func NewHistoricalStore(rates map[string]map[string]float64) *HistoricalStore {
	if rates == nil {
		rates = make(map[string]map[string]float64)
	}
	return &HistoricalStore{rates: rates}
}

// LoadHistoricalStore reads and indexes the historical rate file.
func LoadHistoricalStore(filePath string) (*HistoricalStore, error) {
	logger.L.Info("Loading historical EUR rates", "path", filePath)
	file, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("error reading historical rate file '%s': %w", filePath, err)
	}

	var parsed models.HistoricalRates
	if err := json.Unmarshal(file, &parsed); err != nil {
		return nil, fmt.Errorf("error unmarshalling historical rates from '%s': %w", filePath, err)
	}

	store := &HistoricalStore{rates: make(map[string]map[string]float64)}
	skipped := 0
	for _, obs := range parsed.Root.Obs {
		symbol := strings.ToLower(strings.TrimSpace(obs.Symbol))
		if symbol == "" {
			skipped++
			continue
		}
		rate, err := strconv.ParseFloat(obs.ObsValue, 64)
		if err != nil {
			logger.L.Warn("Invalid rate value in historical data", "symbol", symbol, "date", obs.TimePeriod, "value", obs.ObsValue)
			skipped++
			continue
		}
		if store.rates[symbol] == nil {
			store.rates[symbol] = make(map[string]float64)
		}
		store.rates[symbol][obs.TimePeriod] = rate
	}

	logger.L.Info("Historical EUR rates loaded", "path", filePath,
		"symbols", len(store.rates), "skippedObservations", skipped)
	return store, nil
}

// EURRate returns the stored rate for a symbol on a day. EUR itself is
// always 1. A missing observation is ErrRateUnavailable.
func (s *HistoricalStore) EURRate(symbol string, day time.Time) (float64, error) {
	symbol = strings.ToLower(strings.TrimSpace(symbol))
	if symbol == "eur" {
		return 1.0, nil
	}
	byDay, ok := s.rates[symbol]
	if !ok {
		return 0, fmt.Errorf("no observations for %q: %w", symbol, ErrRateUnavailable)
	}
	rate, ok := byDay[utils.FormatDay(day)]
	if !ok {
		return 0, fmt.Errorf("no observation for %q on %s: %w", symbol, utils.FormatDay(day), ErrRateUnavailable)
	}
	return rate, nil
}
