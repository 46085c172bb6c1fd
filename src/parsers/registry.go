package parsers

import (
	"io"
	"sort"
	"strings"

	"github.com/alejo7774/crypto-tax-calculator-2025/src/models"
	"github.com/alejo7774/crypto-tax-calculator-2025/src/parsers/binance"
	"github.com/alejo7774/crypto-tax-calculator-2025/src/parsers/koinly"
	"github.com/alejo7774/crypto-tax-calculator-2025/src/pricing"
)

// Registry is the closed set of supported exchanges, resolved by a static
// mapping built at construction time.
type Registry struct {
	normalizers map[string]Normalizer
}

// NewRegistry wires one normalizer per supported exchange over the shared
// converter.
func NewRegistry(converter *pricing.Converter, taxYear int) *Registry {
	return &Registry{
		normalizers: map[string]Normalizer{
			"binance": binance.NewNormalizer(converter, taxYear),
			"koinly":  koinly.NewNormalizer(converter, taxYear),
		},
	}
}

// Lookup returns the normalizer for an exchange. Unsupported exchanges get an
// explicit empty-result variant rather than an error, so one bad selection
// cannot fail a whole upload batch.
func (r *Registry) Lookup(exchange string) Normalizer {
	if normalizer, ok := r.normalizers[strings.ToLower(strings.TrimSpace(exchange))]; ok {
		return normalizer
	}
	return unsupportedNormalizer{}
}

// Supported lists the exchange identifiers the registry can handle.
func (r *Registry) Supported() []string {
	names := make([]string, 0, len(r.normalizers))
	for name := range r.normalizers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// unsupportedNormalizer yields an empty result set for exchanges outside the
// registry.
type unsupportedNormalizer struct{}

func (unsupportedNormalizer) Normalize(io.Reader) ([]models.Transaction, []models.PriceGap, error) {
	return nil, nil, nil
}
