package parsers

import (
	"strings"
	"testing"
	"time"

	"github.com/alejo7774/crypto-tax-calculator-2025/src/pricing"
)

func testRegistry() *Registry {
	oracle := pricing.OracleFunc(func(string, time.Time) (float64, error) {
		return 0, pricing.ErrRateUnavailable
	})
	return NewRegistry(pricing.NewConverter(oracle, []string{"btc"}), 2024)
}

func TestRegistrySupported(t *testing.T) {
	got := testRegistry().Supported()
	want := []string{"binance", "koinly"}
	if len(got) != len(want) {
		t.Fatalf("Supported() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Supported()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestRegistryLookupIsCaseInsensitive(t *testing.T) {
	r := testRegistry()
	for _, name := range []string{"binance", "BINANCE", " Koinly "} {
		if _, ok := r.Lookup(name).(unsupportedNormalizer); ok {
			t.Errorf("Lookup(%q) resolved to the unsupported variant", name)
		}
	}
}

func TestRegistryUnsupportedYieldsEmptyResult(t *testing.T) {
	n := testRegistry().Lookup("kraken")
	txs, gaps, err := n.Normalize(strings.NewReader("anything"))
	if err != nil {
		t.Fatalf("unsupported exchange must not error, got %v", err)
	}
	if len(txs) != 0 || len(gaps) != 0 {
		t.Errorf("unsupported exchange must yield empty results, got %v, %v", txs, gaps)
	}
}
