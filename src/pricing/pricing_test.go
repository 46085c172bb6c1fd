package pricing

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
)

var testDay = time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

func fixedOracle(rates map[string]float64) OracleFunc {
	return func(symbol string, day time.Time) (float64, error) {
		if rate, ok := rates[symbol]; ok {
			return rate, nil
		}
		return 0, ErrRateUnavailable
	}
}

func TestHistoricalStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rates.json")
	content := `{"root":{"Obs":[
		{"_TIME_PERIOD":"2024-01-15","_OBS_VALUE":"39345.12","_SYMBOL":"btc"},
		{"_TIME_PERIOD":"2024-01-15","_OBS_VALUE":"0.9152","_SYMBOL":"usd"},
		{"_TIME_PERIOD":"2024-01-15","_OBS_VALUE":"not-a-number","_SYMBOL":"eth"}
	]}}`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	store, err := LoadHistoricalStore(path)
	if err != nil {
		t.Fatalf("LoadHistoricalStore: %v", err)
	}

	if rate, err := store.EURRate("BTC", testDay); err != nil || rate != 39345.12 {
		t.Errorf("btc rate = %f, %v; want 39345.12", rate, err)
	}
	if rate, err := store.EURRate("eur", testDay); err != nil || rate != 1.0 {
		t.Errorf("eur rate = %f, %v; want 1.0", rate, err)
	}
	if _, err := store.EURRate("eth", testDay); !errors.Is(err, ErrRateUnavailable) {
		t.Errorf("invalid observation should be unavailable, got %v", err)
	}
	if _, err := store.EURRate("btc", testDay.AddDate(0, 0, 1)); !errors.Is(err, ErrRateUnavailable) {
		t.Errorf("missing day should be unavailable, got %v", err)
	}
}

func TestLoadHistoricalStoreMissingFile(t *testing.T) {
	if _, err := LoadHistoricalStore(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestChainFallsThrough(t *testing.T) {
	primary := fixedOracle(map[string]float64{"btc": 100})
	fallback := fixedOracle(map[string]float64{"eth": 200})
	chain := Chain{primary, fallback}

	if rate, err := chain.EURRate("btc", testDay); err != nil || rate != 100 {
		t.Errorf("btc = %f, %v; want 100 from primary", rate, err)
	}
	if rate, err := chain.EURRate("eth", testDay); err != nil || rate != 200 {
		t.Errorf("eth = %f, %v; want 200 from fallback", rate, err)
	}
	if _, err := chain.EURRate("sol", testDay); !errors.Is(err, ErrRateUnavailable) {
		t.Errorf("sol should be unavailable, got %v", err)
	}
}

func TestChainStopsOnHardError(t *testing.T) {
	hard := errors.New("boom")
	failing := OracleFunc(func(string, time.Time) (float64, error) { return 0, hard })
	fallback := fixedOracle(map[string]float64{"btc": 100})
	chain := Chain{failing, fallback}

	if _, err := chain.EURRate("btc", testDay); !errors.Is(err, hard) {
		t.Errorf("hard errors must not fall through, got %v", err)
	}
}

func TestCachingOracleMemoizesSuccesses(t *testing.T) {
	calls := 0
	backing := OracleFunc(func(symbol string, day time.Time) (float64, error) {
		calls++
		if symbol == "btc" {
			return 100, nil
		}
		return 0, ErrRateUnavailable
	})
	oracle := NewCachingOracle(backing, time.Minute)

	for i := 0; i < 3; i++ {
		if rate, err := oracle.EURRate("btc", testDay); err != nil || rate != 100 {
			t.Fatalf("btc = %f, %v", rate, err)
		}
	}
	if calls != 1 {
		t.Errorf("expected 1 backing call for cached hits, got %d", calls)
	}

	// Failures are not cached.
	oracle.EURRate("sol", testDay)
	oracle.EURRate("sol", testDay)
	if calls != 3 {
		t.Errorf("expected misses to reach the backing oracle each time, got %d calls", calls)
	}
}

func TestConverterNormalizeSymbol(t *testing.T) {
	c := NewConverter(fixedOracle(nil), []string{"btc", "eth", "usdt"})

	tests := []struct {
		in   string
		want string
	}{
		{"BTC", "btc"},
		{" eth ", "eth"},
		{"usdt", "usdt"}, // known symbol kept even with usd suffix
		{"PEPE-USDT", "pepe"},
		{"SOLUSDT", "sol"},
		{"dogeusd", "doge"},
		{"ada-usd", "ada"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := c.NormalizeSymbol(tt.in); got != tt.want {
			t.Errorf("NormalizeSymbol(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestConverterToEUR(t *testing.T) {
	c := NewConverter(fixedOracle(map[string]float64{"usd": 0.9}), []string{"btc"})

	if v, err := c.ToEUR(100, "EUR", testDay); err != nil || v != 100 {
		t.Errorf("eur passthrough = %f, %v", v, err)
	}
	if v, err := c.ToEUR(100, "USDT", testDay); err != nil || v != 90 {
		t.Errorf("usdt = %f, %v; want 90", v, err)
	}
	if _, err := c.ToEUR(100, "btc", testDay); !errors.Is(err, ErrUnsupportedCurrency) {
		t.Errorf("btc should be unsupported, got %v", err)
	}

	noUSD := NewConverter(fixedOracle(nil), []string{"btc"})
	if _, err := noUSD.ToEUR(100, "usdc", testDay); !errors.Is(err, ErrRateUnavailable) {
		t.Errorf("missing usd rate should propagate unavailable, got %v", err)
	}
}

func TestHTTPSourceEURRate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/coins/bitcoin/history" {
			http.NotFound(w, r)
			return
		}
		if got := r.URL.Query().Get("date"); got != "15-01-2024" {
			http.NotFound(w, r)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"id": "bitcoin",
			"market_data": map[string]any{
				"current_price": map[string]float64{"eur": 39345.12, "usd": 43000},
			},
		})
	}))
	defer server.Close()

	source := NewHTTPSource(server.URL, map[string]string{"btc": "bitcoin"})

	if rate, err := source.EURRate("BTC", testDay); err != nil || rate != 39345.12 {
		t.Errorf("btc = %f, %v; want 39345.12", rate, err)
	}
	if _, err := source.EURRate("sol", testDay); !errors.Is(err, ErrRateUnavailable) {
		t.Errorf("unmapped symbol should be unavailable, got %v", err)
	}
	if _, err := source.EURRate("btc", testDay.AddDate(0, 0, 1)); !errors.Is(err, ErrRateUnavailable) {
		t.Errorf("404 from API should be unavailable, got %v", err)
	}
}
