package pricing

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/alejo7774/crypto-tax-calculator-2025/src/logger"
	"golang.org/x/net/publicsuffix"
)

// historyResponse mirrors the market-data API's coin history payload.
type historyResponse struct {
	ID         string `json:"id"`
	MarketData struct {
		CurrentPrice map[string]float64 `json:"current_price"`
	} `json:"market_data"`
}

// HTTPSource fetches historical EUR prices from the public market-data API.
// It is the fallback oracle for symbols and dates the bundled rate file does
// not cover.
type HTTPSource struct {
	httpClient http.Client
	baseURL    string
	coinIDs    map[string]string // lowercase symbol -> API coin id
}

// NewHTTPSource creates the fallback price source. coinIDs maps asset symbols
// to the identifiers the API uses; symbols outside the map are reported as
// unavailable without a network call.
func NewHTTPSource(baseURL string, coinIDs map[string]string) *HTTPSource {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		logger.L.Error("Failed to create cookie jar", "error", err)
	}

	return &HTTPSource{
		httpClient: http.Client{
			Jar:     jar,
			Timeout: 20 * time.Second,
		},
		baseURL: strings.TrimRight(baseURL, "/"),
		coinIDs: coinIDs,
	}
}

// EURRate looks up the EUR price of one unit of the symbol on the given day.
func (s *HTTPSource) EURRate(symbol string, day time.Time) (float64, error) {
	coinID, ok := s.coinIDs[strings.ToLower(strings.TrimSpace(symbol))]
	if !ok {
		return 0, fmt.Errorf("symbol %q not mapped to an API coin id: %w", symbol, ErrRateUnavailable)
	}

	// The history endpoint takes dd-mm-yyyy.
	reqURL := fmt.Sprintf("%s/coins/%s/history?date=%s&localization=false",
		s.baseURL, url.PathEscape(coinID), day.Format("02-01-2006"))

	req, err := http.NewRequest(http.MethodGet, reqURL, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		logger.L.Warn("Price API request failed", "symbol", symbol, "coinID", coinID, "error", err)
		return 0, fmt.Errorf("price API request for %q failed: %w", symbol, ErrRateUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		logger.L.Warn("Price API returned non-OK status", "symbol", symbol, "status", resp.StatusCode)
		return 0, fmt.Errorf("price API returned status %d for %q: %w", resp.StatusCode, symbol, ErrRateUnavailable)
	}

	var history historyResponse
	if err := json.NewDecoder(resp.Body).Decode(&history); err != nil {
		return 0, fmt.Errorf("failed to decode price API response for %q: %w", symbol, ErrRateUnavailable)
	}

	price, ok := history.MarketData.CurrentPrice["eur"]
	if !ok || price == 0 {
		return 0, fmt.Errorf("price API has no EUR price for %q on %s: %w", symbol, day.Format("02-01-2006"), ErrRateUnavailable)
	}
	return price, nil
}
