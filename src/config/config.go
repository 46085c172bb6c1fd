package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type AppConfig struct {
	Port               string
	DatabasePath       string
	LogLevel           string
	JWTSecret          string
	CSRFAuthKey        []byte
	HistoricalDataPath string
	PriceAPIBaseURL    string
	TaxYear            int
	AccessTokenExpiry  time.Duration
	RefreshTokenExpiry time.Duration
	MaxUploadSizeBytes int64
	RateCacheTTL       time.Duration
	ReportCacheTTL     time.Duration
}

var Cfg *AppConfig

func LoadConfig() {
	errEnv := godotenv.Load()
	if errEnv != nil {
		log.Println("Info: No .env file found or error loading .env file. Relying on OS environment variables and defaults. Error (if any):", errEnv)
	} else {
		log.Println(".env file loaded successfully.")
	}

	log.Println("Loading application configuration...")

	jwtSecret := getEnv("JWT_SECRET", "your-very-secure-and-long-jwt-secret-key-for-hs256-minimum-32-bytes")
	if jwtSecret == "your-very-secure-and-long-jwt-secret-key-for-hs256-minimum-32-bytes" {
		log.Println("WARNING: Using default insecure JWT_SECRET. Set JWT_SECRET environment variable for production.")
	}

	csrfAuthKeyStr := getEnv("CSRF_AUTH_KEY", "a-very-secure-32-byte-long-key-must-be-32-bytes!")
	if len(csrfAuthKeyStr) < 32 {
		log.Fatalf("FATAL: CSRF_AUTH_KEY must be at least 32 bytes long. Current length: %d", len(csrfAuthKeyStr))
	}

	taxYearStr := getEnv("TAX_YEAR", "2024")
	taxYear, err := strconv.Atoi(taxYearStr)
	if err != nil || taxYear < 2009 {
		log.Printf("WARNING: Invalid TAX_YEAR '%s'. Using default 2024.", taxYearStr)
		taxYear = 2024
	}

	maxUploadSizeBytesStr := getEnv("MAX_UPLOAD_SIZE_BYTES", "10485760")
	maxUploadSizeBytes, err := strconv.ParseInt(maxUploadSizeBytesStr, 10, 64)
	if err != nil {
		log.Printf("WARNING: Invalid MAX_UPLOAD_SIZE_BYTES format '%s'. Using default 10MB. Error: %v", maxUploadSizeBytesStr, err)
		maxUploadSizeBytes = 10 * 1024 * 1024
	}

	Cfg = &AppConfig{
		Port:               getEnv("PORT", "8080"),
		DatabasePath:       getEnv("DATABASE_PATH", "./cryptotax.db"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		JWTSecret:          jwtSecret,
		CSRFAuthKey:        []byte(csrfAuthKeyStr),
		HistoricalDataPath: getEnv("HISTORICAL_DATA_PATH", "data/historicalRatesEUR.json"),
		PriceAPIBaseURL:    getEnv("PRICE_API_BASE_URL", "https://api.coingecko.com/api/v3"),
		TaxYear:            taxYear,
		AccessTokenExpiry:  getEnvAsDuration("ACCESS_TOKEN_EXPIRY", 60*time.Minute),
		RefreshTokenExpiry: getEnvAsDuration("REFRESH_TOKEN_EXPIRY", 7*24*time.Hour),
		MaxUploadSizeBytes: maxUploadSizeBytes,
		RateCacheTTL:       getEnvAsDuration("RATE_CACHE_TTL", 24*time.Hour),
		ReportCacheTTL:     getEnvAsDuration("REPORT_CACHE_TTL", 15*time.Minute),
	}

	log.Printf("Configuration loaded: Port=%s, LogLevel=%s, DBPath=%s, TaxYear=%d",
		Cfg.Port, Cfg.LogLevel, Cfg.DatabasePath, Cfg.TaxYear)
}

// DefaultCoinIDs maps the asset symbols the application knows about to the
// identifiers the price API uses for them. The key set doubles as the
// "known currency" list the normalizers use when cleaning raw symbols;
// it is passed to them explicitly at construction time.
func DefaultCoinIDs() map[string]string {
	return map[string]string{
		"btc":   "bitcoin",
		"eth":   "ethereum",
		"sol":   "solana",
		"ada":   "cardano",
		"xrp":   "ripple",
		"doge":  "dogecoin",
		"dot":   "polkadot",
		"matic": "matic-network",
		"ltc":   "litecoin",
		"link":  "chainlink",
		"atom":  "cosmos",
		"avax":  "avalanche-2",
		"bnb":   "binancecoin",
		"usdt":  "tether",
		"usdc":  "usd-coin",
		"dai":   "dai",
	}
}

// KnownSymbols is the currency list handed to the symbol normalizers: every
// coin the price API covers, plus euro itself.
func KnownSymbols() []string {
	ids := DefaultCoinIDs()
	symbols := make([]string, 0, len(ids)+1)
	for symbol := range ids {
		symbols = append(symbols, symbol)
	}
	return append(symbols, "eur")
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	log.Printf("Environment variable %s not set, using default: %s", key, fallback)
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	log.Printf("Invalid duration value for %s ('%s'), using default: %s", key, valueStr, fallback.String())
	return fallback
}
