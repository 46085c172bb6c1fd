package main

import (
	"encoding/json"
	stdlog "log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/alejo7774/crypto-tax-calculator-2025/src/config"
	"github.com/alejo7774/crypto-tax-calculator-2025/src/database"
	"github.com/alejo7774/crypto-tax-calculator-2025/src/handlers"
	"github.com/alejo7774/crypto-tax-calculator-2025/src/logger"
	"github.com/alejo7774/crypto-tax-calculator-2025/src/parsers"
	"github.com/alejo7774/crypto-tax-calculator-2025/src/pricing"
	"github.com/alejo7774/crypto-tax-calculator-2025/src/processors"
	"github.com/alejo7774/crypto-tax-calculator-2025/src/reports"
	"github.com/alejo7774/crypto-tax-calculator-2025/src/security"
	"github.com/alejo7774/crypto-tax-calculator-2025/src/services"
)

var limiter = rate.NewLimiter(rate.Every(100*time.Millisecond), 30)

func rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
			logger.L.Warn("Rate limit exceeded",
				"method", r.Method,
				"path", r.URL.Path,
				"remoteAddr", r.RemoteAddr)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		allowedOrigins := map[string]bool{
			"http://localhost:3000": true,
		}

		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE, PATCH")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, X-Requested-With, Cookie, If-None-Match")
			w.Header().Set("Access-Control-Expose-Headers", "X-CSRF-Token, ETag")
		} else if origin == "" {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		}

		if r.Method == "OPTIONS" {
			logger.L.Debug("Handling OPTIONS preflight request", "path", r.URL.Path, "origin", origin)
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func main() {
	config.LoadConfig()
	logger.InitLogger(config.Cfg.LogLevel)
	logger.L.Info("Crypto tax calculator backend starting...")

	if len(config.Cfg.JWTSecret) < 32 {
		logger.L.Error("JWT_SECRET configuration invalid. Must be at least 32 bytes.")
		os.Exit(1)
	}
	if len(config.Cfg.CSRFAuthKey) < 32 {
		logger.L.Error("CSRF_AUTH_KEY must be at least 32 bytes long.")
		os.Exit(1)
	}

	logger.L.Info("Loading historical EUR rates...", "path", config.Cfg.HistoricalDataPath)
	historicalStore, err := pricing.LoadHistoricalStore(config.Cfg.HistoricalDataPath)
	if err != nil {
		logger.L.Error("Failed to load historical rates, continuing with remote lookups only", "error", err)
		historicalStore = pricing.NewHistoricalStore(nil)
	}

	oracle := pricing.Chain{
		historicalStore,
		pricing.NewCachingOracle(
			pricing.NewHTTPSource(config.Cfg.PriceAPIBaseURL, config.DefaultCoinIDs()),
			config.Cfg.RateCacheTTL,
		),
	}
	converter := pricing.NewConverter(oracle, config.KnownSymbols())

	logger.L.Info("Initializing database...", "path", config.Cfg.DatabasePath)
	database.InitDB(config.Cfg.DatabasePath)
	logger.L.Info("Database initialized successfully.")

	reportCache := cache.New(config.Cfg.ReportCacheTTL, services.CacheCleanupInterval)

	logger.L.Info("Initializing services and handlers...", "taxYear", config.Cfg.TaxYear)
	authService := security.NewAuthService(config.Cfg.JWTSecret, config.Cfg.AccessTokenExpiry)
	userHandler := handlers.NewUserHandler(authService)
	csrfHandler := handlers.NewCSRFHandler(config.Cfg.CSRFAuthKey)

	registry := parsers.NewRegistry(converter, config.Cfg.TaxYear)
	reportService := services.NewReportService(
		registry,
		processors.NewTransactionProcessor(),
		processors.NewLedgerEngine(),
		processors.NewIncomeProcessor(),
		processors.NewTaxEstimator(processors.DefaultSchedule()),
		reports.NewExcelRenderer(),
		reportCache,
		config.Cfg.TaxYear,
	)

	uploadHandler := handlers.NewUploadHandler(reportService, registry.Supported())
	reportHandler := handlers.NewReportHandler(reportService)
	txHandler := handlers.NewTransactionHandler(reportService)

	logger.L.Info("Configuring routes...")
	rootMux := http.NewServeMux()
	apiRouter := http.NewServeMux()

	apiRouter.HandleFunc("GET /api/auth/csrf", csrfHandler.GetCSRFToken)

	authActionRouter := http.NewServeMux()
	authActionRouter.HandleFunc("POST /login", userHandler.LoginUserHandler)
	authActionRouter.HandleFunc("POST /register", userHandler.RegisterUserHandler)
	authActionRouter.HandleFunc("POST /refresh", userHandler.RefreshTokenHandler)
	authActionRouter.Handle("POST /logout", userHandler.AuthMiddleware(http.HandlerFunc(userHandler.LogoutUserHandler)))
	apiRouter.Handle("/api/auth/", http.StripPrefix("/api/auth", csrfHandler.Middleware()(authActionRouter)))

	csrfProtection := csrfHandler.Middleware()
	applyCsrfAndAuth := func(handler http.HandlerFunc) http.Handler {
		return csrfProtection(userHandler.AuthMiddleware(handler))
	}

	apiRouter.Handle("POST /api/upload", applyCsrfAndAuth(uploadHandler.HandleUpload))
	apiRouter.Handle("GET /api/report", applyCsrfAndAuth(reportHandler.HandleGetReport))
	apiRouter.Handle("GET /api/report/download", applyCsrfAndAuth(reportHandler.HandleDownloadReport))
	apiRouter.Handle("GET /api/transactions", applyCsrfAndAuth(txHandler.HandleGetTransactions))
	apiRouter.Handle("DELETE /api/transactions/all", applyCsrfAndAuth(txHandler.HandleDeleteAllTransactions))

	rootMux.Handle("/api/", apiRouter)

	rootMux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" && r.Method == http.MethodGet {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]string{"message": "Crypto tax calculator backend is running"})
			return
		}
		if !strings.HasPrefix(r.URL.Path, "/api/") {
			logger.L.Warn("Root level path not found", "method", r.Method, "path", r.URL.Path)
			http.NotFound(w, r)
		}
	})

	logger.L.Info("Applying global middleware...")
	finalHandler := enableCORS(rateLimitMiddleware(rootMux))

	serverAddr := ":" + config.Cfg.Port
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      finalHandler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	logger.L.Info("Server starting", "address", serverAddr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.L.Error("Failed to start server", "error", err)
		stdlog.Fatalf("Failed to start server: %v", err)
	}
	logger.L.Info("Server stopped gracefully.")
}
