package services

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/alejo7774/crypto-tax-calculator-2025/src/database"
	"github.com/alejo7774/crypto-tax-calculator-2025/src/logger"
	"github.com/alejo7774/crypto-tax-calculator-2025/src/models"
	"github.com/alejo7774/crypto-tax-calculator-2025/src/parsers"
	"github.com/alejo7774/crypto-tax-calculator-2025/src/processors"
	"github.com/alejo7774/crypto-tax-calculator-2025/src/reports"
	"github.com/alejo7774/crypto-tax-calculator-2025/src/utils"
)

const (
	ckTaxReport = "res_tax_report_user_%d"

	DefaultCacheExpiration = 15 * time.Minute
	CacheCleanupInterval   = 30 * time.Minute
)

type reportServiceImpl struct {
	registry             *parsers.Registry
	transactionProcessor *processors.TransactionProcessor
	ledgerEngine         *processors.LedgerEngine
	incomeProcessor      *processors.IncomeProcessor
	taxEstimator         *processors.TaxEstimator
	renderer             SpreadsheetRenderer
	reportCache          *cache.Cache
	taxYear              int
}

func NewReportService(
	registry *parsers.Registry,
	transactionProcessor *processors.TransactionProcessor,
	ledgerEngine *processors.LedgerEngine,
	incomeProcessor *processors.IncomeProcessor,
	taxEstimator *processors.TaxEstimator,
	renderer SpreadsheetRenderer,
	reportCache *cache.Cache,
	taxYear int,
) ReportService {
	return &reportServiceImpl{
		registry:             registry,
		transactionProcessor: transactionProcessor,
		ledgerEngine:         ledgerEngine,
		incomeProcessor:      incomeProcessor,
		taxEstimator:         taxEstimator,
		renderer:             renderer,
		reportCache:          reportCache,
		taxYear:              taxYear,
	}
}

func (s *reportServiceImpl) ProcessUpload(fileReader io.Reader, userID int64, exchange string) (*UploadSummary, error) {
	overallStartTime := time.Now()
	logger.L.Info("ProcessUpload START", "userID", userID, "exchange", exchange)

	normalizer := s.registry.Lookup(exchange)
	canonicalTxs, priceGaps, err := normalizer.Normalize(fileReader)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParsingFailed, err)
	}

	newTxs := s.transactionProcessor.Process(canonicalTxs)
	summary := &UploadSummary{
		TransactionsParsed: len(newTxs),
		PriceGaps:          priceGaps,
	}
	if len(newTxs) == 0 {
		logger.L.Info("ProcessUpload produced no transactions", "userID", userID, "exchange", exchange)
		return summary, nil
	}

	dbTx, err := database.DB.Begin()
	if err != nil {
		return nil, fmt.Errorf("error beginning database transaction: %w", err)
	}
	defer dbTx.Rollback()

	stmt, err := dbTx.Prepare(`INSERT INTO crypto_transactions (user_id, date, kind, asset, quantity, gross_value_eur, fee_eur, source, input_string, hash_id) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return nil, fmt.Errorf("error preparing insert statement: %w", err)
	}
	defer stmt.Close()

	for _, tx := range newTxs {
		_, err := stmt.Exec(userID, utils.FormatDay(tx.Date), string(tx.Kind), tx.Asset, tx.Quantity, tx.GrossValueEUR, tx.FeeEUR, tx.Source, tx.RawText, tx.HashID)
		if err != nil {
			if strings.Contains(strings.ToLower(err.Error()), "unique constraint failed") {
				logger.L.Debug("Skipping duplicate transaction on upload", "userID", userID, "hash_id", tx.HashID)
				summary.DuplicatesSkipped++
				continue
			}
			return nil, fmt.Errorf("error inserting transaction (hash %s): %w", tx.HashID, err)
		}
		summary.TransactionsStored++
	}

	if err := dbTx.Commit(); err != nil {
		return nil, fmt.Errorf("error committing transactions: %w", err)
	}

	s.InvalidateUserCache(userID)

	logger.L.Info("ProcessUpload END", "userID", userID, "stored", summary.TransactionsStored,
		"duplicates", summary.DuplicatesSkipped, "duration", time.Since(overallStartTime))
	return summary, nil
}

func (s *reportServiceImpl) GetReport(userID int64) (*TaxReport, error) {
	cacheKey := fmt.Sprintf(ckTaxReport, userID)
	if cached, found := s.reportCache.Get(cacheKey); found {
		logger.L.Debug("Cache hit for tax report", "userID", userID)
		return cached.(*TaxReport), nil
	}
	logger.L.Info("Cache miss for tax report, recalculating from DB", "userID", userID)

	allTxs, err := s.GetTransactions(userID)
	if err != nil {
		return nil, err
	}

	disposals, holdings := s.ledgerEngine.Process(allTxs)
	income := s.incomeProcessor.Process(allTxs)

	report := &TaxReport{
		TaxYear:   s.taxYear,
		Disposals: disposals,
		Income:    income,
		Holdings:  holdings,
		GainsTax:  s.taxEstimator.EstimateGainsTax(disposals),
		IncomeTax: s.taxEstimator.EstimateIncomeTax(income),
	}
	s.reportCache.Set(cacheKey, report, DefaultCacheExpiration)
	return report, nil
}

func (s *reportServiceImpl) RenderSpreadsheet(userID int64) ([]byte, error) {
	report, err := s.GetReport(userID)
	if err != nil {
		return nil, err
	}
	data := &reports.ReportData{
		TaxYear:   report.TaxYear,
		Disposals: report.Disposals,
		Income:    report.Income,
		Holdings:  report.Holdings,
		GainsTax:  report.GainsTax,
		IncomeTax: report.IncomeTax,
	}
	out, err := s.renderer.Render(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProcessingFailed, err)
	}
	return out, nil
}

func (s *reportServiceImpl) GetTransactions(userID int64) ([]models.Transaction, error) {
	logger.L.Debug("Fetching transactions from DB", "userID", userID)
	rows, err := database.DB.Query(`SELECT date, kind, asset, quantity, gross_value_eur, fee_eur, source, input_string, hash_id FROM crypto_transactions WHERE user_id = ? ORDER BY date ASC, id ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("error querying transactions for userID %d: %w", userID, err)
	}
	defer rows.Close()

	var transactions []models.Transaction
	for rows.Next() {
		var tx models.Transaction
		var date, kind string
		if err := rows.Scan(&date, &kind, &tx.Asset, &tx.Quantity, &tx.GrossValueEUR, &tx.FeeEUR, &tx.Source, &tx.RawText, &tx.HashID); err != nil {
			return nil, fmt.Errorf("error scanning transaction row: %w", err)
		}
		day, err := utils.ParseDay(date)
		if err != nil {
			logger.L.Warn("Skipping stored transaction with unparseable date", "userID", userID, "date", date)
			continue
		}
		tx.Date = day
		tx.Kind = models.TransactionKind(kind)
		transactions = append(transactions, tx)
	}
	return transactions, rows.Err()
}

func (s *reportServiceImpl) DeleteAllTransactions(userID int64) error {
	result, err := database.DB.Exec(`DELETE FROM crypto_transactions WHERE user_id = ?`, userID)
	if err != nil {
		return fmt.Errorf("error deleting transactions for userID %d: %w", userID, err)
	}
	deleted, _ := result.RowsAffected()
	logger.L.Info("Deleted all transactions for user", "userID", userID, "count", deleted)
	s.InvalidateUserCache(userID)
	return nil
}

// InvalidateUserCache clears cached results for a user, forcing a full
// recalculation on the next request.
func (s *reportServiceImpl) InvalidateUserCache(userID int64) {
	s.reportCache.Delete(fmt.Sprintf(ckTaxReport, userID))
	logger.L.Info("Invalidated report cache for user", "userID", userID)
}
