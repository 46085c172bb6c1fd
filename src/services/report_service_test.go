package services

import (
	"bytes"
	"math"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/alejo7774/crypto-tax-calculator-2025/src/database"
	"github.com/alejo7774/crypto-tax-calculator-2025/src/parsers"
	"github.com/alejo7774/crypto-tax-calculator-2025/src/pricing"
	"github.com/alejo7774/crypto-tax-calculator-2025/src/processors"
	"github.com/alejo7774/crypto-tax-calculator-2025/src/reports"
)

const binanceExport = `UTC_Time,Account,Operation,Coin,Change,Remark
2024-03-01 10:00:00,Spot,Deposit,BTC,0.5,
2024-05-10 12:00:00,Spot,Transaction Sold,BTC,-0.2,
2024-05-10 12:00:00,Spot,Transaction Revenue,USDT,9000,
2024-06-01 08:00:00,Spot,Staking Rewards,SOL,3,
`

func newTestService(t *testing.T) ReportService {
	t.Helper()
	database.InitDB(filepath.Join(t.TempDir(), "test.db"))
	t.Cleanup(func() { database.DB.Close() })

	rates := map[string]float64{"usd": 0.9, "btc": 40000, "sol": 100}
	oracle := pricing.OracleFunc(func(symbol string, day time.Time) (float64, error) {
		if rate, ok := rates[symbol]; ok {
			return rate, nil
		}
		return 0, pricing.ErrRateUnavailable
	})
	converter := pricing.NewConverter(oracle, []string{"btc", "eth", "sol"})

	return NewReportService(
		parsers.NewRegistry(converter, 2024),
		processors.NewTransactionProcessor(),
		processors.NewLedgerEngine(),
		processors.NewIncomeProcessor(),
		processors.NewTaxEstimator(processors.DefaultSchedule()),
		reports.NewExcelRenderer(),
		cache.New(time.Minute, time.Minute),
		2024,
	)
}

func TestProcessUploadStoresTransactions(t *testing.T) {
	svc := newTestService(t)

	summary, err := svc.ProcessUpload(strings.NewReader(binanceExport), 1, "binance")
	if err != nil {
		t.Fatalf("ProcessUpload failed: %v", err)
	}
	if summary.TransactionsParsed != 3 {
		t.Errorf("parsed = %d, want 3", summary.TransactionsParsed)
	}
	if summary.TransactionsStored != 3 {
		t.Errorf("stored = %d, want 3", summary.TransactionsStored)
	}
	if summary.DuplicatesSkipped != 0 {
		t.Errorf("duplicates = %d, want 0", summary.DuplicatesSkipped)
	}
	if len(summary.PriceGaps) != 0 {
		t.Errorf("price gaps = %v, want none", summary.PriceGaps)
	}

	txs, err := svc.GetTransactions(1)
	if err != nil {
		t.Fatalf("GetTransactions failed: %v", err)
	}
	if len(txs) != 3 {
		t.Fatalf("stored transactions = %d, want 3", len(txs))
	}
}

func TestProcessUploadSkipsDuplicatesOnReupload(t *testing.T) {
	svc := newTestService(t)

	if _, err := svc.ProcessUpload(strings.NewReader(binanceExport), 1, "binance"); err != nil {
		t.Fatalf("first upload failed: %v", err)
	}
	summary, err := svc.ProcessUpload(strings.NewReader(binanceExport), 1, "binance")
	if err != nil {
		t.Fatalf("second upload failed: %v", err)
	}
	if summary.TransactionsStored != 0 {
		t.Errorf("stored on re-upload = %d, want 0", summary.TransactionsStored)
	}
	if summary.DuplicatesSkipped != 3 {
		t.Errorf("duplicates on re-upload = %d, want 3", summary.DuplicatesSkipped)
	}
}

func TestProcessUploadUnsupportedExchange(t *testing.T) {
	svc := newTestService(t)

	summary, err := svc.ProcessUpload(strings.NewReader(binanceExport), 1, "kraken")
	if err != nil {
		t.Fatalf("ProcessUpload failed: %v", err)
	}
	if summary.TransactionsParsed != 0 || summary.TransactionsStored != 0 {
		t.Errorf("unsupported exchange stored data: %+v", summary)
	}
}

func TestGetReportComputesGainsAndIncome(t *testing.T) {
	svc := newTestService(t)
	if _, err := svc.ProcessUpload(strings.NewReader(binanceExport), 1, "binance"); err != nil {
		t.Fatalf("upload failed: %v", err)
	}

	report, err := svc.GetReport(1)
	if err != nil {
		t.Fatalf("GetReport failed: %v", err)
	}
	if report.TaxYear != 2024 {
		t.Errorf("tax year = %d", report.TaxYear)
	}
	if len(report.Disposals) != 1 {
		t.Fatalf("disposals = %d, want 1", len(report.Disposals))
	}

	// 0.2 btc sold for 9000 USDT at 0.9 EUR/USD against a 0.5 btc lot
	// acquired at 40000 EUR.
	d := report.Disposals[0]
	if d.Asset != "btc" {
		t.Errorf("disposal asset = %q", d.Asset)
	}
	if math.Abs(d.GrossProceedsEUR-8100) > 1e-6 {
		t.Errorf("gross proceeds = %v, want 8100", d.GrossProceedsEUR)
	}
	if math.Abs(d.TotalAcquisitionCostEUR-8000) > 1e-6 {
		t.Errorf("acquisition cost = %v, want 8000", d.TotalAcquisitionCostEUR)
	}
	if math.Abs(d.GainOrLossEUR-100) > 1e-6 {
		t.Errorf("gain = %v, want 100", d.GainOrLossEUR)
	}

	if len(report.Income) != 1 {
		t.Fatalf("income records = %d, want 1", len(report.Income))
	}
	if math.Abs(report.Income[0].ValueEUR-300) > 1e-6 {
		t.Errorf("income value = %v, want 300", report.Income[0].ValueEUR)
	}

	if math.Abs(report.GainsTax.EstimatedTaxEUR-19.00) > 1e-6 {
		t.Errorf("gains tax = %v, want 19.00", report.GainsTax.EstimatedTaxEUR)
	}
	if math.Abs(report.IncomeTax.EstimatedTaxEUR-57.00) > 1e-6 {
		t.Errorf("income tax = %v, want 57.00", report.IncomeTax.EstimatedTaxEUR)
	}

	if lots := report.Holdings["btc"]; len(lots) != 1 || math.Abs(lots[0].RemainingQuantity-0.3) > 1e-6 {
		t.Errorf("btc holdings = %+v, want one lot of 0.3", lots)
	}
}

func TestDeleteAllTransactionsInvalidatesCache(t *testing.T) {
	svc := newTestService(t)
	if _, err := svc.ProcessUpload(strings.NewReader(binanceExport), 1, "binance"); err != nil {
		t.Fatalf("upload failed: %v", err)
	}
	if _, err := svc.GetReport(1); err != nil {
		t.Fatalf("GetReport failed: %v", err)
	}

	if err := svc.DeleteAllTransactions(1); err != nil {
		t.Fatalf("DeleteAllTransactions failed: %v", err)
	}
	report, err := svc.GetReport(1)
	if err != nil {
		t.Fatalf("GetReport after delete failed: %v", err)
	}
	if len(report.Disposals) != 0 || len(report.Income) != 0 {
		t.Errorf("report not empty after delete: %+v", report)
	}
}

func TestRenderSpreadsheetProducesWorkbook(t *testing.T) {
	svc := newTestService(t)
	if _, err := svc.ProcessUpload(strings.NewReader(binanceExport), 1, "binance"); err != nil {
		t.Fatalf("upload failed: %v", err)
	}

	out, err := svc.RenderSpreadsheet(1)
	if err != nil {
		t.Fatalf("RenderSpreadsheet failed: %v", err)
	}
	// XLSX files are zip archives.
	if !bytes.HasPrefix(out, []byte("PK")) {
		t.Errorf("output is not a zip-based workbook, starts with %q", out[:min(4, len(out))])
	}
}
