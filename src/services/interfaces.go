package services

import (
	"errors"
	"io"

	"github.com/alejo7774/crypto-tax-calculator-2025/src/models"
	"github.com/alejo7774/crypto-tax-calculator-2025/src/reports"
)

var (
	ErrParsingFailed    = errors.New("parsing failed")
	ErrProcessingFailed = errors.New("processing failed")
)

// UploadSummary is what a successful upload reports back: how much of the
// file was new, and which price lookups could not be resolved.
type UploadSummary struct {
	TransactionsParsed int               `json:"transactions_parsed"`
	TransactionsStored int               `json:"transactions_stored"`
	DuplicatesSkipped  int               `json:"duplicates_skipped"`
	PriceGaps          []models.PriceGap `json:"price_gaps,omitempty"`
}

// TaxReport aggregates every calculation for a user's stored ledger.
type TaxReport struct {
	TaxYear   int                      `json:"tax_year"`
	Disposals []models.DisposalRecord  `json:"disposals"`
	Income    []models.IncomeRecord    `json:"income"`
	Holdings  map[string][]models.Lot  `json:"holdings"`
	GainsTax  models.GainsTaxEstimate  `json:"gains_tax"`
	IncomeTax models.IncomeTaxEstimate `json:"income_tax"`
}

// ReportService defines the core upload and reporting logic.
type ReportService interface {
	ProcessUpload(fileReader io.Reader, userID int64, exchange string) (*UploadSummary, error)
	GetReport(userID int64) (*TaxReport, error)
	RenderSpreadsheet(userID int64) ([]byte, error)
	GetTransactions(userID int64) ([]models.Transaction, error)
	DeleteAllTransactions(userID int64) error
	InvalidateUserCache(userID int64)
}

// SpreadsheetRenderer turns a finished report into workbook bytes.
type SpreadsheetRenderer interface {
	Render(data *reports.ReportData) ([]byte, error)
}
