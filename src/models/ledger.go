package models

import "time"

// Lot is a recorded quantity of an asset acquired at a specific unit cost on
// a specific date. Lots live in per-asset FIFO queues owned by a single
// ledger pass and are evicted once a disposal exhausts them.
type Lot struct {
	RemainingQuantity float64   `json:"remaining_quantity"`
	UnitCostEUR       float64   `json:"unit_cost_eur"`
	AcquiredOn        time.Time `json:"acquired_on"`
}

// DisposalRecord is the outcome of matching one disposal (or donation)
// against the acquisition history of its asset. The full set over a period is
// the gains ledger.
type DisposalRecord struct {
	DisposalDate            time.Time       `json:"disposal_date"`
	Asset                   string          `json:"asset"`
	Kind                    TransactionKind `json:"kind"`
	QuantityDisposed        float64         `json:"quantity_disposed"`
	GrossProceedsEUR        float64         `json:"gross_proceeds_eur"`
	FeeEUR                  float64         `json:"fee_eur"`
	NetProceedsEUR          float64         `json:"net_proceeds_eur"`
	TotalAcquisitionCostEUR float64         `json:"total_acquisition_cost_eur"`
	GainOrLossEUR           float64         `json:"gain_or_loss_eur"`
	ShortfallNote           string          `json:"shortfall_note,omitempty"`
	SourceLots              string          `json:"source_lots"`
}

// IncomeRecord is one staking/airdrop/interest style event, valued in EUR.
type IncomeRecord struct {
	Date     time.Time `json:"date"`
	Asset    string    `json:"asset"`
	Quantity float64   `json:"quantity"`
	ValueEUR float64   `json:"value_eur"`
	FeeEUR   float64   `json:"fee_eur"`
}

// IncomeTaxEstimate is the flat-rate estimate over aggregated crypto income.
type IncomeTaxEstimate struct {
	TotalIncomeEUR  float64 `json:"total_income_eur"`
	EstimatedTaxEUR float64 `json:"estimated_tax_eur"`
}

// GainsTaxEstimate is the progressive-scale estimate over aggregated
// capital gains. TotalGainEUR may be negative; the tax is then zero.
type GainsTaxEstimate struct {
	TotalGainEUR    float64 `json:"total_gain_eur"`
	EstimatedTaxEUR float64 `json:"estimated_tax_eur"`
}
