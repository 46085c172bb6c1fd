package models

import "time"

// TransactionKind classifies a canonical transaction.
type TransactionKind string

const (
	KindAcquisition TransactionKind = "ACQUISITION"
	KindDisposal    TransactionKind = "DISPOSAL"
	KindDonation    TransactionKind = "DONATION"
	KindIncome      TransactionKind = "INCOME"
)

// Transaction is the unified, exchange-independent representation of one
// event, already valued in EUR. Each normalizer is responsible for populating
// as many of these fields as possible directly from the source file.
type Transaction struct {
	Date          time.Time       `json:"date"`
	Kind          TransactionKind `json:"kind"`
	Asset         string          `json:"asset"`
	Quantity      float64         `json:"quantity"`
	GrossValueEUR float64         `json:"gross_value_eur"`
	FeeEUR        float64         `json:"fee_eur"`

	// --- Fields filled by the enrichment stage before persistence ---
	Source  string `json:"source"`
	RawText string `json:"raw_text"`
	HashID  string `json:"hash_id"`
}

// PriceGap is an asset/date pair the price oracle could not resolve. Gaps are
// reported alongside the normalized transactions instead of failing an upload.
type PriceGap struct {
	Symbol string    `json:"symbol"`
	Date   time.Time `json:"date"`
}

// DedupePriceGaps collapses repeated symbol/date pairs, keeping first-seen
// order.
func DedupePriceGaps(gaps []PriceGap) []PriceGap {
	seen := make(map[string]bool, len(gaps))
	var unique []PriceGap
	for _, gap := range gaps {
		key := gap.Symbol + "@" + gap.Date.Format("2006-01-02")
		if seen[key] {
			continue
		}
		seen[key] = true
		unique = append(unique, gap)
	}
	return unique
}
