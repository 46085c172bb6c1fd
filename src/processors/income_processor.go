package processors

import (
	"sort"
	"strings"

	"github.com/alejo7774/crypto-tax-calculator-2025/src/models"
)

// IncomeProcessor routes income-kind transactions (staking rewards, airdrops,
// interest) into income records for the estimator and the report. The ledger
// engine never consumes these.
type IncomeProcessor struct{}

func NewIncomeProcessor() *IncomeProcessor {
	return &IncomeProcessor{}
}

// Process filters the batch down to income events, sorted by date ascending.
// Records without an asset identifier are dropped.
func (p *IncomeProcessor) Process(transactions []models.Transaction) []models.IncomeRecord {
	var records []models.IncomeRecord
	for _, tx := range transactions {
		if tx.Kind != models.KindIncome {
			continue
		}
		asset := strings.ToLower(strings.TrimSpace(tx.Asset))
		if asset == "" {
			continue
		}
		records = append(records, models.IncomeRecord{
			Date:     tx.Date,
			Asset:    asset,
			Quantity: tx.Quantity,
			ValueEUR: tx.GrossValueEUR,
			FeeEUR:   tx.FeeEUR,
		})
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Date.Before(records[j].Date)
	})
	return records
}
