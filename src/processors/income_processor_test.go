package processors

import (
	"testing"

	"github.com/alejo7774/crypto-tax-calculator-2025/src/models"
)

func TestIncomeProcessorFiltersAndSorts(t *testing.T) {
	p := NewIncomeProcessor()
	txs := []models.Transaction{
		{Date: day(2024, 5, 1), Kind: models.KindIncome, Asset: "ETH", Quantity: 0.5, GrossValueEUR: 900},
		{Date: day(2024, 1, 1), Kind: models.KindAcquisition, Asset: "btc", Quantity: 1, GrossValueEUR: 100},
		{Date: day(2024, 2, 1), Kind: models.KindIncome, Asset: "btc", Quantity: 0.01, GrossValueEUR: 400},
		{Date: day(2024, 3, 1), Kind: models.KindIncome, Asset: "", Quantity: 1, GrossValueEUR: 50},
	}

	records := p.Process(txs)
	if len(records) != 2 {
		t.Fatalf("expected 2 income records, got %d", len(records))
	}
	if records[0].Asset != "btc" || records[1].Asset != "eth" {
		t.Errorf("records out of date order or not lowercased: %+v", records)
	}
	if !records[0].Date.Before(records[1].Date) {
		t.Error("records not sorted by date ascending")
	}
}

func TestIncomeProcessorEmpty(t *testing.T) {
	p := NewIncomeProcessor()
	if records := p.Process(nil); len(records) != 0 {
		t.Errorf("expected no records, got %v", records)
	}
}
