package processors

import (
	"testing"

	"github.com/alejo7774/crypto-tax-calculator-2025/src/models"
)

func TestTransactionProcessorStampsHashes(t *testing.T) {
	p := NewTransactionProcessor()
	txs := []models.Transaction{
		{Date: day(2024, 1, 1), Kind: models.KindAcquisition, Asset: " BTC ", Quantity: 1, GrossValueEUR: 100, Source: "binance", RawText: "row-1"},
		{Date: day(2024, 1, 1), Kind: models.KindAcquisition, Asset: "btc", Quantity: 1, GrossValueEUR: 100, Source: "binance", RawText: "row-2"},
	}

	processed := p.Process(txs)
	if len(processed) != 2 {
		t.Fatalf("expected 2 transactions, got %d", len(processed))
	}
	if processed[0].Asset != "btc" {
		t.Errorf("asset not normalized: %q", processed[0].Asset)
	}
	if processed[0].HashID == "" || processed[1].HashID == "" {
		t.Fatal("expected every transaction to carry a hash")
	}
	if processed[0].HashID == processed[1].HashID {
		t.Error("different raw rows must hash differently")
	}

	// Same input hashes identically across runs, which is what duplicate
	// detection on re-upload relies on.
	again := p.Process(txs)
	if again[0].HashID != processed[0].HashID {
		t.Error("hash is not deterministic")
	}
}

func TestTransactionProcessorDropsInvalid(t *testing.T) {
	p := NewTransactionProcessor()
	txs := []models.Transaction{
		{Date: day(2024, 1, 1), Kind: models.KindAcquisition, Asset: "", Quantity: 1},
		{Date: day(2024, 1, 1), Kind: models.KindAcquisition, Asset: "btc", Quantity: 0},
		{Date: day(2024, 1, 1), Kind: models.KindAcquisition, Asset: "btc", Quantity: -3},
	}
	if processed := p.Process(txs); len(processed) != 0 {
		t.Errorf("expected all transactions dropped, got %v", processed)
	}
}
