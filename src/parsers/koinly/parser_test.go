package koinly

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/alejo7774/crypto-tax-calculator-2025/src/models"
	"github.com/alejo7774/crypto-tax-calculator-2025/src/pricing"
)

const header = "Date,Type,Label,Sent Amount,Sent Currency,Received Amount,Received Currency,Fee Amount,Fee Currency,Net Worth Amount,Net Worth Currency,Description,TxHash"

func testConverter() *pricing.Converter {
	oracle := pricing.OracleFunc(func(symbol string, day time.Time) (float64, error) {
		rates := map[string]float64{
			"usd":  0.9,
			"usdt": 0.9,
			"btc":  40_000,
			"sol":  100,
		}
		if rate, ok := rates[symbol]; ok {
			return rate, nil
		}
		return 0, pricing.ErrRateUnavailable
	})
	return pricing.NewConverter(oracle, []string{"btc", "eth", "sol"})
}

func findTx(txs []models.Transaction, kind models.TransactionKind, asset string) *models.Transaction {
	for i := range txs {
		if txs[i].Kind == kind && txs[i].Asset == asset {
			return &txs[i]
		}
	}
	return nil
}

func TestNormalizeTrade(t *testing.T) {
	csv := strings.Join([]string{
		header,
		"2024-03-14 10:30:25 UTC,Trade,,0.5,BTC,20000,USDT,0.001,BTC,,,,0xabc",
	}, "\n")

	n := NewNormalizer(testConverter(), 2024)
	txs, gaps, err := n.Normalize(strings.NewReader(csv))
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if len(gaps) != 0 {
		t.Errorf("expected no price gaps, got %v", gaps)
	}

	disposal := findTx(txs, models.KindDisposal, "btc")
	if disposal == nil {
		t.Fatal("missing btc disposal for the sent side")
	}
	if math.Abs(disposal.GrossValueEUR-18_000) > 1e-6 {
		t.Errorf("disposal gross = %f, want 18000", disposal.GrossValueEUR)
	}
	if math.Abs(disposal.FeeEUR-40) > 1e-6 {
		t.Errorf("disposal fee = %f, want 40 (0.001 btc at 40000)", disposal.FeeEUR)
	}

	acquisition := findTx(txs, models.KindAcquisition, "usdt")
	if acquisition == nil {
		t.Fatal("missing usdt acquisition for the received side")
	}
	if acquisition.FeeEUR != 0 {
		t.Errorf("fee belongs to the disposal only, got %f on the acquisition", acquisition.FeeEUR)
	}
}

func TestNormalizeIncomeLabels(t *testing.T) {
	csv := strings.Join([]string{
		header,
		"2024-05-01 00:00:00 UTC,Receive,Reward,,,1,SOL,,,,,,",
		"2024-05-02 00:00:00 UTC,Receive,N/A,,,2,SOL,,,,,,",
		"2024-05-03 00:00:00 UTC,Receive,Gift,,,3,SOL,,,,,,",
	}, "\n")

	n := NewNormalizer(testConverter(), 2024)
	txs, _, err := n.Normalize(strings.NewReader(csv))
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}

	incomes := 0
	for _, tx := range txs {
		if tx.Kind == models.KindIncome {
			incomes++
		}
	}
	// Reward and the unlabeled N/A are income; "Gift" stays a plain receive.
	if incomes != 2 {
		t.Errorf("expected 2 income records, got %d: %+v", incomes, txs)
	}
	if acq := findTx(txs, models.KindAcquisition, "sol"); acq == nil {
		t.Error("gift receive should become an acquisition")
	}
}

func TestNormalizeWithdrawalWithMissingRate(t *testing.T) {
	csv := strings.Join([]string{
		header,
		"2024-07-01 00:00:00 UTC,Send,,1,ETH,,,,,,,,",
	}, "\n")

	n := NewNormalizer(testConverter(), 2024)
	txs, gaps, err := n.Normalize(strings.NewReader(csv))
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if len(txs) != 1 {
		t.Fatalf("expected 1 transaction, got %d", len(txs))
	}
	if txs[0].Kind != models.KindDisposal || txs[0].GrossValueEUR != 0 {
		t.Errorf("unpriced withdrawal should be a zero-value disposal, got %+v", txs[0])
	}
	if len(gaps) != 1 || gaps[0].Symbol != "eth" {
		t.Errorf("expected one eth gap, got %v", gaps)
	}
}

func TestNormalizeFiltersByYear(t *testing.T) {
	csv := strings.Join([]string{
		header,
		"2023-06-01 00:00:00 UTC,Receive,Reward,,,1,SOL,,,,,,",
		"2024-06-01 00:00:00 UTC,Receive,Reward,,,1,SOL,,,,,,",
	}, "\n")

	n := NewNormalizer(testConverter(), 2024)
	txs, _, err := n.Normalize(strings.NewReader(csv))
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if len(txs) != 1 || txs[0].Date.Year() != 2024 {
		t.Errorf("expected only the 2024 row, got %+v", txs)
	}
}

func TestNormalizeRequiresDateColumn(t *testing.T) {
	csv := "Type,Label\nTrade,\n"
	n := NewNormalizer(testConverter(), 2024)
	if _, _, err := n.Normalize(strings.NewReader(csv)); err == nil {
		t.Fatal("expected error for missing date column")
	}
}
