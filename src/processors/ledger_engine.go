package processors

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/alejo7774/crypto-tax-calculator-2025/src/models"
	"github.com/alejo7774/crypto-tax-calculator-2025/src/utils"
)

// lotEpsilon governs lot-exhaustion and shortfall detection. Quantities are
// never rounded during accumulation, only at report time.
const lotEpsilon = 1e-9

// noSourceLots marks a disposal record whose lot trace is empty.
const noSourceLots = "N/A"

// LedgerEngine matches disposals against acquisition lots in FIFO order.
// The engine is stateless; every Process call owns its queues and discards
// them on return, so independent passes can run concurrently.
type LedgerEngine struct{}

func NewLedgerEngine() *LedgerEngine {
	return &LedgerEngine{}
}

// Process runs one full ledger pass over a batch of canonical transactions.
// The batch is sorted by date ascending before any queue operation; two
// transactions on the same date keep their input order. It returns one
// disposal record per Disposal or Donation transaction, plus the unconsumed
// acquisition lots per asset (the holdings left after the pass).
//
// Records with non-positive quantity or an empty asset are skipped silently,
// and Income transactions are not consumed here. No transaction aborts the
// pass: unmatched disposal quantity degrades into a shortfall note with zero
// acquisition cost attributed to it.
func (e *LedgerEngine) Process(transactions []models.Transaction) ([]models.DisposalRecord, map[string][]models.Lot) {
	txs := make([]models.Transaction, len(transactions))
	copy(txs, transactions)
	sort.SliceStable(txs, func(i, j int) bool {
		return txs[i].Date.Before(txs[j].Date)
	})

	queues := make(map[string][]*models.Lot)
	var records []models.DisposalRecord

	for _, tx := range txs {
		asset := strings.ToLower(strings.TrimSpace(tx.Asset))
		if tx.Quantity <= 0 || asset == "" {
			continue
		}

		switch tx.Kind {
		case models.KindAcquisition:
			unitCost := 0.0
			if tx.Quantity != 0 {
				unitCost = (tx.GrossValueEUR + tx.FeeEUR) / tx.Quantity
			}
			queues[asset] = append(queues[asset], &models.Lot{
				RemainingQuantity: tx.Quantity,
				UnitCostEUR:       unitCost,
				AcquiredOn:        tx.Date,
			})

		case models.KindDisposal, models.KindDonation:
			records = append(records, consumeLots(queues, asset, tx))
		}
	}

	return records, remainingHoldings(queues)
}

// consumeLots matches one disposal against the head of the asset's queue,
// taking partial fills until the disposal quantity or the queue is exhausted.
func consumeLots(queues map[string][]*models.Lot, asset string, tx models.Transaction) models.DisposalRecord {
	netProceeds := tx.GrossValueEUR - tx.FeeEUR
	remaining := tx.Quantity
	totalCost := 0.0
	var trace []string

	queue := queues[asset]
	for remaining > 0 && len(queue) > 0 {
		lot := queue[0]
		consumed := math.Min(remaining, lot.RemainingQuantity)
		totalCost += consumed * lot.UnitCostEUR
		trace = append(trace, fmt.Sprintf("%.8f@%s@%.2f",
			consumed, utils.FormatDay(lot.AcquiredOn), lot.UnitCostEUR))
		lot.RemainingQuantity -= consumed
		remaining -= consumed
		if lot.RemainingQuantity <= lotEpsilon {
			queue = queue[1:]
		}
	}
	queues[asset] = queue

	note := ""
	if remaining > lotEpsilon {
		note = fmt.Sprintf("no acquisition history for %.8f %s", remaining, asset)
	}

	sourceLots := noSourceLots
	if len(trace) > 0 {
		sourceLots = strings.Join(trace, "; ")
	}

	return models.DisposalRecord{
		DisposalDate:            tx.Date,
		Asset:                   asset,
		Kind:                    tx.Kind,
		QuantityDisposed:        tx.Quantity,
		GrossProceedsEUR:        tx.GrossValueEUR,
		FeeEUR:                  tx.FeeEUR,
		NetProceedsEUR:          netProceeds,
		TotalAcquisitionCostEUR: totalCost,
		GainOrLossEUR:           netProceeds - totalCost,
		ShortfallNote:           note,
		SourceLots:              sourceLots,
	}
}

// remainingHoldings copies the surviving lots out of the pass-owned queues so
// callers never share the engine's working state.
func remainingHoldings(queues map[string][]*models.Lot) map[string][]models.Lot {
	holdings := make(map[string][]models.Lot)
	for asset, queue := range queues {
		for _, lot := range queue {
			if lot.RemainingQuantity > lotEpsilon {
				holdings[asset] = append(holdings[asset], *lot)
			}
		}
	}
	return holdings
}
