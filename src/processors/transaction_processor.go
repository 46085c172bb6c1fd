package processors

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/alejo7774/crypto-tax-calculator-2025/src/models"
)

// TransactionProcessor finalizes parser output before persistence: it
// normalizes asset symbols and stamps each transaction with a content hash
// used for duplicate detection across repeated uploads.
type TransactionProcessor struct{}

func NewTransactionProcessor() *TransactionProcessor {
	return &TransactionProcessor{}
}

func (p *TransactionProcessor) Process(txs []models.Transaction) []models.Transaction {
	processed := make([]models.Transaction, 0, len(txs))
	for _, tx := range txs {
		tx.Asset = strings.ToLower(strings.TrimSpace(tx.Asset))
		if tx.Asset == "" || tx.Quantity <= 0 {
			continue
		}
		tx.HashID = generateHash(tx)
		processed = append(processed, tx)
	}
	return processed
}

// generateHash creates a unique hash for the transaction based on source data.
func generateHash(tx models.Transaction) string {
	input := fmt.Sprintf("%s|%s|%s|%f|%f|%f",
		tx.Date.Format(time.RFC3339), tx.Source, tx.RawText, tx.Quantity, tx.GrossValueEUR, tx.FeeEUR)
	hash := sha256.Sum256([]byte(input))
	return hex.EncodeToString(hash[:])
}
