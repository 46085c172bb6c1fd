package parsers

import (
	"io"

	"github.com/alejo7774/crypto-tax-calculator-2025/src/models"
)

// Normalizer converts one exchange-specific CSV export into canonical
// transactions. Rows whose EUR value cannot be resolved are reported as price
// gaps instead of failing the parse; only a structurally invalid file (missing
// required columns, unreadable CSV) returns an error.
type Normalizer interface {
	Normalize(file io.Reader) ([]models.Transaction, []models.PriceGap, error)
}
