package binance

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/alejo7774/crypto-tax-calculator-2025/src/logger"
	"github.com/alejo7774/crypto-tax-calculator-2025/src/models"
	"github.com/alejo7774/crypto-tax-calculator-2025/src/pricing"
)

const sourceName = "binance"

// incomeOperations marks ledger operations treated as miscellaneous crypto
// income rather than trades.
var incomeOperations = []string{"airdrop", "reward", "interest", "staking", "mining", "distribution"}

// Normalizer converts a Binance "Transaction History" export into canonical
// transactions. Rows sharing one UTC timestamp form a group: a sale pairs its
// Transaction Sold row with the group's Revenue and Fee rows, a purchase pairs
// Transaction Buy with Transaction Spend, and anything left is classified row
// by row.
type Normalizer struct {
	converter *pricing.Converter
	taxYear   int
}

func NewNormalizer(converter *pricing.Converter, taxYear int) *Normalizer {
	return &Normalizer{converter: converter, taxYear: taxYear}
}

type rawRow struct {
	timestamp string
	day       time.Time
	operation string
	coin      string
	change    float64
	valid     bool // change parsed as a number
	processed bool
	raw       string
}

func (n *Normalizer) Normalize(file io.Reader) ([]models.Transaction, []models.PriceGap, error) {
	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	timeCol, ok := cols["utc_time"]
	if !ok {
		timeCol, ok = cols["date(utc)"]
	}
	if !ok {
		return nil, nil, fmt.Errorf("binance CSV requires a 'UTC_Time' or 'Date(UTC)' column")
	}
	opCol, opOK := cols["operation"]
	coinCol, coinOK := cols["coin"]
	changeCol, changeOK := cols["change"]
	if !opOK || !coinOK || !changeOK {
		return nil, nil, fmt.Errorf("binance CSV requires 'Operation', 'Coin' and 'Change' columns")
	}

	records, err := reader.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read all CSV records: %w", err)
	}

	// Group rows by their raw timestamp, keeping first-seen group order so
	// the output is stable for identical inputs.
	maxCol := max(timeCol, opCol, coinCol, changeCol)
	groups := make(map[string][]*rawRow)
	var order []string
	for _, record := range records {
		if len(record) <= maxCol {
			continue
		}
		timestamp := strings.TrimSpace(record[timeCol])
		day, err := parseTimestamp(timestamp)
		if err != nil {
			logger.L.Debug("Skipping binance row with invalid timestamp", "timestamp", timestamp)
			continue
		}
		if day.Year() != n.taxYear {
			continue
		}
		change, changeErr := strconv.ParseFloat(strings.TrimSpace(record[changeCol]), 64)
		if _, seen := groups[timestamp]; !seen {
			order = append(order, timestamp)
		}
		groups[timestamp] = append(groups[timestamp], &rawRow{
			timestamp: timestamp,
			day:       day,
			operation: strings.ToLower(strings.TrimSpace(record[opCol])),
			coin:      record[coinCol],
			change:    change,
			valid:     changeErr == nil,
			raw:       strings.Join(record, ","),
		})
	}

	var txs []models.Transaction
	var gaps []models.PriceGap
	for _, timestamp := range order {
		group := groups[timestamp]
		day := group[0].day
		if n.collectSales(group, day, &txs, &gaps) {
			continue
		}
		if n.collectBuys(group, day, &txs, &gaps) {
			continue
		}
		n.collectSingles(group, day, &txs, &gaps)
	}

	return txs, models.DedupePriceGaps(gaps), nil
}

// collectSales emits one disposal per Transaction Sold row, valued from the
// group's Transaction Revenue row when it converts cleanly and from a direct
// asset rate lookup otherwise.
func (n *Normalizer) collectSales(group []*rawRow, day time.Time, txs *[]models.Transaction, gaps *[]models.PriceGap) bool {
	sales := rowsWithOperation(group, "transaction sold")
	if len(sales) == 0 {
		return false
	}
	for _, row := range sales {
		if row.processed {
			continue
		}
		row.processed = true

		asset := n.converter.NormalizeSymbol(row.coin)
		quantity := math.Abs(row.change)
		if asset == "" || !row.valid || quantity <= 0 {
			continue
		}

		grossEUR := 0.0
		grossResolved := false
		if revenue := firstWithOperation(group, "transaction revenue"); revenue != nil {
			revenue.processed = true
			if revenue.valid {
				value, err := n.converter.ToEUR(revenue.change, revenue.coin, day)
				switch {
				case err == nil:
					grossEUR, grossResolved = value, true
				case errors.Is(err, pricing.ErrRateUnavailable):
					*gaps = append(*gaps,
						models.PriceGap{Symbol: "usd", Date: day},
						models.PriceGap{Symbol: asset, Date: day})
				}
			}
		}

		feeEUR := n.feeInEUR(group, day, gaps)

		if !grossResolved {
			if rate, err := n.converter.Rate(asset, day); err == nil {
				grossEUR = quantity * rate
			} else {
				*gaps = append(*gaps, models.PriceGap{Symbol: asset, Date: day})
			}
		}

		*txs = append(*txs, models.Transaction{
			Date:          day,
			Kind:          models.KindDisposal,
			Asset:         asset,
			Quantity:      quantity,
			GrossValueEUR: grossEUR,
			FeeEUR:        feeEUR,
			Source:        sourceName,
			RawText:       row.raw,
		})
	}
	return true
}

// collectBuys emits one acquisition per Transaction Buy row, valued from the
// group's Transaction Spend row when possible.
func (n *Normalizer) collectBuys(group []*rawRow, day time.Time, txs *[]models.Transaction, gaps *[]models.PriceGap) bool {
	buys := rowsWithOperation(group, "transaction buy")
	if len(buys) == 0 {
		return false
	}
	for _, row := range buys {
		if row.processed {
			continue
		}
		row.processed = true

		asset := n.converter.NormalizeSymbol(row.coin)
		if asset == "" || !row.valid || row.change <= 0 {
			continue
		}
		quantity := row.change

		grossEUR := 0.0
		grossResolved := false
		if spend := firstWithOperation(group, "transaction spend"); spend != nil {
			spend.processed = true
			if spend.valid {
				value, err := n.converter.ToEUR(math.Abs(spend.change), spend.coin, day)
				switch {
				case err == nil:
					grossEUR, grossResolved = value, true
				case errors.Is(err, pricing.ErrRateUnavailable):
					*gaps = append(*gaps,
						models.PriceGap{Symbol: "usd", Date: day},
						models.PriceGap{Symbol: asset, Date: day})
				}
			}
		}

		if !grossResolved {
			if rate, err := n.converter.Rate(asset, day); err == nil {
				grossEUR = quantity * rate
			} else {
				*gaps = append(*gaps, models.PriceGap{Symbol: asset, Date: day})
			}
		}

		*txs = append(*txs, models.Transaction{
			Date:          day,
			Kind:          models.KindAcquisition,
			Asset:         asset,
			Quantity:      quantity,
			GrossValueEUR: grossEUR,
			FeeEUR:        0,
			Source:        sourceName,
			RawText:       row.raw,
		})
	}
	return true
}

// collectSingles classifies the rows no trade pairing claimed: income-style
// operations, plain deposits and withdrawals. Everything else is ignored.
func (n *Normalizer) collectSingles(group []*rawRow, day time.Time, txs *[]models.Transaction, gaps *[]models.PriceGap) {
	for _, row := range group {
		if row.processed {
			continue
		}
		row.processed = true

		asset := n.converter.NormalizeSymbol(row.coin)
		if asset == "" || !row.valid || math.Abs(row.change) <= 0 {
			continue
		}
		quantity := math.Abs(row.change)

		switch {
		case containsAny(row.operation, incomeOperations):
			rate, err := n.converter.Rate(asset, day)
			if err != nil {
				// Unresolved income has no defensible EUR value; drop the
				// row and surface the gap.
				*gaps = append(*gaps, models.PriceGap{Symbol: asset, Date: day})
				continue
			}
			*txs = append(*txs, models.Transaction{
				Date:          day,
				Kind:          models.KindIncome,
				Asset:         asset,
				Quantity:      quantity,
				GrossValueEUR: quantity * rate,
				Source:        sourceName,
				RawText:       row.raw,
			})

		case row.operation == "deposit":
			grossEUR := 0.0
			if rate, err := n.converter.Rate(asset, day); err == nil {
				grossEUR = row.change * rate
			} else {
				*gaps = append(*gaps, models.PriceGap{Symbol: asset, Date: day})
			}
			*txs = append(*txs, models.Transaction{
				Date:          day,
				Kind:          models.KindAcquisition,
				Asset:         asset,
				Quantity:      quantity,
				GrossValueEUR: grossEUR,
				Source:        sourceName,
				RawText:       row.raw,
			})

		case row.operation == "withdraw":
			grossEUR := 0.0
			if rate, err := n.converter.Rate(asset, day); err == nil {
				grossEUR = quantity * rate
			} else {
				*gaps = append(*gaps, models.PriceGap{Symbol: asset, Date: day})
			}
			*txs = append(*txs, models.Transaction{
				Date:          day,
				Kind:          models.KindDisposal,
				Asset:         asset,
				Quantity:      quantity,
				GrossValueEUR: grossEUR,
				Source:        sourceName,
				RawText:       row.raw,
			})
		}
	}
}

// feeInEUR values the group's Transaction Fee row. It tries a direct rate
// lookup on the fee asset first and falls back to the generic currency
// conversion; only the fallback records a gap for the missing usd rate, the
// direct lookup stays silent. Both paths are kept as found in the source
// data.
func (n *Normalizer) feeInEUR(group []*rawRow, day time.Time, gaps *[]models.PriceGap) float64 {
	feeRow := firstWithOperation(group, "transaction fee")
	if feeRow == nil {
		return 0
	}
	feeRow.processed = true
	if !feeRow.valid {
		return 0
	}
	amount := math.Abs(feeRow.change)
	feeSymbol := n.converter.NormalizeSymbol(feeRow.coin)
	if rate, err := n.converter.Rate(feeSymbol, day); err == nil {
		return amount * rate
	}

	value, err := n.converter.ToEUR(amount, feeRow.coin, day)
	if err == nil {
		return value
	}
	if errors.Is(err, pricing.ErrRateUnavailable) {
		*gaps = append(*gaps, models.PriceGap{Symbol: "usd", Date: day})
	}
	return 0
}

func rowsWithOperation(group []*rawRow, operation string) []*rawRow {
	var matched []*rawRow
	for _, row := range group {
		if row.operation == operation {
			matched = append(matched, row)
		}
	}
	return matched
}

func firstWithOperation(group []*rawRow, operation string) *rawRow {
	for _, row := range group {
		if row.operation == operation {
			return row
		}
	}
	return nil
}

func containsAny(s string, substrings []string) bool {
	for _, sub := range substrings {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func parseTimestamp(timestamp string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02 15:04:05", time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, timestamp); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", timestamp)
}
