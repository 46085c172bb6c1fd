package koinly

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/alejo7774/crypto-tax-calculator-2025/src/logger"
	"github.com/alejo7774/crypto-tax-calculator-2025/src/models"
	"github.com/alejo7774/crypto-tax-calculator-2025/src/pricing"
)

const sourceName = "koinly"

// incomeLabels are the Koinly labels on a "receive" row that make it crypto
// income. Koinly exports "N/A" for unlabeled receives, which in practice are
// exchange rewards in these exports.
var incomeLabels = map[string]bool{
	"reward":   true,
	"staking":  true,
	"interest": true,
	"airdrop":  true,
	"mining":   true,
	"n/a":      true,
}

// Normalizer converts a Koinly transactions export into canonical
// transactions. Each trade row yields two entries, a disposal for the sent
// side carrying the fee and an acquisition for the received side.
type Normalizer struct {
	converter *pricing.Converter
	taxYear   int
}

func NewNormalizer(converter *pricing.Converter, taxYear int) *Normalizer {
	return &Normalizer{converter: converter, taxYear: taxYear}
}

type row struct {
	day            time.Time
	txType         string
	label          string
	sentAmount     float64
	sentCurrency   string
	receivedAmount float64
	receivedCurr   string
	feeAmount      float64
	feeCurrency    string
	raw            string
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
	if _, ok := cols["date"]; !ok {
		return nil, nil, fmt.Errorf("koinly CSV requires a 'Date' column")
	}

	records, err := reader.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read all CSV records: %w", err)
	}

	var txs []models.Transaction
	var gaps []models.PriceGap
	for _, record := range records {
		r, ok := n.parseRow(cols, record)
		if !ok {
			continue
		}
		if r.day.Year() != n.taxYear {
			continue
		}

		switch r.txType {
		case "trade", "exchange":
			n.collectTrade(r, &txs, &gaps)
		case "receive", "deposit":
			if incomeLabels[r.label] {
				n.collectIncome(r, &txs, &gaps)
			} else {
				n.collectTransfer(r, models.KindAcquisition, r.receivedAmount, r.receivedCurr, &txs, &gaps)
			}
		case "send", "withdrawal":
			n.collectTransfer(r, models.KindDisposal, r.sentAmount, r.sentCurrency, &txs, &gaps)
		}
	}

	return txs, models.DedupePriceGaps(gaps), nil
}

func (n *Normalizer) parseRow(cols map[string]int, record []string) (row, bool) {
	field := func(name string) string {
		idx, ok := cols[name]
		if !ok || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}
	amount := func(name string) float64 {
		v, err := strconv.ParseFloat(field(name), 64)
		if err != nil {
			return 0
		}
		return v
	}

	rawDate := field("date")
	day, err := parseTimestamp(rawDate)
	if err != nil {
		logger.L.Debug("Skipping koinly row with invalid date", "date", rawDate)
		return row{}, false
	}
	return row{
		day:            day,
		txType:         strings.ToLower(field("type")),
		label:          strings.ToLower(field("label")),
		sentAmount:     amount("sent amount"),
		sentCurrency:   field("sent currency"),
		receivedAmount: amount("received amount"),
		receivedCurr:   field("received currency"),
		feeAmount:      amount("fee amount"),
		feeCurrency:    field("fee currency"),
		raw:            strings.Join(record, ","),
	}, true
}

// collectTrade emits the disposal for the sent side and the acquisition for
// the received side. The fee is attached to the disposal only, so trades
// into fiat still account for it once.
func (n *Normalizer) collectTrade(r row, txs *[]models.Transaction, gaps *[]models.PriceGap) {
	feeEUR := n.feeInEUR(r, gaps)

	if sent := n.converter.NormalizeSymbol(r.sentCurrency); sent != "" && sent != "eur" && r.sentAmount > 0 {
		gross := n.valueInEUR(r.sentAmount, r.sentCurrency, r.receivedAmount, r.receivedCurr, r.day, gaps)
		*txs = append(*txs, models.Transaction{
			Date:          r.day,
			Kind:          models.KindDisposal,
			Asset:         sent,
			Quantity:      r.sentAmount,
			GrossValueEUR: gross,
			FeeEUR:        feeEUR,
			Source:        sourceName,
			RawText:       r.raw,
		})
	}

	if received := n.converter.NormalizeSymbol(r.receivedCurr); received != "" && received != "eur" && r.receivedAmount > 0 {
		gross := n.valueInEUR(r.receivedAmount, r.receivedCurr, r.sentAmount, r.sentCurrency, r.day, gaps)
		*txs = append(*txs, models.Transaction{
			Date:          r.day,
			Kind:          models.KindAcquisition,
			Asset:         received,
			Quantity:      r.receivedAmount,
			GrossValueEUR: gross,
			Source:        sourceName,
			RawText:       r.raw,
		})
	}
}

func (n *Normalizer) collectIncome(r row, txs *[]models.Transaction, gaps *[]models.PriceGap) {
	asset := n.converter.NormalizeSymbol(r.receivedCurr)
	if asset == "" || r.receivedAmount <= 0 {
		return
	}
	rate, err := n.converter.Rate(asset, r.day)
	if err != nil {
		*gaps = append(*gaps, models.PriceGap{Symbol: asset, Date: r.day})
		return
	}
	*txs = append(*txs, models.Transaction{
		Date:          r.day,
		Kind:          models.KindIncome,
		Asset:         asset,
		Quantity:      r.receivedAmount,
		GrossValueEUR: r.receivedAmount * rate,
		Source:        sourceName,
		RawText:       r.raw,
	})
}

func (n *Normalizer) collectTransfer(r row, kind models.TransactionKind, quantity float64, currency string, txs *[]models.Transaction, gaps *[]models.PriceGap) {
	asset := n.converter.NormalizeSymbol(currency)
	if asset == "" || asset == "eur" || quantity <= 0 {
		return
	}
	grossEUR := 0.0
	if rate, err := n.converter.Rate(asset, r.day); err == nil {
		grossEUR = quantity * rate
	} else {
		*gaps = append(*gaps, models.PriceGap{Symbol: asset, Date: r.day})
	}
	*txs = append(*txs, models.Transaction{
		Date:          r.day,
		Kind:          kind,
		Asset:         asset,
		Quantity:      quantity,
		GrossValueEUR: grossEUR,
		FeeEUR:        n.feeInEUR(r, gaps),
		Source:        sourceName,
		RawText:       r.raw,
	})
}

// valueInEUR prices one leg of a trade. When the counter-leg is fiat the
// trade itself fixes the EUR value, otherwise the leg's own market rate is
// used and a missing rate becomes a recorded gap with a zero value.
func (n *Normalizer) valueInEUR(quantity float64, currency string, counterQty float64, counterCurr string, day time.Time, gaps *[]models.PriceGap) float64 {
	if counterQty > 0 {
		if value, err := n.converter.ToEUR(counterQty, counterCurr, day); err == nil {
			return value
		} else if errors.Is(err, pricing.ErrRateUnavailable) {
			*gaps = append(*gaps, models.PriceGap{Symbol: "usd", Date: day})
		}
	}
	asset := n.converter.NormalizeSymbol(currency)
	if rate, err := n.converter.Rate(asset, day); err == nil {
		return quantity * rate
	}
	*gaps = append(*gaps, models.PriceGap{Symbol: asset, Date: day})
	return 0
}

// feeInEUR tries a direct rate on the fee asset and falls back to the
// generic currency conversion; only the fallback records the usd gap.
func (n *Normalizer) feeInEUR(r row, gaps *[]models.PriceGap) float64 {
	if r.feeAmount <= 0 || r.feeCurrency == "" {
		return 0
	}
	feeSymbol := n.converter.NormalizeSymbol(r.feeCurrency)
	if rate, err := n.converter.Rate(feeSymbol, r.day); err == nil {
		return r.feeAmount * rate
	}
	value, err := n.converter.ToEUR(r.feeAmount, r.feeCurrency, r.day)
	if err == nil {
		return value
	}
	if errors.Is(err, pricing.ErrRateUnavailable) {
		*gaps = append(*gaps, models.PriceGap{Symbol: "usd", Date: r.day})
	}
	return 0
}

func parseTimestamp(timestamp string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02 15:04:05 UTC", "2006-01-02 15:04:05", time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, timestamp); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", timestamp)
}
