package reports

import (
	"fmt"
	"sort"

	"github.com/xuri/excelize/v2"

	"github.com/alejo7774/crypto-tax-calculator-2025/src/logger"
	"github.com/alejo7774/crypto-tax-calculator-2025/src/models"
	"github.com/alejo7774/crypto-tax-calculator-2025/src/security/validation"
	"github.com/alejo7774/crypto-tax-calculator-2025/src/utils"
)

const (
	sheetGains   = "Capital Gains"
	sheetIncome  = "Income"
	sheetNotes   = "Filing Notes"
	currencyFmt  = `#,##0.00 "€"`
	quantityFmt  = `#,##0.00000000`
	headerFillBG = "DDEBF7"
)

// ReportData is everything the spreadsheet shows. The service layer fills it
// from a user's stored transactions.
type ReportData struct {
	TaxYear   int
	Disposals []models.DisposalRecord
	Income    []models.IncomeRecord
	Holdings  map[string][]models.Lot
	GainsTax  models.GainsTaxEstimate
	IncomeTax models.IncomeTaxEstimate
}

// ExcelRenderer writes a ReportData as a three-sheet XLSX workbook laid out
// for a Modelo 100 filing.
type ExcelRenderer struct{}

func NewExcelRenderer() *ExcelRenderer {
	return &ExcelRenderer{}
}

func (r *ExcelRenderer) Render(data *ReportData) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	styles, err := newWorkbookStyles(f)
	if err != nil {
		return nil, fmt.Errorf("failed to create workbook styles: %w", err)
	}

	if err := r.writeGainsSheet(f, styles, data); err != nil {
		return nil, err
	}
	if err := r.writeIncomeSheet(f, styles, data); err != nil {
		return nil, err
	}
	if err := r.writeNotesSheet(f, styles, data); err != nil {
		return nil, err
	}

	// The default sheet excelize creates is replaced by Capital Gains.
	if err := f.DeleteSheet("Sheet1"); err != nil {
		logger.L.Debug("Could not delete default sheet", "error", err)
	}
	idx, err := f.GetSheetIndex(sheetGains)
	if err == nil {
		f.SetActiveSheet(idx)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

type workbookStyles struct {
	header   int
	currency int
	quantity int
	bold     int
	total    int
}

func newWorkbookStyles(f *excelize.File) (*workbookStyles, error) {
	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{headerFillBG}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "bottom", Color: "999999", Style: 1},
		},
	})
	if err != nil {
		return nil, err
	}
	curFmt := currencyFmt
	currency, err := f.NewStyle(&excelize.Style{CustomNumFmt: &curFmt})
	if err != nil {
		return nil, err
	}
	qtyFmt := quantityFmt
	quantity, err := f.NewStyle(&excelize.Style{CustomNumFmt: &qtyFmt})
	if err != nil {
		return nil, err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}
	total, err := f.NewStyle(&excelize.Style{
		Font:         &excelize.Font{Bold: true},
		CustomNumFmt: &curFmt,
	})
	if err != nil {
		return nil, err
	}
	return &workbookStyles{header: header, currency: currency, quantity: quantity, bold: bold, total: total}, nil
}

func (r *ExcelRenderer) writeGainsSheet(f *excelize.File, styles *workbookStyles, data *ReportData) error {
	if _, err := f.NewSheet(sheetGains); err != nil {
		return err
	}

	headers := []string{
		"Disposal Date", "Asset", "Type", "Quantity",
		"Gross Proceeds (EUR)", "Fees (EUR)", "Net Proceeds (EUR)",
		"Acquisition Cost (EUR)", "Gain/Loss (EUR)", "Matched Lots", "Notes",
	}
	if err := writeHeaderRow(f, sheetGains, headers, styles.header); err != nil {
		return err
	}

	rowIdx := 2
	for _, d := range data.Disposals {
		values := []interface{}{
			utils.FormatDay(d.DisposalDate),
			clean(d.Asset),
			clean(string(d.Kind)),
			d.QuantityDisposed,
			d.GrossProceedsEUR,
			d.FeeEUR,
			d.NetProceedsEUR,
			d.TotalAcquisitionCostEUR,
			d.GainOrLossEUR,
			clean(d.SourceLots),
			clean(d.ShortfallNote),
		}
		if err := f.SetSheetRow(sheetGains, fmt.Sprintf("A%d", rowIdx), &values); err != nil {
			return err
		}
		f.SetCellStyle(sheetGains, fmt.Sprintf("D%d", rowIdx), fmt.Sprintf("D%d", rowIdx), styles.quantity)
		f.SetCellStyle(sheetGains, fmt.Sprintf("E%d", rowIdx), fmt.Sprintf("I%d", rowIdx), styles.currency)
		rowIdx++
	}

	if len(data.Disposals) == 0 {
		f.SetCellValue(sheetGains, "A2", "No disposals recorded for this tax year.")
		rowIdx = 3
	} else {
		// TOTAL row summing the gain column with a live formula.
		f.SetCellValue(sheetGains, fmt.Sprintf("A%d", rowIdx), "TOTAL")
		f.SetCellFormula(sheetGains, fmt.Sprintf("I%d", rowIdx), fmt.Sprintf("SUM(I2:I%d)", rowIdx-1))
		f.SetCellStyle(sheetGains, fmt.Sprintf("A%d", rowIdx), fmt.Sprintf("A%d", rowIdx), styles.bold)
		f.SetCellStyle(sheetGains, fmt.Sprintf("I%d", rowIdx), fmt.Sprintf("I%d", rowIdx), styles.total)
		rowIdx++
	}

	rowIdx++
	f.SetCellValue(sheetGains, fmt.Sprintf("A%d", rowIdx), "Estimated tax on savings base")
	f.SetCellValue(sheetGains, fmt.Sprintf("B%d", rowIdx), data.GainsTax.EstimatedTaxEUR)
	f.SetCellStyle(sheetGains, fmt.Sprintf("A%d", rowIdx), fmt.Sprintf("A%d", rowIdx), styles.bold)
	f.SetCellStyle(sheetGains, fmt.Sprintf("B%d", rowIdx), fmt.Sprintf("B%d", rowIdx), styles.total)

	f.SetColWidth(sheetGains, "A", "A", 14)
	f.SetColWidth(sheetGains, "B", "C", 12)
	f.SetColWidth(sheetGains, "D", "I", 18)
	f.SetColWidth(sheetGains, "J", "K", 40)
	if len(data.Disposals) > 0 {
		f.AutoFilter(sheetGains, fmt.Sprintf("A1:K%d", len(data.Disposals)+1), nil)
	}
	return freezeHeader(f, sheetGains)
}

func (r *ExcelRenderer) writeIncomeSheet(f *excelize.File, styles *workbookStyles, data *ReportData) error {
	if _, err := f.NewSheet(sheetIncome); err != nil {
		return err
	}

	headers := []string{"Date", "Asset", "Quantity", "Value (EUR)", "Fees (EUR)"}
	if err := writeHeaderRow(f, sheetIncome, headers, styles.header); err != nil {
		return err
	}

	rowIdx := 2
	for _, in := range data.Income {
		values := []interface{}{
			utils.FormatDay(in.Date),
			clean(in.Asset),
			in.Quantity,
			in.ValueEUR,
			in.FeeEUR,
		}
		if err := f.SetSheetRow(sheetIncome, fmt.Sprintf("A%d", rowIdx), &values); err != nil {
			return err
		}
		f.SetCellStyle(sheetIncome, fmt.Sprintf("C%d", rowIdx), fmt.Sprintf("C%d", rowIdx), styles.quantity)
		f.SetCellStyle(sheetIncome, fmt.Sprintf("D%d", rowIdx), fmt.Sprintf("E%d", rowIdx), styles.currency)
		rowIdx++
	}

	if len(data.Income) == 0 {
		f.SetCellValue(sheetIncome, "A2", "No crypto income recorded for this tax year.")
		rowIdx = 3
	} else {
		f.SetCellValue(sheetIncome, fmt.Sprintf("A%d", rowIdx), "TOTAL")
		f.SetCellFormula(sheetIncome, fmt.Sprintf("D%d", rowIdx), fmt.Sprintf("SUM(D2:D%d)", rowIdx-1))
		f.SetCellStyle(sheetIncome, fmt.Sprintf("A%d", rowIdx), fmt.Sprintf("A%d", rowIdx), styles.bold)
		f.SetCellStyle(sheetIncome, fmt.Sprintf("D%d", rowIdx), fmt.Sprintf("D%d", rowIdx), styles.total)
		rowIdx++
	}

	rowIdx++
	f.SetCellValue(sheetIncome, fmt.Sprintf("A%d", rowIdx), "Estimated tax on income")
	f.SetCellValue(sheetIncome, fmt.Sprintf("B%d", rowIdx), data.IncomeTax.EstimatedTaxEUR)
	f.SetCellStyle(sheetIncome, fmt.Sprintf("A%d", rowIdx), fmt.Sprintf("A%d", rowIdx), styles.bold)
	f.SetCellStyle(sheetIncome, fmt.Sprintf("B%d", rowIdx), fmt.Sprintf("B%d", rowIdx), styles.total)

	f.SetColWidth(sheetIncome, "A", "B", 14)
	f.SetColWidth(sheetIncome, "C", "E", 18)
	if len(data.Income) > 0 {
		f.AutoFilter(sheetIncome, fmt.Sprintf("A1:E%d", len(data.Income)+1), nil)
	}
	return freezeHeader(f, sheetIncome)
}

func (r *ExcelRenderer) writeNotesSheet(f *excelize.File, styles *workbookStyles, data *ReportData) error {
	if _, err := f.NewSheet(sheetNotes); err != nil {
		return err
	}

	f.SetCellValue(sheetNotes, "A1", fmt.Sprintf("IRPF Modelo 100 filing guidance, tax year %d", data.TaxYear))
	f.SetCellStyle(sheetNotes, "A1", "A1", styles.header)

	notes := []string{
		"1. Capital gains (crypto disposals):",
		"- Declare in: boxes 180 to 185 (savings taxable base).",
		fmt.Sprintf("- Amount: %.2f EUR (estimated tax %.2f EUR).", data.GainsTax.TotalGainEUR, data.GainsTax.EstimatedTaxEUR),
		"",
		"2. Crypto income (staking, airdrops, interest):",
		"- Declare in: box 24 or 030/031 (investment income).",
		fmt.Sprintf("- Amount: %.2f EUR (estimated tax %.2f EUR).", data.IncomeTax.TotalIncomeEUR, data.IncomeTax.EstimatedTaxEUR),
		"",
		"3. Additional notes:",
		"- Losses offset only gains of the same kind.",
		"- Fees from the exports have been deducted automatically.",
		"- Gains are computed first-in first-out per Spanish tax rules.",
		"- This report is an estimate; consult a tax advisor before filing.",
		"- Keep this report and supporting records for at least 4 years.",
	}
	for i, note := range notes {
		f.SetCellValue(sheetNotes, fmt.Sprintf("A%d", i+3), note)
	}

	row := len(notes) + 5
	f.SetCellValue(sheetNotes, fmt.Sprintf("A%d", row), "Remaining holdings (cost basis carried forward)")
	f.SetCellStyle(sheetNotes, fmt.Sprintf("A%d", row), fmt.Sprintf("A%d", row), styles.bold)
	row++
	holdingsHeader := []interface{}{"Asset", "Quantity", "Unit Cost (EUR)", "Acquired"}
	f.SetSheetRow(sheetNotes, fmt.Sprintf("A%d", row), &holdingsHeader)
	f.SetCellStyle(sheetNotes, fmt.Sprintf("A%d", row), fmt.Sprintf("D%d", row), styles.header)
	row++

	assets := make([]string, 0, len(data.Holdings))
	for asset := range data.Holdings {
		assets = append(assets, asset)
	}
	sort.Strings(assets)
	for _, asset := range assets {
		for _, lot := range data.Holdings[asset] {
			values := []interface{}{
				clean(asset),
				lot.RemainingQuantity,
				lot.UnitCostEUR,
				utils.FormatDay(lot.AcquiredOn),
			}
			f.SetSheetRow(sheetNotes, fmt.Sprintf("A%d", row), &values)
			f.SetCellStyle(sheetNotes, fmt.Sprintf("B%d", row), fmt.Sprintf("B%d", row), styles.quantity)
			f.SetCellStyle(sheetNotes, fmt.Sprintf("C%d", row), fmt.Sprintf("C%d", row), styles.currency)
			row++
		}
	}
	if len(assets) == 0 {
		f.SetCellValue(sheetNotes, fmt.Sprintf("A%d", row), "No holdings carried forward.")
	}

	f.SetColWidth(sheetNotes, "A", "A", 80)
	f.SetColWidth(sheetNotes, "B", "D", 18)
	return nil
}

func writeHeaderRow(f *excelize.File, sheet string, headers []string, style int) error {
	values := make([]interface{}, len(headers))
	for i, h := range headers {
		values[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &values); err != nil {
		return err
	}
	lastCol, err := excelize.ColumnNumberToName(len(headers))
	if err != nil {
		return err
	}
	return f.SetCellStyle(sheet, "A1", lastCol+"1", style)
}

func freezeHeader(f *excelize.File, sheet string) error {
	return f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

// clean guards every user-influenced string cell against formula injection
// and unprintable garbage coming from exchange exports.
func clean(s string) string {
	return validation.SanitizeForFormulaInjection(validation.StripUnprintable(s))
}
