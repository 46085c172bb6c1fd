package processors

import (
	"math"

	"github.com/alejo7774/crypto-tax-calculator-2025/src/models"
	"github.com/alejo7774/crypto-tax-calculator-2025/src/utils"
)

// TaxTier is one band of a progressive schedule. Width is the size of the
// band, not its cumulative upper bound; the last band is unbounded.
type TaxTier struct {
	Width float64
	Rate  float64
}

// TaxSchedule holds the rates the estimator applies: a flat rate for
// miscellaneous crypto income and progressive tiers for capital gains.
// Schedules are immutable configuration passed in at construction.
type TaxSchedule struct {
	IncomeRate float64
	GainsTiers []TaxTier
}

// DefaultSchedule is the 2024 Spanish savings-income scale (IRPF).
func DefaultSchedule() TaxSchedule {
	return TaxSchedule{
		IncomeRate: 0.19,
		GainsTiers: []TaxTier{
			{Width: 6_000, Rate: 0.19},
			{Width: 44_000, Rate: 0.21},
			{Width: 150_000, Rate: 0.23},
			{Width: math.Inf(1), Rate: 0.26},
		},
	}
}

// TaxEstimator derives the two independent tax estimates from aggregated
// inputs. Both estimates are pure functions of the totals; no per-asset or
// per-lot breakdown is kept.
type TaxEstimator struct {
	schedule TaxSchedule
}

func NewTaxEstimator(schedule TaxSchedule) *TaxEstimator {
	return &TaxEstimator{schedule: schedule}
}

// EstimateIncomeTax applies the flat income rate to the summed income values.
// An empty set yields a zero estimate.
func (t *TaxEstimator) EstimateIncomeTax(incomes []models.IncomeRecord) models.IncomeTaxEstimate {
	total := 0.0
	for _, record := range incomes {
		total += record.ValueEUR
	}
	return models.IncomeTaxEstimate{
		TotalIncomeEUR:  total,
		EstimatedTaxEUR: utils.RoundFloat(total*t.schedule.IncomeRate, 2),
	}
}

// EstimateGainsTax pushes the summed gain through the progressive tiers,
// consuming each band in order until the gain is spent. A net loss produces
// zero tax; the (possibly negative) base is still reported.
func (t *TaxEstimator) EstimateGainsTax(disposals []models.DisposalRecord) models.GainsTaxEstimate {
	totalGain := 0.0
	for _, record := range disposals {
		totalGain += record.GainOrLossEUR
	}

	remaining := totalGain
	tax := 0.0
	for _, tier := range t.schedule.GainsTiers {
		if remaining <= 0 {
			break
		}
		taken := math.Min(remaining, tier.Width)
		tax += taken * tier.Rate
		remaining -= taken
	}

	return models.GainsTaxEstimate{
		TotalGainEUR:    utils.RoundFloat(totalGain, 2),
		EstimatedTaxEUR: utils.RoundFloat(tax, 2),
	}
}
