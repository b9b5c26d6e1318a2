package filings

import (
	"github.com/shopspring/decimal"
	"github.com/ternarybob/finbot/internal/models"
)

const ratioPrecision = 6

// Derive computes ratios from the annual values. Inputs must share a period end,
// otherwise the ratio is left nil.
func Derive(record *models.FilingsRecord) models.DerivedMetrics {
	revenue := record.Annual(models.MetricRevenue)

	derived := models.DerivedMetrics{
		GrossMargin:     ratio(record.Annual(models.MetricGrossProfit), revenue),
		OperatingMargin: ratio(record.Annual(models.MetricOperatingIncome), revenue),
		NetMargin:       ratio(record.Annual(models.MetricNetIncome), revenue),
		DebtRatio:       ratio(record.Annual(models.MetricTotalLiabilities), record.Annual(models.MetricTotalAssets)),
		CurrentRatio:    ratio(record.Annual(models.MetricCurrentAssets), record.Annual(models.MetricCurrentLiabilities)),
	}

	// Capex is reported as a positive payment; subtract its magnitude either way
	cfo := record.Annual(models.MetricOperatingCashFlow)
	capex := record.Annual(models.MetricCapex)
	if cfo != nil && capex != nil && cfo.PeriodEnd.Equal(capex.PeriodEnd) {
		fcf := cfo.Value.Sub(capex.Value.Abs())
		derived.FreeCashFlow = &fcf
	}

	return derived
}

func ratio(numerator, denominator *models.MetricValue) *decimal.Decimal {
	if numerator == nil || denominator == nil {
		return nil
	}
	if !numerator.PeriodEnd.Equal(denominator.PeriodEnd) || denominator.Value.IsZero() {
		return nil
	}
	r := numerator.Value.DivRound(denominator.Value, ratioPrecision)
	return &r
}
