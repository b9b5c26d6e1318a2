package filings

import "github.com/ternarybob/finbot/internal/models"

// periodShape is how a metric is reported: over a period or at a point in time
type periodShape int

const (
	shapeDuration periodShape = iota
	shapeInstant
)

func (s periodShape) String() string {
	if s == shapeInstant {
		return "instant"
	}
	return "duration"
}

// unitKind selects the canonical unit an observation must be reported in
type unitKind int

const (
	unitCurrency unitKind = iota
	unitPerShare
	unitShares
)

// canonical returns the XBRL unit name for the kind in the given reporting currency
func (k unitKind) canonical(currency string) string {
	switch k {
	case unitPerShare:
		return currency + "/shares"
	case unitShares:
		return "shares"
	default:
		return currency
	}
}

// conceptRef names one XBRL concept within a taxonomy
type conceptRef struct {
	Taxonomy string
	Name     string
}

func (c conceptRef) String() string {
	return c.Taxonomy + ":" + c.Name
}

func gaap(name string) conceptRef { return conceptRef{Taxonomy: "us-gaap", Name: name} }
func ifrs(name string) conceptRef { return conceptRef{Taxonomy: "ifrs-full", Name: name} }

// metricSpec binds a metric to its candidate concepts in priority order
type metricSpec struct {
	Metric   models.Metric
	Concepts []conceptRef
	Shape    periodShape
	Unit     unitKind
}

// metricSpecs is the closed set of extracted metrics. Concepts outside it are ignored.
var metricSpecs = []metricSpec{
	{models.MetricRevenue, []conceptRef{
		gaap("Revenues"),
		gaap("RevenueFromContractWithCustomerExcludingAssessedTax"),
		gaap("SalesRevenueNet"),
		ifrs("Revenue"),
	}, shapeDuration, unitCurrency},
	{models.MetricGrossProfit, []conceptRef{gaap("GrossProfit"), ifrs("GrossProfit")}, shapeDuration, unitCurrency},
	{models.MetricOperatingIncome, []conceptRef{gaap("OperatingIncomeLoss"), ifrs("ProfitLossFromOperatingActivities")}, shapeDuration, unitCurrency},
	{models.MetricNetIncome, []conceptRef{gaap("NetIncomeLoss"), ifrs("ProfitLoss")}, shapeDuration, unitCurrency},
	{models.MetricEPSDiluted, []conceptRef{gaap("EarningsPerShareDiluted"), ifrs("DilutedEarningsLossPerShare")}, shapeDuration, unitPerShare},
	{models.MetricEPSBasic, []conceptRef{gaap("EarningsPerShareBasic"), ifrs("BasicEarningsLossPerShare")}, shapeDuration, unitPerShare},
	{models.MetricSharesOutstanding, []conceptRef{gaap("CommonStockSharesOutstanding")}, shapeInstant, unitShares},
	{models.MetricTotalAssets, []conceptRef{gaap("Assets"), ifrs("Assets")}, shapeInstant, unitCurrency},
	{models.MetricTotalLiabilities, []conceptRef{gaap("Liabilities"), ifrs("Liabilities")}, shapeInstant, unitCurrency},
	{models.MetricStockholdersEquity, []conceptRef{gaap("StockholdersEquity"), ifrs("Equity")}, shapeInstant, unitCurrency},
	{models.MetricCash, []conceptRef{
		gaap("CashAndCashEquivalentsAtCarryingValue"),
		gaap("CashCashEquivalentsAndShortTermInvestments"),
		ifrs("CashAndCashEquivalents"),
	}, shapeInstant, unitCurrency},
	{models.MetricLongTermDebt, []conceptRef{gaap("LongTermDebt"), gaap("LongTermDebtNoncurrent")}, shapeInstant, unitCurrency},
	{models.MetricCurrentAssets, []conceptRef{gaap("AssetsCurrent"), ifrs("CurrentAssets")}, shapeInstant, unitCurrency},
	{models.MetricCurrentLiabilities, []conceptRef{gaap("LiabilitiesCurrent"), ifrs("CurrentLiabilities")}, shapeInstant, unitCurrency},
	{models.MetricOperatingCashFlow, []conceptRef{
		gaap("NetCashProvidedByUsedInOperatingActivities"),
		ifrs("CashFlowsFromUsedInOperatingActivities"),
	}, shapeDuration, unitCurrency},
	{models.MetricCapex, []conceptRef{
		gaap("PaymentsToAcquirePropertyPlantAndEquipment"),
		ifrs("PurchaseOfPropertyPlantAndEquipmentClassifiedAsInvestingActivities"),
	}, shapeDuration, unitCurrency},
	{models.MetricDividendsPaid, []conceptRef{gaap("PaymentsOfDividends"), ifrs("DividendsPaidClassifiedAsFinancingActivities")}, shapeDuration, unitCurrency},
}

// Metrics lists the extracted metrics in display order
func Metrics() []models.Metric {
	out := make([]models.Metric, len(metricSpecs))
	for i, spec := range metricSpecs {
		out[i] = spec.Metric
	}
	return out
}

// periodClass is the report cadence an observation belongs to
type periodClass int

const (
	classNone periodClass = iota
	classAnnual
	classQuarterly
)

var annualForms = map[string]bool{
	"10-K": true, "10-K/A": true,
	"20-F": true, "20-F/A": true,
	"40-F": true, "40-F/A": true,
}

var quarterlyForms = map[string]bool{
	"10-Q": true, "10-Q/A": true,
}

// formClass classifies a periodic report form; other forms (8-K, S-1, ...) yield classNone
func formClass(form string) periodClass {
	switch {
	case annualForms[form]:
		return classAnnual
	case quarterlyForms[form]:
		return classQuarterly
	default:
		return classNone
	}
}

// Duration spans in days, inclusive on both ends
const (
	quarterlyMinDays = 80
	quarterlyMaxDays = 100
	annualMinDays    = 350
	annualMaxDays    = 380
)

// spanClass classifies a duration by its length. Half-year and nine-month
// year-to-date spans fall in neither range.
func spanClass(days int) periodClass {
	switch {
	case days >= quarterlyMinDays && days <= quarterlyMaxDays:
		return classQuarterly
	case days >= annualMinDays && days <= annualMaxDays:
		return classAnnual
	default:
		return classNone
	}
}
