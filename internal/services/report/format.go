package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/guregu/null/v6"
	"github.com/shopspring/decimal"
	"github.com/ternarybob/finbot/internal/models"
)

const (
	dateLayout      = "2006-01-02"
	timestampLayout = "2006-01-02 15:04 MST"
)

var (
	thousand = decimal.New(1, 3)
	million  = decimal.New(1, 6)
	billion  = decimal.New(1, 9)
	trillion = decimal.New(1, 12)
)

// formatAmount renders a monetary or count value compactly: 1.23T, 4.56B, 7.89M, 12.3K
func formatAmount(v float64, currency string) string {
	abs := v
	if abs < 0 {
		abs = -abs
	}

	var s string
	switch {
	case abs >= 1e12:
		s = fmt.Sprintf("%.2fT", v/1e12)
	case abs >= 1e9:
		s = fmt.Sprintf("%.2fB", v/1e9)
	case abs >= 1e6:
		s = fmt.Sprintf("%.2fM", v/1e6)
	case abs >= 1e3:
		s = fmt.Sprintf("%.1fK", v/1e3)
	default:
		s = fmt.Sprintf("%.2f", v)
	}
	return strings.TrimSpace(s + " " + currency)
}

func formatPrice(v float64, currency string) string {
	return strings.TrimSpace(fmt.Sprintf("%.2f %s", v, currency))
}

// formatPercent renders a fraction as a percentage with one decimal
func formatPercent(v float64) string {
	return fmt.Sprintf("%.1f%%", v*100)
}

func formatChange(v float64) string {
	arrow := "▲"
	if v < 0 {
		arrow = "▼"
	}
	return fmt.Sprintf("%s %+.2f%%", arrow, v*100)
}

func formatNumber(v float64) string {
	return fmt.Sprintf("%.2f", v)
}

func formatMultiple(v float64) string {
	return fmt.Sprintf("%.2f×", v)
}

// formatDecimal renders an XBRL value in its unit: currency amounts and share
// counts compactly, per-share values with two decimals.
func formatDecimal(d decimal.Decimal, unit string) string {
	switch {
	case strings.HasSuffix(unit, "/shares"):
		return d.StringFixed(2) + " " + strings.TrimSuffix(unit, "/shares") + "/share"
	case unit == "shares":
		return compactDecimal(d) + " shares"
	default:
		return strings.TrimSpace(compactDecimal(d) + " " + unit)
	}
}

func compactDecimal(d decimal.Decimal) string {
	abs := d.Abs()
	switch {
	case abs.GreaterThanOrEqual(trillion):
		return d.Div(trillion).StringFixed(2) + "T"
	case abs.GreaterThanOrEqual(billion):
		return d.Div(billion).StringFixed(2) + "B"
	case abs.GreaterThanOrEqual(million):
		return d.Div(million).StringFixed(2) + "M"
	case abs.GreaterThanOrEqual(thousand):
		return d.Div(thousand).StringFixed(1) + "K"
	default:
		return d.StringFixed(0)
	}
}

func formatDecimalPercent(d decimal.Decimal) string {
	return d.Mul(decimal.NewFromInt(100)).StringFixed(1) + "%"
}

func formatDate(t time.Time) string {
	return t.Format(dateLayout)
}

// fieldList accumulates section fields, dropping absent values
type fieldList struct {
	group  string
	fields []models.Field
}

func (l *fieldList) in(group string) *fieldList {
	l.group = group
	return l
}

func (l *fieldList) add(name, value string) {
	if value == "" {
		return
	}
	l.fields = append(l.fields, models.Field{Group: l.group, Name: name, Value: value})
}

func (l *fieldList) float(name string, v null.Float, format func(float64) string) {
	if !v.Valid {
		return
	}
	l.add(name, format(v.Float64))
}

// with binds a currency to a two-argument formatter
func with(currency string, format func(float64, string) string) func(float64) string {
	return func(v float64) string { return format(v, currency) }
}
