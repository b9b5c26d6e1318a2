// Package filings extracts normalized financial-statement metrics from SEC
// companyfacts documents.
package filings

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/ternarybob/finbot/internal/edgar"
	"github.com/ternarybob/finbot/internal/models"
)

const (
	// DefaultCurrency is the reporting currency assumed when an entity names none
	DefaultCurrency = "USD"

	dateLayout = "2006-01-02"
)

// ExtractOptions tune one extraction
type ExtractOptions struct {
	// Currency is the reporting currency of monetary concepts (default USD)
	Currency string
}

// observation is one fact that passed the form, unit and date checks
type observation struct {
	value     decimal.Decimal
	unit      string
	concept   conceptRef
	priority  int // index of the concept within the metric's candidates
	seq       int // first-seen order across the whole metric
	start     *time.Time
	end       time.Time
	filed     time.Time
	form      string
	fy        int
	fp        string
	accession string
	class     periodClass
}

func (o *observation) spanDays() int {
	if o.start == nil {
		return 0
	}
	return int(o.end.Sub(*o.start).Hours() / 24)
}

// supersedes reports whether o wins over other within one period group:
// later filed date, then later accession sequence, then higher concept priority, then first seen.
func (o *observation) supersedes(other *observation) bool {
	if !o.filed.Equal(other.filed) {
		return o.filed.After(other.filed)
	}
	if o.accession != other.accession {
		return accessionAfter(o.accession, other.accession)
	}
	if o.priority != other.priority {
		return o.priority < other.priority
	}
	return o.seq < other.seq
}

// accessionAfter orders accession numbers (0001045810-24-000029) by their
// year and sequence suffix. The ten-digit prefix is the submitting filer or
// agent, so it only breaks a suffix tie; unparseable numbers compare as strings.
func accessionAfter(a, b string) bool {
	ay, as, aok := accessionSuffix(a)
	by, bs, bok := accessionSuffix(b)
	if aok && bok && (ay != by || as != bs) {
		if ay != by {
			return ay > by
		}
		return as > bs
	}
	return a > b
}

func accessionSuffix(accn string) (year, seq int, ok bool) {
	parts := strings.Split(accn, "-")
	if len(parts) != 3 || len(parts[1]) != 2 {
		return 0, 0, false
	}
	year, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, false
	}
	seq, err = strconv.Atoi(parts[2])
	if err != nil {
		return 0, 0, false
	}
	return year, seq, true
}

// samePeriod reports whether two observations of one class describe the same period.
// Instants match on end date; durations when they overlap by at least half the shorter span.
func samePeriod(a, b *observation) bool {
	if a.start == nil || b.start == nil {
		return a.start == nil && b.start == nil && a.end.Equal(b.end)
	}

	overlapStart := *a.start
	if b.start.After(overlapStart) {
		overlapStart = *b.start
	}
	overlapEnd := a.end
	if b.end.Before(overlapEnd) {
		overlapEnd = b.end
	}
	if !overlapEnd.After(overlapStart) {
		return false
	}

	shorter := a.end.Sub(*a.start)
	if span := b.end.Sub(*b.start); span < shorter {
		shorter = span
	}
	return overlapEnd.Sub(overlapStart)*2 >= shorter
}

// Extract converts a companyfacts document into the fixed metric set. It never fails:
// skipped observations are recorded in the record's diagnostics, and a concept absent
// from the document leaves its metric absent.
func Extract(doc *edgar.CompanyFacts, opts ExtractOptions) *models.FilingsRecord {
	currency := strings.ToUpper(strings.TrimSpace(opts.Currency))
	if currency == "" {
		currency = DefaultCurrency
	}

	record := &models.FilingsRecord{
		Currency: currency,
		Metrics:  make(map[models.Metric]models.MetricPair, len(metricSpecs)),
	}
	if doc == nil {
		return record
	}
	if cik := doc.CIK.String(); cik != "" {
		record.CIK = edgar.PadCIK(cik)
	}
	record.EntityName = doc.EntityName

	for _, spec := range metricSpecs {
		observations, diagnostics := collect(doc, spec, currency)
		record.Diagnostics = append(record.Diagnostics, diagnostics...)

		pair := models.MetricPair{
			Annual:    latest(observations, classAnnual),
			Quarterly: latest(observations, classQuarterly),
		}
		if !pair.IsEmpty() {
			record.Metrics[spec.Metric] = pair
		}
	}

	record.Derived = Derive(record)
	return record
}

// collect pools the usable observations of every candidate concept of one metric
func collect(doc *edgar.CompanyFacts, spec metricSpec, currency string) ([]*observation, []string) {
	want := spec.Unit.canonical(currency)

	var observations []*observation
	var diagnostics []string
	seq := 0
	outOfRange := 0

	for priority, ref := range spec.Concepts {
		concept, ok := doc.Concept(ref.Taxonomy, ref.Name)
		if !ok {
			if err := doc.Malformed(ref.Taxonomy, ref.Name); err != nil {
				diagnostics = append(diagnostics, fmt.Sprintf("%s: %s: malformed concept: %v", spec.Metric, ref, err))
			}
			continue
		}

		units := concept.UnitNames()
		sort.Strings(units)
		for _, unit := range units {
			if unit != want {
				diagnostics = append(diagnostics, fmt.Sprintf("%s: %s unit %q skipped, want %q", spec.Metric, ref, unit, want))
				continue
			}

			facts, errs := concept.Facts(unit)
			for _, err := range errs {
				diagnostics = append(diagnostics, fmt.Sprintf("%s: %s: malformed observation: %v", spec.Metric, ref, err))
			}

			for i := range facts {
				fact := &facts[i]
				formCls := formClass(fact.Form)
				if formCls == classNone {
					continue
				}

				obs, err := parseFact(fact, unit)
				if err != nil {
					diagnostics = append(diagnostics, fmt.Sprintf("%s: %s accn %s: %v", spec.Metric, ref, fact.Accn, err))
					continue
				}

				isInstant := obs.start == nil
				if isInstant != (spec.Shape == shapeInstant) {
					diagnostics = append(diagnostics, fmt.Sprintf("%s: %s accn %s: %s observation for %s metric", spec.Metric, ref, fact.Accn, shapeOf(isInstant), spec.Shape))
					continue
				}

				if isInstant {
					obs.class = formCls
				} else {
					obs.class = spanClass(obs.spanDays())
					if obs.class == classNone {
						outOfRange++
						continue
					}
				}

				obs.concept = ref
				obs.priority = priority
				obs.seq = seq
				seq++
				observations = append(observations, obs)
			}
		}
	}

	if outOfRange > 0 {
		diagnostics = append(diagnostics, fmt.Sprintf("%s: %d duration observations outside quarterly and annual spans", spec.Metric, outOfRange))
	}

	return observations, diagnostics
}

func shapeOf(instant bool) periodShape {
	if instant {
		return shapeInstant
	}
	return shapeDuration
}

// parseFact validates the dates of one fact
func parseFact(fact *edgar.Fact, unit string) (*observation, error) {
	end, err := time.Parse(dateLayout, fact.End)
	if err != nil {
		return nil, fmt.Errorf("invalid end date %q", fact.End)
	}
	filed, err := time.Parse(dateLayout, fact.Filed)
	if err != nil {
		return nil, fmt.Errorf("invalid filed date %q", fact.Filed)
	}

	obs := &observation{
		value:     fact.Val,
		unit:      unit,
		end:       end,
		filed:     filed,
		form:      fact.Form,
		fy:        fact.FY,
		fp:        fact.FP,
		accession: fact.Accn,
	}

	if fact.Start != "" {
		start, err := time.Parse(dateLayout, fact.Start)
		if err != nil {
			return nil, fmt.Errorf("invalid start date %q", fact.Start)
		}
		if !end.After(start) {
			return nil, fmt.Errorf("period end %s not after start %s", fact.End, fact.Start)
		}
		obs.start = &start
	}

	return obs, nil
}

// latest groups the observations of one class by period, keeps the winner of each
// group and returns the one with the most recent period end.
func latest(observations []*observation, class periodClass) *models.MetricValue {
	var groups [][]*observation
	for _, obs := range observations {
		if obs.class != class {
			continue
		}
		placed := false
		for i, group := range groups {
			if samePeriod(group[0], obs) {
				groups[i] = append(group, obs)
				placed = true
				break
			}
		}
		if !placed {
			groups = append(groups, []*observation{obs})
		}
	}

	var best *observation
	for _, group := range groups {
		winner := group[0]
		for _, obs := range group[1:] {
			if obs.supersedes(winner) {
				winner = obs
			}
		}

		if best == nil || winner.end.After(best.end) || (winner.end.Equal(best.end) && winner.supersedes(best)) {
			best = winner
		}
	}

	if best == nil {
		return nil
	}
	return best.toValue()
}

func (o *observation) toValue() *models.MetricValue {
	value := &models.MetricValue{
		Value:        o.value,
		Unit:         o.unit,
		Concept:      o.concept.Name,
		PeriodEnd:    o.end,
		Filed:        o.filed,
		Form:         o.form,
		FiscalYear:   o.fy,
		FiscalPeriod: o.fp,
		Accession:    o.accession,
	}
	if o.start != nil {
		start := *o.start
		value.PeriodStart = &start
	}
	return value
}
