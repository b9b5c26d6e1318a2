package edgar

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when SEC has no document for the identifier,
// which is the normal answer for ETFs and foreign listings.
var ErrNotFound = errors.New("edgar: document not found")

// CompanyFacts is the api/xbrl/companyfacts document: taxonomy -> concept -> facts.
// Concepts decode one at a time; a concept SEC ships in an unexpected shape is
// recorded in malformed and the rest of the document stays usable.
type CompanyFacts struct {
	CIK        json.Number                   `json:"cik"`
	EntityName string                        `json:"entityName"`
	Facts      map[string]map[string]Concept `json:"facts"`

	malformed map[string]error
}

// UnmarshalJSON decodes the facts tree level by level so a malformed taxonomy
// or concept only costs that taxonomy or concept.
func (cf *CompanyFacts) UnmarshalJSON(data []byte) error {
	var doc struct {
		CIK        json.Number                `json:"cik"`
		EntityName string                     `json:"entityName"`
		Facts      map[string]json.RawMessage `json:"facts"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}

	cf.CIK = doc.CIK
	cf.EntityName = doc.EntityName
	cf.Facts = make(map[string]map[string]Concept, len(doc.Facts))
	cf.malformed = nil

	for taxonomy, rawTaxonomy := range doc.Facts {
		var rawConcepts map[string]json.RawMessage
		if err := json.Unmarshal(rawTaxonomy, &rawConcepts); err != nil {
			cf.markMalformed(taxonomy, "", err)
			continue
		}

		concepts := make(map[string]Concept, len(rawConcepts))
		for name, rawConcept := range rawConcepts {
			var concept Concept
			if err := json.Unmarshal(rawConcept, &concept); err != nil {
				cf.markMalformed(taxonomy, name, err)
				continue
			}
			concepts[name] = concept
		}
		cf.Facts[taxonomy] = concepts
	}
	return nil
}

func malformedKey(taxonomy, name string) string {
	return taxonomy + "/" + name
}

func (cf *CompanyFacts) markMalformed(taxonomy, name string, err error) {
	if cf.malformed == nil {
		cf.malformed = make(map[string]error)
	}
	cf.malformed[malformedKey(taxonomy, name)] = err
}

// Malformed returns the decode error of a concept that was dropped from the
// document, or of its whole taxonomy. Nil when the concept decoded or is absent.
func (cf *CompanyFacts) Malformed(taxonomy, name string) error {
	if cf == nil || cf.malformed == nil {
		return nil
	}
	if err, ok := cf.malformed[malformedKey(taxonomy, name)]; ok {
		return err
	}
	return cf.malformed[malformedKey(taxonomy, "")]
}

// Concept is one XBRL concept. Observations stay raw per unit so a malformed
// entry only costs that entry, never the whole document.
type Concept struct {
	Label       string                       `json:"label"`
	Description string                       `json:"description"`
	Units       map[string][]json.RawMessage `json:"units"`

	unitErrs map[string]error
}

// UnmarshalJSON tolerates non-string labels and units that are not arrays;
// a bad unit is kept by name and reported by Facts.
func (c *Concept) UnmarshalJSON(data []byte) error {
	var raw struct {
		Label       json.RawMessage            `json:"label"`
		Description json.RawMessage            `json:"description"`
		Units       map[string]json.RawMessage `json:"units"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*c = Concept{Units: make(map[string][]json.RawMessage, len(raw.Units))}
	_ = json.Unmarshal(raw.Label, &c.Label)
	_ = json.Unmarshal(raw.Description, &c.Description)

	for unit, rawUnit := range raw.Units {
		var entries []json.RawMessage
		if err := json.Unmarshal(rawUnit, &entries); err != nil {
			if c.unitErrs == nil {
				c.unitErrs = make(map[string]error)
			}
			c.unitErrs[unit] = fmt.Errorf("%s: %w", unit, err)
			c.Units[unit] = nil
			continue
		}
		c.Units[unit] = entries
	}
	return nil
}

// Fact is one reported observation
type Fact struct {
	Val   decimal.Decimal `json:"val"`
	Start string          `json:"start,omitempty"` // empty for instants
	End   string          `json:"end"`
	Accn  string          `json:"accn"`
	FY    int             `json:"fy"`
	FP    string          `json:"fp"`
	Form  string          `json:"form"`
	Filed string          `json:"filed"`
	Frame string          `json:"frame,omitempty"`
}

// Concept looks up a concept in a taxonomy ("us-gaap", "ifrs-full", "dei")
func (cf *CompanyFacts) Concept(taxonomy, name string) (Concept, bool) {
	if cf == nil || cf.Facts == nil {
		return Concept{}, false
	}
	concepts, ok := cf.Facts[taxonomy]
	if !ok {
		return Concept{}, false
	}
	concept, ok := concepts[name]
	return concept, ok
}

// Facts decodes the observations reported in unit. Entries that fail to decode
// are returned as errors alongside the good ones.
func (c Concept) Facts(unit string) ([]Fact, []error) {
	var errs []error
	if err, ok := c.unitErrs[unit]; ok {
		errs = append(errs, err)
	}
	raw := c.Units[unit]
	facts := make([]Fact, 0, len(raw))
	for i, entry := range raw {
		var fact Fact
		if err := json.Unmarshal(entry, &fact); err != nil {
			errs = append(errs, fmt.Errorf("%s[%d]: %w", unit, i, err))
			continue
		}
		facts = append(facts, fact)
	}
	return facts, errs
}

// UnitNames lists the units the concept is reported in
func (c Concept) UnitNames() []string {
	names := make([]string, 0, len(c.Units))
	for name := range c.Units {
		names = append(names, name)
	}
	return names
}

// Submissions is the submissions/CIK##########.json document (recent filings only)
type Submissions struct {
	CIK     string   `json:"cik"`
	Name    string   `json:"name"`
	Tickers []string `json:"tickers"`
	Filings struct {
		Recent RecentFilings `json:"recent"`
	} `json:"filings"`
}

// RecentFilings is the column-oriented recent filings table
type RecentFilings struct {
	AccessionNumber []string `json:"accessionNumber"`
	FilingDate      []string `json:"filingDate"`
	ReportDate      []string `json:"reportDate"`
	Form            []string `json:"form"`
	PrimaryDocument []string `json:"primaryDocument"`
}

// Filing is one row of RecentFilings
type Filing struct {
	AccessionNumber string
	FilingDate      string
	ReportDate      string
	Form            string
	PrimaryDocument string
}

// Rows converts the column table to rows, stopping at the shortest mandatory column
func (r RecentFilings) Rows() []Filing {
	n := len(r.AccessionNumber)
	if len(r.FilingDate) < n {
		n = len(r.FilingDate)
	}
	if len(r.Form) < n {
		n = len(r.Form)
	}

	rows := make([]Filing, 0, n)
	for i := 0; i < n; i++ {
		row := Filing{
			AccessionNumber: r.AccessionNumber[i],
			FilingDate:      r.FilingDate[i],
			Form:            r.Form[i],
		}
		if i < len(r.ReportDate) {
			row.ReportDate = r.ReportDate[i]
		}
		if i < len(r.PrimaryDocument) {
			row.PrimaryDocument = r.PrimaryDocument[i]
		}
		rows = append(rows, row)
	}
	return rows
}

// tickerEntry is one value of files/company_tickers.json
type tickerEntry struct {
	CIK    int64  `json:"cik_str"`
	Ticker string `json:"ticker"`
	Title  string `json:"title"`
}

// CompanyTicker is a resolved ticker -> CIK mapping
type CompanyTicker struct {
	CIK    string
	Ticker string
	Title  string
}

// APIError represents a non-success response from SEC.
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("SEC API error: %s (status: %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

// Unwrap maps 404 onto ErrNotFound so callers can use errors.Is
func (e *APIError) Unwrap() error {
	if e.StatusCode == 404 {
		return ErrNotFound
	}
	return nil
}

// PadCIK formats a numeric CIK as the ten-digit form used in SEC URLs
func PadCIK(cik string) string {
	cik = strings.TrimPrefix(strings.ToUpper(strings.TrimSpace(cik)), "CIK")
	if len(cik) >= 10 {
		return cik
	}
	return strings.Repeat("0", 10-len(cik)) + cik
}
