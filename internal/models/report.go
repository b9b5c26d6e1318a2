package models

import "time"

// SectionKind identifies the three report sections, in dispatch order
type SectionKind string

const (
	SectionQuote     SectionKind = "quote"
	SectionFilings   SectionKind = "filings"
	SectionNarrative SectionKind = "narrative"
)

// SectionStatus says how a section should be rendered
type SectionStatus string

const (
	SectionOK          SectionStatus = "ok"
	SectionNoData      SectionStatus = "no_data"
	SectionUnavailable SectionStatus = "unavailable"
	SectionOmitted     SectionStatus = "omitted"
)

// Field is one labelled value of a section, already formatted for display
type Field struct {
	Group string `json:"group,omitempty"`
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Link is a titled URL shown under a section
type Link struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Section is one part of a report payload
type Section struct {
	Kind   SectionKind   `json:"kind"`
	Status SectionStatus `json:"status"`
	Title  string        `json:"title"`
	Notice string        `json:"notice,omitempty"`
	Fields []Field       `json:"fields,omitempty"`
	Body   string        `json:"body,omitempty"`
	Links  []Link        `json:"links,omitempty"`
	Footer string        `json:"footer,omitempty"`
}

// Omitted reports whether the section must not be rendered at all
func (s *Section) Omitted() bool {
	return s == nil || s.Status == SectionOmitted
}

// ReportPayload is the three-section report for one entity
type ReportPayload struct {
	RunID       string        `json:"run_id"`
	Entity      TrackedEntity `json:"entity"`
	GeneratedAt time.Time     `json:"generated_at"`
	Quote       Section       `json:"quote"`
	Filings     Section       `json:"filings"`
	Narrative   Section       `json:"narrative"`
	Prompt      string        `json:"-"`
}

// Sections returns the renderable sections in dispatch order, skipping omitted ones
func (p *ReportPayload) Sections() []*Section {
	sections := make([]*Section, 0, 3)
	for _, s := range []*Section{&p.Quote, &p.Filings, &p.Narrative} {
		if !s.Omitted() {
			sections = append(sections, s)
		}
	}
	return sections
}
