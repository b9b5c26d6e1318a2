package models

// TrackedEntity is one security followed by the rotation or resolved for an ad-hoc lookup.
// Values are immutable once built.
type TrackedEntity struct {
	Ticker          string `json:"ticker"`
	CIK             string `json:"cik,omitempty"` // empty: no SEC filings (ETF, foreign listing)
	Currency        string `json:"currency"`
	Name            string `json:"name"`
	Exchange        string `json:"exchange,omitempty"`
	FilingsCurrency string `json:"filings_currency,omitempty"`
	AdHoc           bool   `json:"ad_hoc,omitempty"`
}

// HasFilings reports whether the entity carries a filings identifier
func (e TrackedEntity) HasFilings() bool {
	return e.CIK != ""
}

// DisplayName returns "Name (TICKER)", or just the ticker when no name is known
func (e TrackedEntity) DisplayName() string {
	if e.Name == "" || e.Name == e.Ticker {
		return e.Ticker
	}
	return e.Name + " (" + e.Ticker + ")"
}
