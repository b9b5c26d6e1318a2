package common

import (
	"strings"
)

// Ticker represents a parsed exchange-qualified ticker.
// Accepted forms: EXCHANGE:CODE ("WSE:CDR"), CODE.SUFFIX ("CDR.WA") and bare CODE ("NVDA").
type Ticker struct {
	// Exchange is the exchange code (e.g., "US", "WSE", "LSE")
	Exchange string
	// Code is the security code without any exchange suffix (e.g., "CDR", "BRK.B")
	Code string
	// Raw is the original ticker string
	Raw string
}

// ExchangeToSuffix maps exchange codes to Finnhub symbol suffixes. US listings carry none.
var ExchangeToSuffix = map[string]string{
	"US":       "",
	"NYSE":     "",
	"NASDAQ":   "",
	"AMEX":     "",
	"WSE":      ".WA",
	"GPW":      ".WA",
	"LSE":      ".L",
	"XETRA":    ".DE",
	"TSX":      ".TO",
	"ASX":      ".AX",
	"HKEX":     ".HK",
	"TSE":      ".T",
	"EURONEXT": ".PA",
	"SIX":      ".SW",
}

// suffixToExchange is the canonical reverse of ExchangeToSuffix
var suffixToExchange = map[string]string{
	".WA": "WSE",
	".L":  "LSE",
	".DE": "XETRA",
	".TO": "TSX",
	".AX": "ASX",
	".HK": "HKEX",
	".T":  "TSE",
	".PA": "EURONEXT",
	".SW": "SIX",
}

// DefaultExchange is used for tickers without an exchange qualifier
var DefaultExchange = "US"

// ParseTicker parses an exchange-qualified ticker string.
//   - "WSE:CDR" -> Exchange="WSE", Code="CDR"
//   - "CDR.WA"  -> Exchange="WSE", Code="CDR" (known suffix)
//   - "BRK.B"   -> Exchange=DefaultExchange, Code="BRK.B" (unknown suffix is part of the code)
//   - "nvda"    -> Exchange=DefaultExchange, Code="NVDA"
func ParseTicker(ticker string) Ticker {
	raw := ticker
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if ticker == "" {
		return Ticker{}
	}

	if idx := strings.Index(ticker, ":"); idx > 0 {
		return Ticker{
			Exchange: ticker[:idx],
			Code:     ticker[idx+1:],
			Raw:      raw,
		}
	}

	if idx := strings.LastIndex(ticker, "."); idx > 0 {
		if exchange, ok := suffixToExchange[ticker[idx:]]; ok {
			return Ticker{
				Exchange: exchange,
				Code:     ticker[:idx],
				Raw:      raw,
			}
		}
	}

	return Ticker{
		Exchange: DefaultExchange,
		Code:     ticker,
		Raw:      raw,
	}
}

// String returns the EXCHANGE:CODE form
func (t Ticker) String() string {
	if t.Code == "" {
		return ""
	}
	return t.Exchange + ":" + t.Code
}

// Symbol returns the Finnhub symbol, e.g. "CDR.WA" or "NVDA".
// Unknown exchanges fall back to the bare code.
func (t Ticker) Symbol() string {
	if t.Code == "" {
		return ""
	}
	return t.Code + ExchangeToSuffix[t.Exchange]
}

// IsUS reports whether the listing is on a US exchange, the only market with SEC filings by ticker
func (t Ticker) IsUS() bool {
	suffix, ok := ExchangeToSuffix[t.Exchange]
	return ok && suffix == ""
}
