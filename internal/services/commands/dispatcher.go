// Package commands maps on-demand commands to ad-hoc pipeline runs. It never touches
// the rotation cursor or writes send history.
package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/finbot/internal/common"
	"github.com/ternarybob/finbot/internal/edgar"
	"github.com/ternarybob/finbot/internal/interfaces"
	"github.com/ternarybob/finbot/internal/models"
)

// Name is a canonical command name
type Name string

const (
	CmdReport  Name = "report"
	CmdQuote   Name = "quote"
	CmdFilings Name = "filings"
	CmdList    Name = "list"
	CmdHistory Name = "history"
	CmdHelp    Name = "help"
)

// aliases maps every accepted spelling to its command
var aliases = map[string]Name{
	"report": CmdReport, "analyze": CmdReport, "raport": CmdReport,
	"quote": CmdQuote, "stock": CmdQuote, "price": CmdQuote,
	"filings": CmdFilings, "edgar": CmdFilings, "sec": CmdFilings,
	"list": CmdList, "tracked": CmdList, "lista": CmdList,
	"history": CmdHistory, "historia": CmdHistory, "last": CmdHistory,
	"help": CmdHelp, "commands": CmdHelp, "pomoc": CmdHelp,
}

var (
	ErrUnknownCommand  = errors.New("unknown command")
	ErrMissingArgument = errors.New("missing argument")
	ErrUnresolved      = errors.New("identifier could not be resolved")
)

const historyLayout = "2006-01-02 15:04 MST"

// Command is one parsed request
type Command struct {
	Name string
	Args []string
}

// ResponseKind says which field of a Response carries the answer
type ResponseKind string

const (
	ResponseReport  ResponseKind = "report"
	ResponseSection ResponseKind = "section"
	ResponseText    ResponseKind = "text"
)

// Response is the answer to one command
type Response struct {
	Kind     ResponseKind
	Command  Name
	Entity   *models.TrackedEntity
	Payload  *models.ReportPayload // ResponseReport
	Section  *models.Section       // ResponseSection
	Text     string                // ResponseText, markdown
	Entities []models.TrackedEntity
	History  []models.HistoryEntry
}

// ReportRunner is the slice of the report pipeline the dispatcher needs
type ReportRunner interface {
	Run(ctx context.Context, entity models.TrackedEntity, runID string) *models.ReportPayload
	Quote(ctx context.Context, entity models.TrackedEntity) models.Section
	Filings(ctx context.Context, entity models.TrackedEntity) models.Section
}

// CIKLookup resolves a US ticker to its SEC identifier
type CIKLookup interface {
	LookupCIK(ctx context.Context, ticker string) (*edgar.CompanyTicker, error)
}

// Dispatcher answers on-demand commands from every boundary (chat, HTTP, MCP)
type Dispatcher struct {
	entities []models.TrackedEntity
	pipeline ReportRunner
	history  interfaces.HistoryReader
	lookup   CIKLookup
	logger   arbor.ILogger
	prefix   string
}

// NewDispatcher creates a dispatcher. prefix is only used when rendering help.
func NewDispatcher(entities []models.TrackedEntity, pipeline ReportRunner, history interfaces.HistoryReader, lookup CIKLookup, logger arbor.ILogger, prefix string) *Dispatcher {
	return &Dispatcher{
		entities: append([]models.TrackedEntity(nil), entities...),
		pipeline: pipeline,
		history:  history,
		lookup:   lookup,
		logger:   logger,
		prefix:   prefix,
	}
}

// Parse splits a chat message into a command. It returns false when text does not
// start with prefix or names no command.
func Parse(text, prefix string) (Command, bool) {
	text = strings.TrimSpace(text)
	if prefix != "" {
		if !strings.HasPrefix(text, prefix) {
			return Command{}, false
		}
		text = strings.TrimPrefix(text, prefix)
	}

	fields := strings.Fields(text)
	if len(fields) == 0 {
		return Command{}, false
	}
	return Command{Name: fields[0], Args: fields[1:]}, true
}

// Resolve maps a command name or alias to its canonical name
func Resolve(name string) (Name, bool) {
	n, ok := aliases[strings.ToLower(strings.TrimSpace(name))]
	return n, ok
}

// Dispatch runs one command synchronously
func (d *Dispatcher) Dispatch(ctx context.Context, cmd Command) (*Response, error) {
	name, ok := Resolve(cmd.Name)
	if !ok {
		return nil, fmt.Errorf("%w %q, try %shelp", ErrUnknownCommand, cmd.Name, d.prefix)
	}

	start := time.Now()
	d.logger.Info().
		Str("command", string(name)).
		Strs("args", cmd.Args).
		Msg("Dispatching command")

	var (
		resp *Response
		err  error
	)
	switch name {
	case CmdReport, CmdQuote, CmdFilings:
		resp, err = d.lookupCommand(ctx, name, cmd.Args)
	case CmdList:
		resp = d.list()
	case CmdHistory:
		resp = d.historyResponse()
	case CmdHelp:
		resp = &Response{Kind: ResponseText, Text: d.HelpText()}
	}
	if err != nil {
		d.logger.Warn().Err(err).Str("command", string(name)).Msg("Command rejected")
		return nil, err
	}

	resp.Command = name
	d.logger.Debug().
		Str("command", string(name)).
		Dur("elapsed", time.Since(start)).
		Msg("Command completed")
	return resp, nil
}

func (d *Dispatcher) lookupCommand(ctx context.Context, name Name, args []string) (*Response, error) {
	if len(args) == 0 || strings.TrimSpace(args[0]) == "" {
		return nil, fmt.Errorf("%w: usage %s%s %s", ErrMissingArgument, d.prefix, name, argHint(name))
	}

	entity, err := d.ResolveEntity(ctx, args[0], name == CmdFilings)
	if err != nil {
		return nil, err
	}

	switch name {
	case CmdQuote:
		section := d.pipeline.Quote(ctx, entity)
		return &Response{Kind: ResponseSection, Entity: &entity, Section: &section}, nil
	case CmdFilings:
		section := d.pipeline.Filings(ctx, entity)
		return &Response{Kind: ResponseSection, Entity: &entity, Section: &section}, nil
	default:
		payload := d.pipeline.Run(ctx, entity, uuid.New().String())
		return &Response{Kind: ResponseReport, Entity: &entity, Payload: payload}, nil
	}
}

func argHint(name Name) string {
	if name == CmdFilings {
		return "CIK|TICKER"
	}
	return "TICKER"
}

// ResolveEntity turns a user-supplied identifier into an entity. Tracked entities match
// on ticker (case-insensitive); anything else becomes an ad-hoc entity, with its CIK
// looked up for US listings. allowCIK accepts a bare numeric CIK.
func (d *Dispatcher) ResolveEntity(ctx context.Context, id string, allowCIK bool) (models.TrackedEntity, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return models.TrackedEntity{}, fmt.Errorf("%w: empty identifier", ErrUnresolved)
	}

	if allowCIK && isDigits(id) {
		cik := edgar.PadCIK(id)
		for _, e := range d.entities {
			if e.HasFilings() && edgar.PadCIK(e.CIK) == cik {
				return e, nil
			}
		}
		return models.TrackedEntity{Ticker: cik, CIK: cik, AdHoc: true}, nil
	}

	parsed := common.ParseTicker(id)
	if parsed.Code == "" {
		return models.TrackedEntity{}, fmt.Errorf("%w: %q", ErrUnresolved, id)
	}
	for _, e := range d.entities {
		if strings.EqualFold(e.Ticker, id) || strings.EqualFold(e.Ticker, parsed.Symbol()) {
			return e, nil
		}
	}

	entity := models.TrackedEntity{
		Ticker:   parsed.Symbol(),
		Exchange: parsed.Exchange,
		AdHoc:    true,
	}
	if !parsed.IsUS() {
		return entity, nil
	}

	entity.Currency = "USD"
	if d.lookup == nil {
		return entity, nil
	}
	match, err := d.lookup.LookupCIK(ctx, parsed.Code)
	switch {
	case err == nil:
		entity.CIK = match.CIK
		entity.Name = match.Title
	case errors.Is(err, edgar.ErrNotFound):
		// ETFs and funds have no entry in the ticker map
	default:
		d.logger.Warn().Err(err).Str("ticker", entity.Ticker).Msg("CIK lookup failed, continuing without filings")
	}
	return entity, nil
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

func (d *Dispatcher) list() *Response {
	var b strings.Builder
	fmt.Fprintf(&b, "**Tracked entities** (%d)\n", len(d.entities))
	for i, e := range d.entities {
		parts := []string{e.DisplayName()}
		if e.HasFilings() {
			parts = append(parts, "CIK "+e.CIK)
		} else {
			parts = append(parts, "no SEC filings")
		}
		if e.Currency != "" {
			parts = append(parts, e.Currency)
		}
		fmt.Fprintf(&b, "%d. %s\n", i+1, strings.Join(parts, " · "))
	}
	return &Response{
		Kind:     ResponseText,
		Text:     strings.TrimRight(b.String(), "\n"),
		Entities: append([]models.TrackedEntity(nil), d.entities...),
	}
}

func (d *Dispatcher) historyResponse() *Response {
	entries := d.history.LastSentAll()

	var b strings.Builder
	b.WriteString("**Last reports sent**\n")
	for _, entry := range entries {
		when := "never"
		if entry.LastSent != nil {
			when = entry.LastSent.UTC().Format(historyLayout)
		}
		fmt.Fprintf(&b, "- %s: %s\n", entry.Ticker, when)
	}
	return &Response{
		Kind:    ResponseText,
		Text:    strings.TrimRight(b.String(), "\n"),
		History: entries,
	}
}

// HelpText lists the commands with their aliases
func (d *Dispatcher) HelpText() string {
	p := d.prefix
	lines := []string{
		"**Commands**",
		fmt.Sprintf("`%sreport TICKER` full report: market data, SEC filings and analysis (aliases: analyze, raport)", p),
		fmt.Sprintf("`%squote TICKER` market data only (aliases: stock, price)", p),
		fmt.Sprintf("`%sfilings CIK|TICKER` SEC filings only (aliases: edgar, sec)", p),
		fmt.Sprintf("`%slist` tracked entities (aliases: tracked, lista)", p),
		fmt.Sprintf("`%shistory` last report sent per tracked entity (aliases: historia, last)", p),
		fmt.Sprintf("`%shelp` this message (aliases: commands, pomoc)", p),
		"Tickers accept `WSE:CDR`, `CDR.WA` or `NVDA`.",
	}
	return strings.Join(lines, "\n")
}

// Entities returns the tracked entities in rotation order
func (d *Dispatcher) Entities() []models.TrackedEntity {
	return append([]models.TrackedEntity(nil), d.entities...)
}
