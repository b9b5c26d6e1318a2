package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/finbot/internal/common"
	"github.com/ternarybob/finbot/internal/models"
	"github.com/ternarybob/finbot/internal/services/commands"
	"github.com/ternarybob/finbot/internal/services/rotation"
)

var testEntities = []models.TrackedEntity{
	{Ticker: "SPY", Currency: "USD", Name: "S&P 500"},
	{Ticker: "NVDA", CIK: "0001045810", Currency: "USD", Name: "NVIDIA"},
}

type mockDispatcher struct {
	calls []commands.Command
	err   error
}

func (m *mockDispatcher) Dispatch(ctx context.Context, cmd commands.Command) (*commands.Response, error) {
	m.calls = append(m.calls, cmd)
	if m.err != nil {
		return nil, m.err
	}
	entity := models.TrackedEntity{Ticker: strings.ToUpper(cmd.Args[0]), Currency: "USD"}
	switch commands.Name(cmd.Name) {
	case commands.CmdQuote:
		section := models.Section{Kind: models.SectionQuote, Status: models.SectionOK, Title: "Quote " + entity.Ticker}
		return &commands.Response{Kind: commands.ResponseSection, Command: commands.CmdQuote, Entity: &entity, Section: &section}, nil
	case commands.CmdFilings:
		section := models.Section{Kind: models.SectionFilings, Status: models.SectionOK, Title: "Filings " + entity.Ticker}
		return &commands.Response{Kind: commands.ResponseSection, Command: commands.CmdFilings, Entity: &entity, Section: &section}, nil
	}
	payload := &models.ReportPayload{
		RunID:     "run-1",
		Entity:    entity,
		Quote:     models.Section{Kind: models.SectionQuote, Status: models.SectionOK, Title: "Quote " + entity.Ticker, Fields: []models.Field{{Group: "Price", Name: "Last", Value: "$10.00"}}},
		Filings:   models.Section{Kind: models.SectionFilings, Status: models.SectionOmitted},
		Narrative: models.Section{Kind: models.SectionNarrative, Status: models.SectionOK, Title: "Analysis", Body: "**Solid** quarter."},
	}
	return &commands.Response{Kind: commands.ResponseReport, Command: commands.CmdReport, Entity: &entity, Payload: payload}, nil
}

func (m *mockDispatcher) Entities() []models.TrackedEntity {
	return testEntities
}

type mockHistory struct{}

func (mockHistory) LastSentAll() []models.HistoryEntry {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return []models.HistoryEntry{
		{Ticker: "SPY", Name: "S&P 500", LastSent: &at},
		{Ticker: "NVDA", Name: "NVIDIA"},
	}
}

type mockRotation struct {
	payload *models.ReportPayload
	err     error
	ticks   int
}

func (m *mockRotation) Status() models.RotationStatus {
	return models.RotationStatus{Enabled: true, Interval: "15m0s", Cursor: 1, NextTicker: "NVDA"}
}

func (m *mockRotation) TriggerNow(ctx context.Context) (*models.ReportPayload, error) {
	m.ticks++
	return m.payload, m.err
}

func newTestReportHandler(d *mockDispatcher, r RotationController) *ReportHandler {
	return NewReportHandler(d, r, mockHistory{}, arbor.NewLogger())
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestEntitiesHandler(t *testing.T) {
	h := newTestReportHandler(&mockDispatcher{}, nil)

	rec := httptest.NewRecorder()
	h.EntitiesHandler(rec, httptest.NewRequest(http.MethodGet, "/api/entities", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, float64(2), body["count"])
	entities := body["entities"].([]interface{})
	assert.Equal(t, "SPY", entities[0].(map[string]interface{})["ticker"])
}

func TestEntitiesHandler_MethodNotAllowed(t *testing.T) {
	h := newTestReportHandler(&mockDispatcher{}, nil)

	rec := httptest.NewRecorder()
	h.EntitiesHandler(rec, httptest.NewRequest(http.MethodPost, "/api/entities", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, http.MethodGet, rec.Header().Get("Allow"))
}

func TestHistoryHandler(t *testing.T) {
	h := newTestReportHandler(&mockDispatcher{}, nil)

	rec := httptest.NewRecorder()
	h.HistoryHandler(rec, httptest.NewRequest(http.MethodGet, "/api/history", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	history := decode(t, rec)["history"].([]interface{})
	require.Len(t, history, 2)
	assert.Equal(t, "2026-03-01T12:00:00Z", history[0].(map[string]interface{})["last_sent"])
	_, sent := history[1].(map[string]interface{})["last_sent"]
	assert.False(t, sent)
}

func TestRotationStatusHandler(t *testing.T) {
	t.Run("enabled", func(t *testing.T) {
		h := newTestReportHandler(&mockDispatcher{}, &mockRotation{})
		rec := httptest.NewRecorder()
		h.RotationStatusHandler(rec, httptest.NewRequest(http.MethodGet, "/api/rotation", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		body := decode(t, rec)
		assert.Equal(t, true, body["enabled"])
		assert.Equal(t, "NVDA", body["next_ticker"])
	})

	t.Run("disabled", func(t *testing.T) {
		h := newTestReportHandler(&mockDispatcher{}, nil)
		rec := httptest.NewRecorder()
		h.RotationStatusHandler(rec, httptest.NewRequest(http.MethodGet, "/api/rotation", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, false, decode(t, rec)["enabled"])
	})
}

func TestRotationTickHandler(t *testing.T) {
	sent := &models.ReportPayload{RunID: "run-7", Entity: testEntities[1]}

	tests := []struct {
		name     string
		rotation RotationController
		method   string
		wantCode int
		wantKey  string
		wantVal  string
	}{
		{"sent", &mockRotation{payload: sent}, http.MethodPost, http.StatusOK, "run_id", "run-7"},
		{"in progress", &mockRotation{err: rotation.ErrTickInProgress}, http.MethodPost, http.StatusConflict, "status", "error"},
		{"dispatch failure", &mockRotation{payload: sent, err: fmt.Errorf("%w: boom", common.ErrDispatchFailure)}, http.MethodPost, http.StatusBadGateway, "ticker", "NVDA"},
		{"disabled", nil, http.MethodPost, http.StatusServiceUnavailable, "status", "error"},
		{"wrong method", &mockRotation{}, http.MethodGet, http.StatusMethodNotAllowed, "status", "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestReportHandler(&mockDispatcher{}, tt.rotation)
			rec := httptest.NewRecorder()
			h.RotationTickHandler(rec, httptest.NewRequest(tt.method, "/api/rotation/tick", nil))

			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, tt.wantVal, decode(t, rec)[tt.wantKey])
		})
	}
}

func TestReportByTickerHandler_Formats(t *testing.T) {
	tests := []struct {
		name        string
		query       string
		contentType string
		contains    string
	}{
		{"default json", "", "application/json", `"run_id":"run-1"`},
		{"json", "?format=json", "application/json", `"ticker":"AAPL"`},
		{"markdown", "?format=markdown", "text/markdown; charset=utf-8", "## Quote AAPL"},
		{"html", "?format=HTML", "text/html; charset=utf-8", "<strong>Solid</strong>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &mockDispatcher{}
			h := newTestReportHandler(d, nil)
			rec := httptest.NewRecorder()
			h.ReportByTickerHandler(rec, httptest.NewRequest(http.MethodGet, "/api/report/aapl"+tt.query, nil))

			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tt.contentType, rec.Header().Get("Content-Type"))
			assert.Contains(t, rec.Body.String(), tt.contains)
			require.Len(t, d.calls, 1)
			assert.Equal(t, commands.Command{Name: "report", Args: []string{"aapl"}}, d.calls[0])
		})
	}
}

func TestReportByTickerHandler_Rejections(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		err      error
		wantCode int
	}{
		{"bad format", "/api/report/AAPL?format=pdf", nil, http.StatusBadRequest},
		{"missing ticker", "/api/report/", nil, http.StatusBadRequest},
		{"nested path", "/api/report/AAPL/extra", nil, http.StatusBadRequest},
		{"unresolved", "/api/report/@@", fmt.Errorf("%w: %q", commands.ErrUnresolved, "@@"), http.StatusBadRequest},
		{"internal", "/api/report/AAPL", fmt.Errorf("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestReportHandler(&mockDispatcher{err: tt.err}, nil)
			rec := httptest.NewRecorder()
			h.ReportByTickerHandler(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))

			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, "error", decode(t, rec)["status"])
		})
	}
}

func TestSectionHandlers(t *testing.T) {
	tests := []struct {
		name    string
		handler func(h *ReportHandler) http.HandlerFunc
		path    string
		command string
		title   string
	}{
		{"quote", func(h *ReportHandler) http.HandlerFunc { return h.QuoteHandler }, "/api/quote/msft", "quote", "Quote MSFT"},
		{"filings by cik", func(h *ReportHandler) http.HandlerFunc { return h.FilingsHandler }, "/api/filings/1045810", "filings", "Filings 1045810"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &mockDispatcher{}
			h := newTestReportHandler(d, nil)
			rec := httptest.NewRecorder()
			tt.handler(h)(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))

			require.Equal(t, http.StatusOK, rec.Code)
			require.Len(t, d.calls, 1)
			assert.Equal(t, tt.command, d.calls[0].Name)
			section := decode(t, rec)["section"].(map[string]interface{})
			assert.Equal(t, tt.title, section["title"])
		})
	}
}

func TestStatusForError(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("%w: x", commands.ErrMissingArgument), http.StatusBadRequest},
		{fmt.Errorf("%w: x", commands.ErrUnknownCommand), http.StatusBadRequest},
		{fmt.Errorf("%w: x", common.ErrSourceUnavailable), http.StatusBadGateway},
		{fmt.Errorf("wrapped: %w", context.DeadlineExceeded), http.StatusGatewayTimeout},
		{fmt.Errorf("other"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusForError(tt.err), tt.err.Error())
	}
}

func TestAPIHandler(t *testing.T) {
	h := NewAPIHandler(arbor.NewLogger())

	rec := httptest.NewRecorder()
	h.HealthHandler(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode(t, rec)["status"])

	rec = httptest.NewRecorder()
	h.VersionHandler(rec, httptest.NewRequest(http.MethodGet, "/api/version", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, common.GetVersion(), decode(t, rec)["version"])

	rec = httptest.NewRecorder()
	h.NotFoundHandler(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "/nope", decode(t, rec)["path"])
}
