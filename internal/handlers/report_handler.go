package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/finbot/internal/common"
	"github.com/ternarybob/finbot/internal/interfaces"
	"github.com/ternarybob/finbot/internal/models"
	"github.com/ternarybob/finbot/internal/services/commands"
	"github.com/ternarybob/finbot/internal/services/report"
	"github.com/ternarybob/finbot/internal/services/rotation"
)

// CommandDispatcher runs on-demand commands
type CommandDispatcher interface {
	Dispatch(ctx context.Context, cmd commands.Command) (*commands.Response, error)
	Entities() []models.TrackedEntity
}

// RotationController exposes the scheduler to the API
type RotationController interface {
	Status() models.RotationStatus
	TriggerNow(ctx context.Context) (*models.ReportPayload, error)
}

// ReportHandler serves entities, history, rotation control and on-demand reports
type ReportHandler struct {
	dispatcher CommandDispatcher
	rotation   RotationController // nil when rotation is disabled
	history    interfaces.HistoryReader
	logger     arbor.ILogger
}

func NewReportHandler(dispatcher CommandDispatcher, rotation RotationController, history interfaces.HistoryReader, logger arbor.ILogger) *ReportHandler {
	return &ReportHandler{
		dispatcher: dispatcher,
		rotation:   rotation,
		history:    history,
		logger:     logger,
	}
}

// EntitiesHandler lists the tracked entities in rotation order
func (h *ReportHandler) EntitiesHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	entities := h.dispatcher.Entities()
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"entities": entities,
		"count":    len(entities),
	})
}

// HistoryHandler returns the last send time of every tracked entity
func (h *ReportHandler) HistoryHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	var entries []models.HistoryEntry
	if h.history != nil {
		entries = h.history.LastSentAll()
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"history": entries,
	})
}

// RotationStatusHandler reports the scheduler state
func (h *ReportHandler) RotationStatusHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	if h.rotation == nil {
		WriteJSON(w, http.StatusOK, models.RotationStatus{Enabled: false})
		return
	}
	WriteJSON(w, http.StatusOK, h.rotation.Status())
}

// RotationTickHandler runs one rotation tick and waits for it
func (h *ReportHandler) RotationTickHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	if h.rotation == nil {
		WriteError(w, http.StatusServiceUnavailable, "rotation is disabled")
		return
	}

	payload, err := h.rotation.TriggerNow(r.Context())
	switch {
	case errors.Is(err, rotation.ErrTickInProgress):
		WriteError(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		h.logger.Warn().Err(err).Msg("Manual rotation tick failed")
		body := map[string]interface{}{
			"status": "error",
			"error":  err.Error(),
		}
		if payload != nil {
			body["run_id"] = payload.RunID
			body["ticker"] = payload.Entity.Ticker
		}
		WriteJSON(w, http.StatusBadGateway, body)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status": "sent",
		"run_id": payload.RunID,
		"ticker": payload.Entity.Ticker,
	})
}

// ReportByTickerHandler handles GET /api/report/{ticker}?format=json|markdown|html
func (h *ReportHandler) ReportByTickerHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	format := strings.ToLower(r.URL.Query().Get("format"))
	if format == "" {
		format = "json"
	}
	if format != "json" && format != "markdown" && format != "html" {
		WriteError(w, http.StatusBadRequest, "format must be json, markdown or html")
		return
	}

	resp, ok := h.dispatch(w, r, commands.CmdReport, PathParam(r, "/api/report/"))
	if !ok {
		return
	}

	switch format {
	case "markdown":
		WriteText(w, http.StatusOK, "text/markdown; charset=utf-8", report.Markdown(resp.Payload))
	case "html":
		html, err := report.HTML(report.Markdown(resp.Payload))
		if err != nil {
			h.logger.Error().Err(err).Str("ticker", resp.Payload.Entity.Ticker).Msg("Failed to render report HTML")
			WriteError(w, http.StatusInternalServerError, "failed to render report")
			return
		}
		WriteText(w, http.StatusOK, "text/html; charset=utf-8", html)
	default:
		WriteJSON(w, http.StatusOK, resp.Payload)
	}
}

// QuoteHandler handles GET /api/quote/{ticker}
func (h *ReportHandler) QuoteHandler(w http.ResponseWriter, r *http.Request) {
	h.sectionHandler(w, r, commands.CmdQuote, "/api/quote/")
}

// FilingsHandler handles GET /api/filings/{cik|ticker}
func (h *ReportHandler) FilingsHandler(w http.ResponseWriter, r *http.Request) {
	h.sectionHandler(w, r, commands.CmdFilings, "/api/filings/")
}

func (h *ReportHandler) sectionHandler(w http.ResponseWriter, r *http.Request, name commands.Name, prefix string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	resp, ok := h.dispatch(w, r, name, PathParam(r, prefix))
	if !ok {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"entity":  resp.Entity,
		"section": resp.Section,
	})
}

func (h *ReportHandler) dispatch(w http.ResponseWriter, r *http.Request, name commands.Name, id string) (*commands.Response, bool) {
	if id == "" {
		WriteError(w, http.StatusBadRequest, "ticker is required")
		return nil, false
	}

	resp, err := h.dispatcher.Dispatch(r.Context(), commands.Command{Name: string(name), Args: []string{id}})
	if err != nil {
		WriteError(w, statusForError(err), err.Error())
		return nil, false
	}
	return resp, true
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, commands.ErrMissingArgument), errors.Is(err, commands.ErrUnresolved), errors.Is(err, commands.ErrUnknownCommand):
		return http.StatusBadRequest
	case errors.Is(err, common.ErrSourceUnavailable):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
