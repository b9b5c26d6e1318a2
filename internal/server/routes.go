package server

import (
	"net/http"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// Live report feed
	if s.app.FeedHandler != nil {
		mux.HandleFunc("/ws", s.app.FeedHandler.HandleWebSocket)
	}

	// API routes - Reports (on demand, never touch the rotation)
	mux.HandleFunc("/api/report/", s.app.ReportHandler.ReportByTickerHandler) // GET /{ticker}?format=
	mux.HandleFunc("/api/quote/", s.app.ReportHandler.QuoteHandler)           // GET /{ticker}
	mux.HandleFunc("/api/filings/", s.app.ReportHandler.FilingsHandler)       // GET /{cik|ticker}

	// API routes - Tracked entities and send history
	mux.HandleFunc("/api/entities", s.app.ReportHandler.EntitiesHandler)
	mux.HandleFunc("/api/history", s.app.ReportHandler.HistoryHandler)

	// API routes - Rotation
	mux.HandleFunc("/api/rotation", func(w http.ResponseWriter, r *http.Request) {
		RouteByMethod(w, r, MethodRouter{
			http.MethodGet: s.app.ReportHandler.RotationStatusHandler,
		})
	})
	mux.HandleFunc("/api/rotation/tick", func(w http.ResponseWriter, r *http.Request) {
		RouteByMethod(w, r, MethodRouter{
			http.MethodPost: s.app.ReportHandler.RotationTickHandler,
		})
	})

	// API routes - System
	mux.HandleFunc("/api/version", s.app.APIHandler.VersionHandler)
	mux.HandleFunc("/api/health", s.app.APIHandler.HealthHandler)

	// 404 handler for unmatched routes
	mux.HandleFunc("/", s.app.APIHandler.NotFoundHandler)

	return mux
}
