package api

import (
	"net/http"
)

func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	// Web UI
	mux.HandleFunc("GET /{$}", s.HandleHome)
	mux.HandleFunc("GET /search", s.HandleSearchPage)

	// API
	mux.HandleFunc("GET /api/search", s.HandleSearch)
	mux.HandleFunc("GET /api/search/ws", s.HandleSearchWS)
	mux.HandleFunc("GET /api/activity/ws", s.HandleActivityWS)
	mux.HandleFunc("GET /api/engines", s.HandleEngines)
	mux.HandleFunc("GET /api/history", s.HandleHistory)
	mux.HandleFunc("GET /api/history/{id}", s.HandleHistoryEntry)
	mux.HandleFunc("GET /health", s.HandleHealth)
}
