// Package api serves searches over HTTP: a streaming HTML page, an NDJSON
// stream, a WebSocket stream and a few JSON endpoints.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/gorilla/websocket"

	"github.com/rubiojr/sieve/pkg/core"
	"github.com/rubiojr/sieve/pkg/history"
	"github.com/rubiojr/sieve/pkg/log"
	"github.com/rubiojr/sieve/pkg/realtime"
	"github.com/rubiojr/sieve/pkg/render"
	"github.com/rubiojr/sieve/pkg/search"
)

// Searcher starts searches. *search.Orchestrator implements it.
type Searcher interface {
	Engines() []core.Engine
	SearchEngines(ctx context.Context, query string, only []core.Engine) (*search.Stream, error)
}

type Server struct {
	mu       sync.RWMutex
	searcher Searcher

	history  *history.Store
	activity *realtime.Hub
	page     *render.Page
	upgrader websocket.Upgrader
}

// NewServer creates a server. store may be nil, which disables history.
func NewServer(searcher Searcher, store *history.Store) (*Server, error) {
	if searcher == nil {
		return nil, errors.New("nil searcher")
	}
	page, err := render.NewPage()
	if err != nil {
		return nil, err
	}
	return &Server{
		searcher: searcher,
		history:  store,
		activity: realtime.NewHub(0),
		page:     page,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}, nil
}

// SetSearcher swaps the searcher used by new requests. Searches already
// running keep the one they started with.
func (s *Server) SetSearcher(searcher Searcher) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.searcher = searcher
}

func (s *Server) current() Searcher {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.searcher
}

// Handler returns every route wrapped in the CORS middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return CorsMiddleware(mux)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.ForService("web").Warnf("encoding JSON response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, error, message string) {
	s.writeJSON(w, status, ErrorResponse{
		Error:   error,
		Message: message,
	})
}

// searchStatus maps a failure to start a search to an HTTP status.
func searchStatus(err error) int {
	switch {
	case errors.Is(err, search.ErrEmptyQuery), errors.Is(err, search.ErrNoEngines):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// finish records a completed search and announces it on the activity feed.
// It runs after the response is complete, so it does not use the request
// context.
func (s *Server) finish(ctx context.Context, c *history.Collector) {
	entry := c.Entry()
	if s.history != nil {
		l := log.ForService("history")
		id, err := s.history.Record(context.WithoutCancel(ctx), entry)
		if err != nil {
			l.Warnf("recording search: %v", err)
		} else {
			l.Debugf("recorded search %s", id)
			entry.ID = id
		}
	}
	s.activity.PublishSearch(summarize(entry))
}

func summarize(e history.Entry) realtime.SearchSummary {
	sum := realtime.SearchSummary{
		ID:          e.ID,
		Query:       e.Query,
		StartedAt:   e.StartedAt,
		ElapsedMS:   e.Elapsed.Milliseconds(),
		ResultCount: e.ResultCount,
	}
	for _, run := range e.Engines {
		sum.Engines = append(sum.Engines, run.Engine)
		if run.Error != "" {
			sum.Failed = append(sum.Failed, run.Engine)
		}
	}
	return sum
}

func CorsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
