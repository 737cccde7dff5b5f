package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/rubiojr/sieve/pkg/core"
	"github.com/rubiojr/sieve/pkg/history"
	"github.com/rubiojr/sieve/pkg/log"
	"github.com/rubiojr/sieve/pkg/search"
	"github.com/rubiojr/sieve/pkg/version"
)

const wsWriteWait = 10 * time.Second

func (s *Server) HandleHome(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.page.WriteHome(w, s.current().Engines()); err != nil {
		log.ForService("web").Warnf("rendering home: %v", err)
	}
}

// HandleSearchPage streams an HTML results page. Every result is flushed as
// soon as it is known.
func (s *Server) HandleSearchPage(w http.ResponseWriter, r *http.Request) {
	l := log.ForService("web")
	params, err := ParseSearchParams(r.URL.Query())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if params.Query == "" {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	stream, err := s.current().SearchEngines(r.Context(), params.Query, params.Engines)
	if err != nil {
		http.Error(w, err.Error(), searchStatus(err))
		return
	}
	defer stream.Close()

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	rc := http.NewResponseController(w)

	if err := s.page.WriteHead(w, stream.Query(), stream.Engines()); err != nil {
		l.Warnf("rendering page head: %v", err)
		return
	}
	_ = rc.Flush()

	collector := history.NewCollector(stream)
	for ev := range stream.Events() {
		collector.Observe(ev)
		if ev.Kind == search.EventDone {
			if err := s.page.WriteFoot(w, stream.Count(), ev.Elapsed, stream.Outcomes()); err != nil {
				l.Debugf("writing page foot: %v", err)
				return
			}
			s.finish(r.Context(), collector)
			continue
		}
		if err := s.page.WriteEvent(w, ev); err != nil {
			l.Debugf("client went away: %v", err)
			return
		}
		_ = rc.Flush()
	}
}

// HandleSearch streams events as newline delimited JSON.
func (s *Server) HandleSearch(w http.ResponseWriter, r *http.Request) {
	l := log.ForService("web")
	params, err := ParseSearchParams(r.URL.Query())
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid engines", err.Error())
		return
	}
	if params.Query == "" {
		s.writeError(w, http.StatusBadRequest, "Missing query parameter", "Query parameter 'q' is required")
		return
	}

	stream, err := s.current().SearchEngines(r.Context(), params.Query, params.Engines)
	if err != nil {
		s.writeError(w, searchStatus(err), "Search failed", err.Error())
		return
	}
	defer stream.Close()

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	rc := http.NewResponseController(w)
	enc := json.NewEncoder(w)

	collector := history.NewCollector(stream)
	for ev := range stream.Events() {
		collector.Observe(ev)
		if err := enc.Encode(newEventMessage(ev, stream)); err != nil {
			l.Debugf("client went away: %v", err)
			return
		}
		_ = rc.Flush()
		if ev.Kind == search.EventDone {
			s.finish(r.Context(), collector)
		}
	}
}

// HandleSearchWS runs one search per connection. The first message is an
// InitMessage, then one EventMessage per event; the server closes the
// connection after the done event. Closing the connection early stops the
// search.
func (s *Server) HandleSearchWS(w http.ResponseWriter, r *http.Request) {
	params, err := ParseSearchParams(r.URL.Query())
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid engines", err.Error())
		return
	}
	if params.Query == "" {
		s.writeError(w, http.StatusBadRequest, "Missing query parameter", "Query parameter 'q' is required")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied with an HTTP error.
		log.ForService("web").Debugf("websocket upgrade: %v", err)
		return
	}
	defer conn.Close()

	session := uuid.NewString()
	l := log.ForService("web")
	l.Debugf("session %s: query %q", session, params.Query)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	stream, err := s.current().SearchEngines(ctx, params.Query, params.Engines)
	if err != nil {
		closeWS(conn, websocket.CloseInternalServerErr, err.Error())
		return
	}
	defer stream.Close()

	write := func(v any) error {
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		return conn.WriteJSON(v)
	}
	hello := InitMessage{Type: "init", Session: session, Query: stream.Query(), Engines: stream.Engines()}
	if err := write(hello); err != nil {
		l.Debugf("session %s: %v", session, err)
		return
	}

	collector := history.NewCollector(stream)
	for ev := range stream.Events() {
		collector.Observe(ev)
		if err := write(newEventMessage(ev, stream)); err != nil {
			l.Debugf("session %s: client went away: %v", session, err)
			return
		}
		if ev.Kind == search.EventDone {
			s.finish(r.Context(), collector)
			l.Debugf("session %s: done, %d results", session, stream.Count())
		}
	}
	closeWS(conn, websocket.CloseNormalClosure, "done")
}

func closeWS(conn *websocket.Conn, code int, text string) {
	msg := websocket.FormatCloseMessage(code, text)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(wsWriteWait))
}

// HandleActivityWS sends a message for every search completed on this
// server until the client disconnects.
func (s *Server) HandleActivityWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.ForService("web").Debugf("websocket upgrade: %v", err)
		return
	}
	defer conn.Close()

	id, events := s.activity.Register()
	defer s.activity.Unregister(id)

	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-gone:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		}
	}
}

func (s *Server) HandleEngines(w http.ResponseWriter, r *http.Request) {
	enabled := map[core.Engine]bool{}
	for _, e := range s.current().Engines() {
		enabled[e] = true
	}

	all := core.Engines()
	infos := make([]EngineInfo, 0, len(all))
	for _, e := range all {
		infos = append(infos, EngineInfo{Engine: e, Name: e.DisplayName(), Enabled: enabled[e]})
	}
	s.writeJSON(w, http.StatusOK, EnginesResponse{Engines: infos, Count: len(infos)})
}

func (s *Server) HandleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		s.writeError(w, http.StatusNotFound, "History disabled", "Set history = true in the configuration to record searches")
		return
	}
	params, err := ParseHistoryParams(r.URL.Query())
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid parameters", err.Error())
		return
	}

	entries, err := s.history.List(r.Context(), params.Query, params.Limit)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "Failed to list history", err.Error())
		return
	}
	if entries == nil {
		entries = []history.Entry{}
	}
	s.writeJSON(w, http.StatusOK, HistoryResponse{Searches: entries, Count: len(entries), Query: params.Query})
}

func (s *Server) HandleHistoryEntry(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		s.writeError(w, http.StatusNotFound, "History disabled", "Set history = true in the configuration to record searches")
		return
	}
	entry, err := s.history.Get(r.Context(), r.PathValue("id"))
	if errors.Is(err, history.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "Search not found", err.Error())
		return
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "Failed to load search", err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, entry)
}

func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC(),
		Version:   version.APIVersion(),
		History:   s.history != nil,
	})
}
