package api

import (
	"time"

	"github.com/rubiojr/sieve/pkg/core"
	"github.com/rubiojr/sieve/pkg/history"
	"github.com/rubiojr/sieve/pkg/search"
)

// EventMessage is the wire form of a search event, one per NDJSON line or
// WebSocket message.
type EventMessage struct {
	Type    search.EventKind `json:"type"`
	Engine  string           `json:"engine,omitempty"`
	ID      string           `json:"id,omitempty"`
	Result  *core.Result     `json:"result,omitempty"`
	Elapsed int64            `json:"elapsed_ms,omitempty"`
	Error   string           `json:"error,omitempty"`
	// Set on the done event only.
	Count   int              `json:"count,omitempty"`
	Engines []OutcomeMessage `json:"engines,omitempty"`
}

type OutcomeMessage struct {
	Engine     core.Engine `json:"engine"`
	Results    int         `json:"results"`
	Duplicates int         `json:"duplicates"`
	Elapsed    int64       `json:"elapsed_ms"`
	Error      string      `json:"error,omitempty"`
	Done       bool        `json:"done"`
}

// InitMessage opens every WebSocket search.
type InitMessage struct {
	Type    string        `json:"type"`
	Session string        `json:"session"`
	Query   string        `json:"query"`
	Engines []core.Engine `json:"engines"`
}

type EngineInfo struct {
	Engine  core.Engine `json:"engine"`
	Name    string      `json:"name"`
	Enabled bool        `json:"enabled"`
}

type EnginesResponse struct {
	Engines []EngineInfo `json:"engines"`
	Count   int          `json:"count"`
}

type HistoryResponse struct {
	Searches []history.Entry `json:"searches"`
	Count    int             `json:"count"`
	Query    string          `json:"query,omitempty"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
	History   bool      `json:"history"`
}

func newEventMessage(ev search.Event, stream *search.Stream) EventMessage {
	msg := EventMessage{Type: ev.Kind, Elapsed: ev.Elapsed.Milliseconds()}
	if ev.Err != nil {
		msg.Error = ev.Err.Error()
	}
	switch ev.Kind {
	case search.EventDone:
		msg.Count = stream.Count()
		for _, oc := range stream.Outcomes() {
			om := OutcomeMessage{
				Engine:     oc.Engine,
				Results:    oc.Results,
				Duplicates: oc.Duplicates,
				Elapsed:    oc.Elapsed.Milliseconds(),
				Done:       oc.Done,
			}
			if oc.Err != nil {
				om.Error = oc.Err.Error()
			}
			msg.Engines = append(msg.Engines, om)
		}
		return msg
	case search.EventResult, search.EventDuplicate:
		r := ev.Result
		msg.ID = r.ID()
		msg.Result = &r
	}
	msg.Engine = ev.Engine.String()
	return msg
}
