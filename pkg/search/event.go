package search

import (
	"time"

	"github.com/cockroachdb/errors"

	"github.com/rubiojr/sieve/pkg/core"
)

type EventKind int

const (
	EventStarted EventKind = iota
	EventResult
	EventDuplicate
	EventFinished
	EventFailed
	EventDone
)

var eventNames = [...]string{"started", "result", "duplicate", "finished", "failed", "done"}

func (k EventKind) String() string {
	if k < 0 || int(k) >= len(eventNames) {
		return "unknown"
	}
	return eventNames[k]
}

func (k EventKind) MarshalText() ([]byte, error) {
	if k < 0 || int(k) >= len(eventNames) {
		return nil, errors.Newf("unknown event kind %d", int(k))
	}
	return []byte(k.String()), nil
}

func (k *EventKind) UnmarshalText(text []byte) error {
	for i, name := range eventNames {
		if name == string(text) {
			*k = EventKind(i)
			return nil
		}
	}
	return errors.Newf("unknown event kind %q", text)
}

// Event is one step of a search.
//
// For EventResult, Result is the newly seen result. For EventDuplicate,
// Engine also found Result, which an earlier event already delivered.
// Elapsed is set on terminal events; for EventDone it covers the whole
// search.
type Event struct {
	Kind    EventKind
	Engine  core.Engine
	Result  core.Result
	Elapsed time.Duration
	Err     error
}

// Outcome summarizes one engine's part in a search.
type Outcome struct {
	Engine     core.Engine
	Results    int
	Duplicates int
	Elapsed    time.Duration
	Err        error
	Done       bool
}

// message travels from a producer to the consumer through the queue.
type message struct {
	kind    EventKind
	engine  core.Engine
	result  core.Result
	elapsed time.Duration
	err     error
}
