package search

import (
	"context"
	"iter"
	"sync"
	"time"

	"github.com/rubiojr/sieve/pkg/core"
)

// Stream is the merged, deduplicated view of one search. Next and Events
// must be called from a single goroutine; Close may be called from any.
type Stream struct {
	query  string
	queue  chan message
	done   chan struct{}
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
	start  time.Time

	// consumer side only
	primary  map[string]core.Result
	order    []core.Engine
	outcomes map[core.Engine]*Outcome
	results  int
	finished bool
}

// Query returns the trimmed query the stream was started with.
func (s *Stream) Query() string {
	return s.query
}

// Engines lists the engines taking part in this search.
func (s *Stream) Engines() []core.Engine {
	return append([]core.Engine(nil), s.order...)
}

// StartedAt is when the producers were started.
func (s *Stream) StartedAt() time.Time {
	return s.start
}

// Next returns the next event. It blocks until a producer has something to
// say and returns false once EventDone has been returned or the stream was
// closed.
func (s *Stream) Next() (Event, bool) {
	if s.finished || s.Closed() {
		return Event{}, false
	}
	for {
		var m message
		var ok bool
		select {
		case m, ok = <-s.queue:
		case <-s.done:
			return Event{}, false
		}
		if !ok {
			s.finished = true
			return Event{Kind: EventDone, Elapsed: time.Since(s.start)}, true
		}
		if ev, emit := s.apply(m); emit {
			return ev, true
		}
	}
}

func (s *Stream) apply(m message) (Event, bool) {
	out := s.outcomes[m.engine]
	switch m.kind {
	case EventResult:
		if first, seen := s.primary[m.result.URL]; seen {
			out.Duplicates++
			return Event{Kind: EventDuplicate, Engine: m.engine, Result: first}, true
		}
		s.primary[m.result.URL] = m.result
		s.results++
		out.Results++
		return Event{Kind: EventResult, Engine: m.engine, Result: m.result}, true
	case EventFinished, EventFailed:
		if out.Done {
			return Event{}, false
		}
		out.Done = true
		out.Elapsed = m.elapsed
		out.Err = m.err
		return Event{Kind: m.kind, Engine: m.engine, Elapsed: m.elapsed, Err: m.err}, true
	default:
		return Event{Kind: m.kind, Engine: m.engine}, true
	}
}

// Events iterates over the remaining events. Breaking out of the loop closes
// the stream.
func (s *Stream) Events() iter.Seq[Event] {
	return func(yield func(Event) bool) {
		for {
			ev, ok := s.Next()
			if !ok {
				return
			}
			if !yield(ev) {
				s.Close()
				return
			}
		}
	}
}

// Results drains the stream and returns the unique results in arrival order.
func (s *Stream) Results() []core.Result {
	var out []core.Result
	for ev := range s.Events() {
		if ev.Kind == EventResult {
			out = append(out, ev.Result)
		}
	}
	return out
}

// Outcomes reports per engine counters gathered so far, in engine order.
func (s *Stream) Outcomes() []Outcome {
	out := make([]Outcome, 0, len(s.order))
	for _, e := range s.order {
		out = append(out, *s.outcomes[e])
	}
	return out
}

// Count is the number of unique results delivered so far.
func (s *Stream) Count() int {
	return s.results
}

// Closed reports whether Close was called.
func (s *Stream) Closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// Close abandons the search and waits for every producer to exit. It is safe
// to call more than once.
func (s *Stream) Close() {
	s.once.Do(func() {
		close(s.done)
		s.cancel()
	})
	s.wg.Wait()
}
