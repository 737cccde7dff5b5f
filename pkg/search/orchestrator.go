package search

import (
	"context"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/rubiojr/sieve/pkg/core"
	"github.com/rubiojr/sieve/pkg/engines"
	"github.com/rubiojr/sieve/pkg/log"
	"github.com/rubiojr/sieve/pkg/transport"
)

// DefaultQueueSize bounds the number of undelivered messages per search.
const DefaultQueueSize = 16

var (
	ErrEmptyQuery = errors.New("empty query")
	ErrNoEngines  = errors.New("no engines selected")
)

// Engine is what the orchestrator needs from an engine adapter.
type Engine interface {
	Engine() core.Engine
	Run(ctx context.Context, query string, fetcher transport.Fetcher, emit engines.EmitFunc) error
}

// Adapters converts built adapters to the Engine interface.
func Adapters(list []*engines.Adapter) []Engine {
	out := make([]Engine, len(list))
	for i, a := range list {
		out[i] = a
	}
	return out
}

type Options struct {
	// QueueSize is the capacity of the queue shared by all producers.
	QueueSize int
}

// Orchestrator runs searches over a fixed set of engines. It is safe for
// concurrent use; every Search gets its own queue and producers.
type Orchestrator struct {
	engines []Engine
	fetcher transport.Fetcher
	opts    Options
}

// New validates the engine set. Each engine may appear once.
func New(list []Engine, fetcher transport.Fetcher, opts Options) (*Orchestrator, error) {
	if len(list) == 0 {
		return nil, ErrNoEngines
	}
	if fetcher == nil {
		return nil, errors.New("nil fetcher")
	}
	seen := make(map[core.Engine]bool, len(list))
	for _, e := range list {
		if seen[e.Engine()] {
			return nil, errors.Newf("engine %s configured twice", e.Engine())
		}
		seen[e.Engine()] = true
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	return &Orchestrator{engines: list, fetcher: fetcher, opts: opts}, nil
}

// Engines lists the engines this orchestrator queries.
func (o *Orchestrator) Engines() []core.Engine {
	out := make([]core.Engine, len(o.engines))
	for i, e := range o.engines {
		out[i] = e.Engine()
	}
	return out
}

// Search starts every engine and returns the merged stream. The caller must
// either read the stream until Next returns false or Close it.
func (o *Orchestrator) Search(ctx context.Context, query string) (*Stream, error) {
	return o.SearchEngines(ctx, query, nil)
}

// SearchEngines is Search restricted to a subset of the configured engines.
// A nil or empty subset selects all of them.
func (o *Orchestrator) SearchEngines(ctx context.Context, query string, only []core.Engine) (*Stream, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	selected := o.engines
	if len(only) > 0 {
		want := make(map[core.Engine]bool, len(only))
		for _, e := range only {
			want[e] = true
		}
		selected = nil
		for _, e := range o.engines {
			if want[e.Engine()] {
				selected = append(selected, e)
			}
		}
		if len(selected) == 0 {
			return nil, errors.Wrapf(ErrNoEngines, "none of %v is configured", only)
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	s := &Stream{
		query:    query,
		queue:    make(chan message, o.opts.QueueSize),
		done:     make(chan struct{}),
		cancel:   cancel,
		start:    time.Now(),
		primary:  make(map[string]core.Result),
		outcomes: make(map[core.Engine]*Outcome, len(selected)),
	}
	for _, e := range selected {
		s.order = append(s.order, e.Engine())
		s.outcomes[e.Engine()] = &Outcome{Engine: e.Engine()}
	}

	l := log.ForService("search")
	l.Debugf("query %q on %d engines", query, len(selected))

	s.wg.Add(len(selected))
	for _, e := range selected {
		go s.produce(runCtx, e, o.fetcher)
	}
	go func() {
		s.wg.Wait()
		cancel()
		close(s.queue)
	}()
	return s, nil
}

func (s *Stream) produce(ctx context.Context, e Engine, fetcher transport.Fetcher) {
	defer s.wg.Done()
	engine := e.Engine()
	l := log.ForService("search")
	start := time.Now()

	if !s.deliver(message{kind: EventStarted, engine: engine}) {
		return
	}

	err := e.Run(ctx, s.query, fetcher, func(r core.Result) error {
		r.Engine = engine
		select {
		case s.queue <- message{kind: EventResult, engine: engine, result: r}:
			return nil
		case <-s.done:
			return engines.ErrConsumerGone
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	elapsed := time.Since(start)

	if s.Closed() {
		l.Debugf("%s stopped, consumer gone", engine)
		return
	}
	if errors.Is(err, engines.ErrConsumerGone) && ctx.Err() != nil {
		// The push failed on the context, not on Close.
		err = errors.WithSecondaryError(ctx.Err(), err)
	}
	if err != nil {
		s.deliver(message{kind: EventFailed, engine: engine, elapsed: elapsed, err: err})
		return
	}
	s.deliver(message{kind: EventFinished, engine: engine, elapsed: elapsed})
}

// deliver pushes a lifecycle message. It only gives up when the stream is
// closed, so terminal events are not lost to a canceled context.
func (s *Stream) deliver(m message) bool {
	select {
	case s.queue <- m:
		return true
	case <-s.done:
		return false
	}
}
