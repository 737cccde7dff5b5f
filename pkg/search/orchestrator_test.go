package search

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/rubiojr/sieve/pkg/core"
	"github.com/rubiojr/sieve/pkg/engines"
	"github.com/rubiojr/sieve/pkg/transport"
)

type nopFetcher struct{}

func (nopFetcher) Fetch(ctx context.Context, req transport.Request) (transport.ChunkSource, error) {
	return transport.StaticSource(), nil
}

// listEngine emits a fixed list of URLs and then returns err.
type listEngine struct {
	engine  core.Engine
	urls    []string
	err     error
	emitted atomic.Int64
}

func (l *listEngine) Engine() core.Engine { return l.engine }

func (l *listEngine) Run(ctx context.Context, query string, f transport.Fetcher, emit engines.EmitFunc) error {
	for _, u := range l.urls {
		if err := emit(core.Result{URL: u, Title: "t " + u}); err != nil {
			return errors.WithSecondaryError(engines.ErrConsumerGone, err)
		}
		l.emitted.Add(1)
	}
	return l.err
}

// endlessEngine emits until the consumer goes away.
type endlessEngine struct {
	engine core.Engine
	ret    chan error
}

func (e *endlessEngine) Engine() core.Engine { return e.engine }

func (e *endlessEngine) Run(ctx context.Context, query string, f transport.Fetcher, emit engines.EmitFunc) error {
	for i := 0; ; i++ {
		if err := emit(core.Result{URL: fmt.Sprintf("https://endless.example/%d", i)}); err != nil {
			err = errors.WithSecondaryError(engines.ErrConsumerGone, err)
			e.ret <- err
			return err
		}
	}
}

// waitEngine blocks until its context ends.
type waitEngine struct {
	engine core.Engine
}

func (w *waitEngine) Engine() core.Engine { return w.engine }

func (w *waitEngine) Run(ctx context.Context, query string, f transport.Fetcher, emit engines.EmitFunc) error {
	<-ctx.Done()
	return ctx.Err()
}

func urls(prefix string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("https://%s.example/%d", prefix, i)
	}
	return out
}

func mustSearch(t *testing.T, list []Engine, opts Options) *Stream {
	t.Helper()
	o, err := New(list, nopFetcher{}, opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s, err := o.Search(context.Background(), "golang")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	return s
}

func collectEvents(s *Stream) []Event {
	var out []Event
	for ev := range s.Events() {
		out = append(out, ev)
	}
	return out
}

func TestDeduplicatesAcrossEngines(t *testing.T) {
	a := &listEngine{engine: core.Bing, urls: []string{"https://x/1", "https://x/2", "https://x/3"}}
	b := &listEngine{engine: core.Brave, urls: []string{"https://x/2", "https://x/4"}}
	s := mustSearch(t, []Engine{a, b}, Options{})
	events := collectEvents(s)

	seen := map[string]int{}
	dups := 0
	for _, ev := range events {
		switch ev.Kind {
		case EventResult:
			seen[ev.Result.URL]++
		case EventDuplicate:
			dups++
			if ev.Result.URL != "https://x/2" {
				t.Errorf("unexpected duplicate %q", ev.Result.URL)
			}
			if ev.Result.Engine == ev.Engine {
				t.Errorf("duplicate attributed to the primary engine %s", ev.Engine)
			}
		}
	}
	if len(seen) != 4 {
		t.Errorf("expected 4 unique results, got %v", seen)
	}
	for u, n := range seen {
		if n != 1 {
			t.Errorf("%s delivered %d times", u, n)
		}
	}
	if dups != 1 {
		t.Errorf("expected 1 duplicate event, got %d", dups)
	}
	if s.Count() != 4 {
		t.Errorf("Count: got %d", s.Count())
	}
}

func TestLifecycleOrderPerEngine(t *testing.T) {
	a := &listEngine{engine: core.Bing, urls: urls("bing", 50)}
	b := &listEngine{engine: core.DuckDuckGo, urls: urls("ddg", 50)}
	events := collectEvents(mustSearch(t, []Engine{a, b}, Options{QueueSize: 4}))

	if last := events[len(events)-1]; last.Kind != EventDone {
		t.Fatalf("last event is %s, want done", last.Kind)
	}
	for _, e := range []*listEngine{a, b} {
		var got []string
		started, terminal := -1, -1
		for i, ev := range events {
			if ev.Engine != e.engine || ev.Kind == EventDone {
				continue
			}
			switch ev.Kind {
			case EventStarted:
				if started >= 0 {
					t.Errorf("%s started twice", e.engine)
				}
				started = i
			case EventResult:
				if started < 0 || terminal >= 0 {
					t.Errorf("%s result outside its lifecycle at %d", e.engine, i)
				}
				got = append(got, ev.Result.URL)
			case EventFinished, EventFailed:
				if terminal >= 0 {
					t.Errorf("%s has two terminal events", e.engine)
				}
				terminal = i
			}
		}
		if terminal < 0 {
			t.Errorf("%s has no terminal event", e.engine)
		}
		if fmt.Sprint(got) != fmt.Sprint(e.urls) {
			t.Errorf("%s results out of order:\ngot:  %v\nwant: %v", e.engine, got, e.urls)
		}
	}
}

func TestFailureIsIsolated(t *testing.T) {
	boom := errors.New("503 from upstream")
	bad := &listEngine{engine: core.Bing, urls: urls("bing", 2), err: boom}
	good := &listEngine{engine: core.Brave, urls: urls("brave", 10)}
	s := mustSearch(t, []Engine{bad, good}, Options{})
	events := collectEvents(s)

	var failed, finished []core.Engine
	results := 0
	for _, ev := range events {
		switch ev.Kind {
		case EventFailed:
			failed = append(failed, ev.Engine)
			if !errors.Is(ev.Err, boom) {
				t.Errorf("failure error: %v", ev.Err)
			}
		case EventFinished:
			finished = append(finished, ev.Engine)
		case EventResult:
			results++
		}
	}
	if len(failed) != 1 || failed[0] != core.Bing {
		t.Errorf("failed engines: %v", failed)
	}
	if len(finished) != 1 || finished[0] != core.Brave {
		t.Errorf("finished engines: %v", finished)
	}
	if results != 12 {
		t.Errorf("expected the results of both engines, got %d", results)
	}

	outcomes := s.Outcomes()
	if len(outcomes) != 2 || outcomes[0].Err == nil || outcomes[1].Err != nil || outcomes[1].Results != 10 {
		t.Errorf("outcomes: %+v", outcomes)
	}
}

func TestBoundedQueueWithSlowConsumer(t *testing.T) {
	const queue = 16
	web := urls("web", 70)
	list := []*listEngine{
		{engine: core.Bing, urls: web[:40]},
		{engine: core.Brave, urls: web[20:60]},
		{engine: core.DuckDuckGo, urls: web[30:70]},
	}
	s := mustSearch(t, []Engine{list[0], list[1], list[2]}, Options{QueueSize: queue})

	emitted := func() int64 {
		var n int64
		for _, l := range list {
			n += l.emitted.Load()
		}
		return n
	}

	consumed, results, duplicates := 0, 0, 0
	for ev := range s.Events() {
		switch ev.Kind {
		case EventResult:
			results++
		case EventDuplicate:
			duplicates++
		default:
			continue
		}
		consumed++
		// Every producer may have one accepted result in flight besides
		// the queue itself.
		if ahead := emitted() - int64(consumed); ahead > int64(queue+len(list)) {
			t.Fatalf("producers ran %d results ahead of a queue of %d", ahead, queue)
		}
		time.Sleep(200 * time.Microsecond)
	}

	if consumed != 120 {
		t.Errorf("expected 120 results from all engines, got %d", consumed)
	}
	if results != len(web) || s.Count() != len(web) {
		t.Errorf("expected %d distinct results, got %d events and Count %d", len(web), results, s.Count())
	}
	if duplicates != 120-len(web) {
		t.Errorf("expected %d duplicates, got %d", 120-len(web), duplicates)
	}
}

func TestCloseStopsProducers(t *testing.T) {
	e := &endlessEngine{engine: core.DuckDuckGo, ret: make(chan error, 1)}
	s := mustSearch(t, []Engine{e}, Options{QueueSize: 2})

	for i := 0; i < 5; i++ {
		ev, ok := s.Next()
		if !ok {
			t.Fatal("stream ended early")
		}
		if ev.Kind == EventFailed {
			t.Fatalf("unexpected failure: %v", ev.Err)
		}
	}

	closed := make(chan struct{})
	go func() {
		s.Close()
		close(closed)
	}()
	select {
	case <-closed:
	case <-time.After(5 * time.Second):
		t.Fatal("Close did not return")
	}

	select {
	case err := <-e.ret:
		if !errors.Is(err, engines.ErrConsumerGone) {
			t.Errorf("producer stopped with %v", err)
		}
	default:
		t.Error("producer did not observe the closed stream")
	}
	if _, ok := s.Next(); ok {
		t.Error("Next returned an event after Close")
	}
	s.Close()
}

func TestBreakingOutOfEventsCloses(t *testing.T) {
	e := &endlessEngine{engine: core.Bing, ret: make(chan error, 1)}
	s := mustSearch(t, []Engine{e}, Options{})
	n := 0
	for range s.Events() {
		n++
		if n == 3 {
			break
		}
	}
	if !s.Closed() {
		t.Error("stream still open after break")
	}
}

func TestContextCancelFailsRunningEngines(t *testing.T) {
	o, err := New([]Engine{&waitEngine{engine: core.Brave}}, nopFetcher{}, Options{})
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	s, err := o.Search(ctx, "q")
	if err != nil {
		t.Fatal(err)
	}

	ev, ok := s.Next()
	if !ok || ev.Kind != EventStarted {
		t.Fatalf("expected started, got %v %v", ev.Kind, ok)
	}
	cancel()

	ev, ok = s.Next()
	if !ok || ev.Kind != EventFailed || !errors.Is(ev.Err, context.Canceled) {
		t.Fatalf("expected failed with context.Canceled, got %v %v", ev.Kind, ev.Err)
	}
	ev, ok = s.Next()
	if !ok || ev.Kind != EventDone {
		t.Fatalf("expected done, got %v", ev.Kind)
	}
	if _, ok := s.Next(); ok {
		t.Error("Next returned an event after done")
	}
}

func TestSearchValidation(t *testing.T) {
	if _, err := New(nil, nopFetcher{}, Options{}); !errors.Is(err, ErrNoEngines) {
		t.Errorf("expected ErrNoEngines, got %v", err)
	}
	twice := []Engine{&listEngine{engine: core.Bing}, &listEngine{engine: core.Bing}}
	if _, err := New(twice, nopFetcher{}, Options{}); err == nil {
		t.Error("expected an error for a repeated engine")
	}

	o, err := New([]Engine{&listEngine{engine: core.Bing}}, nopFetcher{}, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := o.Search(context.Background(), "   "); !errors.Is(err, ErrEmptyQuery) {
		t.Errorf("expected ErrEmptyQuery, got %v", err)
	}
	if _, err := o.SearchEngines(context.Background(), "q", []core.Engine{core.Brave}); !errors.Is(err, ErrNoEngines) {
		t.Errorf("expected ErrNoEngines for an unconfigured subset, got %v", err)
	}
}

func TestSearchEnginesSubset(t *testing.T) {
	a := &listEngine{engine: core.Bing, urls: urls("bing", 3)}
	b := &listEngine{engine: core.Brave, urls: urls("brave", 3)}
	o, err := New([]Engine{a, b}, nopFetcher{}, Options{})
	if err != nil {
		t.Fatal(err)
	}
	s, err := o.SearchEngines(context.Background(), "q", []core.Engine{core.Brave})
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range s.Results() {
		if r.Engine != core.Brave {
			t.Errorf("result from unselected engine: %+v", r)
		}
	}
	if a.emitted.Load() != 0 {
		t.Error("unselected engine ran")
	}
}

// pageFetcher serves the engine fixtures keyed by request URL.
type pageFetcher map[string][]byte

func (p pageFetcher) Fetch(ctx context.Context, req transport.Request) (transport.ChunkSource, error) {
	page, ok := p[req.URL]
	if !ok {
		return nil, errors.Wrapf(transport.ErrStatus, "%s: 404", req.URL)
	}
	var chunks [][]byte
	for len(page) > 0 {
		n := min(100, len(page))
		chunks = append(chunks, page[:n])
		page = page[n:]
	}
	return transport.StaticSource(chunks...), nil
}

func TestSearchWithEngineAdapters(t *testing.T) {
	pages := pageFetcher{}
	reg := engines.Default()
	adapters, err := reg.Build(core.Engines(), func(s engines.Spec) (engines.Spec, engines.Options) {
		u := "https://fixtures.test/" + s.Engine.String() + "?q={query}"
		page, err := os.ReadFile(filepath.Join("..", "engines", "testdata", s.Engine.String()+".html"))
		if err != nil {
			t.Fatalf("fixture: %v", err)
		}
		pages["https://fixtures.test/"+s.Engine.String()+"?q=golang"] = page
		return s.WithURL(u), engines.Options{}
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	o, err := New(Adapters(adapters), pages, Options{})
	if err != nil {
		t.Fatal(err)
	}
	s, err := o.Search(context.Background(), "golang")
	if err != nil {
		t.Fatal(err)
	}
	results := s.Results()
	if len(results) != 6 {
		t.Fatalf("expected 6 results, got %d", len(results))
	}
	for _, oc := range s.Outcomes() {
		if oc.Err != nil || oc.Results != 2 || !oc.Done {
			t.Errorf("outcome: %+v", oc)
		}
	}
}
