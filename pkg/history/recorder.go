package history

import (
	"github.com/rubiojr/sieve/pkg/core"
	"github.com/rubiojr/sieve/pkg/search"
)

// Collector builds an Entry while a stream is being read. Feed it every
// event; after EventDone the entry is complete.
type Collector struct {
	entry  Entry
	stream *search.Stream
}

func NewCollector(stream *search.Stream) *Collector {
	return &Collector{
		stream: stream,
		entry:  Entry{Query: stream.Query()},
	}
}

func (c *Collector) Observe(ev search.Event) {
	switch ev.Kind {
	case search.EventResult:
		c.entry.Results = append(c.entry.Results, ev.Result)
	case search.EventDone:
		c.entry.Elapsed = ev.Elapsed
	}
}

// Entry returns the search as observed so far, engine outcomes included.
func (c *Collector) Entry() Entry {
	e := c.entry
	e.Results = append([]core.Result(nil), c.entry.Results...)
	e.ResultCount = len(e.Results)
	e.StartedAt = c.stream.StartedAt()
	for _, oc := range c.stream.Outcomes() {
		run := EngineRun{
			Engine:     oc.Engine,
			Results:    oc.Results,
			Duplicates: oc.Duplicates,
			Elapsed:    oc.Elapsed,
		}
		if oc.Err != nil {
			run.Error = oc.Err.Error()
		}
		e.Engines = append(e.Engines, run)
	}
	return e
}
