package cmd

import (
	"fmt"
	"strings"

	"github.com/rubiojr/sieve/pkg/config"
	"github.com/rubiojr/sieve/pkg/core"
	"github.com/rubiojr/sieve/pkg/engines"
	"github.com/rubiojr/sieve/pkg/extract"
	"github.com/rubiojr/sieve/pkg/history"
	"github.com/rubiojr/sieve/pkg/search"
	"github.com/rubiojr/sieve/pkg/transport"
)

// newOrchestrator builds adapters for every enabled engine, applying the
// per-engine overrides from cfg.
func newOrchestrator(cfg *config.Config) (*search.Orchestrator, error) {
	configure := func(spec engines.Spec) (engines.Spec, engines.Options) {
		if u := cfg.EngineURL(spec.Engine); u != "" {
			spec = spec.WithURL(u)
		}
		return spec, engines.Options{
			Timeout: cfg.EngineTimeout(spec.Engine),
			Extract: extract.Options{CalendarDates: cfg.CalendarDates},
		}
	}

	adapters, err := engines.Default().Build(cfg.EnabledEngines(), configure)
	if err != nil {
		return nil, fmt.Errorf("building engines: %w", err)
	}

	fetcher := transport.NewHTTPFetcher(transport.HTTPOptions{
		UserAgent: cfg.UserAgent,
		Timeout:   cfg.RequestTimeout.Duration,
	})
	o, err := search.New(search.Adapters(adapters), fetcher, search.Options{QueueSize: cfg.QueueSize})
	if err != nil {
		return nil, fmt.Errorf("creating orchestrator: %w", err)
	}
	return o, nil
}

// openHistory returns nil when history is disabled in cfg.
func openHistory(cfg *config.Config) (*history.Store, error) {
	if !cfg.History {
		return nil, nil
	}
	store, err := history.Open(cfg.HistoryDBPath())
	if err != nil {
		return nil, fmt.Errorf("opening history: %w", err)
	}
	return store, nil
}

// parseEngineFlags accepts repeated and comma separated engine slugs.
func parseEngineFlags(values []string) ([]core.Engine, error) {
	var out []core.Engine
	for _, v := range values {
		for _, slug := range strings.Split(v, ",") {
			if strings.TrimSpace(slug) == "" {
				continue
			}
			e, err := core.ParseEngine(slug)
			if err != nil {
				return nil, err
			}
			out = append(out, e)
		}
	}
	return out, nil
}
