package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/cockroachdb/errors"
	"github.com/rubiojr/sieve/pkg/config"
	"github.com/rubiojr/sieve/pkg/history"
	"github.com/rubiojr/sieve/pkg/log"
	"github.com/rubiojr/sieve/pkg/render"
	"github.com/rubiojr/sieve/pkg/search"
	"github.com/urfave/cli/v3"
)

var (
	resultTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("86"))

	urlStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("33"))

	metaStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true)

	failStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	summaryStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("32"))
)

// SearchCommand creates the search command
func SearchCommand() *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Search every enabled engine, printing results as they arrive",
		ArgsUsage: "<query...>",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:    "engine",
				Aliases: []string{"e"},
				Usage:   "Only query these engines. Can be used multiple times",
			},
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Stop after this many unique results (0 for no limit)",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Show duplicates and per engine progress",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			query := strings.Join(c.Args().Slice(), " ")
			return runSearch(ctx, c.String("config"), query, c.StringSlice("engine"), c.Int("limit"), c.Bool("verbose"))
		},
	}
}

func runSearch(ctx context.Context, configPath, query string, engineFlags []string, limit int, verbose bool) error {
	if strings.TrimSpace(query) == "" {
		return fmt.Errorf("missing query")
	}
	only, err := parseEngineFlags(engineFlags)
	if err != nil {
		return err
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	o, err := newOrchestrator(cfg)
	if err != nil {
		return err
	}
	store, err := openHistory(cfg)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	stream, err := o.SearchEngines(ctx, query, only)
	if err != nil {
		return fmt.Errorf("starting search: %w", err)
	}
	defer stream.Close()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	defer signal.Stop(interrupt)
	defer closeOnSignal(stream, interrupt)()

	collector := history.NewCollector(stream)
	p := &resultPrinter{w: os.Stdout, verbose: verbose}
	completed := false
	for ev := range stream.Events() {
		collector.Observe(ev)
		p.print(ev, stream)
		if ev.Kind == search.EventDone {
			completed = true
		}
		if limit > 0 && ev.Kind == search.EventResult && stream.Count() >= limit {
			break
		}
	}

	if store != nil && completed {
		if _, err := store.Record(context.WithoutCancel(ctx), collector.Entry()); err != nil {
			log.ForService("history").Warnf("recording search: %v", err)
		}
	}
	return nil
}

// closeOnSignal closes stream when sig fires, ending the event loop without
// failing the engines still running. The returned func stops watching.
func closeOnSignal(stream *search.Stream, sig <-chan os.Signal) func() {
	stop := make(chan struct{})
	go func() {
		select {
		case <-sig:
			log.ForService("search").Debugf("interrupted, closing search")
			stream.Close()
		case <-stop:
		}
	}()
	return func() { close(stop) }
}

// resultPrinter writes a stream of events as styled terminal text.
type resultPrinter struct {
	w       io.Writer
	verbose bool
	n       int
}

func (p *resultPrinter) print(ev search.Event, stream *search.Stream) {
	switch ev.Kind {
	case search.EventStarted:
		if p.verbose {
			fmt.Fprintln(p.w, metaStyle.Render("querying "+ev.Engine.DisplayName()))
		}
	case search.EventResult:
		p.n++
		r := ev.Result
		fmt.Fprintf(p.w, "%d. %s\n", p.n, resultTitleStyle.Render(r.Title))
		fmt.Fprintf(p.w, "   %s\n", urlStyle.Render(r.URL))
		if r.Description != "" {
			fmt.Fprintf(p.w, "   %s\n", render.Truncate(r.Description, 200))
		}
		meta := r.Engine.DisplayName()
		if d := render.FormatDate(r.Date); d != "" {
			meta += " · " + d
		}
		fmt.Fprintf(p.w, "   %s\n\n", metaStyle.Render(meta))
	case search.EventDuplicate:
		if p.verbose {
			fmt.Fprintf(p.w, "   %s\n", metaStyle.Render(fmt.Sprintf("%s also found %s", ev.Engine.DisplayName(), ev.Result.URL)))
		}
	case search.EventFinished:
		if p.verbose {
			fmt.Fprintln(p.w, metaStyle.Render(fmt.Sprintf("%s finished in %s", ev.Engine.DisplayName(), render.FormatElapsed(ev.Elapsed))))
		}
	case search.EventFailed:
		if errors.Is(ev.Err, context.Canceled) {
			return
		}
		fmt.Fprintln(p.w, failStyle.Render(fmt.Sprintf("%s failed: %v", ev.Engine.DisplayName(), ev.Err)))
	case search.EventDone:
		fmt.Fprintln(p.w, summaryStyle.Render(fmt.Sprintf("%d results in %s", stream.Count(), render.FormatElapsed(ev.Elapsed))))
		if p.verbose {
			for _, oc := range stream.Outcomes() {
				fmt.Fprintf(p.w, "  %-14s %d results, %d duplicates\n", oc.Engine.DisplayName(), oc.Results, oc.Duplicates)
			}
		}
	}
}
