package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rubiojr/sieve/pkg/config"
	"github.com/rubiojr/sieve/pkg/history"
	"github.com/rubiojr/sieve/pkg/render"
	"github.com/urfave/cli/v3"
)

// HistoryCommand creates the history command
func HistoryCommand() *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Browse past searches",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of searches to list",
				Value: 20,
			},
			&cli.StringFlag{
				Name:  "query",
				Usage: "Only list searches containing this text",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			return withHistory(c.String("config"), func(store *history.Store) error {
				entries, err := store.List(ctx, c.String("query"), c.Int("limit"))
				if err != nil {
					return err
				}
				printHistory(os.Stdout, entries)
				return nil
			})
		},
		Commands: []*cli.Command{
			{
				Name:      "show",
				Usage:     "Show a recorded search and its results",
				ArgsUsage: "<id>",
				Action: func(ctx context.Context, c *cli.Command) error {
					if c.Args().Len() != 1 {
						return fmt.Errorf("expected exactly one search id")
					}
					return withHistory(c.String("config"), func(store *history.Store) error {
						entry, err := store.Get(ctx, c.Args().First())
						if err != nil {
							return err
						}
						printEntry(os.Stdout, entry)
						return nil
					})
				},
			},
			{
				Name:  "prune",
				Usage: "Delete all but the most recent searches",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "keep",
						Usage: "Number of searches to keep",
						Value: 100,
					},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					return withHistory(c.String("config"), func(store *history.Store) error {
						n, err := store.Prune(ctx, c.Int("keep"))
						if err != nil {
							return err
						}
						fmt.Printf("Removed %d searches\n", n)
						return nil
					})
				},
			},
		},
	}
}

func withHistory(configPath string, fn func(*history.Store) error) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	// Browsing works even when recording is switched off.
	store, err := history.Open(cfg.HistoryDBPath())
	if err != nil {
		return fmt.Errorf("opening history: %w", err)
	}
	defer store.Close()
	return fn(store)
}

func printHistory(w io.Writer, entries []history.Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, metaStyle.Render("No searches recorded"))
		return
	}
	for _, e := range entries {
		fmt.Fprintf(w, "%s  %s\n", metaStyle.Render(e.ID), resultTitleStyle.Render(e.Query))
		fmt.Fprintf(w, "  %s, %d results in %s\n", e.StartedAt.Local().Format("2006-01-02 15:04"), e.ResultCount, render.FormatElapsed(e.Elapsed))
	}
}

func printEntry(w io.Writer, e *history.Entry) {
	fmt.Fprintln(w, summaryStyle.Render(e.Query))
	fmt.Fprintf(w, "%s, %d results in %s\n\n", e.StartedAt.Local().Format("2006-01-02 15:04:05"), e.ResultCount, render.FormatElapsed(e.Elapsed))
	for _, run := range e.Engines {
		line := fmt.Sprintf("%-14s %d results, %d duplicates, %s", run.Engine.DisplayName(), run.Results, run.Duplicates, render.FormatElapsed(run.Elapsed))
		if run.Error != "" {
			fmt.Fprintln(w, failStyle.Render(line+": "+run.Error))
			continue
		}
		fmt.Fprintln(w, line)
	}
	fmt.Fprintln(w)
	for i, r := range e.Results {
		fmt.Fprintf(w, "%d. %s\n   %s\n", i+1, resultTitleStyle.Render(r.Title), urlStyle.Render(r.URL))
	}
}
