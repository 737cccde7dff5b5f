package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/rubiojr/sieve/pkg/config"
	"github.com/rubiojr/sieve/pkg/core"
	"github.com/rubiojr/sieve/pkg/engines"
	"github.com/urfave/cli/v3"
)

var (
	enabledStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("32"))
	disabledStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

// EnginesCommand creates the engines command
func EnginesCommand() *cli.Command {
	return &cli.Command{
		Name:  "engines",
		Usage: "List the supported engines and their configuration",
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg, err := config.LoadConfig(c.String("config"))
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			return listEngines(os.Stdout, cfg)
		},
	}
}

func listEngines(w io.Writer, cfg *config.Config) error {
	enabled := map[core.Engine]bool{}
	for _, e := range cfg.EnabledEngines() {
		enabled[e] = true
	}

	registry := engines.Default()
	for _, e := range registry.Engines() {
		spec, err := registry.Spec(e)
		if err != nil {
			return err
		}
		if u := cfg.EngineURL(e); u != "" {
			spec = spec.WithURL(u)
		}

		status := enabledStyle.Render("enabled")
		if !enabled[e] {
			status = disabledStyle.Render("disabled")
		}
		fmt.Fprintf(w, "%-12s %-14s %s\n", e, e.DisplayName(), status)
		method := spec.Request.Method
		if method == "" {
			method = "GET"
		}
		fmt.Fprintf(w, "  %s %s (timeout %s)\n", method, spec.Request.URL, cfg.EngineTimeout(e))
	}
	return nil
}
