package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rubiojr/sieve/cmd"
	"github.com/rubiojr/sieve/pkg/config"
	"github.com/rubiojr/sieve/pkg/log"
	"github.com/urfave/cli/v3"
)

func main() {
	app := &cli.Command{
		Name:  "sieve",
		Usage: "Query several search engines at once and merge their results as they stream in",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Enable debug logging",
				Value: false,
			},
			&cli.StringFlag{
				Name:  "config",
				Usage: "Configuration file path",
				Value: getDefaultConfigPathOrExit(),
			},
		},
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			log.SetGlobalDebug(c.Bool("debug"))
			// SIEVE_DEBUG=bing,search enables debug output for some services only.
			log.EnableDebugList(os.Getenv("SIEVE_DEBUG"))
			return ctx, nil
		},
		Commands: []*cli.Command{
			cmd.InitCommand(),
			cmd.SearchCommand(),
			cmd.EnginesCommand(),
			cmd.WebCommand(),
			cmd.HistoryCommand(),
			cmd.VersionCommand(),
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func getDefaultConfigPathOrExit() string {
	path, err := config.GetDefaultConfigPath()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to get default config path: %v\n", err)
		os.Exit(1)
	}
	return path
}
