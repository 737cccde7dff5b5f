package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rubiojr/sieve/pkg/api"
	"github.com/rubiojr/sieve/pkg/config"
	"github.com/rubiojr/sieve/pkg/log"
	"github.com/urfave/cli/v3"
)

// WebCommand creates the web command with both API and UI
func WebCommand() *cli.Command {
	return &cli.Command{
		Name:  "web",
		Usage: "Start the web server with the streaming results page and API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "port",
				Usage: "Port to listen on (defaults to web.port)",
			},
			&cli.StringFlag{
				Name:  "host",
				Usage: "Host to bind to (defaults to web.host)",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			return startWebServer(ctx, c.String("config"), c.String("host"), c.String("port"))
		},
	}
}

// startWebServer serves until SIGINT or SIGTERM. Engine settings are
// reloaded on SIGHUP and whenever the config file changes.
func startWebServer(ctx context.Context, configPath, host, port string) error {
	l := log.ForService("web")

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if host != "" {
		cfg.Web.Host = host
	}
	if port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return fmt.Errorf("invalid port %q", port)
		}
		cfg.Web.Port = p
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
		defer func() {
			if err := store.Close(); err != nil {
				l.Warnf("closing history: %v", err)
			}
		}()
	}

	apiServer, err := api.NewServer(o, store)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	server := &http.Server{
		Addr:    cfg.Addr(),
		Handler: apiServer.Handler(),
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	serveErr := make(chan error, 1)
	go func() {
		l.Infof("Starting web server on http://%s", cfg.Addr())
		l.Infof("Engines: %v", o.Engines())
		if store != nil {
			l.Infof("Recording history in %s", cfg.HistoryDBPath())
		}
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigCh)

	reload := func(reason string) {
		next, err := config.LoadConfig(configPath)
		if err != nil {
			l.Warnf("%s: keeping current configuration: %v", reason, err)
			return
		}
		fresh, err := newOrchestrator(next)
		if err != nil {
			l.Warnf("%s: keeping current engines: %v", reason, err)
			return
		}
		apiServer.SetSearcher(fresh)
		l.Infof("%s: engines reloaded: %v", reason, fresh.Engines())
		if next.History != cfg.History || next.Addr() != cfg.Addr() {
			l.Warnf("history and web settings take effect after a restart")
		}
	}

	var events <-chan fsnotify.Event
	var watchErrs <-chan error
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		l.Warnf("failed to create config file watcher: %v", err)
	} else {
		defer watcher.Close()
		if err := watcher.Add(configPath); err != nil {
			l.Warnf("failed to watch config file %s: %v", configPath, err)
		} else {
			l.Debugf("watching %s for changes", configPath)
			events, watchErrs = watcher.Events, watcher.Errors
		}
	}

	for {
		select {
		case err, ok := <-serveErr:
			if ok {
				return fmt.Errorf("serving: %w", err)
			}
			return nil
		case sig := <-sigCh:
			if sig == syscall.SIGHUP {
				reload("SIGHUP")
				continue
			}
			l.Infof("Shutting down web server...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		case event, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) && !event.Has(fsnotify.Remove) {
				continue
			}
			// Editors often replace the file, which drops the watch.
			if event.Has(fsnotify.Rename) || event.Has(fsnotify.Remove) {
				time.Sleep(200 * time.Millisecond)
				if _, err := os.Stat(configPath); os.IsNotExist(err) {
					l.Warnf("config file removed, keeping current configuration")
					continue
				}
				if err := watcher.Add(configPath); err != nil {
					l.Warnf("failed to re-add config file to watcher: %v", err)
				}
			} else {
				time.Sleep(100 * time.Millisecond)
			}
			reload("config file changed")
		case err, ok := <-watchErrs:
			if !ok {
				watchErrs = nil
				continue
			}
			l.Warnf("config file watcher error: %v", err)
		}
	}
}
