package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	httpserver "github.com/fyrsmithlabs/triaged/internal/http"
	"github.com/fyrsmithlabs/triaged/internal/knowledge"
	"github.com/fyrsmithlabs/triaged/internal/scrub"
)

var (
	serveHost string
	servePort int
)

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "listen host (default from server.host)")
	serveCmd.Flags().IntVar(&servePort, "port", -1, "listen port (default from server.port, 0 picks a free port)")
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the health, status and metrics endpoints",
	Long: `Keep the knowledge base and vector index loaded and serve operational
endpoints: /health, /ready, /metrics, /api/v1/status and /api/v1/scrub.

When server.watch_knowledge is set, changes written to the knowledge base by
other triaged processes are picked up and re-indexed.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRuntime(cmd, runServe)
	},
}

func runServe(ctx context.Context, rt *runtime) error {
	logger := rt.logger.Underlying()
	cfg := rt.cfg

	scfg, err := cfg.QueryScrubber()
	if err != nil {
		return fmt.Errorf("loading scrub rules: %w", err)
	}
	scrubber, err := scrub.New(scfg)
	if err != nil {
		return fmt.Errorf("creating scrubber: %w", err)
	}

	host, port := cfg.Server.Host, cfg.Server.Port
	if serveHost != "" {
		host = serveHost
	}
	if servePort >= 0 {
		port = servePort
	}
	server, err := httpserver.NewServer(rt.svc, scrubber, rt.telemetry, logger, &httpserver.Config{
		Host:    host,
		Port:    port,
		Version: version,
	})
	if err != nil {
		return fmt.Errorf("creating http server: %w", err)
	}

	if cfg.Server.WatchKnowledge {
		watcher, err := knowledge.NewWatcher(cfg.Knowledge.Path, cfg.Server.WatchDebounce, logger)
		if err != nil {
			logger.Warn("knowledge watcher unavailable", zap.Error(err))
		} else {
			watcher.Start(ctx)
			reloads := make(chan struct{})
			defer func() {
				watcher.Stop()
				<-reloads
			}()
			go func() {
				defer close(reloads)
				for range watcher.Changes() {
					changed, err := rt.svc.Reload(ctx)
					if err != nil {
						logger.Warn("reloading knowledge base failed", zap.Error(err))
						continue
					}
					if changed {
						logger.Info("knowledge base changed on disk, re-indexed")
					}
				}
			}()
		}
	}

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serving: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("shutting down http server: %w", err)
	}
	return <-errCh
}
