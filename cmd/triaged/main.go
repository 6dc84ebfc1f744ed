// Package main implements the triaged CLI for consultations and knowledge
// base administration.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/triaged/internal/config"
	"github.com/fyrsmithlabs/triaged/internal/logging"
	"github.com/fyrsmithlabs/triaged/internal/telemetry"
	"github.com/fyrsmithlabs/triaged/internal/triage"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

var (
	// configPath is an optional YAML file layered over the defaults
	configPath string
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "triaged",
	Short: "Retrieval-augmented symptom triage assistant",
	Long: `triaged answers symptom questions from a curated medical knowledge base.

It retrieves reference passages (vector search when an embedding provider is
configured, keyword search otherwise) and shapes them into a severity-ranked
response. Every consultation is appended to the consultation log.

Configuration is read from built-in defaults, an optional YAML file given by
--config or TRIAGED_CONFIG, and TRIAGED_<SECTION>_<FIELD> environment
variables.

This tool does not provide medical diagnosis.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file")
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "triaged %s (commit %s, built %s)\n", version, gitCommit, buildDate)
	},
}

// runtime is the set of components a command runs against.
type runtime struct {
	cfg       *config.Config
	logger    *logging.Logger
	telemetry *telemetry.Telemetry
	svc       *triage.Service
}

// withService runs fn against an initialized service.
func withService(cmd *cobra.Command, fn func(ctx context.Context, svc *triage.Service) error) error {
	return withRuntime(cmd, func(ctx context.Context, rt *runtime) error {
		return fn(ctx, rt.svc)
	})
}

// withRuntime loads configuration, starts telemetry, initializes the
// service and runs fn. Everything is shut down before returning.
func withRuntime(cmd *cobra.Command, fn func(ctx context.Context, rt *runtime) error) (err error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger, err := logging.NewLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if version != "dev" {
		cfg.Telemetry.ServiceVersion = version
	}
	tel, err := telemetry.New(ctx, &cfg.Telemetry, logger.Underlying())
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}
	defer func() { _ = tel.Shutdown(context.WithoutCancel(ctx)) }()
	if tel.LogsEnabled() {
		logger = logger.WithOTel(tel.LoggerProvider())
	}

	svc, err := triage.New(cfg, triage.WithLogger(logger.Underlying()))
	if err != nil {
		return fmt.Errorf("creating service: %w", err)
	}
	if err := svc.Initialize(ctx); err != nil {
		return fmt.Errorf("initializing service: %w", err)
	}
	defer func() {
		if shutdownErr := svc.Shutdown(context.WithoutCancel(ctx)); shutdownErr != nil && err == nil {
			err = fmt.Errorf("shutting down service: %w", shutdownErr)
		}
	}()

	return fn(ctx, &runtime{cfg: cfg, logger: logger, telemetry: tel, svc: svc})
}

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}
	return nil
}
