package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wiresharks/claudecodex/internal/config"
	"github.com/wiresharks/claudecodex/internal/event"
	"github.com/wiresharks/claudecodex/internal/mcp"
	"github.com/wiresharks/claudecodex/internal/store"
	"github.com/wiresharks/claudecodex/internal/telemetry"
)

var stdioCmd = &cobra.Command{
	Use:   "stdio",
	Short: "Run the MCP server on stdin/stdout",
	Long: `Serve the relay's MCP tools over stdio, for clients that spawn the
relay as a child process instead of connecting over HTTP. Logs go to stderr
and the configured log file, never to stdout.`,
	RunE: runStdio,
}

func runStdio(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load(".")
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := telemetry.NewLogger(verbose)
	if cfg.Log.Path != "" {
		if err := logger.WithRotatingFile(cfg.Log.Path, cfg.Log.MaxBytes, cfg.Log.BackupCount); err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
	}
	defer logger.Close()

	metrics := telemetry.NewMetrics()
	if cfg.Metrics.ExportPath != "" {
		exporter, err := telemetry.NewJSONFileExporter(cfg.Metrics.ExportPath)
		if err != nil {
			return fmt.Errorf("open metrics export: %w", err)
		}
		metrics.SetExporter(exporter)
		defer metrics.Flush("server.stopped", nil)
	}

	bus := event.NewBus(logger)
	closeHooks, err := registerHooks(cfg, bus, logger, metrics)
	if err != nil {
		return err
	}
	defer closeHooks()

	st := store.New(cfg.Channels, bus)
	tools := mcp.NewToolHandler(st, bus, metrics)
	srv := mcp.NewServer(tools, logger, metrics)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	logger.Info("mcp stdio server ready", "channels", len(cfg.Channels))
	return srv.Run(ctx)
}
