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
	"github.com/wiresharks/claudecodex/internal/server"
	"github.com/wiresharks/claudecodex/internal/store"
	"github.com/wiresharks/claudecodex/internal/telemetry"
)

var (
	serveHost    string
	servePort    int
	serveMCPPath string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the relay server",
	Long:  `Start the HTTP relay: the MCP endpoint agents connect to, the read-only JSON API, and the web viewer, all on one listener.`,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "host to bind to (overrides config)")
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "port to listen on (overrides config)")
	serveCmd.Flags().StringVar(&serveMCPPath, "mcp-path", "", "HTTP path for the MCP endpoint (overrides config)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(".")
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cmd.Flags().Changed("host") {
		cfg.Server.Host = serveHost
	}
	if cmd.Flags().Changed("port") {
		cfg.Server.Port = servePort
	}
	if cmd.Flags().Changed("mcp-path") {
		cfg.Server.MCPPath = serveMCPPath
	}
	if err := config.Validate(cfg); err != nil {
		return err
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
	mcpHTTP := mcp.NewHTTPHandler(mcp.NewServer(tools, logger, metrics))
	srv := server.New(cfg, st, bus, mcpHTTP, metrics, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	metrics.Flush("server.started", map[string]string{"addr": cfg.Server.Addr()})
	return srv.Start(ctx, cfg.Server.Addr())
}
