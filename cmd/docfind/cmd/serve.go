package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/docfind/internal/api"
	"github.com/Aman-CERP/docfind/internal/config"
	"github.com/Aman-CERP/docfind/internal/instance"
	"github.com/Aman-CERP/docfind/internal/logging"
	"github.com/Aman-CERP/docfind/internal/mcp"
	"github.com/Aman-CERP/docfind/internal/watcher"
	"github.com/Aman-CERP/docfind/pkg/version"
)

type serveOptions struct {
	addr    string
	watch   bool
	noWatch bool
	noMCP   bool
}

func newServeCmd(root *rootOptions) *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and MCP server",
		Long: `Run the docfind HTTP API.

The API accepts uploads at /api/files/upload and searches at /api/search.
The MCP streamable HTTP transport is mounted at /mcp. With watching enabled,
documents dropped into the inbox directory are ingested automatically.

Only one server runs per data directory (~/.docfind).

Examples:
  docfind serve
  docfind serve --addr :8080 --watch
  DOCFIND_TRANSPORT=stdio docfind serve`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := root.cfg
			if cmd.Flags().Changed("addr") {
				cfg.Server.Addr = opts.addr
			}
			if opts.watch {
				cfg.Watch.Enabled = true
			}
			if opts.noWatch {
				cfg.Watch.Enabled = false
			}
			if cfg.Server.Transport == "stdio" {
				return runMCP(cmd.Context(), root)
			}
			return runServe(cmd.Context(), cmd, cfg, !opts.noMCP)
		},
	}

	cmd.Flags().StringVar(&opts.addr, "addr", ":3000", "Listen address")
	cmd.Flags().BoolVar(&opts.watch, "watch", false, "Ingest documents dropped into the inbox directory")
	cmd.Flags().BoolVar(&opts.noWatch, "no-watch", false, "Disable the inbox watcher")
	cmd.Flags().BoolVar(&opts.noMCP, "no-mcp", false, "Do not mount the MCP transport at /mcp")
	cmd.MarkFlagsMutuallyExclusive("watch", "no-watch")

	return cmd
}

func runServe(parent context.Context, cmd *cobra.Command, cfg *config.Config, withMCP bool) error {
	logCfg := logging.DefaultConfig()
	logCfg.Level = cfg.Server.LogLevel
	logger, cleanup, err := logging.Setup(logCfg)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	defer cleanup()

	guard, err := instance.Acquire(config.DataDir())
	if err != nil {
		return err
	}
	defer func() { _ = guard.Release() }()

	metrics, closeMetrics, err := openMetrics(cfg, logger)
	if err != nil {
		return err
	}
	defer closeMetrics()

	svc, err := newService(cfg, logger, metrics)
	if err != nil {
		return err
	}

	apiOpts := []api.Option{
		api.WithLogger(logger),
		api.WithCORSOrigin(cfg.Server.CORSOrigin),
	}
	if withMCP {
		mcpOpts := []mcp.Option{mcp.WithLogger(logger)}
		if metrics != nil {
			mcpOpts = append(mcpOpts, mcp.WithMetrics(metrics))
		}
		mcpSrv, err := mcp.NewServer(svc, mcpOpts...)
		if err != nil {
			return err
		}
		apiOpts = append(apiOpts, api.WithMCPHandler(mcpSrv.HTTPHandler()))
	}
	srv := api.NewServer(svc, apiOpts...)

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("docfind starting",
		slog.String("version", version.Version),
		slog.String("addr", cfg.Server.Addr),
		slog.Bool("mcp", withMCP),
		slog.Bool("watch", cfg.Watch.Enabled),
		slog.Bool("telemetry", metrics != nil))
	_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "docfind listening on %s\n", cfg.Server.Addr)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.ListenAndServe(gctx, cfg.Server.Addr)
	})
	if cfg.Watch.Enabled {
		inbox := watcher.NewInbox(cfg.Watch.Dir, svc, watcher.Options{
			DebounceWindow: cfg.Watch.DebounceDuration(),
			Workers:        cfg.Watch.Workers,
			Logger:         logger,
		})
		g.Go(func() error {
			return inbox.Run(gctx)
		})
	}
	return g.Wait()
}
