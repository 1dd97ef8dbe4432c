package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/docfind/internal/logging"
	"github.com/Aman-CERP/docfind/internal/mcp"
)

func newMCPCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Run the MCP server over stdio",
		Long: `Run docfind as an MCP server on stdin/stdout.

stdout carries JSON-RPC exclusively; logs go to ~/.docfind/logs/server.log.

Example client configuration:
  {"command": "docfind", "args": ["mcp"]}`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMCP(cmd.Context(), root)
		},
	}
}

func runMCP(parent context.Context, root *rootOptions) error {
	cfg := root.cfg
	logger, cleanup, err := logging.Setup(logging.StdioConfig(cfg.Server.LogLevel))
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	defer cleanup()

	metrics, closeMetrics, err := openMetrics(cfg, logger)
	if err != nil {
		return err
	}
	defer closeMetrics()

	svc, err := newService(cfg, logger, metrics)
	if err != nil {
		return err
	}
	opts := []mcp.Option{mcp.WithLogger(logger)}
	if metrics != nil {
		opts = append(opts, mcp.WithMetrics(metrics))
	}
	srv, err := mcp.NewServer(svc, opts...)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()
	return srv.ServeStdio(ctx)
}
