// Package cmd provides the CLI commands for docfind.
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/docfind/internal/config"
	dferrors "github.com/Aman-CERP/docfind/internal/errors"
	"github.com/Aman-CERP/docfind/internal/logging"
	"github.com/Aman-CERP/docfind/internal/profiling"
	"github.com/Aman-CERP/docfind/pkg/version"
)

// rootOptions is shared by every subcommand.
type rootOptions struct {
	debug     bool
	configDir string

	profile profiling.Options

	cfg            *config.Config
	loggingCleanup func()
	profiler       *profiling.Session
}

// NewRootCmd creates the root command for the docfind CLI.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "docfind",
		Short: "Extract and search text in PDF documents",
		Long: `docfind extracts positioned text from PDF documents and finds literal,
whole-word or regex matches, each mapped back to its page and coordinates.

Run it as an HTTP API and MCP server with 'docfind serve', as a stdio MCP
server with 'docfind mcp', or directly with 'docfind extract' and
'docfind search'.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.setup()
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			opts.teardown()
			return nil
		},
	}

	cmd.SetVersionTemplate("docfind version {{.Version}}\n")
	cmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Enable debug logging to ~/.docfind/logs/")
	cmd.PersistentFlags().StringVar(&opts.configDir, "config", ".", "Directory containing .docfind.yaml")
	cmd.PersistentFlags().StringVar(&opts.profile.CPUPath, "profile-cpu", "", "Write a CPU profile to `file`")
	cmd.PersistentFlags().StringVar(&opts.profile.HeapPath, "profile-mem", "", "Write a heap profile to `file` on exit")
	cmd.PersistentFlags().StringVar(&opts.profile.TracePath, "profile-trace", "", "Write an execution trace to `file`")
	_ = cmd.PersistentFlags().MarkHidden("profile-trace")

	cmd.AddCommand(newServeCmd(opts))
	cmd.AddCommand(newMCPCmd(opts))
	cmd.AddCommand(newExtractCmd(opts))
	cmd.AddCommand(newSearchCmd(opts))
	cmd.AddCommand(newStatsCmd(opts))
	cmd.AddCommand(newConfigCmd(opts))
	cmd.AddCommand(newDoctorCmd(opts))
	cmd.AddCommand(newLogsCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// setup loads configuration and, with --debug, installs the file logger.
func (o *rootOptions) setup() error {
	cfg, err := config.Load(o.configDir)
	if err != nil {
		return err
	}
	o.cfg = cfg

	if o.debug {
		cfg.Server.LogLevel = "debug"
		logCfg := logging.DefaultConfig()
		logCfg.Level = "debug"
		logCfg.Stderr = false
		cleanup, err := logging.SetupDefault(logCfg)
		if err != nil {
			return fmt.Errorf("failed to setup debug logging: %w", err)
		}
		o.loggingCleanup = cleanup
		slog.Info("debug logging enabled",
			slog.String("log_file", logCfg.FilePath),
			slog.String("version", version.Version))
	}

	if o.profile.Enabled() {
		p, err := profiling.Start(o.profile, slog.Default())
		if err != nil {
			return err
		}
		o.profiler = p
	}
	return nil
}

func (o *rootOptions) teardown() {
	if o.profiler != nil {
		if err := o.profiler.Stop(); err != nil {
			slog.Warn("failed to write profiles", slog.String("error", err.Error()))
		}
		o.profiler = nil
	}
	if o.loggingCleanup != nil {
		o.loggingCleanup()
		o.loggingCleanup = nil
	}
}

// Execute runs the root command and prints errors in CLI form.
func Execute() error {
	root := NewRootCmd()
	err := root.Execute()
	if err != nil {
		_, _ = fmt.Fprint(root.ErrOrStderr(), dferrors.FormatForCLI(err))
	}
	return err
}
