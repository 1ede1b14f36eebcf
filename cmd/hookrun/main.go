package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/vango-dev/hooks/internal/config"
	"github.com/vango-dev/hooks/internal/errors"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// app holds state shared by all subcommands.
type app struct {
	configPath string
	logLevel   string
	logFormat  string
	noColor    bool

	cfg    *config.Config
	logger *slog.Logger
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		errors.PrintError(err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "hookrun",
		Short: "Run and inspect hook scheduling scenarios",
		Long: `hookrun executes declarative scenarios against the hooks scheduler.

A scenario mounts components made of state and effect slots, drives them
through a script of writes, batches, flushes and teardowns, and records
what ran and in which order:

  • Effect and cleanup log, checked against expectations
  • Full event transcript (renders, commits, effects, cleanups)
  • Prometheus metrics and OpenTelemetry spans
  • Live HTTP inspector with a WebSocket event stream
  • Event log export to S3`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load(cmd.ErrOrStderr())
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "", "Path to hooks.json (default: nearest hooks.json, else built-in defaults)")
	flags.StringVar(&a.logLevel, "log-level", "", "Log level: debug, info, warn, error (default from hooks.json)")
	flags.StringVar(&a.logFormat, "log-format", "", "Log format: text or json (default from hooks.json)")
	flags.BoolVar(&a.noColor, "no-color", false, "Disable colored error output")

	rootCmd.AddCommand(
		runCmd(a),
		serveCmd(a),
		exportCmd(a),
		explainCmd(a),
		versionCmd(),
	)

	return rootCmd
}

// load reads the configuration, applies flag overrides and builds the logger.
func (a *app) load(stderr io.Writer) error {
	if a.noColor {
		errors.DisableColors()
	}

	var err error
	if a.configPath != "" {
		a.cfg, err = config.LoadFile(a.configPath)
	} else {
		a.cfg, err = config.LoadFromWorkingDir()
	}
	if err != nil {
		return err
	}

	if a.logLevel != "" {
		a.cfg.Log.Level = a.logLevel
	}
	if a.logFormat != "" {
		a.cfg.Log.Format = a.logFormat
	}
	if err := a.cfg.Validate(); err != nil {
		return err
	}

	a.logger = newLogger(stderr, a.cfg)
	slog.SetDefault(a.logger)
	return nil
}

// newLogger builds the slog handler selected by cfg.
func newLogger(w io.Writer, cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel()}
	if cfg.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// success prints a success message.
func success(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "\033[32m✓\033[0m %s\n", fmt.Sprintf(format, args...))
}

// info prints an info message.
func info(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "  %s\n", fmt.Sprintf(format, args...))
}

// failure prints a failure message.
func failure(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "\033[31m✗\033[0m %s\n", fmt.Sprintf(format, args...))
}
