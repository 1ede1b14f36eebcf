package main

import (
	"context"
	stderrors "errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/vango-dev/hooks/internal/errors"
	"github.com/vango-dev/hooks/pkg/hooks"
	"github.com/vango-dev/hooks/pkg/inspect"
	"github.com/vango-dev/hooks/pkg/scenario"
	"github.com/vango-dev/hooks/pkg/telemetry"
)

func serveCmd(a *app) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve <scenario.yaml>",
		Short: "Run a scenario and serve the inspector",
		Long: `Run a scenario's steps, keep its instances mounted and serve the
HTTP inspector until interrupted.

The inspector lists instances and their slots, accepts render requests,
streams events over WebSocket at /events/ws and exposes Prometheus metrics
at /metrics.

Examples:
  hookrun serve counter.yaml
  hookrun serve --addr=:7070 counter.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				a.cfg.Inspector.Addr = addr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx, cmd.OutOrStdout(), args[0])
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "Inspector listen address (default from hooks.json)")

	return cmd
}

func (a *app) serve(ctx context.Context, out io.Writer, path string) error {
	s, err := scenario.LoadFile(path)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	var ins *inspect.Inspector
	runner := scenario.NewRunner(
		scenario.WithLogger(a.logger),
		scenario.WithMaxPasses(a.cfg.Host.MaxPasses),
		scenario.WithObserver(telemetry.NewMetrics(
			telemetry.WithRegistry(reg),
			telemetry.WithNamespace(a.cfg.Telemetry.Namespace),
		)),
		scenario.WithObserver(telemetry.NewTracer(
			telemetry.WithTracerName(a.cfg.Telemetry.TracerName),
		)),
		scenario.WithHostHook(func(h *hooks.Host) {
			ins = inspect.New(h, inspect.WithGatherer(reg), inspect.WithLogger(a.logger))
			h.AddObserver(ins)
		}),
	)

	sess, err := runner.Start(ctx, s)
	if err != nil {
		return err
	}
	defer ins.Close()

	// The loop goroutine must be gone before the session tears its
	// instances down, or a flush could race the teardown.
	driveCtx, stopDrive := context.WithCancel(ctx)
	driven := make(chan struct{})
	go func() {
		defer close(driven)
		drive(driveCtx, sess.Host(), a.logger.Warn)
	}()
	closeSession := func() (*scenario.Result, error) {
		stopDrive()
		<-driven
		return sess.Close()
	}

	srv := &http.Server{
		Addr:              a.cfg.Inspector.Addr,
		Handler:           ins.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		errc <- srv.ListenAndServe()
	}()

	success(out, "%s mounted, inspector on http://%s", s.Name, a.cfg.Inspector.Addr)

	select {
	case <-ctx.Done():
	case err := <-errc:
		if !stderrors.Is(err, http.ErrServerClosed) {
			_, _ = closeSession()
			return errors.FromError(err, "H141").
				WithDetailf("listening on %s", a.cfg.Inspector.Addr)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn("inspector shutdown failed", "error", err)
	}

	res, err := closeSession()
	if err != nil && !stderrors.Is(err, context.Canceled) {
		return err
	}
	printResult(out, res, false)
	return nil
}

// drive flushes h whenever a render is queued, until ctx is done.
func drive(ctx context.Context, h *hooks.Host, warn func(string, ...any)) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-h.Wake():
			if err := h.RunUntilIdle(ctx); err != nil {
				warn("flush failed", "error", err)
			}
		}
	}
}
