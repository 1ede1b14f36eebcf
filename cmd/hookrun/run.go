package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/vango-dev/hooks/internal/errors"
	"github.com/vango-dev/hooks/pkg/scenario"
	"github.com/vango-dev/hooks/pkg/telemetry"
)

// runOptions are the flags of the run command.
type runOptions struct {
	jsonOut    bool
	transcript bool
	metrics    bool
}

func runCmd(a *app) *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run <scenario.yaml>...",
		Short: "Run scenarios and check their expectations",
		Long: `Run one or more scenario files.

Each scenario is executed on a fresh host. The effect log is printed,
followed by any mismatch against the scenario's expect block. The command
fails when any scenario fails.

Examples:
  hookrun run testdata/counter.yaml
  hookrun run --transcript scenarios/*.yaml
  hookrun run --json counter.yaml > result.json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd.Context(), cmd.OutOrStdout(), args, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.jsonOut, "json", false, "Print results as JSON")
	cmd.Flags().BoolVarP(&opts.transcript, "transcript", "t", false, "Print the event transcript")
	cmd.Flags().BoolVarP(&opts.metrics, "metrics", "m", false, "Print collected metrics after the run")

	return cmd
}

func (a *app) run(ctx context.Context, out io.Writer, paths []string, opts runOptions) error {
	reg := prometheus.NewRegistry()
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
	)

	results, err := runAll(ctx, runner, paths)
	if err != nil {
		return err
	}

	if opts.jsonOut {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(results); err != nil {
			return err
		}
	} else {
		for _, res := range results {
			printResult(out, res, opts.transcript)
		}
	}

	if opts.metrics {
		if err := printMetrics(out, reg); err != nil {
			return err
		}
	}

	return summarize(results)
}

// runAll loads and runs every scenario file in order.
func runAll(ctx context.Context, runner *scenario.Runner, paths []string) ([]*scenario.Result, error) {
	results := make([]*scenario.Result, 0, len(paths))
	for _, path := range paths {
		s, err := scenario.LoadFile(path)
		if err != nil {
			return nil, err
		}
		res, err := runner.Run(ctx, s)
		if err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	return results, nil
}

func printResult(out io.Writer, res *scenario.Result, transcript bool) {
	if res.Passed() {
		success(out, "%s (%s)", res.Scenario, res.Duration)
	} else {
		failure(out, "%s (%s)", res.Scenario, res.Duration)
	}
	for _, line := range res.Log {
		info(out, "%s", line)
	}
	if len(res.Errors) > 0 {
		info(out, "errors: %s", strings.Join(res.Errors, ", "))
	}
	if transcript {
		for _, line := range res.Transcript {
			info(out, "│ %s", line)
		}
	}
	for _, f := range res.Failures {
		info(out, "✗ %s", f)
	}
}

// printMetrics writes every gathered sample as "name{labels} value".
func printMetrics(out io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return err
	}
	var lines []string
	for _, f := range families {
		for _, m := range f.GetMetric() {
			var labels []string
			for _, l := range m.GetLabel() {
				labels = append(labels, l.GetName()+"="+l.GetValue())
			}
			name := f.GetName()
			if len(labels) > 0 {
				name += "{" + strings.Join(labels, ",") + "}"
			}
			switch {
			case m.Counter != nil:
				lines = append(lines, fmt.Sprintf("%s %g", name, m.GetCounter().GetValue()))
			case m.Gauge != nil:
				lines = append(lines, fmt.Sprintf("%s %g", name, m.GetGauge().GetValue()))
			case m.Histogram != nil:
				lines = append(lines, fmt.Sprintf("%s count=%d sum=%g", name,
					m.GetHistogram().GetSampleCount(), m.GetHistogram().GetSampleSum()))
			}
		}
	}
	sort.Strings(lines)
	fmt.Fprintln(out)
	for _, line := range lines {
		fmt.Fprintln(out, line)
	}
	return nil
}

// summarize returns an error when any result failed.
func summarize(results []*scenario.Result) error {
	failed := 0
	for _, res := range results {
		if !res.Passed() {
			failed++
		}
	}
	if failed > 0 {
		return errors.Newf(errors.CategoryScenario, "%d of %d scenarios failed", failed, len(results))
	}
	return nil
}
