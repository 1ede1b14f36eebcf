package main

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/vango-dev/hooks/internal/errors"
	"github.com/vango-dev/hooks/pkg/export"
	"github.com/vango-dev/hooks/pkg/scenario"
)

func exportCmd(a *app) *cobra.Command {
	var (
		bucket string
		prefix string
		list   string
	)

	cmd := &cobra.Command{
		Use:   "export <scenario.yaml>...",
		Short: "Run scenarios and upload their event logs to S3",
		Long: `Run scenarios and upload each recorded event log to S3 as JSON lines.

Credentials are read from AWS_ACCESS_KEY_ID, AWS_SECRET_ACCESS_KEY and
AWS_SESSION_TOKEN. Set export.endpoint in hooks.json to target an
S3-compatible store.

Examples:
  hookrun export --bucket=event-logs counter.yaml
  hookrun export --list=counter`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if bucket != "" {
				a.cfg.Export.Bucket = bucket
			}
			if prefix != "" {
				a.cfg.Export.Prefix = prefix
			}
			if !a.cfg.ExportEnabled() {
				return errors.New("H140").
					WithDetail("no export bucket configured").
					WithSuggestion("Pass --bucket or set export.bucket in hooks.json")
			}

			exp := export.New(export.NewClient(export.ClientConfig{
				Region:   a.cfg.Export.Region,
				Endpoint: a.cfg.Export.Endpoint,
			}), a.cfg.Export.Bucket, a.cfg.Export.Prefix, a.logger)

			if list != "" {
				return listLogs(cmd.Context(), cmd.OutOrStdout(), exp, list)
			}
			if len(args) == 0 {
				return errors.New("H140").WithDetail("at least one scenario file is required")
			}
			return a.export(cmd.Context(), cmd.OutOrStdout(), exp, args)
		},
	}

	cmd.Flags().StringVarP(&bucket, "bucket", "b", "", "Destination bucket (default from hooks.json)")
	cmd.Flags().StringVarP(&prefix, "prefix", "p", "", "Object key prefix (default from hooks.json)")
	cmd.Flags().StringVarP(&list, "list", "l", "", "List uploaded logs of a scenario instead of running")

	return cmd
}

func (a *app) export(ctx context.Context, out io.Writer, exp *export.Exporter, paths []string) error {
	runner := scenario.NewRunner(
		scenario.WithLogger(a.logger),
		scenario.WithMaxPasses(a.cfg.Host.MaxPasses),
	)
	results, err := runAll(ctx, runner, paths)
	if err != nil {
		return err
	}

	for _, res := range results {
		key, err := exp.Upload(ctx, res.Scenario, res.Events)
		if err != nil {
			return err
		}
		success(out, "%s → s3://%s/%s (%d events)", res.Scenario, a.cfg.Export.Bucket, key, len(res.Events))
	}
	return summarize(results)
}

func listLogs(ctx context.Context, out io.Writer, exp *export.Exporter, run string) error {
	keys, err := exp.List(ctx, run)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		info(out, "no logs for %s", run)
		return nil
	}
	for _, key := range keys {
		info(out, "%s", key)
	}
	return nil
}
