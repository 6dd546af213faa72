package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"orderbot/internal/bootstrap"
	"orderbot/internal/bootstrap/logging"
	"orderbot/internal/errs"
	"orderbot/internal/ports"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Process unmarked ingestion rows once",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		result, err := app.Service.IngestOnce(ctx)
		if err != nil {
			logging.Error(ctx, "ingest failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "ingest")
		}

		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "scanned=%d checked=%d skipped=%d invalid=%d\n",
			result.Scanned, result.Checked, result.Skipped, result.Invalid); err != nil {
			return errs.Wrap(err, "write ingest output")
		}
		return nil
	}),
}

var pullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Copy new messages from every configured source into the ingestion table",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		var sources []ports.MessageSource
		if app.Sources.Channel != nil {
			sources = append(sources, app.Sources.Channel)
		}
		if app.Sources.Email != nil {
			sources = append(sources, app.Sources.Email)
		}
		if len(sources) == 0 {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), "no sources configured")
			return errs.Wrap(err, "write pull output")
		}

		for _, src := range sources {
			result, err := app.Service.PullSource(ctx, src)
			if err != nil {
				return errs.Wrapf(err, "pull %s", src.Name())
			}
			if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%s: fetched=%d appended=%d duplicates=%d\n",
				src.Name(), result.Fetched, result.Appended, result.Duplicates); err != nil {
				return errs.Wrap(err, "write pull output")
			}
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(pullCmd)
}
