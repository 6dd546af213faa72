package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"orderbot/internal/bootstrap"
	"orderbot/internal/bootstrap/logging"
	"orderbot/internal/errs"
	"orderbot/internal/usecase/orders"
)

func newAlertCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "alert",
		Short: "Run one alert cycle",
		RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App) error {
			ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

			dryRun, _ := cmd.Flags().GetBool("dry-run")
			dryRun = dryRun || app.Config.Alerts.DryRun

			result, err := app.Service.AlertOnce(ctx, orders.AlertOptions{DryRun: dryRun})
			if err != nil {
				logging.Error(ctx, "alert cycle failed", slog.Any("err", errs.Loggable(err)))
				return errs.Wrap(err, "alert")
			}

			out := cmd.OutOrStdout()
			if dryRun {
				for _, batch := range result.Batches {
					if _, err := fmt.Fprintf(out, "%s\n\n", app.Service.FormatAlert(batch)); err != nil {
						return errs.Wrap(err, "write alert output")
					}
				}
			}
			for _, failure := range result.Failed {
				if _, err := fmt.Fprintf(out, "failed: %s %s: %v\n",
					failure.Batch.Supplier, failure.Batch.DeliveryDate, failure.Err); err != nil {
					return errs.Wrap(err, "write alert output")
				}
			}
			if _, err := fmt.Fprintf(out, "batches=%d sent=%d failed=%d dry_run=%t\n",
				len(result.Batches), result.Sent, len(result.Failed), dryRun); err != nil {
				return errs.Wrap(err, "write alert output")
			}
			return nil
		}),
	}
	cmd.Flags().Bool("dry-run", false, "Format the batches without sending them")
	return cmd
}

func init() {
	rootCmd.AddCommand(newAlertCmd())
}
