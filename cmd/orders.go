package cmd

import (
	"fmt"
	"log/slog"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"orderbot/internal/bootstrap"
	"orderbot/internal/bootstrap/logging"
	"orderbot/internal/domain/order"
	"orderbot/internal/errs"
	"orderbot/internal/infrastructure/persistence/worksheet"
	"orderbot/internal/usecase/orders"
)

var ordersCmd = &cobra.Command{
	Use:   "orders",
	Short: "Inspect tracked orders",
}

func newOrdersListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List order records",
		RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App) error {
			ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

			filter, err := ordersFilterFromFlags(cmd)
			if err != nil {
				return err
			}
			records, err := app.Service.ListOrders(ctx, filter)
			if err != nil {
				logging.Error(ctx, "list orders failed", slog.Any("err", errs.Loggable(err)))
				return errs.Wrap(err, "list orders")
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ORDER\tSUPPLIER\tDATE\tSITE\tSTATUS\tUPDATED")
			for _, record := range records {
				updated := ""
				if !record.LastUpdatedAt.IsZero() {
					updated = record.LastUpdatedAt.In(app.Location).Format("2006-01-02 15:04")
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
					record.OrderNumber, record.Supplier, record.DeliveryDate, record.Site,
					worksheet.StatusLabel(record.Status), updated)
			}
			return errs.Wrap(w.Flush(), "write orders output")
		}),
	}
	cmd.Flags().String("status", "", "Status filter (new|dispatched|received)")
	cmd.Flags().Bool("open", false, "Hide received orders")
	return cmd
}

func ordersFilterFromFlags(cmd *cobra.Command) (orders.OrderFilter, error) {
	var filter orders.OrderFilter
	if raw, _ := cmd.Flags().GetString("status"); strings.TrimSpace(raw) != "" {
		status, err := order.ParseStatus(raw)
		if err != nil {
			return filter, err
		}
		filter.Status = status
	}
	filter.OpenOnly, _ = cmd.Flags().GetBool("open")
	return filter, nil
}

func init() {
	rootCmd.AddCommand(ordersCmd)
	ordersCmd.AddCommand(newOrdersListCmd())
}
