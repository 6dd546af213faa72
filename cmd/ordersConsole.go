package cmd

import (
	"log/slog"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"orderbot/internal/bootstrap"
	"orderbot/internal/bootstrap/logging"
	"orderbot/internal/errs"
	"orderbot/internal/usecase/orderconsole"
)

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Terminal consoles",
}

var consoleOrdersCmd = &cobra.Command{
	Use:   "orders",
	Short: "Start the orders console",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		status, _ := cmd.Flags().GetString("status")
		refreshInterval, _ := cmd.Flags().GetDuration("refresh-interval")
		if refreshInterval <= 0 {
			refreshInterval = 10 * time.Second
		}

		model := orderconsole.NewOrdersModel(ctx, app.Service, orderconsole.Options{
			StatusFilter:    status,
			RefreshInterval: refreshInterval,
		})

		program := tea.NewProgram(model, tea.WithAltScreen())
		if _, err := program.Run(); err != nil {
			return errs.Wrap(err, "run orders console")
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(consoleCmd)
	consoleCmd.AddCommand(consoleOrdersCmd)
	consoleOrdersCmd.Flags().String("status", "", "Initial status filter (new|dispatched|received)")
	consoleOrdersCmd.Flags().Duration("refresh-interval", 10*time.Second, "Auto refresh interval")
}
