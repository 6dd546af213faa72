package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"orderbot/internal/bootstrap"
	"orderbot/internal/bootstrap/logging"
	"orderbot/internal/errs"
	"orderbot/internal/ports"
	"orderbot/internal/transport/httpapi"
	"orderbot/internal/usecase/orders"
	"orderbot/internal/usecase/scheduler"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the polling loops and the status API until interrupted",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		ctx = logging.WithAttrs(ctx, slog.String("command", cmd.CommandPath()))

		if err := app.InitSchema(ctx); err != nil {
			return errs.Wrap(err, "initialize schema")
		}

		supervisor := scheduler.NewSupervisor(app.Metrics, buildLoops(app)...)

		if app.Config.HTTP.Enabled {
			handler := httpapi.NewHandler(app.Service, app.Metrics)
			server := httpapi.NewServer(app.Config.HTTP.Addr, handler.Router())
			if err := server.Start(ctx); err != nil {
				return err
			}
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					logging.Error(ctx, "http shutdown failed", slog.Any("err", errs.Loggable(err)))
				}
			}()
		}

		group, groupCtx := errgroup.WithContext(ctx)
		if app.Suppliers != nil {
			group.Go(func() error {
				watchCtx := logging.WithAttrs(groupCtx, slog.String("component", "suppliers.watcher"))
				return runOptional(watchCtx, "supplier reload", app.Suppliers.Run)
			})
		}
		group.Go(func() error {
			return supervisor.Run(groupCtx)
		})

		logging.Info(ctx, "serve started", slog.Int("loops", len(supervisor.Loops())))
		if err := group.Wait(); err != nil {
			return errs.Wrap(err, "serve")
		}
		logging.Info(ctx, "serve stopped")
		return nil
	}),
}

// runOptional runs an auxiliary task. Its failure is logged and never
// cancels sibling tasks.
func runOptional(ctx context.Context, name string, run func(context.Context) error) error {
	if err := run(ctx); err != nil && ctx.Err() == nil {
		logging.Warn(ctx, "optional task stopped",
			slog.String("task", name),
			slog.Any("err", errs.Loggable(err)),
		)
	}
	return nil
}

// buildLoops returns the ingest and alert loops plus one loop per configured
// inbound source. A source loop ingests right after pulling so new posts do
// not wait for the next ingest tick.
func buildLoops(app *bootstrap.App) []scheduler.Loop {
	svc := app.Service
	schedule := app.Config.Schedule
	alertOpts := orders.AlertOptions{DryRun: app.Config.Alerts.DryRun}

	loops := []scheduler.Loop{
		{
			Name:     "ingest",
			Interval: schedule.IngestInterval,
			Tick: func(ctx context.Context) error {
				_, err := svc.IngestOnce(ctx)
				return err
			},
		},
		{
			Name:     "alerts",
			Interval: schedule.AlertInterval,
			Tick: func(ctx context.Context) error {
				_, err := svc.AlertOnce(ctx, alertOpts)
				return err
			},
		},
	}
	if app.Sources.Channel != nil {
		loops = append(loops, sourceLoop("source:channel", schedule.ChannelInterval, svc, app.Sources.Channel))
	}
	if app.Sources.Email != nil {
		loops = append(loops, sourceLoop("source:email", schedule.EmailInterval, svc, app.Sources.Email))
	}
	return loops
}

func sourceLoop(name string, interval time.Duration, svc *orders.Service, src ports.MessageSource) scheduler.Loop {
	return scheduler.Loop{
		Name:     name,
		Interval: interval,
		Tick: func(ctx context.Context) error {
			if _, err := svc.PullSource(ctx, src); err != nil {
				return err
			}
			_, err := svc.IngestOnce(ctx)
			return err
		},
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
