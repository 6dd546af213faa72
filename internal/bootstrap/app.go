package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"orderbot/internal/bootstrap/config"
	"orderbot/internal/bootstrap/logging"
	"orderbot/internal/errs"
	"orderbot/internal/infrastructure/metrics"
	"orderbot/internal/infrastructure/persistence/sqlite/model"
	"orderbot/internal/infrastructure/persistence/worksheet"
	"orderbot/internal/infrastructure/suppliers"
	"orderbot/internal/usecase/orders"
)

// App is what commands see after the fx graph has started. Suppliers is nil
// when parser.suppliers_file is unset.
type App struct {
	Config    config.Config
	DB        *gorm.DB
	Location  *time.Location
	Messages  *worksheet.MessageRepository
	Orders    *worksheet.OrderRepository
	Service   *orders.Service
	Metrics   *metrics.Metrics
	Sources   Sources
	Suppliers *suppliers.Watcher
}

// InitSchema migrates the state tables and creates both worksheets with
// their headers. Running it again keeps existing data.
func (a *App) InitSchema(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, "check context")
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.app"))
	logging.Info(logCtx, "start schema migration")

	if err := a.DB.WithContext(ctx).AutoMigrate(model.All()...); err != nil {
		return errs.Wrap(err, "auto migrate schema")
	}
	if err := a.Messages.EnsureSchema(ctx); err != nil {
		return errs.Wrapf(err, "ensure worksheet %q", a.Messages.Table())
	}
	if err := a.Orders.EnsureSchema(ctx); err != nil {
		return errs.Wrapf(err, "ensure worksheet %q", a.Orders.Table())
	}

	logging.Info(logCtx, "schema migration completed",
		slog.String("store_backend", a.Config.Store.Backend),
		slog.String("messages_table", a.Messages.Table()),
		slog.String("orders_table", a.Orders.Table()),
	)
	return nil
}
