package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/fx"
	"gorm.io/gorm"

	"orderbot/internal/bootstrap/config"
	"orderbot/internal/bootstrap/database"
	"orderbot/internal/bootstrap/logging"
	"orderbot/internal/domain/order"
	"orderbot/internal/errs"
	cacheinfra "orderbot/internal/infrastructure/cache"
	"orderbot/internal/infrastructure/googleauth"
	"orderbot/internal/infrastructure/metrics"
	"orderbot/internal/infrastructure/notify"
	"orderbot/internal/infrastructure/persistence/gsheets"
	"orderbot/internal/infrastructure/persistence/sqlite/tablestore"
	sqliteuow "orderbot/internal/infrastructure/persistence/sqlite/uow"
	"orderbot/internal/infrastructure/persistence/worksheet"
	"orderbot/internal/infrastructure/source"
	"orderbot/internal/infrastructure/suppliers"
	"orderbot/internal/infrastructure/telegram"
	"orderbot/internal/ports"
	"orderbot/internal/usecase/orders"
)

var Module = fx.Options(
	fx.Provide(provideConfig),
	fx.Provide(provideDatabase),
	fx.Provide(provideLocation),
	fx.Provide(
		fx.Annotate(
			sqliteuow.NewUnitOfWork,
			fx.As(new(ports.UnitOfWork)),
		),
	),
	fx.Provide(
		fx.Annotate(
			cacheinfra.NewSQLiteCache,
			fx.As(new(ports.Cache)),
		),
	),
	fx.Provide(metrics.New),
	fx.Provide(func(m *metrics.Metrics) ports.Telemetry { return m }),
	fx.Provide(provideTableStore),
	fx.Provide(provideRepositories),
	fx.Provide(provideCatalog),
	fx.Provide(provideSupplierWatcher),
	fx.Provide(provideBot),
	fx.Provide(provideNotifier),
	fx.Provide(provideSources),
	fx.Provide(provideService),
	fx.Provide(provideApp),
)

// Sources holds the inbound transports enabled by config; unset ones are nil.
type Sources struct {
	Channel *source.ChannelSource
	Email   *source.GmailSource
}

type configParams struct {
	fx.In

	Ctx        context.Context
	ConfigFile string `name:"configFile"`
}

func provideConfig(p configParams) (config.Config, error) {
	ctx := logging.WithAttrs(p.Ctx, slog.String("component", "bootstrap.fx"))
	return config.Load(ctx, p.ConfigFile)
}

func provideDatabase(lc fx.Lifecycle, ctx context.Context, cfg config.Config) (*gorm.DB, error) {
	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.fx"))

	db, err := database.Open(logCtx, cfg.Database)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		},
	})

	return db, nil
}

func provideLocation(cfg config.Config) (*time.Location, error) {
	return cfg.App.Location()
}

func credentials(cfg config.StoreConfig) googleauth.Credentials {
	return googleauth.Credentials{File: cfg.CredentialsFile, JSON: cfg.CredentialsJSON}
}

func provideTableStore(ctx context.Context, cfg config.Config, db *gorm.DB, uow ports.UnitOfWork) (ports.TableStore, error) {
	switch cfg.Store.Backend {
	case "sheets":
		store, err := gsheets.New(ctx, gsheets.Config{
			SpreadsheetID: cfg.Store.SpreadsheetID,
			Credentials:   credentials(cfg.Store),
		})
		if err != nil {
			return nil, errs.Wrap(err, "open sheets store")
		}
		return store, nil
	default:
		return tablestore.NewTableStore(db, uow), nil
	}
}

type repositories struct {
	fx.Out

	Messages     *worksheet.MessageRepository
	Orders       *worksheet.OrderRepository
	MessagesPort ports.MessageRepository
	OrdersPort   ports.OrderRepository
}

func provideRepositories(cfg config.Config, store ports.TableStore, loc *time.Location) repositories {
	messages := worksheet.NewMessageRepository(store, cfg.Store.MessagesTable, loc)
	ordersRepo := worksheet.NewOrderRepository(store, cfg.Store.OrdersTable, loc)
	return repositories{
		Messages:     messages,
		Orders:       ordersRepo,
		MessagesPort: messages,
		OrdersPort:   ordersRepo,
	}
}

// provideCatalog seeds the catalog from the supplier file when one is set,
// falling back to parser.suppliers.
func provideCatalog(ctx context.Context, cfg config.Config) (*order.SupplierCatalog, error) {
	names := cfg.Parser.Suppliers
	if path := strings.TrimSpace(cfg.Parser.SuppliersFile); path != "" {
		loaded, err := suppliers.Load(path)
		if err != nil {
			return nil, err
		}
		names = loaded
	}
	catalog := order.NewSupplierCatalog(names)
	logging.Info(logging.WithAttrs(ctx, slog.String("component", "bootstrap.fx")),
		"supplier catalog ready", slog.Int("count", catalog.Len()))
	return catalog, nil
}

func provideSupplierWatcher(cfg config.Config, catalog *order.SupplierCatalog) *suppliers.Watcher {
	path := strings.TrimSpace(cfg.Parser.SuppliersFile)
	if path == "" {
		return nil
	}
	return suppliers.NewWatcher(path, catalog)
}

// provideBot returns nil when no token is configured.
func provideBot(cfg config.Config) (*tgbotapi.BotAPI, error) {
	if strings.TrimSpace(cfg.Telegram.BotToken) == "" {
		return nil, nil
	}
	return telegram.NewBot(cfg.Telegram.BotToken, nil, cfg.Telegram.APIEndpoint)
}

func provideNotifier(lc fx.Lifecycle, cfg config.Config, bot *tgbotapi.BotAPI) (ports.Notifier, error) {
	n, err := notify.Open(notify.Config{
		Driver:        cfg.Notifier.Driver,
		AMQPURL:       cfg.Notifier.AMQP.URL,
		AMQPExchange:  cfg.Notifier.AMQP.Exchange,
		NATSURL:       cfg.Notifier.NATS.URL,
		SubjectPrefix: cfg.Notifier.NATS.SubjectPrefix,
	}, bot)
	if err != nil {
		return nil, errs.Wrap(err, "open notifier")
	}
	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			return n.Close()
		},
	})
	return n, nil
}

func provideSources(ctx context.Context, cfg config.Config, bot *tgbotapi.BotAPI, cache ports.Cache) (Sources, error) {
	var out Sources
	if channel := strings.TrimSpace(cfg.Telegram.ChannelID); channel != "" {
		if bot == nil {
			return Sources{}, errors.New("telegram.bot_token is required to read telegram.channel_id")
		}
		src, err := source.NewChannelSource(bot, channel, cache)
		if err != nil {
			return Sources{}, errs.Wrap(err, "create channel source")
		}
		out.Channel = src
	}
	if cfg.Gmail.Enabled {
		src, err := source.NewGmailSource(ctx, source.GmailConfig{
			User:        cfg.Gmail.User,
			Query:       cfg.Gmail.Query,
			Credentials: credentials(cfg.Store),
		})
		if err != nil {
			return Sources{}, errs.Wrap(err, "create gmail source")
		}
		out.Email = src
	}
	return out, nil
}

type serviceParams struct {
	fx.In

	Config    config.Config
	Location  *time.Location
	Messages  ports.MessageRepository
	Orders    ports.OrderRepository
	Notifier  ports.Notifier
	Catalog   *order.SupplierCatalog
	Telemetry ports.Telemetry
}

func provideService(p serviceParams) (*orders.Service, error) {
	mode, err := order.ParseAlertMode(p.Config.Alerts.Mode)
	if err != nil {
		return nil, err
	}
	return orders.NewService(p.Messages, p.Orders, p.Notifier, order.NewParser(p.Catalog), orders.Options{
		AlertChannel: p.Config.Telegram.AlertChannelID,
		Policy: order.AlertPolicy{
			Mode:     mode,
			Window:   p.Config.Alerts.Window,
			Location: p.Location,
		},
		Header:    p.Config.Alerts.Header,
		Telemetry: p.Telemetry,
	}), nil
}

type appParams struct {
	fx.In

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

func provideApp(p appParams) *App {
	return &App{
		Config:    p.Config,
		DB:        p.DB,
		Location:  p.Location,
		Messages:  p.Messages,
		Orders:    p.Orders,
		Service:   p.Service,
		Metrics:   p.Metrics,
		Sources:   p.Sources,
		Suppliers: p.Suppliers,
	}
}
