package config

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"orderbot/internal/bootstrap/logging"
	"orderbot/internal/domain/order"
	"orderbot/internal/errs"
)

const (
	envPrefix = "ORDERBOT"

	supplierListSeparator = ";"
)

type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Log      LogConfig      `mapstructure:"log"`
	Database DatabaseConfig `mapstructure:"database"`
	Store    StoreConfig    `mapstructure:"store"`
	Parser   ParserConfig   `mapstructure:"parser"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Gmail    GmailConfig    `mapstructure:"gmail"`
	Notifier NotifierConfig `mapstructure:"notifier"`
	Schedule ScheduleConfig `mapstructure:"schedule"`
	Alerts   AlertsConfig   `mapstructure:"alerts"`
	HTTP     HTTPConfig     `mapstructure:"http"`
}

type AppConfig struct {
	Name     string `mapstructure:"name" validate:"required"`
	Env      string `mapstructure:"env"`
	Timezone string `mapstructure:"timezone" validate:"required"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=text json"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver" validate:"oneof=sqlite sqlite3 postgres"`
	DSN    string `mapstructure:"dsn" validate:"required"`
}

type StoreConfig struct {
	Backend         string `mapstructure:"backend" validate:"oneof=database sheets"`
	SpreadsheetID   string `mapstructure:"spreadsheet_id" validate:"required_if=Backend sheets"`
	CredentialsFile string `mapstructure:"credentials_file"`
	CredentialsJSON string `mapstructure:"credentials_json"`
	MessagesTable   string `mapstructure:"messages_table" validate:"required"`
	OrdersTable     string `mapstructure:"orders_table" validate:"required"`
}

type ParserConfig struct {
	Suppliers     []string `mapstructure:"suppliers"`
	SuppliersFile string   `mapstructure:"suppliers_file"`
}

type TelegramConfig struct {
	BotToken       string `mapstructure:"bot_token"`
	ChannelID      string `mapstructure:"channel_id"`
	AlertChannelID string `mapstructure:"alert_channel_id" validate:"required"`
	APIEndpoint    string `mapstructure:"api_endpoint"`
}

type GmailConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	User    string `mapstructure:"user"`
	Query   string `mapstructure:"query"`
}

type NotifierConfig struct {
	Driver string     `mapstructure:"driver" validate:"oneof=telegram amqp nats log"`
	AMQP   AMQPConfig `mapstructure:"amqp"`
	NATS   NATSConfig `mapstructure:"nats"`
}

type AMQPConfig struct {
	URL      string `mapstructure:"url"`
	Exchange string `mapstructure:"exchange"`
}

type NATSConfig struct {
	URL           string `mapstructure:"url"`
	SubjectPrefix string `mapstructure:"subject_prefix"`
}

type ScheduleConfig struct {
	IngestInterval  time.Duration `mapstructure:"ingest_interval" validate:"gt=0"`
	AlertInterval   time.Duration `mapstructure:"alert_interval" validate:"gt=0"`
	ChannelInterval time.Duration `mapstructure:"channel_interval" validate:"gt=0"`
	EmailInterval   time.Duration `mapstructure:"email_interval" validate:"gt=0"`
}

type AlertsConfig struct {
	Mode   string        `mapstructure:"mode" validate:"oneof=due_today updated_within"`
	Window time.Duration `mapstructure:"window" validate:"gte=0"`
	Header string        `mapstructure:"header"`
	DryRun bool          `mapstructure:"dry_run"`
}

type HTTPConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr" validate:"required_if=Enabled true"`
}

// Location resolves app.timezone.
func (c AppConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(strings.TrimSpace(c.Timezone))
	if err != nil {
		return nil, errs.Wrapf(err, "load timezone %q", c.Timezone)
	}
	return loc, nil
}

// legacyEnv lists the variable names the bot was configured with before the
// ORDERBOT_ prefix existed. The prefixed name wins when both are set.
var legacyEnv = map[string]string{
	"telegram.bot_token":        "BOT_TOKEN",
	"telegram.channel_id":       "CHANNEL_ID",
	"telegram.alert_channel_id": "ALERT_CHANNEL_ID",
	"store.spreadsheet_id":      "SPREADSHEET_ID",
	"store.credentials_json":    "GOOGLE_CREDENTIALS",
}

func Load(ctx context.Context, configFile string) (Config, error) {
	if ctx == nil {
		return Config{}, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return Config{}, errs.Wrap(err, "check context")
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.config"))

	if err := loadDotEnv(logCtx); err != nil {
		return Config{}, err
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, legacy := range legacyEnv {
		prefixed := envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, legacy); err != nil {
			return Config{}, errs.Wrapf(err, "bind env for %s", key)
		}
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		switch {
		case errors.As(err, &notFound), configFile != "" && errors.Is(err, os.ErrNotExist):
			// The bot can run from env alone.
			logging.Warn(logCtx, "config file not found, fallback to defaults and env")
		default:
			return Config{}, errs.Wrap(err, "read config")
		}
	} else {
		logging.Info(logCtx, "using config file", slog.String("path", v.ConfigFileUsed()))
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errs.Wrap(err, "unmarshal config")
	}
	// Supplier names contain commas, so a list given as one string (env)
	// is split on semicolons instead.
	if raw, ok := v.Get("parser.suppliers").(string); ok {
		cfg.Parser.Suppliers = splitSupplierList(raw)
	}
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}

	logging.Info(
		logCtx,
		"config loaded",
		slog.String("app", cfg.App.Name),
		slog.String("env", cfg.App.Env),
		slog.String("database_driver", cfg.Database.Driver),
		slog.String("store_backend", cfg.Store.Backend),
		slog.String("notifier_driver", cfg.Notifier.Driver),
	)

	return cfg, nil
}

// Validate checks field rules plus the cross-field requirements of the
// selected drivers.
func Validate(cfg Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return errs.Wrap(err, "validate config")
	}
	if _, err := cfg.App.Location(); err != nil {
		return err
	}
	if _, err := order.ParseAlertMode(cfg.Alerts.Mode); err != nil {
		return errs.Wrap(err, "validate alerts.mode")
	}

	switch cfg.Notifier.Driver {
	case "telegram":
		if strings.TrimSpace(cfg.Telegram.BotToken) == "" {
			return errors.New("telegram.bot_token is required for the telegram notifier")
		}
	case "amqp":
		if strings.TrimSpace(cfg.Notifier.AMQP.URL) == "" {
			return errors.New("notifier.amqp.url is required for the amqp notifier")
		}
	case "nats":
		if strings.TrimSpace(cfg.Notifier.NATS.URL) == "" {
			return errors.New("notifier.nats.url is required for the nats notifier")
		}
	}
	if strings.TrimSpace(cfg.Telegram.ChannelID) != "" && strings.TrimSpace(cfg.Telegram.BotToken) == "" {
		return errors.New("telegram.bot_token is required to read telegram.channel_id")
	}
	return nil
}

func loadDotEnv(ctx context.Context) error {
	if err := godotenv.Load(); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return errs.Wrap(err, "load .env")
	}
	logging.Info(ctx, "loaded .env")
	return nil
}

func splitSupplierList(raw string) []string {
	parts := strings.Split(raw, supplierListSeparator)
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if name := strings.TrimSpace(part); name != "" {
			out = append(out, name)
		}
	}
	return out
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "orderbot")
	v.SetDefault("app.env", "local")
	v.SetDefault("app.timezone", "Europe/Moscow")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", ".orderbot/state.sqlite")

	v.SetDefault("store.backend", "database")
	v.SetDefault("store.spreadsheet_id", "")
	v.SetDefault("store.credentials_file", "")
	v.SetDefault("store.credentials_json", "")
	v.SetDefault("store.messages_table", "Сообщения")
	v.SetDefault("store.orders_table", "Utro")

	v.SetDefault("parser.suppliers", order.DefaultSuppliers)
	v.SetDefault("parser.suppliers_file", "")

	v.SetDefault("telegram.bot_token", "")
	v.SetDefault("telegram.channel_id", "")
	v.SetDefault("telegram.alert_channel_id", "@SuppliersODaccept")
	v.SetDefault("telegram.api_endpoint", "")

	v.SetDefault("gmail.enabled", false)
	v.SetDefault("gmail.user", "me")
	v.SetDefault("gmail.query", `subject:"Заказ отправлен" is:unread`)

	v.SetDefault("notifier.driver", "log")
	v.SetDefault("notifier.amqp.url", "")
	v.SetDefault("notifier.amqp.exchange", "orderbot.alerts")
	v.SetDefault("notifier.nats.url", "")
	v.SetDefault("notifier.nats.subject_prefix", "orderbot.alerts")

	v.SetDefault("schedule.ingest_interval", 10*time.Second)
	v.SetDefault("schedule.alert_interval", time.Hour)
	v.SetDefault("schedule.channel_interval", 10*time.Second)
	v.SetDefault("schedule.email_interval", 10*time.Second)

	v.SetDefault("alerts.mode", string(order.AlertModeDueToday))
	v.SetDefault("alerts.window", order.DefaultAlertWindow)
	v.SetDefault("alerts.header", order.DefaultAlertHeader)
	v.SetDefault("alerts.dry_run", false)

	v.SetDefault("http.enabled", true)
	v.SetDefault("http.addr", ":8080")
}
