package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"poke-platform/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   logging.Config  `mapstructure:"logging"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Universe  UniverseConfig  `mapstructure:"universe"`
	Strategy  StrategyConfig  `mapstructure:"strategy"`
	Proposals ProposalsConfig `mapstructure:"proposals"`
	Server    ServerConfig    `mapstructure:"server"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Alerting  AlertingConfig  `mapstructure:"alerting"`
	Export    ExportConfig    `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// UniverseConfig covers the pokemontcg.io card universe crawler.
type UniverseConfig struct {
	BaseURL            string        `mapstructure:"base_url"`
	APIKey             string        `mapstructure:"api_key"`
	SetsPageSize       int           `mapstructure:"sets_page_size"`
	CardsPageSize      int           `mapstructure:"cards_page_size"`
	RequestTimeout     time.Duration `mapstructure:"request_timeout"`
	MaxRetries         int           `mapstructure:"max_retries"`
	RetryBackoff       time.Duration `mapstructure:"retry_backoff"`
	ReleaseCutoffYears int           `mapstructure:"release_cutoff_years"`
	UserAgent          string        `mapstructure:"user_agent"`
}

// StrategyConfig parameterises the valuation strategy selected at startup.
type StrategyConfig struct {
	Name              string   `mapstructure:"name"`
	Version           string   `mapstructure:"version"`
	Alpha             float64  `mapstructure:"alpha"`
	LookbackDays      int      `mapstructure:"lookback_days"`
	MinMarketPrice    float64  `mapstructure:"min_market_price"`
	VariantPreference []string `mapstructure:"variant_preference"`
	RarityFilter      string   `mapstructure:"rarity_filter"`
}

// ProposalsConfig governs daily trade proposal seeding.
type ProposalsConfig struct {
	MinGapPct    float64 `mapstructure:"min_gap_pct"`
	MaxBuys      int     `mapstructure:"max_buys"`
	MaxSells     int     `mapstructure:"max_sells"`
	DefaultQty   int     `mapstructure:"default_qty"`
	StrategyName string  `mapstructure:"strategy_name"`
}

// ServerConfig tunes the HTTP API server.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
}

// SchedulerConfig holds cron expressions for daemon mode.
type SchedulerConfig struct {
	Timezone     string `mapstructure:"timezone"`
	UniverseSpec string `mapstructure:"universe_spec"`
	ExtractSpec  string `mapstructure:"extract_spec"`
	RunSpec      string `mapstructure:"run_spec"`
	ProposeSpec  string `mapstructure:"propose_spec"`
}

// AlertingConfig defines run-summary notification routing.
type AlertingConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	TopGaps  int            `mapstructure:"top_gaps"`
	Telegram TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig describes Telegram delivery parameters.
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	APIBase  string `mapstructure:"api_base"`
}

// ExportConfig sets export destinations and chart behaviour.
type ExportConfig struct {
	OutputDir      string   `mapstructure:"output_dir"`
	MaxChartPoints int      `mapstructure:"max_chart_points"`
	Tables         []string `mapstructure:"tables"`
	S3             S3Config `mapstructure:"s3"`
}

// S3Config identifies the snapshot export bucket.
type S3Config struct {
	Bucket string `mapstructure:"bucket"`
	Prefix string `mapstructure:"prefix"`
	Region string `mapstructure:"region"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("POKEPLATFORM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "pokeplatform")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")

	v.SetDefault("universe.base_url", "https://api.pokemontcg.io/v2")
	v.SetDefault("universe.sets_page_size", 250)
	v.SetDefault("universe.cards_page_size", 100)
	v.SetDefault("universe.request_timeout", "30s")
	v.SetDefault("universe.max_retries", 3)
	v.SetDefault("universe.retry_backoff", "2s")
	v.SetDefault("universe.release_cutoff_years", 10)
	v.SetDefault("universe.user_agent", "pokeplatform/1.0")

	v.SetDefault("strategy.name", "exp_smoothing")
	v.SetDefault("strategy.version", "v1")
	v.SetDefault("strategy.alpha", 0.2)
	v.SetDefault("strategy.lookback_days", 120)
	v.SetDefault("strategy.min_market_price", 0.0)
	v.SetDefault("strategy.variant_preference", []string{"normal", "reverseHolofoil", "holofoil"})
	v.SetDefault("strategy.rarity_filter", "%Rare%")

	v.SetDefault("proposals.min_gap_pct", 0.05)
	v.SetDefault("proposals.max_buys", 5)
	v.SetDefault("proposals.max_sells", 5)
	v.SetDefault("proposals.default_qty", 1)

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.allowed_origins", []string{"*"})

	v.SetDefault("scheduler.timezone", "UTC")
	v.SetDefault("scheduler.universe_spec", "0 4 * * 1")
	v.SetDefault("scheduler.extract_spec", "30 5 * * *")
	v.SetDefault("scheduler.run_spec", "0 6 * * *")
	v.SetDefault("scheduler.propose_spec", "30 6 * * *")

	v.SetDefault("alerting.enabled", false)
	v.SetDefault("alerting.top_gaps", 5)
	v.SetDefault("alerting.telegram.enabled", false)
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")

	v.SetDefault("export.output_dir", "exports")
	v.SetDefault("export.max_chart_points", 1000)
	v.SetDefault("export.tables", []string{
		"card_metadata",
		"tcgplayer_price_snapshot",
		"cardmarket_price_snapshot",
		"valuation_daily",
	})
	v.SetDefault("export.s3.prefix", "warehouse")
	v.SetDefault("export.s3.region", "us-east-1")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Strategy.Alpha <= 0 || c.Strategy.Alpha > 1 {
		return fmt.Errorf("strategy.alpha must be in (0, 1]")
	}
	if c.Strategy.LookbackDays <= 0 {
		return fmt.Errorf("strategy.lookback_days must be greater than zero")
	}
	if c.Strategy.MinMarketPrice < 0 {
		return fmt.Errorf("strategy.min_market_price cannot be negative")
	}
	if len(c.Strategy.VariantPreference) == 0 {
		return fmt.Errorf("strategy.variant_preference must list at least one variant")
	}
	if c.Strategy.Name == "" {
		return fmt.Errorf("strategy.name is required")
	}
	if c.Universe.SetsPageSize <= 0 || c.Universe.CardsPageSize <= 0 {
		return fmt.Errorf("universe page sizes must be greater than zero")
	}
	if c.Universe.ReleaseCutoffYears <= 0 {
		return fmt.Errorf("universe.release_cutoff_years must be greater than zero")
	}
	if c.Proposals.MinGapPct < 0 {
		return fmt.Errorf("proposals.min_gap_pct cannot be negative")
	}
	if c.Proposals.DefaultQty <= 0 {
		return fmt.Errorf("proposals.default_qty must be greater than zero")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be a valid TCP port")
	}
	if c.Export.MaxChartPoints <= 0 {
		return fmt.Errorf("export.max_chart_points must be greater than zero")
	}
	if c.Alerting.Telegram.Enabled {
		if c.Alerting.Telegram.BotToken == "" {
			return fmt.Errorf("alerting.telegram.bot_token is required when telegram is enabled")
		}
		if c.Alerting.Telegram.ChatID == "" {
			return fmt.Errorf("alerting.telegram.chat_id is required when telegram is enabled")
		}
	}
	return nil
}

// ResolveMaxChartPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxChartPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxChartPoints
}
