package common

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration.
type Config struct {
	Environment string           `toml:"environment"` // "development" or "production"
	Storage     StorageConfig    `toml:"storage"`
	Logging     LoggingConfig    `toml:"logging"`
	Production  ProductionConfig `toml:"production"`
	Cache       CacheConfig      `toml:"cache"`
	Landsat     LandsatConfig    `toml:"landsat"`
	Modis       ModisConfig      `toml:"modis"`
	Grid        GridConfig       `toml:"grid"`
	SMTP        SMTPConfig       `toml:"smtp"`
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration.
type BadgerConfig struct {
	Path           string `toml:"path" validate:"required"` // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"`         // Delete database on startup for clean test runs
}

type LoggingConfig struct {
	Level      string   `toml:"level"`       // "debug", "info", "warn", "error"
	Output     []string `toml:"output"`      // "stdout", "file"
	TimeFormat string   `toml:"time_format"` // Time format for logs
}

// RetryRule is one named retry category of the error classifier: how long
// to wait before re-entering the pipeline and how many attempts to allow.
type RetryRule struct {
	Timeout time.Duration `toml:"timeout"`
	Limit   int           `toml:"limit"`
}

// ProductionConfig tunes the orchestration engine. The orphan threshold,
// retry table, purge retention and batch sizes are policy, never hardcoded
// in the services.
type ProductionConfig struct {
	Schedule        string        `toml:"schedule"`         // Cron schedule for the orchestration pass
	BatchSize       int           `toml:"batch_size"`       // Max scenes per archive call per pass
	OrderPriority   string        `toml:"order_priority"`   // Priority code sent with archive bulk orders
	OrphanThreshold time.Duration `toml:"orphan_threshold"` // Missing-job confirmation window
	PurgeRetention  time.Duration `toml:"purge_retention"`  // Completed-order retention before purge
	PurgeLockTTL    time.Duration `toml:"purge_lock_ttl"`   // TTL of the purge mutex
	PurgeReport     bool          `toml:"purge_report"`     // Email a purge report after each purge pass
	DefaultRetries  int           `toml:"default_retries"`  // Retry limit when a rule specifies none

	// Retry table keyed by classifier category: network, ssh, db_lock,
	// archive, node, sixs, aux_data, cache_repull
	Retry map[string]RetryRule `toml:"retry"`
}

// RetryRuleFor returns the retry rule for a category, falling back to the
// default limit when the category is not configured.
func (p ProductionConfig) RetryRuleFor(category string) RetryRule {
	if rule, ok := p.Retry[category]; ok {
		if rule.Limit == 0 {
			rule.Limit = p.DefaultRetries
		}
		return rule
	}
	return RetryRule{Timeout: time.Hour, Limit: p.DefaultRetries}
}

// CacheConfig locates the online cache and the externally-servable base URL
// completed artifacts are published under.
type CacheConfig struct {
	Root            string `toml:"root" validate:"required"`
	DownloadBaseURL string `toml:"download_base_url" validate:"required"`
}

// LandsatConfig configures the Landsat archive client.
type LandsatConfig struct {
	BaseURL   string        `toml:"base_url" validate:"required"`
	Username  string        `toml:"username"`
	Token     string        `toml:"token"`
	Timeout   time.Duration `toml:"timeout"`
	RateLimit float64       `toml:"rate_limit"` // Requests per second against the archive
}

// ModisConfig configures the MODIS archive client.
type ModisConfig struct {
	BaseURL string        `toml:"base_url" validate:"required"`
	Timeout time.Duration `toml:"timeout"`
}

// GridConfig configures the processing-grid query client.
type GridConfig struct {
	BaseURL string        `toml:"base_url" validate:"required"`
	Timeout time.Duration `toml:"timeout"`
}

// SMTPConfig configures the mailer.
type SMTPConfig struct {
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Username      string `toml:"username"`
	Password      string `toml:"password"`
	From          string `toml:"from"`
	FromName      string `toml:"from_name"`
	UseTLS        bool   `toml:"use_tls"`
	OperatorEmail string `toml:"operator_email"` // Destination for corrupt-input and purge reports
}

// LoadFromFiles loads configuration, layering defaults, then each file in
// order (later files override earlier ones), then environment overrides.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := DefaultConfig()

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// applyEnvOverrides applies ORBITER_* environment variables over the loaded
// configuration. Only operational knobs are exposed this way.
func applyEnvOverrides(config *Config) {
	if v := os.Getenv("ORBITER_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
	if v := os.Getenv("ORBITER_BADGER_PATH"); v != "" {
		config.Storage.Badger.Path = v
	}
	if v := os.Getenv("ORBITER_CACHE_ROOT"); v != "" {
		config.Cache.Root = v
	}
	if v := os.Getenv("ORBITER_SMTP_PASSWORD"); v != "" {
		config.SMTP.Password = v
	}
	if v := os.Getenv("ORBITER_LANDSAT_TOKEN"); v != "" {
		config.Landsat.Token = v
	}
	if v := os.Getenv("ORBITER_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			config.Production.BatchSize = n
		}
	}
}

// Validate checks the configuration for structural problems.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.Production.BatchSize <= 0 {
		return fmt.Errorf("invalid configuration: production.batch_size must be positive")
	}
	if c.Production.OrphanThreshold <= 0 {
		return fmt.Errorf("invalid configuration: production.orphan_threshold must be positive")
	}
	if c.Production.PurgeRetention <= 0 {
		return fmt.Errorf("invalid configuration: production.purge_retention must be positive")
	}
	return nil
}
