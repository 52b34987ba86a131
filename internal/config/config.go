package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

// Config keeps runtime settings for the service.
type Config struct {
	DatabaseURL      string        `mapstructure:"database_url" validate:"required"`
	MaxOpenConns     int           `mapstructure:"db_max_open_conns" validate:"gte=0"`
	MaxIdleConns     int           `mapstructure:"db_max_idle_conns" validate:"gte=0"`
	HTTPAddr         string        `mapstructure:"http_addr" validate:"required"`
	LogLevel         string        `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
	LogFormat        string        `mapstructure:"log_format" validate:"required,oneof=json text"`
	TelegramToken    string        `mapstructure:"telegram_token"`
	ReportInterval   time.Duration `mapstructure:"-" validate:"gte=0"`
	ReportAt         string        `mapstructure:"report_at" validate:"omitempty,datetime=15:04"`
	AuditSchedule    string        `mapstructure:"audit_schedule"`
	AuditRepair      bool          `mapstructure:"audit_repair"`
	RateLimitRPS     float64       `mapstructure:"rate_limit_rps" validate:"gte=0"`
	RateLimitBurst   int           `mapstructure:"rate_limit_burst" validate:"gte=0"`
	OperationTimeout time.Duration `mapstructure:"operation_timeout" validate:"gt=0"`
	ShutdownTimeout  time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
}

// AuditEnabled reports whether the periodic counter audit should be scheduled.
// AUDIT_SCHEDULE=off disables it.
func (c Config) AuditEnabled() bool {
	return c.AuditSchedule != "" && !strings.EqualFold(c.AuditSchedule, "off")
}

// BotEnabled reports whether a Telegram token was configured.
func (c Config) BotEnabled() bool {
	return c.TelegramToken != ""
}

var validate = validator.New()

// Load reads configuration from environment variables and, when CONFIG_FILE is set,
// from that file. Environment variables win over file values.
func Load() (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.AutomaticEnv()
	for _, key := range v.AllKeys() {
		if err := v.BindEnv(key, strings.ToUpper(key)); err != nil {
			return Config{}, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	if path := strings.TrimSpace(v.GetString("config_file")); path != "" {
		v.SetConfigFile(path)
		v.SetConfigType(strings.TrimPrefix(filepath.Ext(path), "."))
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file %q: %w", path, err)
		}
	}

	return fromViper(v)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("config_file", "")
	v.SetDefault("database_url", "task_tracker.db")
	v.SetDefault("db_max_open_conns", 10)
	v.SetDefault("db_max_idle_conns", 5)
	v.SetDefault("http_addr", ":8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")
	v.SetDefault("telegram_token", "")
	v.SetDefault("report_interval_hours", "")
	v.SetDefault("report_at", "")
	v.SetDefault("audit_schedule", "@every 1h")
	v.SetDefault("audit_repair", false)
	v.SetDefault("rate_limit_rps", 30.0)
	v.SetDefault("rate_limit_burst", 60)
	v.SetDefault("operation_timeout", 5*time.Second)
	v.SetDefault("shutdown_timeout", 10*time.Second)
}

func fromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("decode config: %w", err)
	}

	cfg.DatabaseURL = strings.TrimSpace(cfg.DatabaseURL)
	cfg.TelegramToken = strings.TrimSpace(cfg.TelegramToken)
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	cfg.LogFormat = strings.ToLower(strings.TrimSpace(cfg.LogFormat))
	cfg.AuditSchedule = strings.TrimSpace(cfg.AuditSchedule)
	cfg.ReportInterval = parseInterval(strings.TrimSpace(v.GetString("report_interval_hours")))
	if cfg.ReportInterval == 0 {
		cfg.ReportInterval = 5 * time.Hour
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks field rules and the audit cron spec.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", fe.Field(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(fields, ", "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.AuditEnabled() {
		parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
		if _, err := parser.Parse(c.AuditSchedule); err != nil {
			return fmt.Errorf("invalid config: audit_schedule: %w", err)
		}
	}
	return nil
}

func parseInterval(raw string) time.Duration {
	if raw == "" {
		return 0
	}
	hours, err := time.ParseDuration(raw + "h")
	if err != nil || hours <= 0 {
		return 0
	}
	return hours
}
