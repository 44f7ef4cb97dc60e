package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	yaml "go.yaml.in/yaml/v3"
)

const (
	DefaultPort           = "8080"
	DefaultTimezone       = "Asia/Kolkata"
	DefaultLiveLogRate    = 20
	DefaultCacheTTL       = 10 * time.Minute
	DefaultReportSchedule = "*/20 * * * *"
)

// Config: настройки процесса. Источники по возрастанию приоритета:
// значения по умолчанию, YAML-файл из CONFIG_FILE, .env, переменные окружения.
type Config struct {
	DatabaseURL     string        `yaml:"database_url"`
	Port            string        `yaml:"port"`
	APIToken        string        `yaml:"api_token"`
	APIID           int           `yaml:"api_id"`
	APIHash         string        `yaml:"api_hash"`
	LogBotToken     string        `yaml:"log_bot_token"`
	LogBotUsername  string        `yaml:"log_bot_username"`
	LiveLogRate     int           `yaml:"live_log_rate"`
	Timezone        string        `yaml:"timezone"`
	AdTemplate      string        `yaml:"ad_template"`
	DialogsCacheTTL time.Duration `yaml:"dialogs_cache_ttl"`
	RedisURL        string        `yaml:"redis_url"`
	AMQPURL         string        `yaml:"amqp_url"`
	AMQPQueue       string        `yaml:"amqp_queue"`
	SentryDSN       string        `yaml:"sentry_dsn"`
	Environment     string        `yaml:"environment"`
	ReportDir       string        `yaml:"report_dir"`
	ReportSchedule  string        `yaml:"report_schedule"`
	LogLevel        string        `yaml:"log_level"`
	LogPretty       bool          `yaml:"log_pretty"`

	Location *time.Location `yaml:"-"`
}

// Load собирает конфигурацию. Отсутствие .env не ошибка.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("[CONFIG] .env не найден, используем переменные окружения")
	}
	cfg := defaults()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.finish(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Port:            DefaultPort,
		LiveLogRate:     DefaultLiveLogRate,
		Timezone:        DefaultTimezone,
		DialogsCacheTTL: DefaultCacheTTL,
		ReportSchedule:  DefaultReportSchedule,
		Environment:     "production",
		LogLevel:        "info",
	}
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("yaml unmarshal %s: %w", path, err)
	}
	return nil
}

type lookupFunc func(key string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	str("DATABASE_URL", &c.DatabaseURL)
	str("PORT", &c.Port)
	str("API_TOKEN", &c.APIToken)
	str("API_HASH", &c.APIHash)
	str("LOG_BOT_TOKEN", &c.LogBotToken)
	str("LOG_BOT_USERNAME", &c.LogBotUsername)
	str("TIMEZONE", &c.Timezone)
	str("AD_TEMPLATE", &c.AdTemplate)
	str("REDIS_URL", &c.RedisURL)
	str("AMQP_URL", &c.AMQPURL)
	str("AMQP_QUEUE", &c.AMQPQueue)
	str("SENTRY_DSN", &c.SentryDSN)
	str("ENVIRONMENT", &c.Environment)
	str("REPORT_DIR", &c.ReportDir)
	str("REPORT_SCHEDULE", &c.ReportSchedule)
	str("LOG_LEVEL", &c.LogLevel)

	var errs []error
	if v, ok := lookup("API_ID"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("API_ID: %w", err))
		}
		c.APIID = n
	}
	if v, ok := lookup("LIVE_LOG_RATE"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("LIVE_LOG_RATE: %w", err))
		}
		c.LiveLogRate = n
	}
	if v, ok := lookup("DIALOGS_CACHE_TTL"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("DIALOGS_CACHE_TTL: %w", err))
		}
		c.DialogsCacheTTL = d
	}
	if v, ok := lookup("LOG_PRETTY"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("LOG_PRETTY: %w", err))
		}
		c.LogPretty = b
	}
	return errors.Join(errs...)
}

func (c *Config) finish() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return errors.New("DATABASE_URL is required")
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return fmt.Errorf("TIMEZONE %q: %w", c.Timezone, err)
	}
	c.Location = loc
	if c.LiveLogRate <= 0 {
		c.LiveLogRate = DefaultLiveLogRate
	}
	if c.DialogsCacheTTL <= 0 {
		c.DialogsCacheTTL = DefaultCacheTTL
	}
	return nil
}
