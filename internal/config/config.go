package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all service settings, populated from environment variables
// and an optional tickwatch.yaml in the working directory.
type Config struct {
	DBPath         string
	FeedURL        string
	FeedTimeout    time.Duration
	IngestInterval time.Duration

	ModelPath     string
	ModelCacheTTL time.Duration

	TrendMonthlyCap int
	TrendWeeklyCap  int
	SearchLimit     int

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Optional publication of newly ingested sightings.
	KafkaEnabled bool
	KafkaBrokers []string
	KafkaTopic   string
}

var defaults = map[string]string{
	"db_path":           "tick_sightings.db",
	"feed_url":          "https://dev-task.elancoapps.com/data/tick-sightings",
	"feed_timeout":      "30s",
	"ingest_interval":   "0s",
	"model_path":        "tick_forecast_model.json",
	"model_cache_ttl":   "1m",
	"trend_monthly_cap": "24",
	"trend_weekly_cap":  "52",
	"search_limit":      "500",
	"http_addr":         ":8080",
	"log_level":         "info",
	"log_format":        "json",
	"shutdown_timeout":  "10s",
	"kafka_brokers":     "",
	"kafka_topic":       "tick-sightings",
}

// Load reads configuration, applying defaults where unset. Environment
// variables take precedence over the config file.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("tickwatch")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AutomaticEnv()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	// Bound explicitly so an unset variable is distinguishable from "false".
	if err := v.BindEnv("kafka_enabled", "KAFKA_ENABLED"); err != nil {
		return nil, fmt.Errorf("bind KAFKA_ENABLED: %w", err)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg := &Config{
		DBPath:     v.GetString("db_path"),
		FeedURL:    v.GetString("feed_url"),
		ModelPath:  v.GetString("model_path"),
		HTTPAddr:   v.GetString("http_addr"),
		LogLevel:   strings.ToLower(v.GetString("log_level")),
		LogFormat:  strings.ToLower(v.GetString("log_format")),
		KafkaTopic: v.GetString("kafka_topic"),
	}

	var err error
	if cfg.FeedTimeout, err = positiveDuration(v, "feed_timeout"); err != nil {
		return nil, err
	}
	if cfg.ModelCacheTTL, err = positiveDuration(v, "model_cache_ttl"); err != nil {
		return nil, err
	}
	if cfg.ShutdownTimeout, err = positiveDuration(v, "shutdown_timeout"); err != nil {
		return nil, err
	}
	if cfg.IngestInterval, err = parseDuration(v, "ingest_interval"); err != nil {
		return nil, err
	}
	if cfg.TrendMonthlyCap, err = nonNegativeInt(v, "trend_monthly_cap"); err != nil {
		return nil, err
	}
	if cfg.TrendWeeklyCap, err = nonNegativeInt(v, "trend_weekly_cap"); err != nil {
		return nil, err
	}
	if cfg.SearchLimit, err = nonNegativeInt(v, "search_limit"); err != nil {
		return nil, err
	}

	cfg.KafkaBrokers = parseBrokers(v.GetString("kafka_brokers"))
	cfg.KafkaEnabled = len(cfg.KafkaBrokers) > 0
	if s := v.GetString("kafka_enabled"); s != "" {
		enabled, err := strconv.ParseBool(s)
		if err != nil {
			return nil, fmt.Errorf("invalid KAFKA_ENABLED %q", s)
		}
		cfg.KafkaEnabled = enabled
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.DBPath == "" {
		return errors.New("DB_PATH is required")
	}
	if c.FeedURL == "" {
		return errors.New("FEED_URL is required")
	}
	if c.ModelPath == "" {
		return errors.New("MODEL_PATH is required")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid LOG_LEVEL %q", c.LogLevel)
	}
	switch c.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("invalid LOG_FORMAT %q", c.LogFormat)
	}
	if c.KafkaEnabled && len(c.KafkaBrokers) == 0 {
		return errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is not set")
	}
	if c.KafkaEnabled && c.KafkaTopic == "" {
		return errors.New("KAFKA_TOPIC is required when Kafka is enabled")
	}
	return nil
}

func envName(key string) string {
	return strings.ToUpper(key)
}

func parseDuration(v *viper.Viper, key string) (time.Duration, error) {
	s := v.GetString(key)
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("invalid %s %q", envName(key), s)
	}
	return d, nil
}

func positiveDuration(v *viper.Viper, key string) (time.Duration, error) {
	d, err := parseDuration(v, key)
	if err != nil {
		return 0, err
	}
	if d == 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", envName(key))
	}
	return d, nil
}

func nonNegativeInt(v *viper.Viper, key string) (int, error) {
	s := v.GetString(key)
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s %q", envName(key), s)
	}
	return n, nil
}

// parseBrokers splits a comma-separated broker list, dropping blanks.
func parseBrokers(s string) []string {
	var brokers []string
	for _, b := range strings.Split(s, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}
