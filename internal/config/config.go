// Package config loads service settings from the environment, an optional
// .env file and an optional YAML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Export layouts and scopes accepted by EXPORT_LAYOUT and EXPORT_SCOPE.
const (
	LayoutColumns = "columns"
	LayoutDate    = "date"
	ScopeOwn      = "own"
	ScopeAll      = "all"
)

// Config holds all service settings.
type Config struct {
	DatabaseURL     string
	HTTPAddr        string
	AuthSecret      string
	SessionTTL      time.Duration
	RememberTTL     time.Duration
	CookieSecure    bool
	TimezoneName    string
	Location        *time.Location
	ExportLayout    string
	ExportScope     string
	SnapshotDir     string
	SnapshotCron    string
	KafkaBrokers    []string
	KafkaTopic      string
	KafkaTimeout    time.Duration
	ShutdownTimeout time.Duration
	// Stations is the seed list; empty means the built-in defaults.
	Stations []string
}

// fileConfig mirrors the YAML file. Unset keys leave the environment value in place.
type fileConfig struct {
	DatabaseURL     string   `yaml:"database_url"`
	HTTPAddr        string   `yaml:"http_addr"`
	AuthSecret      string   `yaml:"auth_secret"`
	SessionTTL      string   `yaml:"session_ttl"`
	RememberTTL     string   `yaml:"remember_ttl"`
	CookieSecure    *bool    `yaml:"cookie_secure"`
	Timezone        string   `yaml:"timezone"`
	ExportLayout    string   `yaml:"export_layout"`
	ExportScope     string   `yaml:"export_scope"`
	SnapshotDir     string   `yaml:"snapshot_dir"`
	SnapshotCron    string   `yaml:"snapshot_schedule"`
	KafkaBrokers    []string `yaml:"kafka_brokers"`
	KafkaTopic      string   `yaml:"kafka_topic"`
	KafkaTimeout    string   `yaml:"kafka_timeout"`
	ShutdownTimeout string   `yaml:"shutdown_timeout"`
	Stations        []string `yaml:"stations"`
}

// Load reads configuration, applying defaults where unset. A missing .env
// file is ignored; a missing RAINLOG_CONFIG file is an error.
func Load() (*Config, error) {
	_ = godotenv.Load()

	raw := fileConfig{
		DatabaseURL:     getenvDefault("DATABASE_URL", os.Getenv("PG_DSN")),
		HTTPAddr:        getenvDefault("HTTP_ADDR", ":8080"),
		AuthSecret:      os.Getenv("AUTH_SECRET"),
		SessionTTL:      getenvDefault("SESSION_TTL", "12h"),
		RememberTTL:     getenvDefault("REMEMBER_TTL", "720h"),
		Timezone:        getenvDefault("RAINLOG_TIMEZONE", "Asia/Tehran"),
		ExportLayout:    getenvDefault("EXPORT_LAYOUT", LayoutColumns),
		ExportScope:     getenvDefault("EXPORT_SCOPE", ScopeOwn),
		SnapshotDir:     os.Getenv("SNAPSHOT_DIR"),
		SnapshotCron:    getenvDefault("SNAPSHOT_SCHEDULE", "0 2 * * *"),
		KafkaBrokers:    splitCSV(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:      getenvDefault("KAFKA_TOPIC", "rainfall-observations"),
		KafkaTimeout:    getenvDefault("KAFKA_TIMEOUT", "5s"),
		ShutdownTimeout: getenvDefault("SHUTDOWN_TIMEOUT", "10s"),
	}
	secure, err := getenvBool("COOKIE_SECURE", false)
	if err != nil {
		return nil, err
	}
	raw.CookieSecure = &secure

	if path := os.Getenv("RAINLOG_CONFIG"); path != "" {
		if err := overlayFile(&raw, path); err != nil {
			return nil, err
		}
	}
	return build(raw)
}

func overlayFile(raw *fileConfig, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	var file fileConfig
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	overrideString(&raw.DatabaseURL, file.DatabaseURL)
	overrideString(&raw.HTTPAddr, file.HTTPAddr)
	overrideString(&raw.AuthSecret, file.AuthSecret)
	overrideString(&raw.SessionTTL, file.SessionTTL)
	overrideString(&raw.RememberTTL, file.RememberTTL)
	overrideString(&raw.Timezone, file.Timezone)
	overrideString(&raw.ExportLayout, file.ExportLayout)
	overrideString(&raw.ExportScope, file.ExportScope)
	overrideString(&raw.SnapshotDir, file.SnapshotDir)
	overrideString(&raw.SnapshotCron, file.SnapshotCron)
	overrideString(&raw.KafkaTopic, file.KafkaTopic)
	overrideString(&raw.KafkaTimeout, file.KafkaTimeout)
	overrideString(&raw.ShutdownTimeout, file.ShutdownTimeout)
	if file.CookieSecure != nil {
		raw.CookieSecure = file.CookieSecure
	}
	if len(file.KafkaBrokers) > 0 {
		raw.KafkaBrokers = file.KafkaBrokers
	}
	if len(file.Stations) > 0 {
		raw.Stations = file.Stations
	}
	return nil
}

func build(raw fileConfig) (*Config, error) {
	cfg := &Config{
		DatabaseURL:  strings.TrimSpace(raw.DatabaseURL),
		HTTPAddr:     raw.HTTPAddr,
		AuthSecret:   raw.AuthSecret,
		TimezoneName: raw.Timezone,
		ExportLayout: strings.ToLower(strings.TrimSpace(raw.ExportLayout)),
		ExportScope:  strings.ToLower(strings.TrimSpace(raw.ExportScope)),
		SnapshotDir:  raw.SnapshotDir,
		SnapshotCron: raw.SnapshotCron,
		KafkaBrokers: raw.KafkaBrokers,
		KafkaTopic:   raw.KafkaTopic,
		Stations:     trimAll(raw.Stations),
	}
	if raw.CookieSecure != nil {
		cfg.CookieSecure = *raw.CookieSecure
	}

	var err error
	if cfg.SessionTTL, err = parsePositiveDuration("SESSION_TTL", raw.SessionTTL); err != nil {
		return nil, err
	}
	if cfg.RememberTTL, err = parsePositiveDuration("REMEMBER_TTL", raw.RememberTTL); err != nil {
		return nil, err
	}
	if cfg.KafkaTimeout, err = parsePositiveDuration("KAFKA_TIMEOUT", raw.KafkaTimeout); err != nil {
		return nil, err
	}
	if cfg.ShutdownTimeout, err = parsePositiveDuration("SHUTDOWN_TIMEOUT", raw.ShutdownTimeout); err != nil {
		return nil, err
	}
	if cfg.Location, err = time.LoadLocation(cfg.TimezoneName); err != nil {
		return nil, fmt.Errorf("invalid RAINLOG_TIMEZONE %q: %w", cfg.TimezoneName, err)
	}
	switch cfg.ExportLayout {
	case LayoutColumns, LayoutDate:
	default:
		return nil, fmt.Errorf("invalid EXPORT_LAYOUT %q: want %s or %s", raw.ExportLayout, LayoutColumns, LayoutDate)
	}
	switch cfg.ExportScope {
	case ScopeOwn, ScopeAll:
	default:
		return nil, fmt.Errorf("invalid EXPORT_SCOPE %q: want %s or %s", raw.ExportScope, ScopeOwn, ScopeAll)
	}
	if cfg.SnapshotDir != "" && strings.TrimSpace(cfg.SnapshotCron) == "" {
		return nil, errors.New("SNAPSHOT_SCHEDULE is required when SNAPSHOT_DIR is set")
	}
	if len(cfg.KafkaBrokers) > 0 && cfg.KafkaTopic == "" {
		return nil, errors.New("KAFKA_TOPIC is required when KAFKA_BROKERS is set")
	}
	return cfg, nil
}

// RequireDatabase reports a missing database URL.
func (c *Config) RequireDatabase() error {
	if c.DatabaseURL == "" {
		return errors.New("DATABASE_URL or PG_DSN is required")
	}
	return nil
}

// RequireServe reports settings missing for the HTTP server.
func (c *Config) RequireServe() error {
	if err := c.RequireDatabase(); err != nil {
		return err
	}
	if len(c.AuthSecret) < 16 {
		return errors.New("AUTH_SECRET is required (at least 16 bytes)")
	}
	return nil
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvBool(key string, fallback bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return parsed, nil
}

func parsePositiveDuration(key, value string) (time.Duration, error) {
	parsed, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil || parsed <= 0 {
		return 0, fmt.Errorf("invalid %s %q", key, value)
	}
	return parsed, nil
}

func overrideString(dst *string, value string) {
	if value != "" {
		*dst = value
	}
}

func splitCSV(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	var result []string
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			result = append(result, part)
		}
	}
	return result
}

func trimAll(values []string) []string {
	var out []string
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
