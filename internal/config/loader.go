package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config captures configuration values for the team meeting service.
type Config struct {
	HTTPPort               int
	DatabaseDriver         string
	DatabaseDSN            string
	JWTSecret              string
	Graph                  GraphConfig
	PrefixMeetingName      bool
	ResyncAfter            time.Duration
	SyncInterval           time.Duration
	DefaultMeetingDuration time.Duration
	Notify                 NotifyConfig
	Rollbar                RollbarConfig
}

// GraphConfig holds the Microsoft Graph application credentials.
type GraphConfig struct {
	TenantID     string `yaml:"tenant_id"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
}

// Configured reports whether every credential is present.
func (g GraphConfig) Configured() bool {
	return g.TenantID != "" && g.ClientID != "" && g.ClientSecret != ""
}

// NotifyConfig controls the meeting created notification.
type NotifyConfig struct {
	Enabled     bool   `yaml:"enabled"`
	SendGridKey string `yaml:"sendgrid_key"`
	FromName    string `yaml:"from_name"`
	FromAddress string `yaml:"from_address"`
}

// RollbarConfig enables error reporting when a token is supplied.
type RollbarConfig struct {
	Token       string `yaml:"token"`
	Environment string `yaml:"environment"`
}

type fileConfig struct {
	HTTPPort               int           `yaml:"http_port"`
	DatabaseDriver         string        `yaml:"database_driver"`
	DatabaseDSN            string        `yaml:"database_dsn"`
	JWTSecret              string        `yaml:"jwt_secret"`
	Graph                  GraphConfig   `yaml:"graph"`
	PrefixMeetingName      *bool         `yaml:"prefix_meeting_name"`
	ResyncAfter            string        `yaml:"resync_after"`
	SyncInterval           string        `yaml:"sync_interval"`
	DefaultMeetingDuration string        `yaml:"default_meeting_duration"`
	Notify                 NotifyConfig  `yaml:"notify"`
	Rollbar                RollbarConfig `yaml:"rollbar"`
}

// Load reads configuration from an optional .env file, an optional YAML file
// named by TEAMMEETING_CONFIG, and finally the process environment.
//
// Later sources take precedence. Missing required values and invalid values
// are collected and reported together.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf(".env ファイルを読み込めません: %w", err)
	}

	cfg := Config{
		HTTPPort:               8080,
		DatabaseDriver:         DriverSQLite,
		DatabaseDSN:            "file:teammeeting.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)",
		ResyncAfter:            5 * time.Minute,
		DefaultMeetingDuration: 2 * time.Hour,
		Rollbar:                RollbarConfig{Environment: "development"},
	}

	missing := make([]string, 0, 1)
	invalid := make([]string, 0, 2)

	if path := strings.TrimSpace(os.Getenv("TEAMMEETING_CONFIG")); path != "" {
		if err := applyFile(&cfg, path, &invalid); err != nil {
			return Config{}, err
		}
	}

	if portValue := env("TEAMMEETING_HTTP_PORT"); portValue != "" {
		port, err := strconv.Atoi(portValue)
		if err != nil || port <= 0 {
			invalid = append(invalid, "TEAMMEETING_HTTP_PORT")
		} else {
			cfg.HTTPPort = port
		}
	}

	if driver := env("TEAMMEETING_DB_DRIVER"); driver != "" {
		cfg.DatabaseDriver = strings.ToLower(driver)
	}
	if cfg.DatabaseDriver != DriverSQLite && cfg.DatabaseDriver != DriverPostgres {
		invalid = append(invalid, "TEAMMEETING_DB_DRIVER")
	}

	if dsn := env("TEAMMEETING_DB_DSN"); dsn != "" {
		cfg.DatabaseDSN = dsn
	}

	if secret := env("TEAMMEETING_JWT_SECRET"); secret != "" {
		cfg.JWTSecret = secret
	}
	if cfg.JWTSecret == "" {
		missing = append(missing, "TEAMMEETING_JWT_SECRET")
	}

	if v := env("TEAMMEETING_GRAPH_TENANT_ID"); v != "" {
		cfg.Graph.TenantID = v
	}
	if v := env("TEAMMEETING_GRAPH_CLIENT_ID"); v != "" {
		cfg.Graph.ClientID = v
	}
	if v := env("TEAMMEETING_GRAPH_CLIENT_SECRET"); v != "" {
		cfg.Graph.ClientSecret = v
	}

	parseBool("TEAMMEETING_PREFIX_MEETING_NAME", &cfg.PrefixMeetingName, &invalid)
	parseDuration("TEAMMEETING_RESYNC_AFTER", &cfg.ResyncAfter, false, &invalid)
	parseDuration("TEAMMEETING_SYNC_INTERVAL", &cfg.SyncInterval, true, &invalid)
	parseDuration("TEAMMEETING_DEFAULT_MEETING_DURATION", &cfg.DefaultMeetingDuration, false, &invalid)

	parseBool("TEAMMEETING_NOTIFY_ENABLED", &cfg.Notify.Enabled, &invalid)
	if v := env("TEAMMEETING_SENDGRID_KEY"); v != "" {
		cfg.Notify.SendGridKey = v
	}
	if v := env("TEAMMEETING_MAIL_FROM_NAME"); v != "" {
		cfg.Notify.FromName = v
	}
	if v := env("TEAMMEETING_MAIL_FROM_ADDRESS"); v != "" {
		cfg.Notify.FromAddress = v
	}

	if v := env("TEAMMEETING_ROLLBAR_TOKEN"); v != "" {
		cfg.Rollbar.Token = v
	}
	if v := env("TEAMMEETING_ENV"); v != "" {
		cfg.Rollbar.Environment = v
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("必須の環境変数が設定されていません: %s", strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("環境変数の値が不正です: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}

func applyFile(cfg *Config, path string, invalid *[]string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("設定ファイルを読み込めません: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("設定ファイルの形式が不正です: %w", err)
	}

	if fc.HTTPPort > 0 {
		cfg.HTTPPort = fc.HTTPPort
	}
	if fc.DatabaseDriver != "" {
		cfg.DatabaseDriver = strings.ToLower(fc.DatabaseDriver)
	}
	if fc.DatabaseDSN != "" {
		cfg.DatabaseDSN = fc.DatabaseDSN
	}
	if fc.JWTSecret != "" {
		cfg.JWTSecret = fc.JWTSecret
	}
	if fc.Graph.TenantID != "" {
		cfg.Graph.TenantID = fc.Graph.TenantID
	}
	if fc.Graph.ClientID != "" {
		cfg.Graph.ClientID = fc.Graph.ClientID
	}
	if fc.Graph.ClientSecret != "" {
		cfg.Graph.ClientSecret = fc.Graph.ClientSecret
	}
	if fc.PrefixMeetingName != nil {
		cfg.PrefixMeetingName = *fc.PrefixMeetingName
	}
	fileDuration("resync_after", fc.ResyncAfter, &cfg.ResyncAfter, false, invalid)
	fileDuration("sync_interval", fc.SyncInterval, &cfg.SyncInterval, true, invalid)
	fileDuration("default_meeting_duration", fc.DefaultMeetingDuration, &cfg.DefaultMeetingDuration, false, invalid)
	if fc.Notify.Enabled {
		cfg.Notify.Enabled = true
	}
	if fc.Notify.SendGridKey != "" {
		cfg.Notify.SendGridKey = fc.Notify.SendGridKey
	}
	if fc.Notify.FromName != "" {
		cfg.Notify.FromName = fc.Notify.FromName
	}
	if fc.Notify.FromAddress != "" {
		cfg.Notify.FromAddress = fc.Notify.FromAddress
	}
	if fc.Rollbar.Token != "" {
		cfg.Rollbar.Token = fc.Rollbar.Token
	}
	if fc.Rollbar.Environment != "" {
		cfg.Rollbar.Environment = fc.Rollbar.Environment
	}
	return nil
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func parseBool(key string, target *bool, invalid *[]string) {
	value := env(key)
	if value == "" {
		return
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		*invalid = append(*invalid, key)
		return
	}
	*target = parsed
}

func parseDuration(key string, target *time.Duration, allowZero bool, invalid *[]string) {
	value := env(key)
	if value == "" {
		return
	}
	if !setDuration(value, target, allowZero) {
		*invalid = append(*invalid, key)
	}
}

func fileDuration(key, value string, target *time.Duration, allowZero bool, invalid *[]string) {
	if value == "" {
		return
	}
	if !setDuration(value, target, allowZero) {
		*invalid = append(*invalid, key)
	}
}

func setDuration(value string, target *time.Duration, allowZero bool) bool {
	d, err := time.ParseDuration(value)
	if err != nil || d < 0 || (d == 0 && !allowZero) {
		return false
	}
	*target = d
	return true
}
