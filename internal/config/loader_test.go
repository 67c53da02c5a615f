package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

var configKeys = []string{
	"TEAMMEETING_CONFIG",
	"TEAMMEETING_HTTP_PORT",
	"TEAMMEETING_DB_DRIVER",
	"TEAMMEETING_DB_DSN",
	"TEAMMEETING_JWT_SECRET",
	"TEAMMEETING_GRAPH_TENANT_ID",
	"TEAMMEETING_GRAPH_CLIENT_ID",
	"TEAMMEETING_GRAPH_CLIENT_SECRET",
	"TEAMMEETING_PREFIX_MEETING_NAME",
	"TEAMMEETING_RESYNC_AFTER",
	"TEAMMEETING_SYNC_INTERVAL",
	"TEAMMEETING_DEFAULT_MEETING_DURATION",
	"TEAMMEETING_NOTIFY_ENABLED",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range configKeys {
		t.Setenv(key, "")
		if err := os.Unsetenv(key); err != nil {
			t.Fatalf("failed to unset %s: %v", key, err)
		}
	}
}

func TestLoader_ParseEnvironment(t *testing.T) {
	t.Run("applies defaults when variables are missing", func(t *testing.T) {
		clearEnv(t)
		const secret = "super-secret"
		t.Setenv("TEAMMEETING_JWT_SECRET", secret)

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}

		if cfg.HTTPPort != 8080 {
			t.Fatalf("expected default HTTP port 8080, got %d", cfg.HTTPPort)
		}
		if cfg.DatabaseDriver != DriverSQLite {
			t.Fatalf("expected sqlite driver, got %q", cfg.DatabaseDriver)
		}
		if cfg.JWTSecret != secret {
			t.Fatalf("expected secret %q, got %q", secret, cfg.JWTSecret)
		}
		if cfg.ResyncAfter != 5*time.Minute {
			t.Fatalf("expected five minute resync, got %v", cfg.ResyncAfter)
		}
		if cfg.DefaultMeetingDuration != 2*time.Hour {
			t.Fatalf("expected two hour default duration, got %v", cfg.DefaultMeetingDuration)
		}
		if cfg.SyncInterval != 0 {
			t.Fatalf("expected background sync disabled, got %v", cfg.SyncInterval)
		}
		if cfg.Graph.Configured() {
			t.Fatalf("expected graph to be unconfigured")
		}
	})

	t.Run("errors when required values are missing", func(t *testing.T) {
		clearEnv(t)

		_, err := Load()
		if err == nil {
			t.Fatalf("expected error when required values are missing")
		}
		expected := "必須の環境変数が設定されていません: TEAMMEETING_JWT_SECRET"
		if err.Error() != expected {
			t.Fatalf("unexpected error message: %q", err.Error())
		}
	})

	t.Run("reports every invalid value", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("TEAMMEETING_JWT_SECRET", "secret")
		t.Setenv("TEAMMEETING_HTTP_PORT", "-1")
		t.Setenv("TEAMMEETING_DB_DRIVER", "oracle")
		t.Setenv("TEAMMEETING_RESYNC_AFTER", "soon")

		_, err := Load()
		if err == nil {
			t.Fatalf("expected error for invalid values")
		}
		expected := "環境変数の値が不正です: TEAMMEETING_HTTP_PORT, TEAMMEETING_DB_DRIVER, TEAMMEETING_RESYNC_AFTER"
		if err.Error() != expected {
			t.Fatalf("unexpected error message: %q", err.Error())
		}
	})

	t.Run("environment overrides the yaml file", func(t *testing.T) {
		clearEnv(t)
		path := filepath.Join(t.TempDir(), "teammeeting.yaml")
		content := []byte(`
http_port: 9090
database_driver: postgres
database_dsn: postgres://localhost/teammeeting
jwt_secret: from-file
prefix_meeting_name: true
sync_interval: 1m
graph:
  tenant_id: tenant
  client_id: client
  client_secret: secret
`)
		if err := os.WriteFile(path, content, 0o600); err != nil {
			t.Fatalf("failed to write config: %v", err)
		}
		t.Setenv("TEAMMEETING_CONFIG", path)
		t.Setenv("TEAMMEETING_HTTP_PORT", "7070")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}
		if cfg.HTTPPort != 7070 {
			t.Fatalf("expected env port to win, got %d", cfg.HTTPPort)
		}
		if cfg.DatabaseDriver != DriverPostgres || cfg.DatabaseDSN != "postgres://localhost/teammeeting" {
			t.Fatalf("unexpected database settings: %q %q", cfg.DatabaseDriver, cfg.DatabaseDSN)
		}
		if cfg.JWTSecret != "from-file" {
			t.Fatalf("expected secret from file, got %q", cfg.JWTSecret)
		}
		if !cfg.PrefixMeetingName {
			t.Fatalf("expected prefix toggle from file")
		}
		if cfg.SyncInterval != time.Minute {
			t.Fatalf("expected one minute sync interval, got %v", cfg.SyncInterval)
		}
		if !cfg.Graph.Configured() {
			t.Fatalf("expected graph credentials from file")
		}
	})
}
