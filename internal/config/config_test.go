package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad_DefaultValues(t *testing.T) {
	os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Database.Host != "localhost" {
		t.Errorf("expected DB_HOST default 'localhost', got '%s'", cfg.Database.Host)
	}
	if cfg.Database.Port != 5432 {
		t.Errorf("expected DB_PORT default 5432, got %d", cfg.Database.Port)
	}
	if cfg.Redis.Addr != "localhost:6379" {
		t.Errorf("expected REDIS_ADDR default 'localhost:6379', got '%s'", cfg.Redis.Addr)
	}
	if cfg.MQTT.Broker != "" {
		t.Errorf("expected MQTT_BROKER default empty (disabled), got '%s'", cfg.MQTT.Broker)
	}
	if cfg.Registry.ActiveWindow != 10*time.Minute {
		t.Errorf("expected active window default 10m, got %s", cfg.Registry.ActiveWindow)
	}
	if cfg.Queue.RetryLimit != 3 {
		t.Errorf("expected retry limit default 3, got %d", cfg.Queue.RetryLimit)
	}
	if cfg.Sync.PropagatePhotos {
		t.Errorf("expected photo propagation disabled by default")
	}
	if cfg.Log.Level != "info" {
		t.Errorf("expected LOG_LEVEL default 'info', got '%s'", cfg.Log.Level)
	}
}

func TestLoad_EnvironmentVariables(t *testing.T) {
	os.Clearenv()
	os.Setenv("DB_HOST", "test-host")
	os.Setenv("DB_NAME", "test-db")
	os.Setenv("REGISTRY_ACTIVE_WINDOW", "5m")
	os.Setenv("QUEUE_RETRY_LIMIT", "5")
	os.Setenv("SYNC_PROPAGATE_PHOTOS", "true")
	os.Setenv("LOG_LEVEL", "debug")
	defer os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Database.Host != "test-host" {
		t.Errorf("expected DB_HOST 'test-host', got '%s'", cfg.Database.Host)
	}
	if cfg.Database.Database != "test-db" {
		t.Errorf("expected DB_NAME 'test-db', got '%s'", cfg.Database.Database)
	}
	if cfg.Registry.ActiveWindow != 5*time.Minute {
		t.Errorf("expected active window 5m, got %s", cfg.Registry.ActiveWindow)
	}
	if cfg.Queue.RetryLimit != 5 {
		t.Errorf("expected retry limit 5, got %d", cfg.Queue.RetryLimit)
	}
	if !cfg.Sync.PropagatePhotos {
		t.Errorf("expected photo propagation enabled")
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("expected LOG_LEVEL 'debug', got '%s'", cfg.Log.Level)
	}
}

func TestGetEnv(t *testing.T) {
	os.Setenv("TEST_VAR", "test-value")
	defer os.Unsetenv("TEST_VAR")

	if v := getEnv("TEST_VAR", "default"); v != "test-value" {
		t.Errorf("expected 'test-value', got '%s'", v)
	}
	if v := getEnv("NON_EXISTENT_VAR", "default-value"); v != "default-value" {
		t.Errorf("expected 'default-value', got '%s'", v)
	}
}
