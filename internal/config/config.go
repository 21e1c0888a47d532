// Package config loads the server's runtime configuration from environment
// variables, mirroring the env-var-driven loader style used throughout this
// codebase's other services.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// DatabaseConfig holds postgres connection parameters.
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int
	MaxIdle  int
}

// GetDSN builds the libpq connection string.
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// MQTTConfig holds MQTT broker parameters. An empty Broker disables the
// notifier entirely (internal/notify becomes a no-op).
type MQTTConfig struct {
	Broker   string
	ClientID string
	Username string
	Password string
	QoS      byte
}

// RegistryConfig controls terminal-registry behaviour.
type RegistryConfig struct {
	ActiveWindow time.Duration
}

// QueueConfig controls command-queue retry/retention behaviour.
type QueueConfig struct {
	RetryLimit             int
	SweepInterval          time.Duration
	CompletedRetention     time.Duration
	FailedPendingRetention time.Duration
}

// SyncConfig controls fan-out policy switches.
type SyncConfig struct {
	PropagatePhotos bool
}

// LogConfig controls the logger.
type LogConfig struct {
	Level  string
	Format string
}

// HTTPConfig controls the protocol endpoint listener.
type HTTPConfig struct {
	Addr           string
	TimeZoneOffset int
}

// Config is the top-level, fully-resolved configuration.
type Config struct {
	HTTP          HTTPConfig
	Database      DatabaseConfig
	Redis         RedisConfig
	MQTT          MQTTConfig
	Registry      RegistryConfig
	Queue         QueueConfig
	Sync          SyncConfig
	Log           LogConfig
	ServerVersion string
}

// Load reads configuration from the environment, applying the same
// defaults the init options block advertises to terminals.
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":8081")
	cfg.HTTP.TimeZoneOffset = getEnvInt("HTTP_TIMEZONE_OFFSET", 0)

	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = getEnvInt("DB_PORT", 5432)
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database.Database = getEnv("DB_NAME", "zkserver")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.Database.MaxConns = getEnvInt("DB_MAX_CONNS", 20)
	cfg.Database.MaxIdle = getEnvInt("DB_MAX_IDLE", 5)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = getEnvInt("REDIS_DB", 0)

	cfg.MQTT.Broker = getEnv("MQTT_BROKER", "")
	cfg.MQTT.ClientID = getEnv("MQTT_CLIENT_ID", "zk-server")
	cfg.MQTT.Username = getEnv("MQTT_USERNAME", "")
	cfg.MQTT.Password = getEnv("MQTT_PASSWORD", "")
	cfg.MQTT.QoS = byte(getEnvInt("MQTT_QOS", 0))

	cfg.Registry.ActiveWindow = getEnvDuration("REGISTRY_ACTIVE_WINDOW", 10*time.Minute)

	cfg.Queue.RetryLimit = getEnvInt("QUEUE_RETRY_LIMIT", 3)
	cfg.Queue.SweepInterval = getEnvDuration("QUEUE_SWEEP_INTERVAL", time.Hour)
	cfg.Queue.CompletedRetention = getEnvDuration("QUEUE_COMPLETED_RETENTION", 24*time.Hour)
	cfg.Queue.FailedPendingRetention = getEnvDuration("QUEUE_FAILED_PENDING_RETENTION", time.Hour)

	cfg.Sync.PropagatePhotos = getEnv("SYNC_PROPAGATE_PHOTOS", "false") == "true"

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	cfg.ServerVersion = getEnv("SERVER_VERSION", "zk-server/2.4.1")

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}
