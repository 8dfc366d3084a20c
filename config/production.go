// Package config provides configuration management and environment variable handling for the application
package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

// ProductionConfig holds all configuration for production environment
type ProductionConfig struct {
	Database  DatabaseConfig  `json:"database"`
	Server    ServerConfig    `json:"server"`
	Auth      AuthConfig      `json:"auth"`
	Logging   LoggingConfig   `json:"logging"`
	Metrics   MetricsConfig   `json:"metrics"`
	Cache     CacheConfig     `json:"cache"`
	Scheduler SchedulerConfig `json:"scheduler"`
	Transport TransportConfig `json:"transport"`
	Providers ProvidersConfig `json:"providers"`
	Inventory InventoryConfig `json:"inventory"`
	Events    EventsConfig    `json:"events"`
	Vault     VaultConfig     `json:"vault"`
	Payments  PaymentsConfig  `json:"payments"`
}

type DatabaseConfig struct {
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	Name            string        `json:"name"`
	User            string        `json:"user"`
	Password        string        `json:"password"`
	SSLMode         string        `json:"ssl_mode"`
	MaxOpenConns    int           `json:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `json:"conn_max_idle_time"`
	SlowQueryTime   time.Duration `json:"slow_query_time"`
}

// DSN builds the postgres connection string
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

type ServerConfig struct {
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	ReadTimeout     time.Duration `json:"read_timeout"`
	WriteTimeout    time.Duration `json:"write_timeout"`
	IdleTimeout     time.Duration `json:"idle_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
	BodyLimit       int           `json:"body_limit"`
	RateLimit       int           `json:"rate_limit"` // requests per minute per IP
}

// AuthConfig configures service tokens accepted by the internal API
type AuthConfig struct {
	SecretKey string        `json:"-"`
	Issuer    string        `json:"issuer"`
	Audience  string        `json:"audience"`
	TokenTTL  time.Duration `json:"token_ttl"`
}

type LoggingConfig struct {
	Level      string `json:"level"`
	FilePath   string `json:"file_path"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
	MaxAgeDays int    `json:"max_age_days"`
	Compress   bool   `json:"compress"`
}

type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type CacheConfig struct {
	Enabled  bool   `json:"enabled"`
	RedisURL string `json:"redis_url"`
}

// SchedulerConfig drives the populate, process and sweep jobs
type SchedulerConfig struct {
	Enabled           bool          `json:"enabled"`
	PopulateSpec      string        `json:"populate_spec"`
	ProcessSpec       string        `json:"process_spec"`
	SweepSpec         string        `json:"sweep_spec"`
	Timezone          string        `json:"timezone"`
	MaxRetries        int           `json:"max_retries"`
	RetryDelay        time.Duration `json:"retry_delay"`
	DefaultRateLimit  int           `json:"default_rate_limit"`
	Retention         time.Duration `json:"retention"`
	TenantConcurrency int           `json:"tenant_concurrency"`
	LeaderLockEnabled bool          `json:"leader_lock_enabled"`
	LeaderLockTTL     time.Duration `json:"leader_lock_ttl"`
}

// Location loads the configured scheduler timezone
func (c SchedulerConfig) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(c.Timezone)
}

// TransportConfig points at the chat-transport session manager
type TransportConfig struct {
	BaseURL string        `json:"base_url"`
	APIKey  string        `json:"-"`
	Timeout time.Duration `json:"timeout"`
	Mock    bool          `json:"mock"`
}

type ProvidersConfig struct {
	Timeout      time.Duration `json:"timeout"`
	SigmaBaseURL string        `json:"sigma_base_url"`
}

type InventoryConfig struct {
	DeliveryRetries int           `json:"delivery_retries"`
	RetryDelay      time.Duration `json:"retry_delay"`
	ReservationTTL  time.Duration `json:"reservation_ttl"`
	CodeLength      int           `json:"code_length"`
}

type EventsConfig struct {
	KafkaEnabled bool     `json:"kafka_enabled"`
	KafkaBrokers []string `json:"kafka_brokers"`
	KafkaTopic   string   `json:"kafka_topic"`
	ClientID     string   `json:"client_id"`
}

type VaultConfig struct {
	KeyHex string `json:"-"`
}

type PaymentsConfig struct {
	PaymentBaseURL string `json:"payment_base_url"`
}

// LoadProductionConfig loads configuration from environment variables
func LoadProductionConfig() (*ProductionConfig, error) {
	if err := loadEnvFile(".env"); err != nil {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	cfg := &ProductionConfig{
		Database: DatabaseConfig{
			Host:            getEnvString("DB_HOST", "localhost"),
			Port:            getEnvInt("DB_PORT", 5432),
			Name:            getEnvString("DB_NAME", "iptv"),
			User:            getEnvString("DB_USER", "postgres"),
			Password:        getEnvString("DB_PASSWORD", ""),
			SSLMode:         getEnvString("DB_SSL_MODE", "disable"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime: getEnvDuration("DB_CONN_MAX_IDLE_TIME", 15*time.Minute),
			SlowQueryTime:   getEnvDuration("DB_SLOW_QUERY_TIME", 1*time.Second),
		},
		Server: ServerConfig{
			Host:            getEnvString("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvInt("SERVER_PORT", 8080),
			ReadTimeout:     getEnvDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvDuration("SERVER_WRITE_TIMEOUT", 60*time.Second),
			IdleTimeout:     getEnvDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
			ShutdownTimeout: getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
			BodyLimit:       getEnvInt("SERVER_BODY_LIMIT", 4*1024*1024),
			RateLimit:       getEnvInt("SERVER_RATE_LIMIT", 600),
		},
		Auth: AuthConfig{
			SecretKey: getEnvString("AUTH_SECRET_KEY", ""),
			Issuer:    getEnvString("AUTH_ISSUER", "iptv-reseller-automation"),
			Audience:  getEnvString("AUTH_AUDIENCE", "iptv-internal"),
			TokenTTL:  getEnvDuration("AUTH_TOKEN_TTL", 24*time.Hour),
		},
		Logging: LoggingConfig{
			Level:      getEnvString("LOG_LEVEL", "info"),
			FilePath:   getEnvString("LOG_FILE_PATH", "data/automation.log"),
			MaxSizeMB:  getEnvInt("LOG_MAX_SIZE_MB", 100),
			MaxBackups: getEnvInt("LOG_MAX_BACKUPS", 7),
			MaxAgeDays: getEnvInt("LOG_MAX_AGE_DAYS", 30),
			Compress:   getEnvBool("LOG_COMPRESS", true),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvBool("METRICS_ENABLED", true),
			Path:    getEnvString("METRICS_PATH", "/metrics"),
		},
		Cache: CacheConfig{
			Enabled:  getEnvBool("CACHE_ENABLED", true),
			RedisURL: getEnvString("CACHE_REDIS_URL", "redis://localhost:6379/0"),
		},
		Scheduler: SchedulerConfig{
			Enabled:           getEnvBool("SCHEDULER_ENABLED", true),
			PopulateSpec:      getEnvString("SCHEDULER_POPULATE_SPEC", "* * * * *"),
			ProcessSpec:       getEnvString("SCHEDULER_PROCESS_SPEC", "@every 10s"),
			SweepSpec:         getEnvString("SCHEDULER_SWEEP_SPEC", "@daily"),
			Timezone:          getEnvString("SCHEDULER_TIMEZONE", "UTC"),
			MaxRetries:        getEnvInt("SCHEDULER_MAX_RETRIES", 3),
			RetryDelay:        getEnvDuration("SCHEDULER_RETRY_DELAY", 5*time.Minute),
			DefaultRateLimit:  getEnvInt("SCHEDULER_DEFAULT_RATE_LIMIT", 5),
			Retention:         getEnvDuration("SCHEDULER_RETENTION", 30*24*time.Hour),
			TenantConcurrency: getEnvInt("SCHEDULER_TENANT_CONCURRENCY", 4),
			LeaderLockEnabled: getEnvBool("SCHEDULER_LEADER_LOCK_ENABLED", true),
			LeaderLockTTL:     getEnvDuration("SCHEDULER_LEADER_LOCK_TTL", 10*time.Minute),
		},
		Transport: TransportConfig{
			BaseURL: getEnvString("TRANSPORT_BASE_URL", "http://localhost:3000"),
			APIKey:  getEnvString("TRANSPORT_API_KEY", ""),
			Timeout: getEnvDuration("TRANSPORT_TIMEOUT", 15*time.Second),
			Mock:    getEnvBool("TRANSPORT_MOCK", false),
		},
		Providers: ProvidersConfig{
			Timeout:      getEnvDuration("PROVIDERS_TIMEOUT", 30*time.Second),
			SigmaBaseURL: getEnvString("PROVIDERS_SIGMA_BASE_URL", ""),
		},
		Inventory: InventoryConfig{
			DeliveryRetries: getEnvInt("INVENTORY_DELIVERY_RETRIES", 3),
			RetryDelay:      getEnvDuration("INVENTORY_RETRY_DELAY", 2*time.Second),
			ReservationTTL:  getEnvDuration("INVENTORY_RESERVATION_TTL", 5*time.Minute),
			CodeLength:      getEnvInt("INVENTORY_CODE_LENGTH", 16),
		},
		Events: EventsConfig{
			KafkaEnabled: getEnvBool("EVENTS_KAFKA_ENABLED", false),
			KafkaBrokers: getEnvStringSlice("EVENTS_KAFKA_BROKERS", []string{"localhost:9092"}),
			KafkaTopic:   getEnvString("EVENTS_KAFKA_TOPIC", "iptv.automation.events"),
			ClientID:     getEnvString("EVENTS_CLIENT_ID", "iptv-automation"),
		},
		Vault: VaultConfig{
			KeyHex: getEnvString("VAULT_KEY_HEX", ""),
		},
		Payments: PaymentsConfig{
			PaymentBaseURL: getEnvString("PAYMENT_BASE_URL", ""),
		},
	}

	return cfg, nil
}

// loadEnvFile loads key=value pairs from path without overriding variables already set
func loadEnvFile(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	return godotenv.Load(path)
}

// Helper functions for environment variable parsing
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		var result []string
		for _, item := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(item); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return defaultValue
}

// ValidateProductionConfig validates the production configuration
func ValidateProductionConfig(cfg *ProductionConfig) error {
	var errors []string

	// Database
	if cfg.Database.Host == "" {
		errors = append(errors, "DB_HOST is required")
	}
	if cfg.Database.Port <= 0 || cfg.Database.Port > 65535 {
		errors = append(errors, "DB_PORT must be between 1 and 65535")
	}
	if cfg.Database.Name == "" {
		errors = append(errors, "DB_NAME is required")
	}
	if cfg.Database.User == "" {
		errors = append(errors, "DB_USER is required")
	}

	// Auth
	if len(cfg.Auth.SecretKey) < 32 {
		errors = append(errors, "AUTH_SECRET_KEY must be at least 32 characters long")
	}
	if cfg.Auth.TokenTTL <= 0 {
		errors = append(errors, "AUTH_TOKEN_TTL must be positive")
	}

	// Server
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		errors = append(errors, "SERVER_PORT must be between 1 and 65535")
	}
	if cfg.Server.ReadTimeout <= 0 {
		errors = append(errors, "SERVER_READ_TIMEOUT must be positive")
	}
	if cfg.Server.WriteTimeout <= 0 {
		errors = append(errors, "SERVER_WRITE_TIMEOUT must be positive")
	}

	// Logging
	validLevels := []string{"debug", "info", "warn", "error"}
	if cfg.Logging.Level != "" && !slices.Contains(validLevels, cfg.Logging.Level) {
		errors = append(errors, fmt.Sprintf("LOG_LEVEL must be one of: %v", validLevels))
	}

	// Scheduler
	if cfg.Scheduler.Enabled {
		parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
		for name, spec := range map[string]string{
			"SCHEDULER_POPULATE_SPEC": cfg.Scheduler.PopulateSpec,
			"SCHEDULER_PROCESS_SPEC":  cfg.Scheduler.ProcessSpec,
			"SCHEDULER_SWEEP_SPEC":    cfg.Scheduler.SweepSpec,
		} {
			if _, err := parser.Parse(spec); err != nil {
				errors = append(errors, fmt.Sprintf("%s is invalid: %v", name, err))
			}
		}
		if _, err := cfg.Scheduler.Location(); err != nil {
			errors = append(errors, fmt.Sprintf("SCHEDULER_TIMEZONE is invalid: %v", err))
		}
		if cfg.Scheduler.MaxRetries <= 0 {
			errors = append(errors, "SCHEDULER_MAX_RETRIES must be positive")
		}
		if cfg.Scheduler.DefaultRateLimit <= 0 {
			errors = append(errors, "SCHEDULER_DEFAULT_RATE_LIMIT must be positive")
		}
		if cfg.Scheduler.TenantConcurrency <= 0 {
			errors = append(errors, "SCHEDULER_TENANT_CONCURRENCY must be positive")
		}
		if cfg.Scheduler.LeaderLockTTL < time.Minute {
			errors = append(errors, "SCHEDULER_LEADER_LOCK_TTL must be at least 1m")
		}
		if cfg.Scheduler.LeaderLockEnabled && !cfg.Cache.Enabled {
			errors = append(errors, "CACHE_ENABLED is required when SCHEDULER_LEADER_LOCK_ENABLED is true")
		}
	}

	// Transport
	if !cfg.Transport.Mock {
		if cfg.Transport.BaseURL == "" {
			errors = append(errors, "TRANSPORT_BASE_URL is required")
		}
		if cfg.Transport.APIKey == "" {
			errors = append(errors, "TRANSPORT_API_KEY is required")
		}
	}
	if cfg.Transport.Timeout <= 0 {
		errors = append(errors, "TRANSPORT_TIMEOUT must be positive")
	}
	if cfg.Providers.Timeout <= 0 {
		errors = append(errors, "PROVIDERS_TIMEOUT must be positive")
	}

	// Inventory
	if cfg.Inventory.DeliveryRetries <= 0 {
		errors = append(errors, "INVENTORY_DELIVERY_RETRIES must be positive")
	}
	if cfg.Inventory.CodeLength <= 0 {
		errors = append(errors, "INVENTORY_CODE_LENGTH must be positive")
	}

	// Vault
	if key, err := hex.DecodeString(cfg.Vault.KeyHex); err != nil || len(key) != 32 {
		errors = append(errors, "VAULT_KEY_HEX must be 64 hex characters")
	}

	// Events
	if cfg.Events.KafkaEnabled && len(cfg.Events.KafkaBrokers) == 0 {
		errors = append(errors, "EVENTS_KAFKA_BROKERS is required when Kafka events are enabled")
	}

	// Cache
	if cfg.Cache.Enabled && cfg.Cache.RedisURL == "" {
		errors = append(errors, "CACHE_REDIS_URL is required when cache is enabled")
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errors, "; "))
	}

	return nil
}
