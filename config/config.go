package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

// Config holds all configuration for the account pool service
type Config struct {
	Database    DatabaseConfig
	Redis       RedisConfig
	Kafka       KafkaConfig
	Logging     LoggingConfig
	Service     ServiceConfig
	Limits      LimitsConfig
	Allocator   AllocatorConfig
	Recovery    RecoveryConfig
	Maintenance MaintenanceConfig
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host         string
	Port         string
	User         string
	Password     string
	DBName       string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int

	// MigrationsPath is a golang-migrate source URL, e.g. "file://migrations"
	MigrationsPath string
}

// RedisConfig holds Redis configuration for the distributed lock provider
type RedisConfig struct {
	Addr       string
	Password   string
	DB         int
	LockPrefix string
}

// KafkaConfig holds Kafka configuration
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string
}

// ServiceConfig holds service configuration
type ServiceConfig struct {
	Name string
	Port string

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// ActionLimitConfig holds rate limit settings for one action type.
// Zero values disable the corresponding rule.
type ActionLimitConfig struct {
	Daily              int
	Hourly             int
	PerChannelDaily    int
	PerChannelLifetime int
	Cooldown           time.Duration
	BurstLimit         int
	BurstCooldown      time.Duration
}

// LimitsConfig holds per-action rate limit configuration
type LimitsConfig struct {
	Invite  ActionLimitConfig
	Message ActionLimitConfig
	Contact ActionLimitConfig
}

// AllocatorConfig holds lease allocation configuration
type AllocatorConfig struct {
	DefaultLeaseTTL time.Duration
	MaxLeaseTTL     time.Duration
	RetryAttempts   int
	RetryBackoff    time.Duration
}

// RecoveryConfig holds failure classification configuration
type RecoveryConfig struct {
	FloodWaitBuffer   time.Duration
	FloodWaitFallback time.Duration
	BlockDelay        time.Duration
	ErrorThreshold    int
}

// MaintenanceConfig holds background job schedules (cron specs, UTC)
type MaintenanceConfig struct {
	RecoverySweepSpec string
	DailyResetSpec    string
	StaleLockSpec     string
	HealthSpec        string
	JobTimeout        time.Duration
}

// Result is fx.Out struct for providing config dependencies
type Result struct {
	fx.Out

	Config            *Config
	DatabaseConfig    *DatabaseConfig
	RedisConfig       *RedisConfig
	KafkaConfig       *KafkaConfig
	LoggingConfig     *LoggingConfig
	ServiceConfig     *ServiceConfig
	LimitsConfig      *LimitsConfig
	AllocatorConfig   *AllocatorConfig
	RecoveryConfig    *RecoveryConfig
	MaintenanceConfig *MaintenanceConfig
}

// Out returns fx-compatible config result
func Out() (Result, error) {
	cfg, err := Load()
	if err != nil {
		return Result{}, err
	}

	return Result{
		Config:            cfg,
		DatabaseConfig:    &cfg.Database,
		RedisConfig:       &cfg.Redis,
		KafkaConfig:       &cfg.Kafka,
		LoggingConfig:     &cfg.Logging,
		ServiceConfig:     &cfg.Service,
		LimitsConfig:      &cfg.Limits,
		AllocatorConfig:   &cfg.Allocator,
		RecoveryConfig:    &cfg.Recovery,
		MaintenanceConfig: &cfg.Maintenance,
	}, nil
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Database: DatabaseConfig{
			Host:           getEnv("DATABASE_HOST", "localhost"),
			Port:           getEnv("DATABASE_PORT", "5432"),
			User:           getEnv("DATABASE_USER", "pool_user"),
			Password:       getEnv("DATABASE_PASSWORD", "pool_pass"),
			DBName:         getEnv("DATABASE_NAME", "account_pool_db"),
			SSLMode:        getEnv("DATABASE_SSLMODE", "disable"),
			MigrationsPath: getEnv("DATABASE_MIGRATIONS_PATH", "file://migrations"),
			MaxOpenConns:   getEnvInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:   getEnvInt("DATABASE_MAX_IDLE_CONNS", 5),
		},
		Redis: RedisConfig{
			Addr:       getEnv("REDIS_ADDR", "localhost:6379"),
			Password:   getEnv("REDIS_PASSWORD", ""),
			DB:         getEnvInt("REDIS_DB", 0),
			LockPrefix: getEnv("REDIS_LOCK_PREFIX", "account:lock:"),
		},
		Kafka: KafkaConfig{
			Brokers: strings.Split(getEnv("KAFKA_BROKERS", "localhost:9093"), ","),
			Topic:   getEnv("KAFKA_TOPIC_ACCOUNT_EVENTS", "account.events"),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Service: ServiceConfig{
			Name:         getEnv("SERVICE_NAME", "account-pool-service"),
			Port:         getEnv("SERVICE_PORT", "8085"),
			ReadTimeout:  getEnvDuration("HTTP_READ_TIMEOUT", 5*time.Second),
			WriteTimeout: getEnvDuration("HTTP_WRITE_TIMEOUT", 10*time.Second),
			IdleTimeout:  getEnvDuration("HTTP_IDLE_TIMEOUT", 2*time.Minute),
		},
		Limits: LimitsConfig{
			Invite: ActionLimitConfig{
				Daily:              getEnvInt("INVITE_DAILY_LIMIT", 30),
				Hourly:             getEnvInt("INVITE_HOURLY_LIMIT", 2),
				PerChannelDaily:    getEnvInt("INVITE_PER_CHANNEL_DAILY", 15),
				PerChannelLifetime: getEnvInt("INVITE_PER_CHANNEL_LIFETIME", 200),
				Cooldown:           getEnvDuration("INVITE_COOLDOWN", 15*time.Minute),
				BurstLimit:         getEnvInt("INVITE_BURST_LIMIT", 3),
				BurstCooldown:      getEnvDuration("INVITE_BURST_COOLDOWN", time.Hour),
			},
			Message: ActionLimitConfig{
				Daily:         getEnvInt("MESSAGE_DAILY_LIMIT", 40),
				Hourly:        getEnvInt("MESSAGE_HOURLY_LIMIT", 5),
				Cooldown:      getEnvDuration("MESSAGE_COOLDOWN", 5*time.Minute),
				BurstLimit:    getEnvInt("MESSAGE_BURST_LIMIT", 5),
				BurstCooldown: getEnvDuration("MESSAGE_BURST_COOLDOWN", 30*time.Minute),
			},
			Contact: ActionLimitConfig{
				Daily:         getEnvInt("CONTACT_DAILY_LIMIT", 15),
				Hourly:        getEnvInt("CONTACT_HOURLY_LIMIT", 3),
				Cooldown:      getEnvDuration("CONTACT_COOLDOWN", 10*time.Minute),
				BurstLimit:    getEnvInt("CONTACT_BURST_LIMIT", 3),
				BurstCooldown: getEnvDuration("CONTACT_BURST_COOLDOWN", time.Hour),
			},
		},
		Allocator: AllocatorConfig{
			DefaultLeaseTTL: getEnvDuration("ALLOCATOR_DEFAULT_LEASE_TTL", 30*time.Minute),
			MaxLeaseTTL:     getEnvDuration("ALLOCATOR_MAX_LEASE_TTL", 2*time.Hour),
			RetryAttempts:   getEnvInt("ALLOCATOR_RETRY_ATTEMPTS", 3),
			RetryBackoff:    getEnvDuration("ALLOCATOR_RETRY_BACKOFF", 100*time.Millisecond),
		},
		Recovery: RecoveryConfig{
			FloodWaitBuffer:   getEnvDuration("RECOVERY_FLOOD_WAIT_BUFFER", time.Minute),
			FloodWaitFallback: getEnvDuration("RECOVERY_FLOOD_WAIT_FALLBACK", 5*time.Minute),
			BlockDelay:        getEnvDuration("RECOVERY_BLOCK_DELAY", 24*time.Hour),
			ErrorThreshold:    getEnvInt("RECOVERY_ERROR_THRESHOLD", 5),
		},
		Maintenance: MaintenanceConfig{
			RecoverySweepSpec: getEnv("MAINTENANCE_RECOVERY_SWEEP_SPEC", "*/5 * * * *"),
			DailyResetSpec:    getEnv("MAINTENANCE_DAILY_RESET_SPEC", "0 0 * * *"),
			StaleLockSpec:     getEnv("MAINTENANCE_STALE_LOCK_SPEC", "*/15 * * * *"),
			HealthSpec:        getEnv("MAINTENANCE_HEALTH_SPEC", "*/15 * * * *"),
			JobTimeout:        getEnvDuration("MAINTENANCE_JOB_TIMEOUT", 2*time.Minute),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.Host == "" {
		return fmt.Errorf("DATABASE_HOST is required")
	}

	if c.Database.User == "" {
		return fmt.Errorf("DATABASE_USER is required")
	}

	if c.Database.DBName == "" {
		return fmt.Errorf("DATABASE_NAME is required")
	}

	if c.Redis.Addr == "" {
		return fmt.Errorf("REDIS_ADDR is required")
	}

	if len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required")
	}

	if c.Kafka.Topic == "" {
		return fmt.Errorf("KAFKA_TOPIC_ACCOUNT_EVENTS is required")
	}

	if c.Recovery.ErrorThreshold <= 0 {
		return fmt.Errorf("RECOVERY_ERROR_THRESHOLD must be positive")
	}

	if c.Allocator.MaxLeaseTTL < c.Allocator.DefaultLeaseTTL {
		return fmt.Errorf("ALLOCATOR_MAX_LEASE_TTL must not be below ALLOCATOR_DEFAULT_LEASE_TTL")
	}

	return nil
}

// getEnv gets environment variable with default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvInt gets environment variable as int with default value
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}

// getEnvDuration gets environment variable as duration with default value
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return d
}
