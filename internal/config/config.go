package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/fairyhunter13/kiosk-order-system/pkg/database"
)

// Config holds all configuration for the application.
type Config struct {
	Server ServerConfig
	DB     DBConfig
	Log    LogConfig
	Auth   AuthConfig
	Store  StoreConfig
	Order  OrderConfig
	Redis  RedisConfig
	AMQP   AMQPConfig
}

// ServerConfig holds server-related configuration.
type ServerConfig struct {
	Port            string `envconfig:"SERVER_PORT" default:"3000"`
	ShutdownTimeout int    `envconfig:"SHUTDOWN_TIMEOUT" default:"30"` // seconds
}

// DBConfig holds database-related configuration.
// WARNING: Default password is for local development only.
// In production, always set DB_PASSWORD via environment variable.
type DBConfig struct {
	Host       string `envconfig:"DB_HOST" default:"localhost"`
	Port       int    `envconfig:"DB_PORT" default:"5432"`
	User       string `envconfig:"DB_USER" default:"postgres"`
	Password   string `envconfig:"DB_PASSWORD" default:"postgres"`
	Name       string `envconfig:"DB_NAME" default:"kiosk_db"`
	SSLMode    string `envconfig:"DB_SSLMODE" default:"disable"`
	MaxConns   int    `envconfig:"DB_MAX_CONNS" default:"25"`
	MinConns   int    `envconfig:"DB_MIN_CONNS" default:"5"`
	MaxRetries int    `envconfig:"DB_CONNECT_RETRIES" default:"5"`
}

// DSN returns the PostgreSQL connection string.
func (c DBConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s&pool_max_conns=%d&pool_min_conns=%d",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode, c.MaxConns, c.MinConns)
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `envconfig:"LOG_LEVEL" default:"info"`
	Pretty bool   `envconfig:"LOG_PRETTY" default:"false"`
}

// AuthConfig holds bearer token verification settings.
type AuthConfig struct {
	JWTSecret string `envconfig:"AUTH_JWT_SECRET" default:"dev-secret"` // CHANGE IN PRODUCTION
	StaffRole string `envconfig:"AUTH_STAFF_ROLE" default:"staff"`
}

// StoreConfig bounds automatic retries of conflicting transactions.
type StoreConfig struct {
	TxMaxAttempts      int `envconfig:"STORE_TX_MAX_ATTEMPTS" default:"5"`
	TxInitialBackoffMS int `envconfig:"STORE_TX_INITIAL_BACKOFF_MS" default:"20"`
	TxMaxBackoffMS     int `envconfig:"STORE_TX_MAX_BACKOFF_MS" default:"500"`
}

// RetryPolicy converts the store settings for the transaction runner.
func (c StoreConfig) RetryPolicy() database.RetryPolicy {
	return database.RetryPolicy{
		MaxAttempts:     c.TxMaxAttempts,
		InitialInterval: time.Duration(c.TxInitialBackoffMS) * time.Millisecond,
		MaxInterval:     time.Duration(c.TxMaxBackoffMS) * time.Millisecond,
	}
}

// OrderConfig holds ordering rules.
type OrderConfig struct {
	TimeZone        string `envconfig:"ORDER_TIME_ZONE" default:"Asia/Seoul"`
	EarnRatePercent int64  `envconfig:"POINTS_EARN_RATE_PERCENT" default:"2"`
	SignupBonus     int64  `envconfig:"POINTS_SIGNUP_BONUS" default:"5000"`
}

// Location resolves the time zone used to derive the day key.
func (c OrderConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("load time zone %q: %w", c.TimeZone, err)
	}
	return loc, nil
}

// RedisConfig holds the coupon cache settings. An empty address disables it.
type RedisConfig struct {
	Addr      string `envconfig:"REDIS_ADDR" default:""`
	CouponTTL int    `envconfig:"REDIS_COUPON_TTL" default:"300"` // seconds
}

// AMQPConfig holds the ready-notification broker settings.
// An empty URL logs notifications instead of publishing them.
type AMQPConfig struct {
	URL           string `envconfig:"AMQP_URL" default:""`
	ReadyQueue    string `envconfig:"AMQP_READY_QUEUE" default:"order_ready"`
	RetryInterval int    `envconfig:"READY_RETRY_INTERVAL" default:"5"` // seconds between outbox sweeps
}

// Load parses environment variables into the Config struct.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
