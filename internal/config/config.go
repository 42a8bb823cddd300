package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/atlastours/service-booking/pkg/database"
)

// Config holds all runtime configuration for the booking service.
type Config struct {
	AppEnv     string
	ServerPort string

	Postgres database.PostgresConfig

	KafkaBrokers    []string
	KafkaGroupID    string
	BookingTopic    string
	PaymentTopic    string

	JWTSecret        string
	JWTAccessExpiry  time.Duration
	JWTRefreshExpiry time.Duration

	PaymentsBaseURL string
	PaymentsAPIKey  string

	MigrationsDir string
}

// Load reads configuration from environment variables, applying defaults
// suitable for local development.
func Load() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("APP_ENV", "development")
	v.SetDefault("SERVER_PORT", "8084")

	v.SetDefault("POSTGRES_HOST", "localhost")
	v.SetDefault("POSTGRES_PORT", "5432")
	v.SetDefault("POSTGRES_USER", "postgres")
	v.SetDefault("POSTGRES_PASSWORD", "postgres")
	v.SetDefault("POSTGRES_DB", "booking_service")
	v.SetDefault("POSTGRES_SSLMODE", "disable")

	v.SetDefault("KAFKA_BROKERS", "localhost:9092")
	v.SetDefault("KAFKA_GROUP_ID", "booking-service")
	v.SetDefault("BOOKING_EVENTS_TOPIC", "booking.events")
	v.SetDefault("PAYMENT_EVENTS_TOPIC", "payment.events")

	v.SetDefault("JWT_ACCESS_EXPIRY", "15m")
	v.SetDefault("JWT_REFRESH_EXPIRY", "168h")

	v.SetDefault("PAYMENTS_BASE_URL", "http://localhost:8086")

	v.SetDefault("MIGRATIONS_DIR", "migrations")

	cfg := &Config{
		AppEnv:     v.GetString("APP_ENV"),
		ServerPort: v.GetString("SERVER_PORT"),
		Postgres: database.PostgresConfig{
			Host:     v.GetString("POSTGRES_HOST"),
			Port:     v.GetString("POSTGRES_PORT"),
			User:     v.GetString("POSTGRES_USER"),
			Password: v.GetString("POSTGRES_PASSWORD"),
			DBName:   v.GetString("POSTGRES_DB"),
			SSLMode:  v.GetString("POSTGRES_SSLMODE"),
		},
		KafkaBrokers:     strings.Split(v.GetString("KAFKA_BROKERS"), ","),
		KafkaGroupID:     v.GetString("KAFKA_GROUP_ID"),
		BookingTopic:     v.GetString("BOOKING_EVENTS_TOPIC"),
		PaymentTopic:     v.GetString("PAYMENT_EVENTS_TOPIC"),
		JWTSecret:        v.GetString("JWT_SECRET"),
		JWTAccessExpiry:  v.GetDuration("JWT_ACCESS_EXPIRY"),
		JWTRefreshExpiry: v.GetDuration("JWT_REFRESH_EXPIRY"),
		PaymentsBaseURL:  v.GetString("PAYMENTS_BASE_URL"),
		PaymentsAPIKey:   v.GetString("PAYMENTS_API_KEY"),
		MigrationsDir:    v.GetString("MIGRATIONS_DIR"),
	}

	if cfg.JWTSecret == "" {
		if cfg.AppEnv != "development" {
			return nil, fmt.Errorf("JWT_SECRET is required outside development")
		}
		cfg.JWTSecret = "dev-only-secret"
	}

	return cfg, nil
}

// IsDevelopment reports whether the service runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}
