// Package config loads the service configuration from the environment and an
// optional config file.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/pitlane/service-booking/internal/domain/catalog"
	"github.com/pitlane/service-booking/internal/domain/schedule"
	"github.com/pitlane/service-booking/internal/platform/database"
	"github.com/spf13/viper"
)

// JWTConfig holds token verification settings.
type JWTConfig struct {
	Secret    string
	AccessTTL time.Duration
}

// KafkaConfig holds broker settings. No brokers disables Kafka.
type KafkaConfig struct {
	Brokers []string
	GroupID string
}

// Enabled reports whether any broker is configured.
func (k KafkaConfig) Enabled() bool { return len(k.Brokers) > 0 }

// RedisConfig holds the slot lock store. An empty Addr selects the
// in-process lock.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	LockTTL  time.Duration
}

// GatewayConfig holds Mercado Pago settings. An empty AccessToken selects the
// mock gateway.
type GatewayConfig struct {
	AccessToken     string
	BaseURL         string
	Currency        string
	Timeout         time.Duration
	MaxRetries      uint64
	NotificationURL string
	ReturnURL       string
}

// VenueConfig describes the physical venue.
type VenueConfig struct {
	Capacity int
	TimeZone string
	Schedule schedule.Config
	Pricing  map[string]int64
}

// SweeperConfig controls expiry of unpaid reservations. A zero Interval
// disables the in-process sweeper; the HTTP trigger still works.
type SweeperConfig struct {
	Interval   time.Duration
	PendingTTL time.Duration
}

// ServiceConfig holds all configuration for the booking service.
type ServiceConfig struct {
	Port       string
	AppEnv     string
	DB         database.PostgresConfig
	JWT        JWTConfig
	Kafka      KafkaConfig
	Redis      RedisConfig
	Gateway    GatewayConfig
	Venue      VenueConfig
	Sweeper    SweeperConfig
	CronSecret string
}

// Load reads configuration from environment variables and, when present, a
// config.yaml in the working directory or /etc/service-booking.
func Load() (*ServiceConfig, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/service-booking")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}
	v.AutomaticEnv()

	return fromViper(v)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVICE_PORT", "8080")
	v.SetDefault("APP_ENV", "development")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "booking")
	v.SetDefault("DB_SSLMODE", "disable")

	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("JWT_ACCESS_TTL", "15m")

	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("KAFKA_GROUP_ID", "service-booking")

	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_LOCK_TTL", "10s")

	v.SetDefault("MP_ACCESS_TOKEN", "")
	v.SetDefault("MP_API_URL", "")
	v.SetDefault("MP_CURRENCY", "ARS")
	v.SetDefault("MP_TIMEOUT", "10s")
	v.SetDefault("MP_MAX_RETRIES", 3)
	v.SetDefault("PUBLIC_BASE_URL", "http://localhost:8080")

	v.SetDefault("VENUE_CAPACITY", catalog.DefaultCapacity)
	v.SetDefault("VENUE_TIMEZONE", "America/Argentina/Buenos_Aires")
	v.SetDefault("VENUE_SCHEDULE", "")
	v.SetDefault("VENUE_PRICING", "")

	v.SetDefault("SWEEPER_INTERVAL", "10m")
	v.SetDefault("PENDING_TTL", "24h")
	v.SetDefault("CRON_SECRET", "")
}

func fromViper(v *viper.Viper) (*ServiceConfig, error) {
	cfg := &ServiceConfig{
		Port:   v.GetString("SERVICE_PORT"),
		AppEnv: v.GetString("APP_ENV"),
		DB: database.PostgresConfig{
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetInt("DB_PORT"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			DBName:   v.GetString("DB_NAME"),
			SSLMode:  v.GetString("DB_SSLMODE"),
		},
		JWT: JWTConfig{
			Secret:    v.GetString("JWT_SECRET"),
			AccessTTL: v.GetDuration("JWT_ACCESS_TTL"),
		},
		Kafka: KafkaConfig{
			Brokers: splitList(v.GetString("KAFKA_BROKERS")),
			GroupID: v.GetString("KAFKA_GROUP_ID"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
			LockTTL:  v.GetDuration("REDIS_LOCK_TTL"),
		},
		Gateway: GatewayConfig{
			AccessToken: v.GetString("MP_ACCESS_TOKEN"),
			BaseURL:     v.GetString("MP_API_URL"),
			Currency:    v.GetString("MP_CURRENCY"),
			Timeout:     v.GetDuration("MP_TIMEOUT"),
			MaxRetries:  v.GetUint64("MP_MAX_RETRIES"),
		},
		Venue: VenueConfig{
			Capacity: v.GetInt("VENUE_CAPACITY"),
			TimeZone: v.GetString("VENUE_TIMEZONE"),
		},
		Sweeper: SweeperConfig{
			Interval:   v.GetDuration("SWEEPER_INTERVAL"),
			PendingTTL: v.GetDuration("PENDING_TTL"),
		},
		CronSecret: v.GetString("CRON_SECRET"),
	}

	if cfg.JWT.Secret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	base := strings.TrimRight(strings.TrimSpace(v.GetString("PUBLIC_BASE_URL")), "/")
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		return nil, fmt.Errorf("PUBLIC_BASE_URL %q must be an http(s) URL", base)
	}
	cfg.Gateway.NotificationURL = base + "/api/v1/payments/webhook"
	cfg.Gateway.ReturnURL = base + "/reservations"

	if raw := strings.TrimSpace(v.GetString("VENUE_SCHEDULE")); raw != "" {
		if err := json.Unmarshal([]byte(raw), &cfg.Venue.Schedule); err != nil {
			return nil, fmt.Errorf("parse VENUE_SCHEDULE: %w", err)
		}
	}
	if raw := strings.TrimSpace(v.GetString("VENUE_PRICING")); raw != "" {
		if err := json.Unmarshal([]byte(raw), &cfg.Venue.Pricing); err != nil {
			return nil, fmt.Errorf("parse VENUE_PRICING: %w", err)
		}
	}

	if cfg.Sweeper.PendingTTL <= 0 {
		return nil, errors.New("PENDING_TTL must be positive")
	}

	return cfg, nil
}

// Settings converts the venue configuration into the immutable snapshot the
// domain works with.
func (c *ServiceConfig) Settings() (catalog.Settings, error) {
	loc, err := time.LoadLocation(c.Venue.TimeZone)
	if err != nil {
		return catalog.Settings{}, fmt.Errorf("venue time zone: %w", err)
	}
	sched, err := schedule.FromConfig(c.Venue.Schedule)
	if err != nil {
		return catalog.Settings{}, fmt.Errorf("venue schedule: %w", err)
	}
	for id, price := range c.Venue.Pricing {
		if _, ok := catalog.ExperienceByID(id); !ok {
			return catalog.Settings{}, fmt.Errorf("venue pricing: unknown experience %q", id)
		}
		if price < 0 {
			return catalog.Settings{}, fmt.Errorf("venue pricing: negative price for %q", id)
		}
	}
	return catalog.NewSettings(c.Venue.Capacity, loc, sched, c.Venue.Pricing), nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
