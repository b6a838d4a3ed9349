package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/namankalla/nishi/internal/domain"
	"github.com/namankalla/nishi/internal/infrastructure/logger"
	"github.com/spf13/viper"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Config struct {
	HTTPPort       string        `mapstructure:"HTTP_PORT"`
	GRPCPort       string        `mapstructure:"GRPC_PORT"`
	DBHost         string        `mapstructure:"DB_HOST"`
	DBPort         string        `mapstructure:"DB_PORT"`
	DBUser         string        `mapstructure:"DB_USER"`
	DBPassword     string        `mapstructure:"DB_PASSWORD"`
	DBName         string        `mapstructure:"DB_NAME"`
	RedisAddr      string        `mapstructure:"REDIS_ADDR"`
	AccessSecret   string        `mapstructure:"ACCESS_SECRET"`
	InternalAPIKey string        `mapstructure:"INTERNAL_API_KEY"`
	AllowedOrigins string        `mapstructure:"ALLOWED_ORIGINS"`
	StorageDriver  string        `mapstructure:"STORAGE_DRIVER"`
	Timezone       string        `mapstructure:"TIMEZONE"`
	CacheTTL       time.Duration `mapstructure:"CACHE_TTL"`

	Log    logger.Config `mapstructure:",squash"`
	Policy domain.Policy `mapstructure:",squash"`
}

var keys = []string{
	"HTTP_PORT", "GRPC_PORT",
	"DB_HOST", "DB_PORT", "DB_USER", "DB_PASSWORD", "DB_NAME",
	"REDIS_ADDR", "ACCESS_SECRET", "INTERNAL_API_KEY", "ALLOWED_ORIGINS",
	"STORAGE_DRIVER", "TIMEZONE", "CACHE_TTL",
	"LOG_LEVEL", "LOG_DEV",
	"GARDEN_CYCLE_DAYS", "GARDEN_DEATH_THRESHOLD_DAYS", "GARDEN_DAILY_WATER_CAP",
	"GARDEN_GRACE_DAYS", "GARDEN_POINTS_PER_MISSED_DAY",
}

// LoadConfig reads app.env from path when present and lets the environment override it.
func LoadConfig(path string) (config Config, err error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("app")
	v.SetConfigType("env")

	policy := domain.DefaultPolicy()
	v.SetDefault("HTTP_PORT", ":8080")
	v.SetDefault("GRPC_PORT", ":50051")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("STORAGE_DRIVER", DriverPostgres)
	v.SetDefault("TIMEZONE", "Local")
	v.SetDefault("CACHE_TTL", "10m")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_DEV", false)
	v.SetDefault("GARDEN_CYCLE_DAYS", policy.CycleDays)
	v.SetDefault("GARDEN_DEATH_THRESHOLD_DAYS", policy.DeathThresholdDays)
	v.SetDefault("GARDEN_DAILY_WATER_CAP", policy.DailyWaterCap)
	v.SetDefault("GARDEN_GRACE_DAYS", policy.GraceDays)
	v.SetDefault("GARDEN_POINTS_PER_MISSED_DAY", policy.PointsPerMissedDay)

	v.AutomaticEnv()
	for _, k := range keys {
		// Without an explicit bind Unmarshal misses env-only keys.
		if err = v.BindEnv(k); err != nil {
			return
		}
	}

	if err = v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return
		}
		err = nil
	}

	if err = v.Unmarshal(&config); err != nil {
		return
	}
	err = config.validate()
	return
}

func (c Config) validate() error {
	switch c.StorageDriver {
	case DriverPostgres, DriverMemory:
	default:
		return fmt.Errorf("config: unknown STORAGE_DRIVER %q", c.StorageDriver)
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("config: TIMEZONE: %w", err)
	}
	return c.Policy.Validate()
}

// DSN is the postgres connection string.
func (c Config) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort)
}

// Location is where calendar days begin and end for every plant.
func (c Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

func (c Config) Origins() []string {
	var out []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
