package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/spf13/viper"

	"sitepresence/internal/bootstrap/logging"
	"sitepresence/internal/errs"
)

type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Log      LogConfig      `mapstructure:"log"`
	Database DatabaseConfig `mapstructure:"database"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Geocode  GeocodeConfig  `mapstructure:"geocode"`
	Capture  CaptureConfig  `mapstructure:"capture"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

type AppConfig struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
	// Timezone decides which calendar day a capture belongs to.
	Timezone string `mapstructure:"timezone"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type CacheConfig struct {
	Driver     string        `mapstructure:"driver"`
	DefaultTTL time.Duration `mapstructure:"default_ttl"`
	Redis      RedisConfig   `mapstructure:"redis"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type GeocodeConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	BaseURL           string        `mapstructure:"base_url"`
	UserAgent         string        `mapstructure:"user_agent"`
	Language          string        `mapstructure:"language"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	CacheTTL          time.Duration `mapstructure:"cache_ttl"`
}

type CaptureConfig struct {
	LocationTimeout   time.Duration `mapstructure:"location_timeout"`
	AwaitLocation     time.Duration `mapstructure:"await_location"`
	ClockSkew         time.Duration `mapstructure:"clock_skew"`
	PhotoMaxDimension int           `mapstructure:"photo_max_dimension"`
	JPEGQuality       int           `mapstructure:"jpeg_quality"`
}

type MetricsConfig struct {
	Namespace string `mapstructure:"namespace"`
}

// Location resolves App.Timezone; an empty value means the host zone.
func (c Config) Location() (*time.Location, error) {
	name := strings.TrimSpace(c.App.Timezone)
	if name == "" || strings.EqualFold(name, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, errs.Wrapf(err, "load timezone %q", name)
	}
	return loc, nil
}

func Load(ctx context.Context, configFile string) (Config, error) {
	if ctx == nil {
		return Config{}, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return Config{}, errs.Wrap(err, "check context")
	}

	logCtx := logging.WithComponent(ctx, "bootstrap.config")

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("SP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist) {
			logging.Warn(logCtx, "config file not found, fallback to defaults and env", slog.String("config_file", configFile))
		} else {
			return Config{}, errs.Wrap(err, "read config")
		}
	} else {
		logging.Info(logCtx, "using config file", slog.String("path", v.ConfigFileUsed()))
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errs.Wrap(err, "unmarshal config")
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	logging.Info(
		logCtx,
		"config loaded",
		slog.String("app", cfg.App.Name),
		slog.String("env", cfg.App.Env),
		slog.String("database_driver", cfg.Database.Driver),
		slog.String("cache_driver", cfg.Cache.Driver),
		slog.Bool("geocode_enabled", cfg.Geocode.Enabled),
	)

	return cfg, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Database.DSN) == "" {
		return errors.New("database.dsn is required")
	}
	if c.Capture.LocationTimeout <= 0 {
		return errors.New("capture.location_timeout must be positive")
	}
	if c.Capture.ClockSkew < 0 {
		return errors.New("capture.clock_skew must not be negative")
	}
	if q := c.Capture.JPEGQuality; q < 1 || q > 100 {
		return fmt.Errorf("capture.jpeg_quality must be within 1..100, got %d", q)
	}
	if c.Geocode.Enabled && strings.TrimSpace(c.Geocode.BaseURL) == "" {
		return errors.New("geocode.base_url is required when geocode is enabled")
	}
	switch strings.ToLower(c.Cache.Driver) {
	case "sqlite", "memory", "redis", "none":
	default:
		return fmt.Errorf("unsupported cache driver %q", c.Cache.Driver)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "sitepresence")
	v.SetDefault("app.env", "local")
	v.SetDefault("app.timezone", "Local")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", ".sitepresence/attendance.sqlite")

	v.SetDefault("cache.driver", "sqlite")
	v.SetDefault("cache.default_ttl", 24*time.Hour)
	v.SetDefault("cache.redis.addr", "127.0.0.1:6379")

	v.SetDefault("geocode.enabled", true)
	v.SetDefault("geocode.base_url", "https://nominatim.openstreetmap.org")
	v.SetDefault("geocode.user_agent", "sitepresence/1.0")
	v.SetDefault("geocode.language", "en")
	v.SetDefault("geocode.timeout", 8*time.Second)
	v.SetDefault("geocode.requests_per_second", 1.0)

	v.SetDefault("capture.location_timeout", 15*time.Second)
	v.SetDefault("capture.await_location", 20*time.Second)
	v.SetDefault("capture.clock_skew", 2*time.Minute)
	v.SetDefault("capture.photo_max_dimension", 1280)
	v.SetDefault("capture.jpeg_quality", 80)

	v.SetDefault("metrics.namespace", "sitepresence")
}
