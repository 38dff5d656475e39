package config

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v9"
)

type Config struct {
	DatabaseURL     string   `env:"DATABASE_URL" envDefault:"sqlite://./ride_db.db"`
	DBMaxOpenConns  int      `env:"DB_MAX_OPEN_CONNS" envDefault:"10"`
	DBMaxIdleConns  int      `env:"DB_MAX_IDLE_CONNS" envDefault:"5"`
	MediaDir        string   `env:"MEDIA_DIR" envDefault:"task_assets"`
	MaxUploadMB     int64    `env:"MAX_UPLOAD_MB" envDefault:"64"`
	Port            string   `env:"PORT" envDefault:"8080"`
	GinMode         string   `env:"GIN_MODE" envDefault:"debug"`
	SessionSecret   string   `env:"SESSION_SECRET" envDefault:"default-secret-key-change-me"`
	RedisHost       string   `env:"REDIS_HOST"`
	RedisPort       string   `env:"REDIS_PORT" envDefault:"6379"`
	CORSOrigins     []string `env:"CORS_ORIGINS" envSeparator:","`
	LogLevel        string   `env:"LOG_LEVEL" envDefault:"info"`
	LogFile         string   `env:"LOG_FILE"`
	BootstrapAdmin  string   `env:"BOOTSTRAP_ADMIN_USERNAME" envDefault:"admin"`
	BootstrapPasswd string   `env:"BOOTSTRAP_ADMIN_PASSWORD" envDefault:"admin789"`
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	switch {
	case strings.HasPrefix(c.DatabaseURL, "sqlite://"),
		strings.HasPrefix(c.DatabaseURL, "postgres://"),
		strings.HasPrefix(c.DatabaseURL, "postgresql://"),
		strings.HasPrefix(c.DatabaseURL, "mysql://"):
	default:
		return fmt.Errorf("unsupported DATABASE_URL scheme: %q", c.DatabaseURL)
	}
	if strings.TrimSpace(c.MediaDir) == "" {
		return fmt.Errorf("MEDIA_DIR is required")
	}
	if c.MaxUploadMB <= 0 {
		return fmt.Errorf("MAX_UPLOAD_MB must be positive")
	}
	if c.BootstrapAdmin == "" || c.BootstrapPasswd == "" {
		return fmt.Errorf("bootstrap admin credentials cannot be empty")
	}
	return nil
}

// IsProduction reports whether gin runs in release mode.
func (c *Config) IsProduction() bool {
	return c.GinMode == "release"
}

// SQLitePath returns the database file path for sqlite URLs and "" otherwise.
func (c *Config) SQLitePath() string {
	if !strings.HasPrefix(c.DatabaseURL, "sqlite://") {
		return ""
	}
	return strings.TrimPrefix(c.DatabaseURL, "sqlite://")
}
