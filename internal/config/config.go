package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type AppConfig struct {
	Name     string `yaml:"name"`
	Port     string `yaml:"port"`
	Env      string `yaml:"env"`
	LogLevel string `yaml:"log_level"`
}

type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	DBName          string        `yaml:"dbname"`
	SSLMode         string        `yaml:"sslmode"`
	MaxConns        int32         `yaml:"max_conns"`
	MinConns        int32         `yaml:"min_conns"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"`
}

type SQLiteConfig struct {
	Path string `yaml:"path"`
}

type StorageConfig struct {
	Driver   string         `yaml:"driver"`
	Postgres PostgresConfig `yaml:"postgres"`
	SQLite   SQLiteConfig   `yaml:"sqlite"`
}

type HTTPConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type OrderConfig struct {
	StrictTransitions bool `yaml:"strict_transitions"`
}

type ReportConfig struct {
	LowStockThreshold int `yaml:"low_stock_threshold"`
}

// AdminConfig describes the account created at startup when the email is set
// and no user with that email exists yet.
type AdminConfig struct {
	Name     string `yaml:"name"`
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
}

type SeedConfig struct {
	DemoData bool `yaml:"demo_data"`
}

type Config struct {
	App     AppConfig     `yaml:"app"`
	Storage StorageConfig `yaml:"storage"`
	HTTP    HTTPConfig    `yaml:"http"`
	Order   OrderConfig   `yaml:"order"`
	Report  ReportConfig  `yaml:"report"`
	Admin   AdminConfig   `yaml:"admin"`
	Seed    SeedConfig    `yaml:"seed"`
}

// NewConfig builds the configuration from defaults, an optional YAML file
// (CONFIG_PATH), an optional .env file and finally the process environment.
func NewConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := defaults()

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if err := loadYAML(path, cfg); err != nil {
			return nil, err
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func defaults() *Config {
	return &Config{
		App: AppConfig{
			Name:     "inventory-service",
			Port:     "8080",
			Env:      "development",
			LogLevel: "info",
		},
		Storage: StorageConfig{
			Driver: DriverPostgres,
			Postgres: PostgresConfig{
				SSLMode:         "disable",
				MaxConns:        10,
				MinConns:        2,
				MaxConnLifetime: 30 * time.Minute,
			},
			SQLite: SQLiteConfig{Path: "inventory.db"},
		},
		HTTP: HTTPConfig{
			AllowedOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Report: ReportConfig{LowStockThreshold: 10},
		Admin:  AdminConfig{Name: "Administrator"},
	}
}

func loadYAML(path string, cfg *Config) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	if err := yaml.NewDecoder(file).Decode(cfg); err != nil {
		return fmt.Errorf("invalid config file %s: %w", path, err)
	}

	return nil
}

func applyEnv(cfg *Config) error {
	setString(&cfg.App.Port, "APP_PORT")
	setString(&cfg.App.Env, "APP_ENV")
	setString(&cfg.App.LogLevel, "LOG_LEVEL")

	setString(&cfg.Storage.Driver, "DB_DRIVER")
	setString(&cfg.Storage.Postgres.Host, "DB_HOST")
	setString(&cfg.Storage.Postgres.Port, "DB_PORT")
	setString(&cfg.Storage.Postgres.User, "DB_USER")
	setString(&cfg.Storage.Postgres.Password, "DB_PASSWORD")
	setString(&cfg.Storage.Postgres.DBName, "DB_NAME")
	setString(&cfg.Storage.Postgres.SSLMode, "DB_SSLMODE")
	setString(&cfg.Storage.SQLite.Path, "SQLITE_PATH")

	setString(&cfg.Admin.Name, "ADMIN_NAME")
	setString(&cfg.Admin.Email, "ADMIN_EMAIL")
	setString(&cfg.Admin.Password, "ADMIN_PASSWORD")

	if v := os.Getenv("DB_MAX_CONNS"); v != "" {
		n, err := strconv.ParseInt(v, 10, 32)
		if err != nil {
			return fmt.Errorf("invalid DB_MAX_CONNS %q: %w", v, err)
		}
		cfg.Storage.Postgres.MaxConns = int32(n)
	}
	if v := os.Getenv("DB_MIN_CONNS"); v != "" {
		n, err := strconv.ParseInt(v, 10, 32)
		if err != nil {
			return fmt.Errorf("invalid DB_MIN_CONNS %q: %w", v, err)
		}
		cfg.Storage.Postgres.MinConns = int32(n)
	}
	if v := os.Getenv("DB_MAX_CONN_LIFETIME"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid DB_MAX_CONN_LIFETIME %q: %w", v, err)
		}
		cfg.Storage.Postgres.MaxConnLifetime = d
	}

	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		origins := make([]string, 0)
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		cfg.HTTP.AllowedOrigins = origins
	}

	if v := os.Getenv("ORDER_STRICT_TRANSITIONS"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid ORDER_STRICT_TRANSITIONS %q: %w", v, err)
		}
		cfg.Order.StrictTransitions = b
	}

	if v := os.Getenv("SEED_DEMO_DATA"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid SEED_DEMO_DATA %q: %w", v, err)
		}
		cfg.Seed.DemoData = b
	}

	if v := os.Getenv("REPORT_LOW_STOCK_THRESHOLD"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid REPORT_LOW_STOCK_THRESHOLD %q: %w", v, err)
		}
		cfg.Report.LowStockThreshold = n
	}

	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// Validate reports the first missing or inconsistent setting.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case DriverPostgres:
		pg := c.Storage.Postgres
		required := []struct {
			key, value string
		}{
			{"DB_HOST", pg.Host},
			{"DB_PORT", pg.Port},
			{"DB_USER", pg.User},
			{"DB_PASSWORD", pg.Password},
			{"DB_NAME", pg.DBName},
		}
		for _, r := range required {
			if r.value == "" {
				return fmt.Errorf("%s is required", r.key)
			}
		}
		if pg.MinConns > pg.MaxConns {
			return fmt.Errorf("DB_MIN_CONNS (%d) must not exceed DB_MAX_CONNS (%d)", pg.MinConns, pg.MaxConns)
		}
	case DriverSQLite:
		if c.Storage.SQLite.Path == "" {
			return errors.New("SQLITE_PATH is required")
		}
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.Storage.Driver)
	}

	if c.App.Port == "" {
		return errors.New("APP_PORT is required")
	}
	if c.Report.LowStockThreshold < 0 {
		return errors.New("REPORT_LOW_STOCK_THRESHOLD must not be negative")
	}
	if c.Admin.Email != "" && len(c.Admin.Password) < 8 {
		return errors.New("ADMIN_PASSWORD must be at least 8 characters when ADMIN_EMAIL is set")
	}

	return nil
}
