package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	DriverFile   = "file"
	DriverSQLite = "sqlite"
	DriverMemory = "memory"

	ExporterNone   = "none"
	ExporterStdout = "stdout"
	ExporterOTLP   = "otlp"
)

type Config struct {
	Addr           string   `toml:"addr"`
	LogLevel       string   `toml:"log_level"`
	RequestTimeout Duration `toml:"request_timeout"`
	CORSOrigins    []string `toml:"cors_allowed_origins"`

	Store     StoreConfig     `toml:"store"`
	RateLimit RateLimitConfig `toml:"rate_limit"`
	Tracing   TracingConfig   `toml:"tracing"`
}

type StoreConfig struct {
	Driver     string `toml:"driver"`
	DataFile   string `toml:"data_file"`
	SQLitePath string `toml:"sqlite_path"`
	// SerializeWrites guards each read-modify-write with a process-local
	// lock. Off by default: concurrent writers race and the last save wins.
	SerializeWrites bool `toml:"serialize_writes"`
}

type RateLimitConfig struct {
	RPS   float64 `toml:"rps"`
	Burst int     `toml:"burst"`
}

type TracingConfig struct {
	Exporter     string `toml:"exporter"`
	OTLPEndpoint string `toml:"otlp_endpoint"`
	ServiceName  string `toml:"service_name"`
}

// Duration decodes TOML strings such as "15s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func Default() Config {
	return Config{
		Addr:           ":8080",
		LogLevel:       "info",
		RequestTimeout: Duration{15 * time.Second},
		CORSOrigins:    []string{"*"},
		Store: StoreConfig{
			Driver:     DriverFile,
			DataFile:   "data/tasks.json",
			SQLitePath: "data/tasks.db",
		},
		Tracing: TracingConfig{
			Exporter:    ExporterNone,
			ServiceName: "tasktracker",
		},
	}
}

// Load applies, in order: defaults, the TOML file at path (skipped when path
// is empty), and environment overrides. The result is validated.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}

	str("ADDR", &cfg.Addr)
	str("LOG_LEVEL", &cfg.LogLevel)
	str("STORE_DRIVER", &cfg.Store.Driver)
	str("DATA_FILE", &cfg.Store.DataFile)
	str("SQLITE_PATH", &cfg.Store.SQLitePath)
	str("TRACING_EXPORTER", &cfg.Tracing.Exporter)
	str("OTLP_ENDPOINT", &cfg.Tracing.OTLPEndpoint)

	if v, ok := lookup("CORS_ALLOWED_ORIGINS"); ok && strings.TrimSpace(v) != "" {
		var origins []string
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		cfg.CORSOrigins = origins
	}

	if v, ok := lookup("TASKS_SERIALIZE_WRITES"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("TASKS_SERIALIZE_WRITES: %w", err)
		}
		cfg.Store.SerializeWrites = b
	}
	if v, ok := lookup("RATE_LIMIT_RPS"); ok && v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("RATE_LIMIT_RPS: %w", err)
		}
		cfg.RateLimit.RPS = f
	}
	if v, ok := lookup("RATE_LIMIT_BURST"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("RATE_LIMIT_BURST: %w", err)
		}
		cfg.RateLimit.Burst = n
	}
	if v, ok := lookup("REQUEST_TIMEOUT"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("REQUEST_TIMEOUT: %w", err)
		}
		cfg.RequestTimeout = Duration{d}
	}
	return nil
}

func (c Config) Validate() error {
	var errs []error

	switch c.Store.Driver {
	case DriverFile:
		if c.Store.DataFile == "" {
			errs = append(errs, errors.New("store.data_file is required for the file driver"))
		}
	case DriverSQLite:
		if c.Store.SQLitePath == "" {
			errs = append(errs, errors.New("store.sqlite_path is required for the sqlite driver"))
		}
	case DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown store.driver %q", c.Store.Driver))
	}

	switch c.Tracing.Exporter {
	case ExporterNone, ExporterStdout, ExporterOTLP:
	default:
		errs = append(errs, fmt.Errorf("unknown tracing.exporter %q", c.Tracing.Exporter))
	}

	if c.RequestTimeout.Duration <= 0 {
		errs = append(errs, errors.New("request_timeout must be positive"))
	}
	if c.RateLimit.RPS < 0 {
		errs = append(errs, errors.New("rate_limit.rps must not be negative"))
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// SlogLevel maps LogLevel onto slog; unknown values were rejected by Validate.
func (c Config) SlogLevel() slog.Level {
	l, _ := parseLevel(c.LogLevel)
	return l
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log_level %q", s)
	}
}
