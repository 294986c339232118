// Package config loads yojana's settings from an optional TOML file overlaid
// by YOJANA_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "YOJANA_"

// Config is the full process configuration.
type Config struct {
	Server  Server  `toml:"server"`
	Storage Storage `toml:"storage"`
	Blob    Blob    `toml:"blob"`
	Log     Log     `toml:"log"`
	Metrics Metrics `toml:"metrics"`
	Events  Events  `toml:"events"`
}

// Server holds the HTTP listener settings.
type Server struct {
	Addr            string   `toml:"addr"`
	ReadTimeout     Duration `toml:"read_timeout"`
	WriteTimeout    Duration `toml:"write_timeout"`
	ShutdownTimeout Duration `toml:"shutdown_timeout"`
}

// Storage selects the persistent store.
type Storage struct {
	Driver      string `toml:"driver"`
	SQLitePath  string `toml:"sqlite_path"`
	PostgresDSN string `toml:"postgres_dsn"`
}

// Blob selects where timesheet signatures live. Driver "none" disables them.
type Blob struct {
	Driver string `toml:"driver"`
	FSRoot string `toml:"fs_root"`
	S3     S3     `toml:"s3"`
}

// S3 configures the S3-compatible blob backend.
type S3 struct {
	Bucket          string `toml:"bucket"`
	Region          string `toml:"region"`
	Endpoint        string `toml:"endpoint"`
	PathStyle       bool   `toml:"path_style"`
	AccessKeyID     string `toml:"access_key_id"`
	SecretAccessKey string `toml:"secret_access_key"`
}

// Log configures the process logger.
type Log struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Metrics selects the metrics exporter: prometheus, expvar or none.
type Metrics struct {
	Exporter string `toml:"exporter"`
	Path     string `toml:"path"`
	Trace    bool   `toml:"trace"`
}

// Events configures the AMQP audit publisher. An empty URL disables it.
type Events struct {
	URL        string `toml:"url"`
	Exchange   string `toml:"exchange"`
	RoutingKey string `toml:"routing_key"`
}

// Duration decodes TOML strings such as "15s".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Server: Server{
			Addr:            ":8080",
			ReadTimeout:     Duration{15 * time.Second},
			WriteTimeout:    Duration{30 * time.Second},
			ShutdownTimeout: Duration{10 * time.Second},
		},
		Storage: Storage{Driver: "sqlite", SQLitePath: "yojana.db"},
		Blob:    Blob{Driver: "fs", FSRoot: "blobdata"},
		Log:     Log{Level: "info", Format: "text"},
		Metrics: Metrics{Exporter: "prometheus", Path: "/metrics"},
		Events:  Events{Exchange: "yojana.audit", RoutingKey: "audit"},
	}
}

// Load reads path (when non-empty and present) over the defaults, then applies
// environment overrides and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
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

// Validate rejects unknown drivers and exporters.
func (c Config) Validate() error {
	switch c.Storage.Driver {
	case "memory", "sqlite", "postgres":
	default:
		return fmt.Errorf("storage.driver: unknown driver %q", c.Storage.Driver)
	}
	if c.Storage.Driver == "postgres" && c.Storage.PostgresDSN == "" {
		return errors.New("storage.postgres_dsn: required for the postgres driver")
	}
	switch c.Blob.Driver {
	case "fs", "memory", "s3", "none":
	default:
		return fmt.Errorf("blob.driver: unknown driver %q", c.Blob.Driver)
	}
	if c.Blob.Driver == "s3" && c.Blob.S3.Bucket == "" {
		return errors.New("blob.s3.bucket: required for the s3 driver")
	}
	switch c.Metrics.Exporter {
	case "prometheus", "expvar", "none":
	default:
		return fmt.Errorf("metrics.exporter: unknown exporter %q", c.Metrics.Exporter)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("log.format: unknown format %q", c.Log.Format)
	}
	return nil
}

type lookupFunc func(string) (string, bool)

func applyEnv(cfg *Config, lookup lookupFunc) error {
	strs := map[string]*string{
		"SERVER_ADDR":               &cfg.Server.Addr,
		"STORAGE_DRIVER":            &cfg.Storage.Driver,
		"STORAGE_SQLITE_PATH":       &cfg.Storage.SQLitePath,
		"STORAGE_POSTGRES_DSN":      &cfg.Storage.PostgresDSN,
		"BLOB_DRIVER":               &cfg.Blob.Driver,
		"BLOB_FS_ROOT":              &cfg.Blob.FSRoot,
		"BLOB_S3_BUCKET":            &cfg.Blob.S3.Bucket,
		"BLOB_S3_REGION":            &cfg.Blob.S3.Region,
		"BLOB_S3_ENDPOINT":          &cfg.Blob.S3.Endpoint,
		"BLOB_S3_ACCESS_KEY_ID":     &cfg.Blob.S3.AccessKeyID,
		"BLOB_S3_SECRET_ACCESS_KEY": &cfg.Blob.S3.SecretAccessKey,
		"LOG_LEVEL":                 &cfg.Log.Level,
		"LOG_FORMAT":                &cfg.Log.Format,
		"METRICS_EXPORTER":          &cfg.Metrics.Exporter,
		"METRICS_PATH":              &cfg.Metrics.Path,
		"EVENTS_URL":                &cfg.Events.URL,
		"EVENTS_EXCHANGE":           &cfg.Events.Exchange,
		"EVENTS_ROUTING_KEY":        &cfg.Events.RoutingKey,
	}
	for key, dst := range strs {
		if v, ok := lookup(EnvPrefix + key); ok {
			*dst = v
		}
	}

	bools := map[string]*bool{
		"BLOB_S3_PATH_STYLE": &cfg.Blob.S3.PathStyle,
		"METRICS_TRACE":      &cfg.Metrics.Trace,
	}
	for key, dst := range bools {
		if v, ok := lookup(EnvPrefix + key); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
			}
			*dst = b
		}
	}

	durations := map[string]*Duration{
		"SERVER_READ_TIMEOUT":     &cfg.Server.ReadTimeout,
		"SERVER_WRITE_TIMEOUT":    &cfg.Server.WriteTimeout,
		"SERVER_SHUTDOWN_TIMEOUT": &cfg.Server.ShutdownTimeout,
	}
	for key, dst := range durations {
		if v, ok := lookup(EnvPrefix + key); ok {
			if err := dst.UnmarshalText([]byte(v)); err != nil {
				return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
			}
		}
	}
	return nil
}
