package goMormot

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Config is the full client configuration.
//
// Config values are read once by [Builder.Build] and then treated as
// immutable; the client keeps its own copy.
type Config struct {
	Server    ServerConfig `yaml:"server" json:"server"`
	RootModel string       `yaml:"root_model" json:"root_model" env:"MORMOT_ROOT_MODEL"`
	Salt      string       `yaml:"salt" json:"salt" env:"MORMOT_SALT"`
	// Latin1Digest hashes one byte per code point instead of UTF-8.
	Latin1Digest bool            `yaml:"latin1_digest" json:"latin1_digest" env:"MORMOT_LATIN1_DIGEST"`
	Transport    TransportConfig `yaml:"transport" json:"transport"`
	Session      SessionConfig   `yaml:"session" json:"session"`
	Audit        AuditConfig     `yaml:"audit" json:"audit"`
	Metrics      MetricsConfig   `yaml:"metrics" json:"metrics"`
	Logging      LoggingConfig   `yaml:"logging" json:"logging"`
}

/*
====================================
SERVER CONFIG
====================================
*/

// ServerConfig locates the mORMot server.
type ServerConfig struct {
	Host string `yaml:"host" json:"host" env:"MORMOT_HOST"`
	Port int    `yaml:"port" json:"port" env:"MORMOT_PORT"`
	SSL  bool   `yaml:"ssl" json:"ssl" env:"MORMOT_SSL"`
}

/*
====================================
TRANSPORT CONFIG
====================================
*/

// TransportConfig tunes the HTTP transport built when none is injected.
type TransportConfig struct {
	Timeout      time.Duration `yaml:"timeout" json:"timeout" env:"MORMOT_TIMEOUT"`
	UserAgent    string        `yaml:"user_agent" json:"user_agent" env:"MORMOT_USER_AGENT"`
	MaxBodyBytes int64         `yaml:"max_body_bytes" json:"max_body_bytes" env:"MORMOT_MAX_BODY_BYTES"`
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig controls Redis persistence of the established session.
//
// When Persist is true a successful login is saved under Key and Logout
// removes it; [Client.Resume] restores it in another process.
type SessionConfig struct {
	Persist           bool          `yaml:"persist" json:"persist" env:"MORMOT_SESSION_PERSIST"`
	RedisAddr         string        `yaml:"redis_addr" json:"redis_addr" env:"MORMOT_REDIS_ADDR"`
	RedisPrefix       string        `yaml:"redis_prefix" json:"redis_prefix" env:"MORMOT_REDIS_PREFIX"`
	Key               string        `yaml:"key" json:"key" env:"MORMOT_SESSION_KEY"`
	TTL               time.Duration `yaml:"ttl" json:"ttl" env:"MORMOT_SESSION_TTL"`
	SlidingExpiration bool          `yaml:"sliding_expiration" json:"sliding_expiration" env:"MORMOT_SESSION_SLIDING"`
}

/*
====================================
AUDIT CONFIG
====================================
*/

// AuditConfig controls asynchronous audit event dispatch.
type AuditConfig struct {
	Enabled    bool `yaml:"enabled" json:"enabled" env:"MORMOT_AUDIT_ENABLED"`
	BufferSize int  `yaml:"buffer_size" json:"buffer_size" env:"MORMOT_AUDIT_BUFFER"`
	DropIfFull bool `yaml:"drop_if_full" json:"drop_if_full" env:"MORMOT_AUDIT_DROP_IF_FULL"`
}

/*
====================================
METRICS CONFIG
====================================
*/

// MetricsConfig controls in-process counters and latency histograms.
type MetricsConfig struct {
	Enabled                 bool `yaml:"enabled" json:"enabled" env:"MORMOT_METRICS_ENABLED"`
	EnableLatencyHistograms bool `yaml:"latency_histograms" json:"latency_histograms" env:"MORMOT_METRICS_LATENCY"`
}

/*
====================================
LOGGING CONFIG
====================================
*/

// LoggingConfig builds the default logrus logger.
type LoggingConfig struct {
	Level string `yaml:"level" json:"level" env:"MORMOT_LOG_LEVEL"`
	JSON  bool   `yaml:"json" json:"json" env:"MORMOT_LOG_JSON"`
}

// DefaultConfig returns the defaults: localhost:8888, root model "root",
// salt "salt", 30s timeout, audit and metrics disabled.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Host: "localhost",
			Port: 8888,
		},
		RootModel: "root",
		Salt:      "salt",
		Transport: TransportConfig{
			Timeout:      30 * time.Second,
			UserAgent:    "goMormot",
			MaxBodyBytes: 16 << 20,
		},
		Session: SessionConfig{
			RedisPrefix: "mormot",
			Key:         "default",
			TTL:         12 * time.Hour,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

func cloneConfig(cfg Config) Config {
	return cfg
}

// BaseURL returns "http(s)://host:port/".
func (c Config) BaseURL() string {
	scheme := "http"
	if c.Server.SSL {
		scheme = "https"
	}
	return scheme + "://" + c.Server.Host + ":" + strconv.Itoa(c.Server.Port) + "/"
}

// RootURL returns BaseURL followed by the root model and a slash.
func (c Config) RootURL() string {
	return c.BaseURL() + c.RootModel + "/"
}

// Validate checks c for values the client cannot work with.
func (c *Config) Validate() error {
	// Server
	if strings.TrimSpace(c.Server.Host) == "" {
		return errors.New("Server Host must not be empty")
	}
	if strings.ContainsAny(c.Server.Host, "/?#") {
		return errors.New("Server Host must be a bare host name")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return errors.New("Server Port must be in 1..65535")
	}

	// Protocol
	if c.RootModel == "" {
		return errors.New("RootModel must not be empty")
	}
	if strings.ContainsAny(c.RootModel, "?#&") || strings.HasPrefix(c.RootModel, "/") || strings.HasSuffix(c.RootModel, "/") {
		return errors.New("RootModel must not contain query characters or leading/trailing slashes")
	}

	// Transport
	if c.Transport.Timeout < 0 {
		return errors.New("Transport Timeout must be >= 0")
	}
	if c.Transport.MaxBodyBytes < 0 {
		return errors.New("Transport MaxBodyBytes must be >= 0")
	}

	// Session
	if c.Session.Persist {
		if c.Session.Key == "" {
			return errors.New("Session Key must not be empty when Persist is true")
		}
		if c.Session.TTL <= 0 {
			return errors.New("Session TTL must be > 0 when Persist is true")
		}
		if c.Session.RedisPrefix == "" {
			return errors.New("Session RedisPrefix must not be empty when Persist is true")
		}
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when Audit is enabled")
	}

	// Metrics
	if c.Metrics.EnableLatencyHistograms && !c.Metrics.Enabled {
		return errors.New("Metrics EnableLatencyHistograms requires Metrics Enabled")
	}

	// Logging
	if c.Logging.Level != "" {
		if _, err := logrus.ParseLevel(c.Logging.Level); err != nil {
			return fmt.Errorf("Logging Level: %w", err)
		}
	}

	return nil
}

// LoadConfig reads a configuration file over the defaults and then applies
// MORMOT_* environment overrides.
//
// Files ending in .env are loaded into the process environment with
// godotenv first. YAML, JSON and TOML files are parsed by extension. An
// empty path reads only the environment.
func LoadConfig(path string) (Config, error) {
	cfg := defaultConfig()

	switch {
	case path == "":
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return Config{}, fmt.Errorf("read environment: %w", err)
		}
	case strings.EqualFold(filepath.Ext(path), ".env"):
		if _, err := os.Stat(path); err != nil {
			return Config{}, fmt.Errorf("config file: %w", err)
		}
		if err := godotenv.Load(path); err != nil {
			return Config{}, fmt.Errorf("load %s: %w", path, err)
		}
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return Config{}, fmt.Errorf("read environment: %w", err)
		}
	default:
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("read %s: %w", path, err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ConfigUsage writes the supported environment variables to w.
func ConfigUsage(w io.Writer) error {
	cfg := defaultConfig()
	text, err := cleanenv.GetDescription(&cfg, nil)
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, text+"\n")
	return err
}

func newLogger(cfg LoggingConfig) logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	if level, err := logrus.ParseLevel(cfg.Level); err == nil {
		l.SetLevel(level)
	}
	if cfg.JSON {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return l.WithField("component", "gomormot")
}
