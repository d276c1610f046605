package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every variable name, e.g. TLDR_PORT.
const EnvPrefix = "TLDR"

// FileEnv names the variable holding an optional YAML config file path.
const FileEnv = "TLDR_CONFIG"

// Config holds all configuration for the tldr service
type Config struct {
	// Server configuration
	Host          string `envconfig:"HOST" default:"0.0.0.0"`
	Port          string `envconfig:"PORT" default:"8000"`
	Workers       int    `envconfig:"WORKERS" default:"4"`         // Worker goroutines draining the queue
	QueueCapacity int    `envconfig:"QUEUE_CAPACITY" default:"100"` // Accepted connections awaiting a worker

	// Per-connection I/O timeouts
	ReadTimeout    time.Duration `envconfig:"READ_TIMEOUT" default:"15s"`
	WriteTimeout   time.Duration `envconfig:"WRITE_TIMEOUT" default:"15s"`
	ClassifyWindow time.Duration `envconfig:"CLASSIFY_WINDOW" default:"25ms"` // How long the acceptor peeks before queueing

	// Request framing limits
	MaxHeaderBytes int   `envconfig:"MAX_HEADER_BYTES" default:"16384"`
	MaxHeaderCount int   `envconfig:"MAX_HEADER_COUNT" default:"100"`
	MaxBodyBytes   int64 `envconfig:"MAX_BODY_BYTES" default:"10485760"` // 10 MiB

	// Captions provider
	CaptionsBaseURL string        `envconfig:"CAPTIONS_BASE_URL" default:"https://www.youtube.com"`
	CaptionsTimeout time.Duration `envconfig:"CAPTIONS_TIMEOUT" default:"15s"`

	// Summarization provider (empty base URL uses the SDK default endpoint)
	SummarizeBaseURL string        `envconfig:"SUMMARIZE_BASE_URL" default:""`
	SummarizeTimeout time.Duration `envconfig:"SUMMARIZE_TIMEOUT" default:"120s"`

	// Transcript merging
	DefaultLanguage   string  `envconfig:"DEFAULT_LANGUAGE" default:"en"`
	ParagraphPause    float64 `envconfig:"PARAGRAPH_PAUSE" default:"2.0"` // seconds
	RemoveAnnotations bool    `envconfig:"REMOVE_ANNOTATIONS" default:"true"`

	// Static assets; empty serves the embedded copies
	StaticDir string `envconfig:"STATIC_DIR" default:""`

	// Resilience configuration
	CircuitBreakerMaxFailures  int           `envconfig:"CIRCUIT_BREAKER_MAX_FAILURES" default:"5"`
	CircuitBreakerResetTimeout time.Duration `envconfig:"CIRCUIT_BREAKER_RESET_TIMEOUT" default:"30s"`

	// Observability configuration
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`   // debug, info, warn, error
	LogFormat      string `envconfig:"LOG_FORMAT" default:"auto"`  // auto, json, console
	MetricsEnabled bool   `envconfig:"METRICS_ENABLED" default:"true"`
	AdminAddr      string `envconfig:"ADMIN_ADDR" default:":9090"` // health, readiness and metrics listener
}

// Load reads configuration from environment variables.
// It first loads a .env file if present, then the YAML file named by
// TLDR_CONFIG, then the process environment. Explicit environment values
// always win over the file.
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	if path := os.Getenv(FileEnv); path != "" {
		if err := ApplyFile(path); err != nil {
			return nil, err
		}
	}

	return LoadFromEnv()
}

// LoadFromEnv loads configuration directly from environment variables
// without attempting to load .env or a config file (useful for containers)
func LoadFromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// ApplyFile reads a flat YAML document and exports each top-level key as
// TLDR_<KEY> unless that variable is already set.
func ApplyFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	var values map[string]interface{}
	if err := yaml.Unmarshal(raw, &values); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	for key, value := range values {
		name := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, "-", "_"))
		if _, set := os.LookupEnv(name); set {
			continue
		}
		if value == nil {
			continue
		}
		switch v := value.(type) {
		case map[string]interface{}, []interface{}:
			return fmt.Errorf("config file key %q: nested values are not supported", key)
		default:
			if err := os.Setenv(name, fmt.Sprint(v)); err != nil {
				return fmt.Errorf("export %s: %w", name, err)
			}
		}
	}

	return nil
}

// Validate checks value ranges that envconfig cannot express.
func (c *Config) Validate() error {
	if c.Workers < 1 {
		return fmt.Errorf("TLDR_WORKERS must be at least 1, got %d", c.Workers)
	}
	if c.QueueCapacity < 1 {
		return fmt.Errorf("TLDR_QUEUE_CAPACITY must be at least 1, got %d", c.QueueCapacity)
	}
	if c.MaxHeaderBytes <= 0 || c.MaxHeaderCount <= 0 || c.MaxBodyBytes <= 0 {
		return fmt.Errorf("framing limits must be positive")
	}
	if c.ReadTimeout <= 0 || c.WriteTimeout <= 0 {
		return fmt.Errorf("read and write timeouts must be positive")
	}
	if c.ParagraphPause < 0 {
		return fmt.Errorf("TLDR_PARAGRAPH_PAUSE must not be negative")
	}
	if _, err := language.Parse(c.DefaultLanguage); err != nil {
		return fmt.Errorf("TLDR_DEFAULT_LANGUAGE %q is not a valid language tag: %w", c.DefaultLanguage, err)
	}
	if _, err := strconv.Atoi(c.Port); err != nil {
		return fmt.Errorf("TLDR_PORT %q is not a number", c.Port)
	}
	return nil
}

// Addr returns the host:port the acceptor binds.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, c.Port)
}
