// Package config defines the gateway's startup configuration: a YAML file
// with environment overrides for the values a container platform injects.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for the gateway process.
type Config struct {
	// HTTP surface
	Server ServerConfig `yaml:"server" json:"server"`

	// Session pool limits
	Pool PoolConfig `yaml:"pool" json:"pool"`

	// Browser launch options
	Browser BrowserConfig `yaml:"browser" json:"browser"`

	// URL allow/deny policy
	URLPolicy URLPolicyConfig `yaml:"url_policy" json:"url_policy"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// ServerConfig configures the inbound HTTP listener.
type ServerConfig struct {
	Host string `yaml:"host" json:"host"`
	Port int    `yaml:"port" json:"port"`

	// ReadTimeout bounds reading one inbound request
	ReadTimeout time.Duration `yaml:"read_timeout" json:"read_timeout"`

	// ShutdownGrace bounds draining on SIGTERM before in-flight
	// sessions are force-terminated
	ShutdownGrace time.Duration `yaml:"shutdown_grace" json:"shutdown_grace"`
}

// PoolConfig bounds the browser session pool.
type PoolConfig struct {
	// MaxSessions caps concurrent browser processes
	MaxSessions int `yaml:"max_sessions" json:"max_sessions"`

	// IdleTimeout recycles browser processes idle longer than this
	IdleTimeout time.Duration `yaml:"idle_timeout" json:"idle_timeout"`

	// RequestTimeout is the default per-request deadline when the
	// caller supplies none
	RequestTimeout time.Duration `yaml:"request_timeout" json:"request_timeout"`

	// QueueCapacity caps pending requests before rejection
	QueueCapacity int `yaml:"queue_capacity" json:"queue_capacity"`

	// ReapInterval is how often idle processes are scanned
	ReapInterval time.Duration `yaml:"reap_interval" json:"reap_interval"`

	// StartTimeout bounds one browser launch attempt
	StartTimeout time.Duration `yaml:"start_timeout" json:"start_timeout"`

	// StartBackoff is the delay before the single launch retry
	StartBackoff time.Duration `yaml:"start_backoff" json:"start_backoff"`

	// TerminateGrace is how long a browser gets to close cleanly
	TerminateGrace time.Duration `yaml:"terminate_grace" json:"terminate_grace"`
}

// BrowserConfig configures the browser processes themselves.
type BrowserConfig struct {
	// Headless runs browsers without a display; gateways should leave
	// this on outside of local debugging
	Headless bool `yaml:"headless" json:"headless"`

	// Args are extra browser command-line arguments
	Args []string `yaml:"args" json:"args"`

	// UserAgent overrides the default user agent when set
	UserAgent string `yaml:"user_agent" json:"user_agent"`

	ViewportWidth  int `yaml:"viewport_width" json:"viewport_width"`
	ViewportHeight int `yaml:"viewport_height" json:"viewport_height"`
}

// URLPolicyConfig restricts which URLs requests may target. Patterns are
// globs matched against the full URL. An empty allow list permits any URL
// not matched by the deny list.
type URLPolicyConfig struct {
	Allow []string `yaml:"allow" json:"allow"`
	Deny  []string `yaml:"deny" json:"deny"`
}

// LoggingConfig defines logging configuration.
type LoggingConfig struct {
	// Dir writes logs to per-run files in this directory when set;
	// empty logs to stderr
	Dir string `yaml:"dir" json:"dir"`
}

// DefaultConfig returns a configuration suitable for most deployments.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:          "0.0.0.0",
			Port:          8080,
			ReadTimeout:   30 * time.Second,
			ShutdownGrace: 30 * time.Second,
		},
		Pool: PoolConfig{
			MaxSessions:    4,
			IdleTimeout:    5 * time.Minute,
			RequestTimeout: 60 * time.Second,
			QueueCapacity:  64,
			ReapInterval:   15 * time.Second,
			StartTimeout:   30 * time.Second,
			StartBackoff:   500 * time.Millisecond,
			TerminateGrace: 5 * time.Second,
		},
		Browser: BrowserConfig{
			Headless: true,
			Args: []string{
				"--no-sandbox",
				"--disable-dev-shm-usage",
				"--disable-gpu",
			},
			ViewportWidth:  1280,
			ViewportHeight: 720,
		},
		URLPolicy: URLPolicyConfig{
			Deny: []string{
				"http://169.254.169.254*", // cloud metadata endpoints
				"*://localhost*",
				"*://127.0.0.1*",
			},
		},
	}
}

// Load reads configuration from a YAML file on top of the defaults, then
// applies environment overrides. An empty path loads defaults plus
// environment only.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv folds in the variables a container platform injects. PORT wins
// over the config file so the platform's routing keeps working.
func (c *Config) applyEnv() {
	if port, ok := envInt("PORT"); ok {
		c.Server.Port = port
	}
	if port, ok := envInt("GATEWAY_PORT"); ok {
		c.Server.Port = port
	}
	if v := os.Getenv("GATEWAY_MAX_SESSIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Pool.MaxSessions = n
		}
	}
	if v := os.Getenv("GATEWAY_LOG_DIR"); v != "" {
		c.Logging.Dir = v
	}
}

func envInt(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}

	if c.Pool.MaxSessions <= 0 {
		return fmt.Errorf("max_sessions must be positive, got %d", c.Pool.MaxSessions)
	}
	if c.Pool.QueueCapacity <= 0 {
		return fmt.Errorf("queue_capacity must be positive, got %d", c.Pool.QueueCapacity)
	}
	if c.Pool.IdleTimeout < 0 {
		return fmt.Errorf("idle_timeout cannot be negative")
	}
	if c.Pool.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive")
	}

	if c.Browser.ViewportWidth < 0 || c.Browser.ViewportHeight < 0 {
		return fmt.Errorf("viewport dimensions cannot be negative")
	}

	return nil
}
