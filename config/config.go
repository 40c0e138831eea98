// Package config loads the process-wide configuration for demos.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultLeaseTTL         = 30 * time.Second
	DefaultKeepAliveTimeout = 300 * time.Second
	DefaultKeyTTL           = 60 * time.Second
	DefaultPortRangeStart   = 20000
	DefaultPortRangeEnd     = 30000

	CacheBackendMemory   = "memory"
	CacheBackendDatabase = "database"
)

// EnvProvider abstracts environment variable access for testing
type EnvProvider interface {
	Getenv(key string) string
}

// DefaultEnvProvider implements EnvProvider using real OS functions
type DefaultEnvProvider struct{}

func (p *DefaultEnvProvider) Getenv(key string) string {
	return os.Getenv(key)
}

// Config holds configuration for all services
type Config struct {
	// Base host that every project domain lives under, e.g. example.com
	BaseHost string `yaml:"base_host"`

	// Connection lifecycle
	KeepAliveTimeout time.Duration `yaml:"keep_alive_timeout"`
	LeaseTTL         time.Duration `yaml:"lease_ttl"`
	KeyTTL           time.Duration `yaml:"key_ttl"`
	PortRangeStart   int           `yaml:"port_range_start"`
	PortRangeEnd     int           `yaml:"port_range_end"`
	SweepInterval    time.Duration `yaml:"sweep_interval"`

	// Policy
	UsernameExcludeList  []string `yaml:"username_exclude_list"`
	SubdomainExcludeList []string `yaml:"subdomain_exclude_list"`

	// nginx
	VhostDir       string `yaml:"vhost_dir"`
	PageDir        string `yaml:"page_dir"`
	NginxReload    string `yaml:"nginx_reload"`
	UpstreamHost   string `yaml:"upstream_host"`
	ListenHTTPPort int    `yaml:"listen_http_port"`

	// sshd
	SSHDropInDir string `yaml:"ssh_dropin_dir"`
	HomeRoot     string `yaml:"home_root"`
	SSHReload    string `yaml:"ssh_reload"`

	// Core paths
	DataDir      string `yaml:"data_dir"`
	DatabasePath string `yaml:"database_path"`

	// Lease and liveness store: memory or database
	CacheBackend string `yaml:"cache_backend"`

	// HTTP server
	HTTPHost     string   `yaml:"http_host"`
	HTTPPort     int      `yaml:"http_port"`
	AllowedHosts []string `yaml:"allowed_hosts"`
	RateLimit    float64  `yaml:"rate_limit"` // agent requests per second per client IP, 0 disables
	RateBurst    int      `yaml:"rate_burst"`

	// Encryption of project secret keys at rest
	EncryptionKey string `yaml:"encryption_key"`

	// Logging
	LogLevel     string `yaml:"log_level"`
	ColorEnabled bool   `yaml:"color_enabled"`

	// Environment provider for testing
	env EnvProvider
}

// NewConfig creates a configuration from defaults, an optional YAML file,
// an optional .env file in the working directory and the environment.
func NewConfig(configPath string) (*Config, error) {
	return NewConfigWithEnv(&DefaultEnvProvider{}, configPath, ".env")
}

// NewConfigWithEnv creates a new configuration with custom environment provider (for testing)
func NewConfigWithEnv(env EnvProvider, configPath, dotenvPath string) (*Config, error) {
	c := &Config{env: env}

	// Set defaults first
	c.setDefaults()

	// Override with YAML file (if provided)
	if configPath != "" {
		if err := c.loadFromFile(configPath); err != nil {
			return nil, err
		}
	}

	// Fill the environment from .env without overriding real variables
	if dotenvPath != "" {
		if err := loadDotenv(dotenvPath); err != nil {
			return nil, err
		}
	}

	// Override with environment variables
	c.loadFromEnv()

	// Derive dependent paths
	c.derivePaths()

	// Validate
	if err := c.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return c, nil
}

// setDefaults sets sensible default values
func (c *Config) setDefaults() {
	c.KeepAliveTimeout = DefaultKeepAliveTimeout
	c.LeaseTTL = DefaultLeaseTTL
	c.KeyTTL = DefaultKeyTTL
	c.PortRangeStart = DefaultPortRangeStart
	c.PortRangeEnd = DefaultPortRangeEnd
	c.SweepInterval = time.Minute
	c.UsernameExcludeList = []string{"root", "admin", "www-data", "nginx", "ubuntu", "nobody"}
	c.SubdomainExcludeList = []string{"www", "admin", "api", "mail"}
	c.VhostDir = "/etc/nginx/sites"
	c.PageDir = "/var/www/demos"
	c.NginxReload = "service nginx reload"
	c.UpstreamHost = "localhost"
	c.ListenHTTPPort = 80
	c.SSHDropInDir = "/etc/ssh/sshd_config.d/user.d"
	c.HomeRoot = "/home"
	c.SSHReload = "service ssh reload"
	c.DataDir = "/var/lib/demos"
	c.CacheBackend = CacheBackendDatabase
	c.HTTPHost = "127.0.0.1"
	c.HTTPPort = 8000
	c.RateLimit = 5
	c.RateBurst = 20
	c.LogLevel = "info"
	c.ColorEnabled = true
}

// loadFromFile overlays values from a YAML file
func (c *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// loadDotenv reads a .env file into the process environment; a missing file is fine
func loadDotenv(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// loadFromEnv loads configuration from environment variables
func (c *Config) loadFromEnv() {
	// HTTP_HOST and KEEP_ALIVE_TIMEOUT are accepted for compatibility with existing deployments
	if v := c.env.Getenv("HTTP_HOST"); v != "" {
		c.BaseHost = v
	}
	if v := c.env.Getenv("DEMOS_BASE_HOST"); v != "" {
		c.BaseHost = v
	}
	if v := c.env.Getenv("KEEP_ALIVE_TIMEOUT"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil {
			c.KeepAliveTimeout = time.Duration(secs) * time.Second
		}
	}
	if v := c.env.Getenv("DEMOS_KEEP_ALIVE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.KeepAliveTimeout = d
		}
	}
	if v := c.env.Getenv("DEMOS_LEASE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.LeaseTTL = d
		}
	}
	if v := c.env.Getenv("DEMOS_SWEEP_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.SweepInterval = d
		}
	}
	if v := c.env.Getenv("DEMOS_USERNAME_EXCLUDE_LIST"); v != "" {
		c.UsernameExcludeList = splitList(v)
	}
	if v := c.env.Getenv("DEMOS_SUBDOMAIN_EXCLUDE_LIST"); v != "" {
		c.SubdomainExcludeList = splitList(v)
	}
	if v := c.env.Getenv("DEMOS_VHOST_DIR"); v != "" {
		c.VhostDir = v
	}
	if v := c.env.Getenv("DEMOS_PAGE_DIR"); v != "" {
		c.PageDir = v
	}
	if v := c.env.Getenv("DEMOS_NGINX_RELOAD"); v != "" {
		c.NginxReload = v
	}
	if v := c.env.Getenv("DEMOS_SSH_DROPIN_DIR"); v != "" {
		c.SSHDropInDir = v
	}
	if v := c.env.Getenv("DEMOS_HOME_ROOT"); v != "" {
		c.HomeRoot = v
	}
	if v := c.env.Getenv("DEMOS_SSH_RELOAD"); v != "" {
		c.SSHReload = v
	}
	if v := c.env.Getenv("DEMOS_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := c.env.Getenv("DEMOS_DATABASE_PATH"); v != "" {
		c.DatabasePath = v
	}
	if v := c.env.Getenv("DEMOS_CACHE_BACKEND"); v != "" {
		c.CacheBackend = v
	}
	if v := c.env.Getenv("DEMOS_HTTP_HOST"); v != "" {
		c.HTTPHost = v
	}
	if v := c.env.Getenv("DEMOS_HTTP_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.HTTPPort = port
		}
	}
	if v := c.env.Getenv("DEMOS_ALLOWED_HOSTS"); v != "" {
		c.AllowedHosts = splitList(v)
	}
	if v := c.env.Getenv("DEMOS_RATE_LIMIT"); v != "" {
		if r, err := strconv.ParseFloat(v, 64); err == nil {
			c.RateLimit = r
		}
	}
	if v := c.env.Getenv("DEMOS_ENCRYPTION_KEY"); v != "" {
		c.EncryptionKey = v
	}
	if v := c.env.Getenv("DEMOS_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := c.env.Getenv("DEMOS_COLOR_ENABLED"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			c.ColorEnabled = enabled
		}
	}
}

// derivePaths calculates dependent paths from the base DataDir
func (c *Config) derivePaths() {
	c.BaseHost = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(c.BaseHost)), ".")

	if c.DatabasePath == "" {
		c.DatabasePath = filepath.Join(c.DataDir, "demos.db")
	}
}

// validate ensures configuration values are valid
func (c *Config) validate() error {
	if c.BaseHost == "" {
		return fmt.Errorf("base host is required - set DEMOS_BASE_HOST (or HTTP_HOST)")
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warning": true, "error": true, "silent": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warning, error or silent)", c.LogLevel)
	}

	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d (must be 1-65535)", c.HTTPPort)
	}

	if c.PortRangeStart < 1 || c.PortRangeEnd > 65535 || c.PortRangeStart > c.PortRangeEnd {
		return fmt.Errorf("invalid port range: %d-%d", c.PortRangeStart, c.PortRangeEnd)
	}

	if c.KeepAliveTimeout <= 0 {
		return fmt.Errorf("keep-alive timeout must be positive, got: %v", c.KeepAliveTimeout)
	}
	if c.LeaseTTL <= 0 {
		return fmt.Errorf("lease TTL must be positive, got: %v", c.LeaseTTL)
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("sweep interval must be positive, got: %v", c.SweepInterval)
	}

	switch c.CacheBackend {
	case CacheBackendMemory, CacheBackendDatabase:
	default:
		return fmt.Errorf("invalid cache backend: %s (must be memory or database)", c.CacheBackend)
	}

	if strings.TrimSpace(c.NginxReload) == "" || strings.TrimSpace(c.SSHReload) == "" {
		return fmt.Errorf("reload commands cannot be empty")
	}

	if c.EncryptionKey == "" {
		return fmt.Errorf("encryption key is required - set DEMOS_ENCRYPTION_KEY")
	}

	return nil
}

// GetLogLevel returns the configured log level
func (c *Config) GetLogLevel() string {
	return c.LogLevel
}

func splitList(v string) []string {
	var items []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
