package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/goodtune/smsgate/internal/ratelimit"
	"github.com/spf13/viper"
)

// Config holds the complete application configuration
type Config struct {
	Modem   ModemConfig   `mapstructure:"modem"`
	Server  ServerConfig  `mapstructure:"server"`
	TLS     TLSConfig     `mapstructure:"tls"`
	Limits  LimitsConfig  `mapstructure:"limits"`
	Alerts  AlertsConfig  `mapstructure:"alerts"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ModemConfig defines how to reach the HiLink modem
type ModemConfig struct {
	URL         string `mapstructure:"url"`
	Timeout     string `mapstructure:"timeout"`
	MaxSegments int    `mapstructure:"max_segments"`
}

// ServerConfig defines the gateway listener and queue behavior
type ServerConfig struct {
	Port        int    `mapstructure:"port"`
	BindAddress string `mapstructure:"bind_address"`
	QueueSize   int    `mapstructure:"queue_size"`
	QueueWait   string `mapstructure:"queue_wait"` // 0s waits indefinitely
}

// TLSConfig defines HTTPS serving and the optional plain-HTTP redirect
type TLSConfig struct {
	Cert             string `mapstructure:"cert"`
	Key              string `mapstructure:"key"`
	HTTPRedirectPort int    `mapstructure:"http_redirect_port"`
	RedirectHost     string `mapstructure:"redirect_host"`
}

// LimitsConfig defines the send rate limits
type LimitsConfig struct {
	Hourly  int                     `mapstructure:"hourly"`
	Daily   int                     `mapstructure:"daily"`
	Clients []ratelimit.ClientLimit `mapstructure:"clients"`
}

// AlertsConfig defines the AlertManager webhook recipient
type AlertsConfig struct {
	Phone string `mapstructure:"phone"`
}

// LoggingConfig defines logging behavior
type LoggingConfig struct {
	Level     string `mapstructure:"level"`
	Format    string `mapstructure:"format"`
	Sensitive bool   `mapstructure:"sensitive"` // log phone numbers and message bodies
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Configure viper
	v.SetConfigFile(configPath)
	v.SetEnvPrefix("SMSGATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		_, notFound := err.(viper.ConfigFileNotFoundError)
		if !notFound && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, use defaults and environment variables
	}

	// Unmarshal config
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate config
	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Modem defaults
	v.SetDefault("modem.url", "http://192.168.8.1")
	v.SetDefault("modem.timeout", "10s")
	v.SetDefault("modem.max_segments", 8)

	// Server defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.bind_address", "0.0.0.0")
	v.SetDefault("server.queue_size", 64)
	v.SetDefault("server.queue_wait", "0s")

	// TLS defaults (disabled until cert and key are set)
	v.SetDefault("tls.cert", "")
	v.SetDefault("tls.key", "")
	v.SetDefault("tls.http_redirect_port", 0)
	v.SetDefault("tls.redirect_host", "")

	// Rate limit defaults
	v.SetDefault("limits.hourly", 100)
	v.SetDefault("limits.daily", 1000)
	v.SetDefault("limits.clients", []ratelimit.ClientLimit{})

	// Alert defaults
	v.SetDefault("alerts.phone", "")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.sensitive", false)
}

// validate validates the configuration
func validate(cfg *Config) error {
	if cfg.Modem.URL == "" {
		return fmt.Errorf("modem URL is required")
	}
	if !strings.HasPrefix(cfg.Modem.URL, "http://") && !strings.HasPrefix(cfg.Modem.URL, "https://") {
		return fmt.Errorf("modem URL must start with http:// or https://: %s", cfg.Modem.URL)
	}
	if _, err := time.ParseDuration(cfg.Modem.Timeout); err != nil {
		return fmt.Errorf("invalid modem timeout %q: %w", cfg.Modem.Timeout, err)
	}
	if cfg.Modem.MaxSegments < 1 {
		return fmt.Errorf("modem max_segments must be at least 1, got %d", cfg.Modem.MaxSegments)
	}

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", cfg.Server.Port)
	}
	if cfg.Server.QueueSize < 1 {
		return fmt.Errorf("server queue_size must be at least 1, got %d", cfg.Server.QueueSize)
	}
	if _, err := time.ParseDuration(cfg.Server.QueueWait); err != nil {
		return fmt.Errorf("invalid server queue_wait %q: %w", cfg.Server.QueueWait, err)
	}

	if (cfg.TLS.Cert == "") != (cfg.TLS.Key == "") {
		return fmt.Errorf("tls.cert and tls.key must be set together")
	}
	if cfg.TLS.HTTPRedirectPort != 0 {
		if cfg.TLS.HTTPRedirectPort < 0 || cfg.TLS.HTTPRedirectPort > 65535 {
			return fmt.Errorf("invalid tls.http_redirect_port: %d", cfg.TLS.HTTPRedirectPort)
		}
		if cfg.TLS.Cert == "" {
			return fmt.Errorf("tls.http_redirect_port requires tls.cert and tls.key")
		}
	}

	if cfg.Limits.Hourly < 0 {
		return fmt.Errorf("limits.hourly cannot be negative: %d", cfg.Limits.Hourly)
	}
	if cfg.Limits.Daily < 0 {
		return fmt.Errorf("limits.daily cannot be negative: %d", cfg.Limits.Daily)
	}
	for _, cl := range cfg.Limits.Clients {
		if cl.Name == "" {
			return fmt.Errorf("client limit entries require a name")
		}
		if cl.Hourly < 0 || cl.Daily < 0 {
			return fmt.Errorf("client '%s' limits cannot be negative", cl.Name)
		}
	}

	return nil
}

// ModemTimeout returns the parsed modem HTTP timeout.
func (c *Config) ModemTimeout() time.Duration {
	d, err := time.ParseDuration(c.Modem.Timeout)
	if err != nil {
		return 10 * time.Second
	}
	return d
}

// QueueWait returns the parsed queue wait bound; zero means wait forever.
func (c *Config) QueueWait() time.Duration {
	d, err := time.ParseDuration(c.Server.QueueWait)
	if err != nil {
		return 0
	}
	return d
}
