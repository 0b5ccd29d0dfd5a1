package main

import (
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/fatih/color"
	"github.com/goodtune/smsgate/internal/config"
	"github.com/goodtune/smsgate/internal/ratelimit"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	validateDump bool
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long:  `Validate the smsgate configuration file for syntax and semantic errors.`,
	RunE:  runValidate,
}

func init() {
	validateCmd.Flags().BoolVar(&validateDump, "dump", false, "Dump full configuration with defaults highlighted")
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Configuration validation failed: %v\n", err)
		return err
	}

	// Check for unknown keys (always, not just with -dump)
	unknownKeys, err := findUnknownKeys(configPath)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "⚠️  Warning: Could not check for unknown keys: %v\n", err)
	}

	_, _ = fmt.Fprintf(os.Stdout, "✅ Configuration is valid: %s\n", configPath)

	// Warn about unknown keys
	if len(unknownKeys) > 0 {
		red := color.New(color.FgRed, color.Bold)
		fmt.Fprintln(os.Stdout)
		red.Fprintf(os.Stdout, "⚠️  WARNING: Found %d unknown configuration key(s):\n", len(unknownKeys))
		for _, key := range unknownKeys {
			red.Fprintf(os.Stdout, "   - %s\n", key)
		}
		fmt.Fprintln(os.Stdout, "\nThese keys will be ignored and may indicate typos or deprecated settings.")
	}

	// If dump requested, show full configuration with defaults highlighted
	if validateDump {
		_, _ = fmt.Fprintln(os.Stdout, "\n"+strings.Repeat("=", 80))
		_, _ = fmt.Fprintln(os.Stdout, "FULL CONFIGURATION (values different from defaults are highlighted)")
		_, _ = fmt.Fprintln(os.Stdout, strings.Repeat("=", 80))

		// Get default configuration
		defaultCfg := getDefaultConfig()

		// Dump configuration
		dumpFullConfig(cfg, defaultCfg, unknownKeys)
	}

	return nil
}

// getDefaultConfig creates a configuration with default values
func getDefaultConfig() *config.Config {
	v := viper.New()
	setDefaultsForDump(v)

	var cfg config.Config
	_ = v.Unmarshal(&cfg)

	return &cfg
}

// setDefaultsForDump sets default configuration values (copied from config package)
func setDefaultsForDump(v *viper.Viper) {
	// Modem defaults
	v.SetDefault("modem.url", "http://192.168.8.1")
	v.SetDefault("modem.timeout", "10s")
	v.SetDefault("modem.max_segments", 8)

	// Server defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.bind_address", "0.0.0.0")
	v.SetDefault("server.queue_size", 64)
	v.SetDefault("server.queue_wait", "0s")

	// TLS defaults
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

// findUnknownKeys loads the config file and checks for unknown keys
func findUnknownKeys(configPath string) ([]string, error) {
	v := viper.New()
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	// Get all keys from the config file
	allKeys := v.AllKeys()

	// Build set of valid keys
	validKeys := getValidKeys()

	// Find unknown keys
	unknown := []string{}
	for _, key := range allKeys {
		if !validKeys[key] {
			unknown = append(unknown, key)
		}
	}

	return unknown, nil
}

// getValidKeys returns a set of all valid configuration keys
func getValidKeys() map[string]bool {
	keys := map[string]bool{
		// Modem
		"modem.url":          true,
		"modem.timeout":      true,
		"modem.max_segments": true,

		// Server
		"server.port":         true,
		"server.bind_address": true,
		"server.queue_size":   true,
		"server.queue_wait":   true,

		// TLS
		"tls.cert":               true,
		"tls.key":                true,
		"tls.http_redirect_port": true,
		"tls.redirect_host":      true,

		// Rate limits
		"limits.hourly":  true,
		"limits.daily":   true,
		"limits.clients": true,

		// Alerts
		"alerts.phone": true,

		// Logging
		"logging.level":     true,
		"logging.format":    true,
		"logging.sensitive": true,
	}

	return keys
}

// dumpFullConfig dumps configuration with color highlighting for non-default values
func dumpFullConfig(cfg, defaultCfg *config.Config, unknownKeys []string) {
	// Setup colors (only if terminal supports it)
	yellow := color.New(color.FgYellow, color.Bold)
	green := color.New(color.FgGreen)
	cyan := color.New(color.FgCyan, color.Bold)

	// Modem
	_, _ = cyan.Println("\n[modem]")
	dumpField("  url", cfg.Modem.URL, defaultCfg.Modem.URL, yellow, green)
	dumpField("  timeout", cfg.Modem.Timeout, defaultCfg.Modem.Timeout, yellow, green)
	dumpField("  max_segments", cfg.Modem.MaxSegments, defaultCfg.Modem.MaxSegments, yellow, green)

	// Server
	_, _ = cyan.Println("\n[server]")
	dumpField("  port", cfg.Server.Port, defaultCfg.Server.Port, yellow, green)
	dumpField("  bind_address", cfg.Server.BindAddress, defaultCfg.Server.BindAddress, yellow, green)
	dumpField("  queue_size", cfg.Server.QueueSize, defaultCfg.Server.QueueSize, yellow, green)
	dumpField("  queue_wait", cfg.Server.QueueWait, defaultCfg.Server.QueueWait, yellow, green)

	// TLS
	_, _ = cyan.Println("\n[tls]")
	dumpField("  cert", cfg.TLS.Cert, defaultCfg.TLS.Cert, yellow, green)
	dumpField("  key", cfg.TLS.Key, defaultCfg.TLS.Key, yellow, green)
	dumpField("  http_redirect_port", cfg.TLS.HTTPRedirectPort, defaultCfg.TLS.HTTPRedirectPort, yellow, green)
	dumpField("  redirect_host", cfg.TLS.RedirectHost, defaultCfg.TLS.RedirectHost, yellow, green)

	// Rate limits
	_, _ = cyan.Println("\n[limits]")
	dumpField("  hourly", cfg.Limits.Hourly, defaultCfg.Limits.Hourly, yellow, green)
	dumpField("  daily", cfg.Limits.Daily, defaultCfg.Limits.Daily, yellow, green)
	dumpField("  clients", formatClientLimits(cfg.Limits.Clients), formatClientLimits(defaultCfg.Limits.Clients), yellow, green)

	// Alerts
	_, _ = cyan.Println("\n[alerts]")
	dumpField("  phone", cfg.Alerts.Phone, defaultCfg.Alerts.Phone, yellow, green)

	// Logging
	_, _ = cyan.Println("\n[logging]")
	dumpField("  level", cfg.Logging.Level, defaultCfg.Logging.Level, yellow, green)
	dumpField("  format", cfg.Logging.Format, defaultCfg.Logging.Format, yellow, green)
	dumpField("  sensitive", cfg.Logging.Sensitive, defaultCfg.Logging.Sensitive, yellow, green)

	// Display unknown keys if any
	if len(unknownKeys) > 0 {
		red := color.New(color.FgRed, color.Bold)
		cyan := color.New(color.FgCyan, color.Bold)

		cyan.Println("\n[UNKNOWN KEYS - These will be ignored!]")
		for _, key := range unknownKeys {
			red.Printf("  %s = (unknown key - check for typos)\n", key)
		}
	}

	fmt.Fprintln(os.Stdout, "\n"+strings.Repeat("=", 80))
}

// dumpField prints a field with color if it differs from default
func dumpField(name string, value, defaultValue interface{}, modifiedColor, defaultColor *color.Color) {
	// Deep equal comparison
	isDefault := reflect.DeepEqual(value, defaultValue)

	valueStr := fmt.Sprintf("%v", value)

	if isDefault {
		_, _ = defaultColor.Printf("%s = %s\n", name, valueStr)
	} else {
		_, _ = modifiedColor.Printf("%s = %s  (modified from default: %v)\n", name, valueStr, defaultValue)
	}
}

// formatClientLimits renders per-client limits as name:hourly:daily entries.
func formatClientLimits(clients []ratelimit.ClientLimit) string {
	if len(clients) == 0 {
		return "(none)"
	}
	entries := make([]string, 0, len(clients))
	for _, c := range clients {
		entries = append(entries, fmt.Sprintf("%s:%d:%d", c.Name, c.Hourly, c.Daily))
	}
	return strings.Join(entries, ", ")
}
