package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/goodtune/smsgate/internal/arbiter"
	"github.com/goodtune/smsgate/internal/buildinfo"
	"github.com/goodtune/smsgate/internal/config"
	"github.com/goodtune/smsgate/internal/modem"
	"github.com/goodtune/smsgate/internal/ratelimit"
	"github.com/goodtune/smsgate/internal/remote"
	"github.com/goodtune/smsgate/internal/sms"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	configPath string
	modemURL   string
	remoteURL  string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "smsgate",
	Short: "smsgate - SMS gateway for HiLink USB LTE modems",
	Long: `smsgate sends and receives SMS through a Huawei HiLink-style USB LTE modem
and exposes that capability as a rate-limited HTTP service, including an
AlertManager-compatible webhook for SMS alerting.`,
	Version: fmt.Sprintf("%s (%s)", buildinfo.Version(), buildinfo.GitHash()),
	RunE: func(cmd *cobra.Command, args []string) error {
		// Default to the serve command when no subcommand is provided
		return runServe(cmd, args)
	},
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "/etc/smsgate/config.yaml", "Path to configuration file")
	rootCmd.PersistentFlags().StringVar(&modemURL, "modem-url", "", "Modem base URL (overrides modem.url)")
	rootCmd.PersistentFlags().StringVar(&remoteURL, "remote-url", "", "Use a running gateway at this URL instead of the local modem")
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig loads the configuration and applies persistent flag overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if modemURL != "" {
		cfg.Modem.URL = modemURL
	}
	return cfg, nil
}

// setupLogger configures the logger based on configuration
func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	// Set log level
	level := zerolog.InfoLevel
	switch cfg.Level {
	case "debug":
		level = zerolog.DebugLevel
	case "info":
		level = zerolog.InfoLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}

	zerolog.SetGlobalLevel(level)

	// Set output format
	if cfg.Format == "text" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	// Default to JSON
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// quietLogger is used by one-shot commands so protocol chatter stays out of
// the command output.
func quietLogger() zerolog.Logger {
	return zerolog.New(os.Stderr).Level(zerolog.ErrorLevel).With().Timestamp().Logger()
}

// gatewayOps is the operation surface shared by the local modem path and
// the remote gateway path.
type gatewayOps interface {
	SendSMS(ctx context.Context, to, body, client string) error
	ListSMS(ctx context.Context, params modem.ListParams) (*modem.MessageList, error)
	DeleteSMS(ctx context.Context, index int) error
}

// newLocalArbiter wires a one-shot arbiter around the local modem. One-shot
// runs hold no durable counters, so they are not rate limited locally;
// accounted sends go through a gateway with --remote-url.
func newLocalArbiter(cfg *config.Config, logger zerolog.Logger) *arbiter.Arbiter {
	client := modem.NewClient(modem.Config{URL: cfg.Modem.URL, Timeout: cfg.ModemTimeout()}, logger)
	limiter := ratelimit.New(ratelimit.Config{}, logger)
	return arbiter.New(arbiter.Config{}, client, limiter, sms.NewEncoder(cfg.Modem.MaxSegments), logger)
}

// newOps returns the operation backend for one-shot commands plus a cleanup
// function.
func newOps(cfg *config.Config, logger zerolog.Logger) (gatewayOps, func()) {
	if remoteURL != "" {
		return remote.NewClient(remoteURL, 30*time.Second, logger), func() {}
	}
	arb := newLocalArbiter(cfg, logger)
	return arb, arb.Stop
}
