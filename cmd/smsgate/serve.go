package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/goodtune/smsgate/internal/arbiter"
	"github.com/goodtune/smsgate/internal/buildinfo"
	"github.com/goodtune/smsgate/internal/config"
	"github.com/goodtune/smsgate/internal/metrics"
	"github.com/goodtune/smsgate/internal/modem"
	"github.com/goodtune/smsgate/internal/ratelimit"
	"github.com/goodtune/smsgate/internal/server"
	"github.com/goodtune/smsgate/internal/sms"
	"github.com/goodtune/smsgate/internal/systemd"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	servePort         int
	serveHourlyLimit  int
	serveDailyLimit   int
	serveClientLimits []string
	serveAlertTo      string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the SMS gateway service",
	Long: `Start the HTTP gateway in front of the modem. All sends are rate limited
and serialized so only one modem conversation is in flight at a time.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Listen port (overrides server.port)")
	serveCmd.Flags().IntVar(&serveHourlyLimit, "hourly-limit", -1, "Global hourly send limit, 0 for unlimited (overrides limits.hourly)")
	serveCmd.Flags().IntVar(&serveDailyLimit, "daily-limit", -1, "Global daily send limit, 0 for unlimited (overrides limits.daily)")
	serveCmd.Flags().StringArrayVar(&serveClientLimits, "client-limit", nil, "Per-client limit as name:hourly:daily (repeatable)")
	serveCmd.Flags().StringVar(&serveAlertTo, "alert-to", "", "Recipient for AlertManager webhook alerts (overrides alerts.phone)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	// Load configuration
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := applyServeFlags(cfg); err != nil {
		return err
	}

	// Setup logger
	logger := setupLogger(cfg.Logging)
	log.Logger = logger

	logger.Info().
		Str("version", buildinfo.Version()).
		Str("config", configPath).
		Msg("Starting smsgate")
	metrics.SetBuildInfo(buildinfo.Version(), buildinfo.GitHash())

	// Check for systemd socket activation
	sdListeners, err := systemd.GetListeners()
	if err != nil {
		return fmt.Errorf("failed to acquire systemd sockets: %w", err)
	}
	if sdListeners.Activated {
		logger.Info().Msg("Running with systemd socket activation")
	}

	// Wire the modem pipeline: protocol client, rate limiter, encoder and
	// the arbiter that serializes modem access.
	client := modem.NewClient(modem.Config{URL: cfg.Modem.URL, Timeout: cfg.ModemTimeout()}, logger)
	limiter := ratelimit.New(ratelimit.Config{
		Hourly:  cfg.Limits.Hourly,
		Daily:   cfg.Limits.Daily,
		Clients: cfg.Limits.Clients,
	}, logger)
	encoder := sms.NewEncoder(cfg.Modem.MaxSegments)
	arb := arbiter.New(arbiter.Config{
		QueueSize: cfg.Server.QueueSize,
		QueueWait: cfg.QueueWait(),
	}, client, limiter, encoder, logger)

	if cfg.Alerts.Phone == "" {
		logger.Warn().Msg("No alert recipient configured, /alertmanager will reject webhooks")
	}

	// Create and start the gateway server
	serverConfig := server.Config{
		ListenAddr:       fmt.Sprintf("%s:%d", cfg.Server.BindAddress, cfg.Server.Port),
		TLSCert:          cfg.TLS.Cert,
		TLSKey:           cfg.TLS.Key,
		RedirectHost:     cfg.TLS.RedirectHost,
		AlertRecipient:   cfg.Alerts.Phone,
		SensitiveLogging: cfg.Logging.Sensitive,
		ModemURL:         cfg.Modem.URL,
	}
	if cfg.TLS.HTTPRedirectPort > 0 {
		serverConfig.RedirectAddr = fmt.Sprintf("%s:%d", cfg.Server.BindAddress, cfg.TLS.HTTPRedirectPort)
	}

	srv := server.NewServer(serverConfig, arb, limiter, logger)
	if err := srv.Start(sdListeners.HTTP, sdListeners.Redirect); err != nil {
		return fmt.Errorf("failed to start gateway server: %w", err)
	}

	logger.Info().
		Str("listen", serverConfig.ListenAddr).
		Str("modem", cfg.Modem.URL).
		Msg("smsgate startup complete")

	// Notify systemd that we're ready
	if err := systemd.NotifyReady(); err != nil {
		logger.Warn().Err(err).Msg("Failed to send systemd ready notification")
	}

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info().Msg("Shutdown signal received, gracefully stopping...")

	// Notify systemd that we're stopping
	if err := systemd.NotifyStopping(); err != nil {
		logger.Warn().Err(err).Msg("Failed to send systemd stopping notification")
	}

	// Stop accepting requests first, then drain the modem queue.
	if err := srv.Stop(); err != nil {
		logger.Error().Err(err).Msg("Error stopping gateway server")
	}
	arb.Stop()

	logger.Info().Msg("smsgate stopped")
	return nil
}

// applyServeFlags overlays serve command flags onto the loaded configuration.
func applyServeFlags(cfg *config.Config) error {
	if servePort > 0 {
		cfg.Server.Port = servePort
	}
	if serveHourlyLimit >= 0 {
		cfg.Limits.Hourly = serveHourlyLimit
	}
	if serveDailyLimit >= 0 {
		cfg.Limits.Daily = serveDailyLimit
	}
	if serveAlertTo != "" {
		cfg.Alerts.Phone = serveAlertTo
	}
	for _, spec := range serveClientLimits {
		limit, err := ratelimit.ParseClientLimit(spec)
		if err != nil {
			return fmt.Errorf("invalid --client-limit %q: %w", spec, err)
		}
		replaced := false
		for i, existing := range cfg.Limits.Clients {
			if existing.Name == limit.Name {
				cfg.Limits.Clients[i] = limit
				replaced = true
				break
			}
		}
		if !replaced {
			cfg.Limits.Clients = append(cfg.Limits.Clients, limit)
		}
	}
	return nil
}
