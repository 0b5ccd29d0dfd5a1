// Package server is the gateway's REST facade. Every request that touches
// the modem goes through the arbiter; the server never talks to the modem
// directly.
package server

import (
	"context"
	"crypto/tls"
	"embed"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"time"

	"github.com/goodtune/smsgate/internal/modem"
	"github.com/goodtune/smsgate/internal/ratelimit"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

//go:embed static
var staticFS embed.FS

// AlertClient is the rate-limit scope alert webhook sends are attributed to.
const AlertClient = "alertmanager"

// Gateway is the arbiter surface the server drives.
type Gateway interface {
	SendSMS(ctx context.Context, to, body, client string) error
	ListSMS(ctx context.Context, params modem.ListParams) (*modem.MessageList, error)
	DeleteSMS(ctx context.Context, index int) error
	Status(ctx context.Context) (*modem.StatusSnapshot, error)
}

// Config holds the gateway server configuration.
type Config struct {
	ListenAddr       string
	TLSCert          string
	TLSKey           string
	RedirectAddr     string // optional plain-HTTP listener that redirects to HTTPS
	RedirectHost     string
	AlertRecipient   string
	SensitiveLogging bool
	ModemURL         string // shown on /statusz
}

// Server is the gateway HTTP server.
type Server struct {
	config    Config
	gateway   Gateway
	limiter   *ratelimit.Limiter
	server    *http.Server
	redirect  *http.Server
	router    *mux.Router
	templates *template.Template
	logger    zerolog.Logger
	started   time.Time
}

// NewServer creates the gateway server around an arbiter and limiter.
func NewServer(cfg Config, gateway Gateway, limiter *ratelimit.Limiter, logger zerolog.Logger) *Server {
	router := mux.NewRouter()

	tmpl, err := template.ParseFS(staticFS, "static/templates/*.html")
	if err != nil {
		logger.Error().Err(err).Msg("Failed to parse templates")
		tmpl = template.New("fallback")
	}

	s := &Server{
		config:    cfg,
		gateway:   gateway,
		limiter:   limiter,
		router:    router,
		templates: tmpl,
		logger:    logger.With().Str("component", "server").Logger(),
		started:   time.Now(),
	}

	s.setupRoutes()

	s.server = &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	if s.tlsEnabled() {
		s.server.TLSConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
		}
		if cfg.RedirectAddr != "" {
			s.redirect = &http.Server{
				Addr:         cfg.RedirectAddr,
				Handler:      http.HandlerFunc(s.handleRedirect),
				ReadTimeout:  15 * time.Second,
				WriteTimeout: 15 * time.Second,
			}
		}
	}

	return s
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Use(LoggingMiddleware(s.logger))

	s.router.HandleFunc("/", s.handleHome).Methods("GET")
	s.router.HandleFunc("/send-sms", s.handleSendSMS).Methods("POST")
	s.router.HandleFunc("/get-sms", s.handleGetSMS).Methods("GET")
	s.router.HandleFunc("/delete-sms", s.handleDeleteSMS).Methods("POST")
	s.router.HandleFunc("/status", s.handleStatus).Methods("GET")
	s.router.HandleFunc("/statusz", s.handleStatusz).Methods("GET")
	s.router.HandleFunc("/alertmanager", s.handleAlertmanager).Methods("POST")
	s.router.Handle("/metrics", promhttp.Handler()).Methods("GET")
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Start begins serving. Listeners are optional: nil means listen on the
// configured address, non-nil (socket activation) is used as-is.
func (s *Server) Start(ln, redirectLn net.Listener) error {
	s.logger.Info().
		Str("addr", s.config.ListenAddr).
		Bool("tls", s.tlsEnabled()).
		Msg("Starting gateway server")

	go func() {
		if err := s.serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("Gateway server error")
		}
	}()

	if s.redirect != nil {
		s.logger.Info().
			Str("addr", s.config.RedirectAddr).
			Msg("Starting HTTP redirect listener")
		go func() {
			var err error
			if redirectLn != nil {
				err = s.redirect.Serve(redirectLn)
			} else {
				err = s.redirect.ListenAndServe()
			}
			if err != nil && err != http.ErrServerClosed {
				s.logger.Error().Err(err).Msg("Redirect listener error")
			}
		}()
	}

	return nil
}

func (s *Server) serve(ln net.Listener) error {
	switch {
	case ln != nil && s.tlsEnabled():
		return s.server.ServeTLS(ln, s.config.TLSCert, s.config.TLSKey)
	case ln != nil:
		return s.server.Serve(ln)
	case s.tlsEnabled():
		return s.server.ListenAndServeTLS(s.config.TLSCert, s.config.TLSKey)
	default:
		return s.server.ListenAndServe()
	}
}

// Stop gracefully stops the gateway server.
func (s *Server) Stop() error {
	s.logger.Info().Msg("Stopping gateway server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if s.redirect != nil {
		if err := s.redirect.Shutdown(ctx); err != nil {
			s.logger.Error().Err(err).Msg("Redirect listener shutdown error")
		}
	}
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("gateway server shutdown: %w", err)
	}

	return nil
}

func (s *Server) tlsEnabled() bool {
	return s.config.TLSCert != "" && s.config.TLSKey != ""
}

// handleRedirect sends plain-HTTP traffic to the HTTPS listener.
func (s *Server) handleRedirect(w http.ResponseWriter, r *http.Request) {
	host := s.config.RedirectHost
	if host == "" {
		host = r.Host
	}
	http.Redirect(w, r, "https://"+host+r.URL.RequestURI(), http.StatusMovedPermanently)
}

func (s *Server) uptime() time.Duration {
	return time.Since(s.started).Round(time.Second)
}
