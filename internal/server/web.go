package server

import (
	"net/http"

	"github.com/goodtune/smsgate/internal/buildinfo"
	"github.com/goodtune/smsgate/internal/modem"
	"github.com/goodtune/smsgate/internal/ratelimit"
)

type statuszData struct {
	Version    string
	GitHash    string
	Uptime     string
	ModemURL   string
	TLS        bool
	Modem      *modem.StatusSnapshot
	ModemError string
	Limits     ratelimit.Status
	Clients    []ratelimit.ClientStatus
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	data := map[string]interface{}{
		"Title":   "SMS Gateway",
		"Version": buildinfo.Version(),
	}
	if err := s.templates.ExecuteTemplate(w, "home.html", data); err != nil {
		s.logger.Error().Err(err).Msg("Failed to render home template")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

func (s *Server) handleStatusz(w http.ResponseWriter, r *http.Request) {
	data := statuszData{
		Version:  buildinfo.Version(),
		GitHash:  buildinfo.GitHash(),
		Uptime:   s.uptime().String(),
		ModemURL: s.config.ModemURL,
		TLS:      s.tlsEnabled(),
		Limits:   s.limiter.Status(),
		Clients:  s.limiter.ClientStatus(),
	}

	snapshot, err := s.gateway.Status(r.Context())
	if err != nil {
		data.ModemError = err.Error()
	} else {
		data.Modem = snapshot
	}

	if err := s.templates.ExecuteTemplate(w, "statusz.html", data); err != nil {
		s.logger.Error().Err(err).Msg("Failed to render statusz template")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}
