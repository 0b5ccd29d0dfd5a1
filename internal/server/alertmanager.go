package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/goodtune/smsgate/internal/metrics"
)

// Alert is one alert in an AlertManager webhook payload.
type Alert struct {
	Status      string            `json:"status"`
	Labels      map[string]string `json:"labels"`
	Annotations map[string]string `json:"annotations"`
}

// WebhookPayload is the subset of the AlertManager webhook the gateway
// consumes.
type WebhookPayload struct {
	Status string  `json:"status"`
	Alerts []Alert `json:"alerts"`
}

// FormatAlertMessage renders one alert as an SMS body, e.g.
// "FIRING: DiskFull (critical) - /var is 95% full".
func FormatAlertMessage(a Alert) string {
	status := strings.ToUpper(a.Status)
	if status == "" {
		status = "FIRING"
	}

	name := a.Labels["alertname"]
	if name == "" {
		name = "Unknown Alert"
	}

	summary := a.Annotations["summary"]
	if summary == "" {
		summary = a.Annotations["description"]
	}
	if summary == "" {
		summary = a.Annotations["message"]
	}
	if summary == "" {
		summary = "No summary"
	}

	if severity := a.Labels["severity"]; severity != "" {
		return fmt.Sprintf("%s: %s (%s) - %s", status, name, severity, summary)
	}
	return fmt.Sprintf("%s: %s - %s", status, name, summary)
}

// handleAlertmanager turns each alert in a webhook delivery into one SMS to
// the configured recipient. Failures are reported per-delivery: if nothing
// went out, the response is a 500 so AlertManager retries.
func (s *Server) handleAlertmanager(w http.ResponseWriter, r *http.Request) {
	if s.config.AlertRecipient == "" {
		writeError(w, http.StatusServiceUnavailable, "no alert recipient configured")
		return
	}

	var payload WebhookPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	sent, failed := 0, 0
	for _, alert := range payload.Alerts {
		body := FormatAlertMessage(alert)
		if err := s.gateway.SendSMS(r.Context(), s.config.AlertRecipient, body, AlertClient); err != nil {
			failed++
			s.logger.Error().Err(err).
				Str("alertname", alert.Labels["alertname"]).
				Msg("Failed to send alert SMS")
			continue
		}
		sent++
		metrics.SMSCountryTotal.WithLabelValues(countryCode(s.config.AlertRecipient)).Inc()
	}

	s.logger.Info().Int("sent", sent).Int("failed", failed).Msg("AlertManager webhook processed")

	if sent == 0 && failed > 0 {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("all %d alert sends failed", failed))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "success",
		"sent":   sent,
		"failed": failed,
	})
}
