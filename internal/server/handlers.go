package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/goodtune/smsgate/internal/buildinfo"
	"github.com/goodtune/smsgate/internal/metrics"
	"github.com/goodtune/smsgate/internal/modem"
	"github.com/goodtune/smsgate/internal/ratelimit"
	"github.com/goodtune/smsgate/internal/sms"
)

type sendRequest struct {
	To      string `json:"to"`
	Message string `json:"message"`
	Client  string `json:"client,omitempty"`
}

type deleteRequest struct {
	Index *int `json:"index"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// statusResponse is the /status body. The gateway reports "degraded" when
// it is up but cannot reach the modem.
type statusResponse struct {
	Status     string                   `json:"status"`
	Version    string                   `json:"version"`
	Uptime     string                   `json:"uptime"`
	Modem      *modem.StatusSnapshot    `json:"modem,omitempty"`
	ModemError string                   `json:"modem_error,omitempty"`
	Limits     ratelimit.Status         `json:"limits"`
	Clients    []ratelimit.ClientStatus `json:"clients,omitempty"`
}

func (s *Server) handleSendSMS(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.To == "" || req.Message == "" {
		writeError(w, http.StatusBadRequest, "both 'to' and 'message' are required")
		return
	}

	evt := s.logger.Info().Str("client", req.Client)
	if s.config.SensitiveLogging {
		evt = evt.Str("to", req.To).Str("message", req.Message)
	}
	evt.Msg("Send request")

	if err := s.gateway.SendSMS(r.Context(), req.To, req.Message, req.Client); err != nil {
		s.writeGatewayError(w, err)
		return
	}

	metrics.SMSCountryTotal.WithLabelValues(countryCode(req.To)).Inc()
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": "SMS sent successfully!",
	})
}

func (s *Server) handleGetSMS(w http.ResponseWriter, r *http.Request) {
	params := modem.ListParams{
		Page:  1,
		Count: 20,
		Box:   modem.BoxLocalInbox,
		Sort:  modem.SortDate,
	}

	q := r.URL.Query()
	if v := q.Get("count"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "invalid count '"+v+"'")
			return
		}
		params.Count = n
	}
	if v := q.Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "invalid page '"+v+"'")
			return
		}
		params.Page = n
	}
	if v := q.Get("box_type"); v != "" {
		box, err := parseBoxParam(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		params.Box = box
	}
	if v := q.Get("sort_by"); v != "" {
		sort, err := modem.ParseSortType(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		params.Sort = sort
	}
	params.Ascending = q.Get("ascending") == "true"
	params.UnreadPreferred = q.Get("unread_preferred") == "true"

	list, err := s.gateway.ListSMS(r.Context(), params)
	if err != nil {
		s.writeGatewayError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleDeleteSMS(w http.ResponseWriter, r *http.Request) {
	var req deleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Index == nil {
		writeError(w, http.StatusBadRequest, "'index' is required")
		return
	}

	if err := s.gateway.DeleteSMS(r.Context(), *req.Index); err != nil {
		s.writeGatewayError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": "SMS deleted successfully!",
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		Status:  "ok",
		Version: buildinfo.Version(),
		Uptime:  s.uptime().String(),
		Limits:  s.limiter.Status(),
		Clients: s.limiter.ClientStatus(),
	}

	snapshot, err := s.gateway.Status(r.Context())
	if err != nil {
		resp.Status = "degraded"
		resp.ModemError = err.Error()
	} else {
		resp.Modem = snapshot
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeGatewayError maps arbiter errors onto HTTP statuses: admission
// denials are the caller's pace problem (429), encoding and modem
// rejections are the caller's request problem (400), the rest is ours (500).
func (s *Server) writeGatewayError(w http.ResponseWriter, err error) {
	var denial *ratelimit.Denial
	var apiErr *modem.APIError
	switch {
	case errors.As(err, &denial):
		writeError(w, http.StatusTooManyRequests, denial.Error())
	case errors.Is(err, sms.ErrMessageTooLong):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &apiErr):
		writeError(w, http.StatusBadRequest, apiErr.Error())
	default:
		s.logger.Error().Err(err).Msg("Gateway operation failed")
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// parseBoxParam accepts either the kebab-case box name or the raw device
// box number.
func parseBoxParam(v string) (modem.BoxType, error) {
	if n, err := strconv.Atoi(v); err == nil {
		box := modem.BoxType(n)
		if box < modem.BoxLocalInbox || box > modem.BoxMixDraft {
			return modem.BoxUnknown, errors.New("invalid box type '" + v + "'")
		}
		return box, nil
	}
	return modem.ParseBoxType(v)
}

// countryCode derives a coarse metric label from a recipient number. Four
// characters of a +-prefixed number cover the longest ITU country codes.
func countryCode(phone string) string {
	if strings.HasPrefix(phone, "+") && len(phone) >= 4 {
		return phone[:4]
	}
	return "unknown"
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(data); err != nil {
		http.Error(w, `{"error":"Internal Server Error","message":"Failed to encode response"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_, _ = w.Write(buf.Bytes())
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, errorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	})
}
