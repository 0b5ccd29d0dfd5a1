// Package modem speaks the session-based XML protocol of HiLink-style USB
// LTE modems. The client owns one session at a time, renews it transparently
// when the device reports it expired, and replays the interrupted request
// exactly once.
//
// Client methods are not safe for concurrent use. Access is serialized by
// the arbiter, which is the system's concurrency boundary.
package modem

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode"

	"github.com/goodtune/smsgate/internal/metrics"
	"github.com/goodtune/smsgate/internal/sms"
	"github.com/rs/zerolog"
)

const (
	pathSessionToken = "/api/webserver/SesTokInfo"
	pathSendSMS      = "/api/sms/send-sms"
	pathSMSList      = "/api/sms/sms-list"
	pathDeleteSMS    = "/api/sms/delete-sms"
	pathStatus       = "/api/monitoring/status"
	pathSMSCount     = "/api/sms/sms-count"
)

const (
	// DefaultTimeout bounds every HTTP exchange with the modem.
	DefaultTimeout = 10 * time.Second

	loginAttempts = 3

	serviceStatusAvailable = 2
)

// Config holds modem client settings.
type Config struct {
	URL     string
	Timeout time.Duration
}

// session is one authenticated conversation with the device. The cookie
// value and verification token travel together.
type session struct {
	id    string
	token string
}

// Client talks to a single modem.
type Client struct {
	baseURL      string
	http         *http.Client
	logger       zerolog.Logger
	loginBackoff time.Duration
	sess         *session
}

// NewClient creates a modem client for the device at cfg.URL.
func NewClient(cfg Config, logger zerolog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL:      strings.TrimRight(cfg.URL, "/"),
		http:         &http.Client{Timeout: timeout},
		logger:       logger.With().Str("component", "modem").Logger(),
		loginBackoff: 500 * time.Millisecond,
	}
}

// Send transmits all segments of one message to a single recipient, one
// protocol call per segment in sequence order. The first rejected segment
// aborts the rest.
func (c *Client) Send(ctx context.Context, to string, segments []sms.Segment) error {
	phone := stripWhitespace(to)
	if phone == "" {
		return fmt.Errorf("empty recipient number")
	}

	for _, seg := range segments {
		payload := sendRequest{
			Index:    -1,
			Phones:   phoneList{Phone: []string{phone}},
			Content:  seg.Text,
			Length:   seg.Units,
			Reserved: alphabetCode(seg.Alphabet),
			Date:     -1,
		}
		if seg.Total > 1 {
			payload.Concat = &concatInfo{Ref: int(seg.Ref), Seq: seg.Seq, Total: seg.Total}
		}
		if err := c.call(ctx, http.MethodPost, pathSendSMS, payload, nil); err != nil {
			return fmt.Errorf("segment %d/%d: %w", seg.Seq, seg.Total, err)
		}
		c.logger.Debug().
			Int("seq", seg.Seq).
			Int("total", seg.Total).
			Int("units", seg.Units).
			Str("alphabet", seg.Alphabet.String()).
			Msg("Segment accepted")
	}
	return nil
}

// List reads one page of messages from a modem box.
func (c *Client) List(ctx context.Context, params ListParams) (*MessageList, error) {
	if params.Page <= 0 {
		params.Page = 1
	}
	if params.Count <= 0 {
		params.Count = 20
	}
	if params.Box == 0 {
		params.Box = BoxLocalInbox
	}

	payload := listRequest{
		PageIndex:       params.Page,
		ReadCount:       params.Count,
		BoxType:         int(params.Box),
		SortType:        int(params.Sort),
		Ascending:       boolToInt(params.Ascending),
		UnreadPreferred: boolToInt(params.UnreadPreferred),
	}

	var resp listResponse
	if err := c.call(ctx, http.MethodPost, pathSMSList, payload, &resp); err != nil {
		return nil, err
	}

	metrics.SMSStored.Set(float64(resp.Count))
	return &MessageList{Count: resp.Count, Messages: resp.Messages}, nil
}

// Delete removes one stored message by its modem-assigned index.
func (c *Client) Delete(ctx context.Context, index int) error {
	return c.call(ctx, http.MethodPost, pathDeleteSMS, deleteRequest{Index: index}, nil)
}

// Status reads the modem's signal, registration, and storage state.
func (c *Client) Status(ctx context.Context) (*StatusSnapshot, error) {
	var ms monitoringStatus
	if err := c.call(ctx, http.MethodGet, pathStatus, nil, &ms); err != nil {
		return nil, err
	}
	var counts smsCount
	if err := c.call(ctx, http.MethodGet, pathSMSCount, nil, &counts); err != nil {
		return nil, err
	}

	snap := &StatusSnapshot{
		SignalLevel: ms.SignalIcon,
		NetworkType: networkTypeName(ms.CurrentNetworkType),
		Registered:  ms.ServiceStatus == serviceStatusAvailable,
		Unread:      counts.LocalUnread + counts.SimUnread,
		Stored: counts.LocalInbox + counts.LocalOutbox + counts.LocalDraft +
			counts.SimInbox + counts.SimOutbox + counts.SimDraft,
		StorageMax: counts.LocalMax + counts.SimMax,
	}

	metrics.SignalLevel.Set(float64(snap.SignalLevel))
	if snap.Registered {
		metrics.NetworkRegistered.Set(1)
	} else {
		metrics.NetworkRegistered.Set(0)
	}
	metrics.SMSStored.Set(float64(snap.Stored))
	return snap, nil
}

// call issues one authenticated request, logging in first if no session is
// held. When the device reports the session invalid the client renews it and
// replays the request once; a second rejection surfaces ErrSessionExpired.
func (c *Client) call(ctx context.Context, method, path string, payload, out any) error {
	if c.sess == nil {
		if err := c.login(ctx); err != nil {
			return err
		}
	}

	err := c.do(ctx, method, path, payload, out)
	var apiErr *APIError
	if errors.As(err, &apiErr) && isSessionError(apiErr.Code) {
		c.logger.Info().Int("code", apiErr.Code).Str("path", path).Msg("Session rejected, renewing")
		metrics.SessionRenewalsTotal.Inc()
		c.sess = nil
		if err := c.login(ctx); err != nil {
			return err
		}
		err = c.do(ctx, method, path, payload, out)
		if errors.As(err, &apiErr) && isSessionError(apiErr.Code) {
			return fmt.Errorf("%w: replay rejected with code %d", ErrSessionExpired, apiErr.Code)
		}
	}
	return err
}

// do performs a single request against the device without retry logic.
func (c *Client) do(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := xml.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Cookie", "SessionID="+c.sess.id)
	// Set directly: the device matches this header name case-sensitively and
	// MIME canonicalization would mangle it.
	req.Header["__RequestVerificationToken"] = []string{c.sess.token}
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	if payload != nil {
		req.Header.Set("Content-Type", "text/xml")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("modem returned status %d for %s", resp.StatusCode, path)
	}
	return parseResponse(raw, out)
}

// login performs the token handshake with bounded retries.
func (c *Client) login(ctx context.Context) error {
	var lastErr error
	for attempt := 1; attempt <= loginAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.loginBackoff):
			}
		}
		sess, err := c.fetchSession(ctx)
		if err == nil {
			c.sess = sess
			c.logger.Debug().Msg("Session established")
			return nil
		}
		lastErr = err
		c.logger.Warn().Err(err).Int("attempt", attempt).Msg("Session handshake failed")
	}
	return lastErr
}

// fetchSession retrieves a fresh session and verification token. The device
// wraps the cookie value in a "SessionID=" prefix which must be present.
func (c *Client) fetchSession(ctx context.Context) (*session, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+pathSessionToken, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: handshake returned status %d", ErrAuthFailed, resp.StatusCode)
	}

	var info sesTokInfo
	if err := xml.Unmarshal(raw, &info); err != nil {
		return nil, fmt.Errorf("%w: malformed handshake response: %v", ErrAuthFailed, err)
	}

	const prefix = "SessionID="
	if !strings.HasPrefix(info.SesInfo, prefix) {
		return nil, fmt.Errorf("%w: unexpected session info format", ErrAuthFailed)
	}
	if info.TokInfo == "" {
		return nil, fmt.Errorf("%w: handshake returned no token", ErrAuthFailed)
	}
	return &session{id: strings.TrimPrefix(info.SesInfo, prefix), token: info.TokInfo}, nil
}

// parseResponse decodes a device reply, mapping <error> payloads to APIError.
// With a nil out the reply must be the plain OK acknowledgement.
func parseResponse(raw []byte, out any) error {
	trimmed := bytes.TrimSpace(raw)
	if bytes.HasPrefix(trimmed, []byte("<error")) {
		var e errorResponse
		if err := xml.Unmarshal(trimmed, &e); err != nil {
			return fmt.Errorf("malformed error response: %w", err)
		}
		return &APIError{Code: e.Code, Message: e.Message}
	}
	if out == nil {
		if !bytes.Contains(trimmed, []byte("<response>OK</response>")) {
			return fmt.Errorf("unexpected modem response: %s", trimmed)
		}
		return nil
	}
	if err := xml.Unmarshal(trimmed, out); err != nil {
		return fmt.Errorf("malformed modem response: %w", err)
	}
	return nil
}

// alphabetCode is the encoding discriminator the device expects in the
// Reserved field.
func alphabetCode(a sms.Alphabet) int {
	if a == sms.AlphabetUCS2 {
		return 2
	}
	return 1
}

func stripWhitespace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
