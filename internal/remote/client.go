// Package remote is a thin client for a running gateway's REST API. CLI
// commands use it instead of the local modem so quota accounting happens
// exactly once, at the gateway.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goodtune/smsgate/internal/modem"
	"github.com/goodtune/smsgate/internal/ratelimit"
	"github.com/rs/zerolog"
)

// GatewayStatus is the gateway's /status response body.
type GatewayStatus struct {
	Status     string                   `json:"status"`
	Version    string                   `json:"version"`
	Uptime     string                   `json:"uptime"`
	Modem      *modem.StatusSnapshot    `json:"modem,omitempty"`
	ModemError string                   `json:"modem_error,omitempty"`
	Limits     ratelimit.Status         `json:"limits"`
	Clients    []ratelimit.ClientStatus `json:"clients,omitempty"`
}

type apiError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// Client talks to a gateway's REST API.
type Client struct {
	baseURL string
	http    *http.Client
	logger  zerolog.Logger
}

// NewClient creates a client for the gateway at baseURL.
func NewClient(baseURL string, timeout time.Duration, logger zerolog.Logger) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		logger:  logger.With().Str("component", "remote").Logger(),
	}
}

// SendSMS submits one send through the gateway.
func (c *Client) SendSMS(ctx context.Context, to, body, client string) error {
	payload := map[string]string{"to": to, "message": body}
	if client != "" {
		payload["client"] = client
	}
	return c.do(ctx, http.MethodPost, "/send-sms", nil, payload, nil)
}

// ListSMS reads one page of messages through the gateway.
func (c *Client) ListSMS(ctx context.Context, params modem.ListParams) (*modem.MessageList, error) {
	query := url.Values{}
	if params.Count > 0 {
		query.Set("count", strconv.Itoa(params.Count))
	}
	if params.Page > 0 {
		query.Set("page", strconv.Itoa(params.Page))
	}
	if params.Box != 0 {
		query.Set("box_type", strconv.Itoa(int(params.Box)))
	}
	query.Set("sort_by", params.Sort.String())
	if params.Ascending {
		query.Set("ascending", "true")
	}
	if params.UnreadPreferred {
		query.Set("unread_preferred", "true")
	}

	var list modem.MessageList
	if err := c.do(ctx, http.MethodGet, "/get-sms", query, nil, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// DeleteSMS removes one stored message through the gateway.
func (c *Client) DeleteSMS(ctx context.Context, index int) error {
	return c.do(ctx, http.MethodPost, "/delete-sms", nil, map[string]int{"index": index}, nil)
}

// Status reads the gateway's own status report.
func (c *Client) Status(ctx context.Context) (*GatewayStatus, error) {
	var status GatewayStatus
	if err := c.do(ctx, http.MethodGet, "/status", nil, nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, payload, out interface{}) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("gateway unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr apiError
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Message != "" {
			return fmt.Errorf("gateway: %s", apiErr.Message)
		}
		return fmt.Errorf("gateway returned status %d for %s", resp.StatusCode, path)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode gateway response: %w", err)
		}
	}
	return nil
}
