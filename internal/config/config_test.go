package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goodtune/smsgate/internal/ratelimit"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load with missing file should fall back to defaults: %v", err)
	}

	if cfg.Modem.URL != "http://192.168.8.1" {
		t.Errorf("unexpected default modem URL %s", cfg.Modem.URL)
	}
	if cfg.Modem.MaxSegments != 8 {
		t.Errorf("unexpected default max_segments %d", cfg.Modem.MaxSegments)
	}
	if cfg.Server.Port != 8080 || cfg.Server.BindAddress != "0.0.0.0" {
		t.Errorf("unexpected server defaults %+v", cfg.Server)
	}
	if cfg.Server.QueueSize != 64 {
		t.Errorf("unexpected default queue_size %d", cfg.Server.QueueSize)
	}
	if cfg.Limits.Hourly != 100 || cfg.Limits.Daily != 1000 {
		t.Errorf("unexpected limit defaults %+v", cfg.Limits)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" || cfg.Logging.Sensitive {
		t.Errorf("unexpected logging defaults %+v", cfg.Logging)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
modem:
  url: http://10.0.0.1
  timeout: 5s
  max_segments: 4
server:
  port: 9090
  queue_wait: 30s
tls:
  cert: /etc/smsgate/tls.crt
  key: /etc/smsgate/tls.key
  http_redirect_port: 8081
  redirect_host: sms.example.org
limits:
  hourly: 50
  daily: 200
  clients:
    - name: alertmanager
      hourly: 10
      daily: 40
    - name: backup
      hourly: 0
      daily: 5
alerts:
  phone: "+447700900999"
logging:
  level: debug
  format: text
  sensitive: true
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Modem.URL != "http://10.0.0.1" || cfg.Modem.MaxSegments != 4 {
		t.Errorf("unexpected modem config %+v", cfg.Modem)
	}
	if got := cfg.ModemTimeout().Seconds(); got != 5 {
		t.Errorf("expected 5s modem timeout, got %vs", got)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("unexpected server port %d", cfg.Server.Port)
	}
	if got := cfg.QueueWait().Seconds(); got != 30 {
		t.Errorf("expected 30s queue wait, got %vs", got)
	}
	if cfg.TLS.Cert == "" || cfg.TLS.HTTPRedirectPort != 8081 || cfg.TLS.RedirectHost != "sms.example.org" {
		t.Errorf("unexpected TLS config %+v", cfg.TLS)
	}
	if cfg.Alerts.Phone != "+447700900999" {
		t.Errorf("unexpected alert phone %s", cfg.Alerts.Phone)
	}

	want := []ratelimit.ClientLimit{
		{Name: "alertmanager", Hourly: 10, Daily: 40},
		{Name: "backup", Hourly: 0, Daily: 5},
	}
	if len(cfg.Limits.Clients) != len(want) {
		t.Fatalf("expected %d clients, got %d", len(want), len(cfg.Limits.Clients))
	}
	for i, cl := range want {
		if cfg.Limits.Clients[i] != cl {
			t.Errorf("client %d: expected %+v, got %+v", i, cl, cfg.Limits.Clients[i])
		}
	}
	if !cfg.Logging.Sensitive {
		t.Error("expected sensitive logging enabled")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SMSGATE_SERVER_PORT", "9999")
	t.Setenv("SMSGATE_MODEM_URL", "http://172.16.0.1")
	t.Setenv("SMSGATE_LOGGING_LEVEL", "trace")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("env override ignored for server port: %d", cfg.Server.Port)
	}
	if cfg.Modem.URL != "http://172.16.0.1" {
		t.Errorf("env override ignored for modem URL: %s", cfg.Modem.URL)
	}
	if cfg.Logging.Level != "trace" {
		t.Errorf("env override ignored for log level: %s", cfg.Logging.Level)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Modem:   ModemConfig{URL: "http://192.168.8.1", Timeout: "10s", MaxSegments: 8},
			Server:  ServerConfig{Port: 8080, BindAddress: "0.0.0.0", QueueSize: 64, QueueWait: "0s"},
			Limits:  LimitsConfig{Hourly: 100, Daily: 1000},
			Logging: LoggingConfig{Level: "info", Format: "json"},
		}
	}

	if err := validate(valid()); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "missing modem URL",
			mutate:  func(c *Config) { c.Modem.URL = "" },
			wantErr: "modem URL",
		},
		{
			name:    "bad modem URL scheme",
			mutate:  func(c *Config) { c.Modem.URL = "192.168.8.1" },
			wantErr: "http://",
		},
		{
			name:    "unparseable timeout",
			mutate:  func(c *Config) { c.Modem.Timeout = "ten seconds" },
			wantErr: "modem timeout",
		},
		{
			name:    "zero max segments",
			mutate:  func(c *Config) { c.Modem.MaxSegments = 0 },
			wantErr: "max_segments",
		},
		{
			name:    "port out of range",
			mutate:  func(c *Config) { c.Server.Port = 70000 },
			wantErr: "server port",
		},
		{
			name:    "zero queue size",
			mutate:  func(c *Config) { c.Server.QueueSize = 0 },
			wantErr: "queue_size",
		},
		{
			name:    "cert without key",
			mutate:  func(c *Config) { c.TLS.Cert = "/etc/smsgate/tls.crt" },
			wantErr: "set together",
		},
		{
			name:    "redirect without TLS",
			mutate:  func(c *Config) { c.TLS.HTTPRedirectPort = 8081 },
			wantErr: "http_redirect_port",
		},
		{
			name:    "negative hourly limit",
			mutate:  func(c *Config) { c.Limits.Hourly = -1 },
			wantErr: "hourly",
		},
		{
			name: "client limit without name",
			mutate: func(c *Config) {
				c.Limits.Clients = []ratelimit.ClientLimit{{Hourly: 1, Daily: 1}}
			},
			wantErr: "require a name",
		},
		{
			name: "negative client limit",
			mutate: func(c *Config) {
				c.Limits.Clients = []ratelimit.ClientLimit{{Name: "ops", Hourly: -1}}
			},
			wantErr: "cannot be negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := validate(cfg)
			if err == nil {
				t.Fatal("expected validation error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error mentioning %q, got %q", tt.wantErr, err)
			}
		})
	}
}
