package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// Send metrics
	SMSSentTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "smsgate_sms_sent_total",
			Help: "Total number of SMS messages sent",
		},
	)

	SMSSegmentsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "smsgate_sms_segments_total",
			Help: "Total number of SMS segments sent, including parts of concatenated messages",
		},
	)

	SMSCountryTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smsgate_sms_country_total",
			Help: "SMS messages sent by destination country code",
		},
		[]string{"country_code"},
	)

	// HTTP metrics
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smsgate_http_requests_total",
			Help: "Total HTTP requests handled per endpoint",
		},
		[]string{"endpoint"},
	)

	// Rate limit metrics
	RateLimitedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smsgate_rate_limited_total",
			Help: "Send requests denied by the rate limiter",
		},
		[]string{"scope", "window"},
	)

	HourlyLimit = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "smsgate_hourly_limit",
			Help: "Configured global hourly send limit",
		},
	)

	DailyLimit = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "smsgate_daily_limit",
			Help: "Configured global daily send limit",
		},
	)

	HourlyUsage = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "smsgate_hourly_usage",
			Help: "Sends reserved in the current hourly window",
		},
	)

	DailyUsage = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "smsgate_daily_usage",
			Help: "Sends reserved in the current daily window",
		},
	)

	ClientHourlyLimit = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "smsgate_client_hourly_limit",
			Help: "Configured hourly send limit per client",
		},
		[]string{"client"},
	)

	ClientDailyLimit = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "smsgate_client_daily_limit",
			Help: "Configured daily send limit per client",
		},
		[]string{"client"},
	)

	ClientHourlyUsage = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "smsgate_client_hourly_usage",
			Help: "Sends reserved per client in the current hourly window",
		},
		[]string{"client"},
	)

	ClientDailyUsage = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "smsgate_client_daily_usage",
			Help: "Sends reserved per client in the current daily window",
		},
		[]string{"client"},
	)

	// Modem metrics
	SessionRenewalsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "smsgate_modem_session_renewals_total",
			Help: "Modem sessions renewed after expiry mid-operation",
		},
	)

	SMSStored = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "smsgate_sms_stored",
			Help: "Messages stored on the modem at the last inbox read",
		},
	)

	SignalLevel = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "smsgate_signal_level",
			Help: "Modem signal level (0-5) at the last status read",
		},
	)

	NetworkRegistered = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "smsgate_network_registered",
			Help: "Whether the modem was registered on the network at the last status read",
		},
	)

	// Build metrics
	StartTimeSeconds = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "smsgate_start_time_seconds",
			Help: "Unix timestamp of process start",
		},
	)

	VersionInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "smsgate_version_info",
			Help: "Build version information",
		},
		[]string{"version", "git_hash"},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(
		SMSSentTotal,
		SMSSegmentsTotal,
		SMSCountryTotal,
		HTTPRequestsTotal,
		RateLimitedTotal,
		HourlyLimit,
		DailyLimit,
		HourlyUsage,
		DailyUsage,
		ClientHourlyLimit,
		ClientDailyLimit,
		ClientHourlyUsage,
		ClientDailyUsage,
		SessionRenewalsTotal,
		SMSStored,
		SignalLevel,
		NetworkRegistered,
		StartTimeSeconds,
		VersionInfo,
	)
}

// SetBuildInfo records build information and the process start time.
func SetBuildInfo(version, gitHash string) {
	VersionInfo.WithLabelValues(version, gitHash).Set(1)
	StartTimeSeconds.Set(float64(time.Now().Unix()))
}
