// Package ratelimit provides send admission control over fixed wall-clock
// windows. Every send consumes global quota; sends attributed to a configured
// client name consume that client's quota as well. A reservation either
// commits in every window it touches or in none of them.
package ratelimit

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/goodtune/smsgate/internal/metrics"
	"github.com/rs/zerolog"
)

// GlobalScope is the scope label used for the shared global windows.
const GlobalScope = "__global__"

// Window identifies one of the two fixed window kinds.
type Window int

const (
	WindowHourly Window = iota
	WindowDaily
)

func (w Window) String() string {
	if w == WindowDaily {
		return "daily"
	}
	return "hourly"
}

// Denial reports which scope and window refused a reservation.
type Denial struct {
	Scope  string
	Window Window
	Limit  int
}

func (d *Denial) Error() string {
	if d.Scope == GlobalScope {
		return fmt.Sprintf("%s limit of %d reached", d.Window, d.Limit)
	}
	return fmt.Sprintf("client '%s' %s limit of %d reached", d.Scope, d.Window, d.Limit)
}

// Config holds the limiter's limits. A limit of 0 leaves that window uncapped.
type Config struct {
	Hourly  int
	Daily   int
	Clients []ClientLimit
}

// counters tracks one scope's usage in its current hourly and daily windows.
// Window starts are fixed UTC boundaries: the top of the hour and midnight.
type counters struct {
	hourStart time.Time
	hourUsed  int
	dayStart  time.Time
	dayUsed   int
}

// rollover resets any window whose UTC boundary has passed. Detection is
// lazy, but the boundary itself is wall-clock and never drifts with traffic.
func (c *counters) rollover(now time.Time) {
	hour := now.Truncate(time.Hour)
	if !hour.Equal(c.hourStart) {
		c.hourStart = hour
		c.hourUsed = 0
	}
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if !day.Equal(c.dayStart) {
		c.dayStart = day
		c.dayUsed = 0
	}
}

// Limiter enforces global and per-client send limits.
type Limiter struct {
	hourly int
	daily  int
	limits map[string]ClientLimit
	logger zerolog.Logger

	// clock is replaceable for window rollover tests
	clock func() time.Time

	mu      sync.Mutex
	global  counters
	clients map[string]*counters
}

// New creates a limiter from cfg and publishes the configured limits as
// gauges.
func New(cfg Config, logger zerolog.Logger) *Limiter {
	l := &Limiter{
		hourly:  cfg.Hourly,
		daily:   cfg.Daily,
		limits:  make(map[string]ClientLimit, len(cfg.Clients)),
		logger:  logger.With().Str("component", "ratelimit").Logger(),
		clock:   time.Now,
		clients: make(map[string]*counters, len(cfg.Clients)),
	}
	for _, cl := range cfg.Clients {
		l.limits[cl.Name] = cl
		l.clients[cl.Name] = &counters{}
		metrics.ClientHourlyLimit.WithLabelValues(cl.Name).Set(float64(cl.Hourly))
		metrics.ClientDailyLimit.WithLabelValues(cl.Name).Set(float64(cl.Daily))
	}
	metrics.HourlyLimit.Set(float64(cfg.Hourly))
	metrics.DailyLimit.Set(float64(cfg.Daily))
	return l
}

// CheckAndReserve admits one send attributed to client, or denies it. On
// admission every window the send touches is incremented; on denial no
// counter changes anywhere. Client names without configured limits (and the
// empty string) consume global quota only.
func (l *Limiter) CheckAndReserve(client string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock().UTC()
	l.global.rollover(now)
	l.syncGauges(GlobalScope, &l.global)

	if l.hourly > 0 && l.global.hourUsed >= l.hourly {
		return l.deny(&Denial{Scope: GlobalScope, Window: WindowHourly, Limit: l.hourly})
	}
	if l.daily > 0 && l.global.dayUsed >= l.daily {
		return l.deny(&Denial{Scope: GlobalScope, Window: WindowDaily, Limit: l.daily})
	}

	limit, tracked := l.limits[client]
	var cc *counters
	if tracked {
		cc = l.clients[client]
		cc.rollover(now)
		l.syncGauges(client, cc)

		if limit.Hourly > 0 && cc.hourUsed >= limit.Hourly {
			return l.deny(&Denial{Scope: client, Window: WindowHourly, Limit: limit.Hourly})
		}
		if limit.Daily > 0 && cc.dayUsed >= limit.Daily {
			return l.deny(&Denial{Scope: client, Window: WindowDaily, Limit: limit.Daily})
		}
	}

	l.global.hourUsed++
	l.global.dayUsed++
	l.syncGauges(GlobalScope, &l.global)
	if tracked {
		cc.hourUsed++
		cc.dayUsed++
		l.syncGauges(client, cc)
	}
	return nil
}

func (l *Limiter) deny(d *Denial) error {
	metrics.RateLimitedTotal.WithLabelValues(d.Scope, d.Window.String()).Inc()
	l.logger.Debug().
		Str("scope", d.Scope).
		Str("window", d.Window.String()).
		Int("limit", d.Limit).
		Msg("Send denied by rate limit")
	return d
}

func (l *Limiter) syncGauges(scope string, c *counters) {
	if scope == GlobalScope {
		metrics.HourlyUsage.Set(float64(c.hourUsed))
		metrics.DailyUsage.Set(float64(c.dayUsed))
		return
	}
	metrics.ClientHourlyUsage.WithLabelValues(scope).Set(float64(c.hourUsed))
	metrics.ClientDailyUsage.WithLabelValues(scope).Set(float64(c.dayUsed))
}

// Status is a point-in-time view of one scope's usage against its limits.
type Status struct {
	HourlyUsage int `json:"hourly_usage"`
	HourlyLimit int `json:"hourly_limit"`
	DailyUsage  int `json:"daily_usage"`
	DailyLimit  int `json:"daily_limit"`
}

// ClientStatus is the usage of one configured client scope.
type ClientStatus struct {
	Name string `json:"name"`
	Status
}

// Status reports global usage. Reads share the write path's rollover logic
// so a report taken after a boundary shows the fresh window.
func (l *Limiter) Status() Status {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.global.rollover(l.clock().UTC())
	l.syncGauges(GlobalScope, &l.global)
	return Status{
		HourlyUsage: l.global.hourUsed,
		HourlyLimit: l.hourly,
		DailyUsage:  l.global.dayUsed,
		DailyLimit:  l.daily,
	}
}

// ClientStatus reports usage for every configured client, sorted by name.
func (l *Limiter) ClientStatus() []ClientStatus {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock().UTC()
	out := make([]ClientStatus, 0, len(l.clients))
	for name, cc := range l.clients {
		cc.rollover(now)
		l.syncGauges(name, cc)
		limit := l.limits[name]
		out = append(out, ClientStatus{
			Name: name,
			Status: Status{
				HourlyUsage: cc.hourUsed,
				HourlyLimit: limit.Hourly,
				DailyUsage:  cc.dayUsed,
				DailyLimit:  limit.Daily,
			},
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
