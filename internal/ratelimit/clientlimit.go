package ratelimit

import (
	"fmt"
	"strconv"
	"strings"
)

// ClientLimit is a per-client send budget. Clients are identified by the
// free-form name callers attach to send requests.
type ClientLimit struct {
	Name   string `mapstructure:"name"`
	Hourly int    `mapstructure:"hourly"`
	Daily  int    `mapstructure:"daily"`
}

// ParseClientLimit parses the compact name:hourly:daily flag form.
func ParseClientLimit(s string) (ClientLimit, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return ClientLimit{}, fmt.Errorf("invalid client limit '%s': expected 'name:hourly:daily'", s)
	}

	name := strings.TrimSpace(parts[0])
	if name == "" {
		return ClientLimit{}, fmt.Errorf("invalid client limit '%s': client name cannot be empty", s)
	}

	hourly, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return ClientLimit{}, fmt.Errorf("invalid hourly limit '%s' for client '%s'", parts[1], name)
	}
	daily, err := strconv.Atoi(strings.TrimSpace(parts[2]))
	if err != nil {
		return ClientLimit{}, fmt.Errorf("invalid daily limit '%s' for client '%s'", parts[2], name)
	}
	if hourly < 0 || daily < 0 {
		return ClientLimit{}, fmt.Errorf("invalid client limit '%s': limits cannot be negative", s)
	}

	return ClientLimit{Name: name, Hourly: hourly, Daily: daily}, nil
}
