// Package systemd integrates the gateway with systemd: socket-activated
// listeners and startup/shutdown notification.
package systemd

import (
	"fmt"
	"net"
	"os"

	"github.com/coreos/go-systemd/v22/activation"
	"github.com/coreos/go-systemd/v22/daemon"
)

// Listeners holds the systemd-activated listeners the gateway understands.
// Names come from FileDescriptorName= directives in smsgate.socket.
type Listeners struct {
	HTTP      net.Listener // "http": the gateway listener
	Redirect  net.Listener // "redirect": the plain-HTTP redirect listener
	Activated bool
}

// GetListeners retrieves socket-activated file descriptors. Without socket
// activation it returns zero-value Listeners and the gateway binds its own
// ports.
func GetListeners() (*Listeners, error) {
	listeners := &Listeners{}

	fds := activation.Files(false)
	if len(fds) == 0 {
		return listeners, nil
	}
	listeners.Activated = true

	// Named listeners require systemd 227+.
	byName, err := activation.ListenersWithNames()
	if err != nil {
		return nil, fmt.Errorf("failed to get systemd listeners: %w", err)
	}

	if lns, ok := byName["http"]; ok && len(lns) > 0 {
		listeners.HTTP = lns[0]
	}
	if lns, ok := byName["redirect"]; ok && len(lns) > 0 {
		listeners.Redirect = lns[0]
	}

	// A socket unit without FileDescriptorName= passes its listener under
	// the unit's own name; treat a single unnamed listener as the gateway
	// listener.
	if listeners.HTTP == nil {
		for _, lns := range byName {
			if len(lns) > 0 {
				listeners.HTTP = lns[0]
				break
			}
		}
	}
	if listeners.HTTP == nil {
		return nil, fmt.Errorf("socket activation passed %d fds but no usable listener", len(fds))
	}

	return listeners, nil
}

// NotifyReady sends READY=1 to systemd once startup has finished. Outside
// systemd this is a no-op.
func NotifyReady() error {
	if _, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		return fmt.Errorf("failed to send sd_notify: %w", err)
	}
	return nil
}

// NotifyStopping sends STOPPING=1 to systemd when shutdown begins.
func NotifyStopping() error {
	if _, err := daemon.SdNotify(false, daemon.SdNotifyStopping); err != nil {
		return fmt.Errorf("failed to send sd_notify stopping: %w", err)
	}
	return nil
}

// IsSystemdService reports whether a systemd notify socket is available.
func IsSystemdService() bool {
	return os.Getenv("NOTIFY_SOCKET") != ""
}
