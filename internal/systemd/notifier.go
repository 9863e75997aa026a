// Package systemd reports pipeline progress to the service manager so a
// Type=notify unit is only marked active once frames flow.
package systemd

import (
	"log/slog"

	"github.com/coreos/go-systemd/v22/daemon"

	"github.com/smazurov/tracknode/internal/events"
	"github.com/smazurov/tracknode/internal/logging"
)

var sdNotify = daemon.SdNotify

// Notifier relays pipeline state changes as sd_notify messages.
type Notifier struct {
	eventBus    *events.Bus
	logger      *slog.Logger
	unsubscribe func()
}

// NewNotifier creates a notifier. It does nothing outside systemd, where
// NOTIFY_SOCKET is unset.
func NewNotifier(eventBus *events.Bus) *Notifier {
	return &Notifier{
		eventBus: eventBus,
		logger:   logging.GetLogger("systemd"),
	}
}

// Start subscribes to pipeline state changes.
func (n *Notifier) Start() {
	n.unsubscribe = n.eventBus.Subscribe(func(e events.PipelineStateChangedEvent) {
		n.notify(e.To)
	})
}

// Stop unsubscribes.
func (n *Notifier) Stop() {
	if n.unsubscribe != nil {
		n.unsubscribe()
	}
}

func (n *Notifier) notify(state string) {
	var msg string
	switch state {
	case "running":
		msg = daemon.SdNotifyReady + "\nSTATUS=tracking"
	case "stopping":
		msg = daemon.SdNotifyStopping + "\nSTATUS=saving configuration"
	default:
		msg = "STATUS=" + state
	}

	sent, err := sdNotify(false, msg)
	if err != nil {
		n.logger.Warn("Failed to notify service manager", "state", state, "error", err)
		return
	}
	if sent {
		n.logger.Debug("Service manager notified", "state", state)
	}
}
