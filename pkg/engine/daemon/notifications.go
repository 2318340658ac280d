package daemon

import (
	"log/slog"

	"github.com/DrSkyle/sbh/pkg/engine/notifier"
)

// NotificationEvent is the union of things worth telling a human about.
type NotificationEvent struct {
	Kind NotificationKind

	// PressureChanged
	From, To string
	Mount    string
	FreePct  float64

	// CleanupCompleted
	ItemsDeleted int
	BytesFreed   uint64

	// BallastReleased
	FilesReleased int

	// Error
	Code, Message string
}

type NotificationKind int

const (
	NotifyPressureChanged NotificationKind = iota
	NotifyCleanupCompleted
	NotifyBallastReleased
	NotifyError
)

// NotificationManager routes events to the configured channel. A disabled
// manager swallows everything; delivery failures are logged, never fatal.
type NotificationManager struct {
	slack  *notifier.SlackClient
	logger *slog.Logger
}

// NewNotificationManager wires the webhook client; webhookURL may be empty.
func NewNotificationManager(webhookURL, channel string) *NotificationManager {
	m := &NotificationManager{logger: slog.Default()}
	if webhookURL != "" {
		m.slack = notifier.NewSlackClient(webhookURL, channel)
	}
	return m
}

// DisabledNotificationManager never delivers anything.
func DisabledNotificationManager() *NotificationManager {
	return &NotificationManager{logger: slog.Default()}
}

// IsEnabled reports whether any channel is configured.
func (m *NotificationManager) IsEnabled() bool { return m.slack != nil }

// Notify delivers one event. Failures are logged and swallowed: a missed
// notification must never block a tick.
func (m *NotificationManager) Notify(event *NotificationEvent) {
	if m.slack == nil {
		return
	}
	var err error
	switch event.Kind {
	case NotifyPressureChanged:
		err = m.slack.SendPressureAlert(event.Mount, event.From, event.To, event.FreePct)
	case NotifyCleanupCompleted:
		err = m.slack.SendCleanupReport(event.Mount, event.ItemsDeleted, event.BytesFreed)
	case NotifyBallastReleased:
		err = m.slack.SendBallastAlert(event.Mount, event.FilesReleased, event.BytesFreed)
	case NotifyError:
		err = m.slack.SendErrorAlert(event.Code, event.Message)
	}
	if err != nil {
		m.logger.Warn("notification delivery failed", "error", err)
	}
}
