package shotline

import (
	"context"
	"log/slog"
	"sync"
)

// NoopNotifier discards all events. It is the default dispatcher when none
// is configured.
type NoopNotifier struct{}

// NewNoopNotifier creates a notifier that does nothing.
func NewNoopNotifier() *NoopNotifier { return &NoopNotifier{} }

func (n *NoopNotifier) Publish(ctx context.Context, event Event) error { return nil }

func (n *NoopNotifier) NotifyUser(ctx context.Context, userID int64, event Event) error {
	return nil
}

// LoggingNotifier writes every event to a structured logger. Useful as the
// external channel in development environments.
type LoggingNotifier struct {
	logger *slog.Logger
}

// NewLoggingNotifier creates a notifier backed by a slog logger.
func NewLoggingNotifier(logger *slog.Logger) *LoggingNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingNotifier{logger: logger}
}

func (n *LoggingNotifier) Publish(ctx context.Context, event Event) error {
	n.logger.Info("version event",
		"event", string(event.Kind),
		"version_id", event.VersionID,
		"version_code", event.VersionCode,
		"owner", event.Owner.Key(),
		"reason", event.Reason)
	return nil
}

func (n *LoggingNotifier) NotifyUser(ctx context.Context, userID int64, event Event) error {
	n.logger.Info("user notification",
		"user_id", userID,
		"event", string(event.Kind),
		"version_id", event.VersionID)
	return nil
}

// RecordingNotifier captures events in memory for tests.
type RecordingNotifier struct {
	mu        sync.Mutex
	published []Event
	userNotes map[int64][]Event

	// PublishErr and NotifyErr, when set, are returned from the
	// corresponding methods to exercise failure handling.
	PublishErr error
	NotifyErr  error
}

// NewRecordingNotifier creates an in-memory notifier for tests.
func NewRecordingNotifier() *RecordingNotifier {
	return &RecordingNotifier{userNotes: make(map[int64][]Event)}
}

func (n *RecordingNotifier) Publish(ctx context.Context, event Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.PublishErr != nil {
		return n.PublishErr
	}
	n.published = append(n.published, event)
	return nil
}

func (n *RecordingNotifier) NotifyUser(ctx context.Context, userID int64, event Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.NotifyErr != nil {
		return n.NotifyErr
	}
	n.userNotes[userID] = append(n.userNotes[userID], event)
	return nil
}

// Published returns a copy of the externally published events.
func (n *RecordingNotifier) Published() []Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]Event, len(n.published))
	copy(out, n.published)
	return out
}

// UserEvents returns the in-app notifications captured for a user.
func (n *RecordingNotifier) UserEvents(userID int64) []Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	events := n.userNotes[userID]
	out := make([]Event, len(events))
	copy(out, events)
	return out
}
