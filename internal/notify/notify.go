// Package notify is the fire-and-forget notification sink. The coordinator
// pushes success/error/info messages here; nothing ever reads a return value.
package notify

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Notification levels.
const (
	LevelSuccess = "success"
	LevelError   = "error"
	LevelInfo    = "info"
	LevelWarning = "warning"
)

// Notifier receives user-facing messages.
type Notifier interface {
	Notify(message, level string)
}

// LogNotifier writes notifications to the structured log.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n *LogNotifier) Notify(message, level string) {
	switch level {
	case LevelError:
		n.Logger.Error(message, "notification", level)
	case LevelWarning:
		n.Logger.Warn(message, "notification", level)
	default:
		n.Logger.Info(message, "notification", level)
	}
}

// Notification is one entry in the Feed.
type Notification struct {
	ID      string    `json:"id"`
	Message string    `json:"message"`
	Level   string    `json:"level"`
	At      time.Time `json:"at"`
}

// Feed keeps a bounded, most-recent-first list of notifications for the UI
// to poll.
type Feed struct {
	mu      sync.Mutex
	max     int
	entries []Notification
}

// NewFeed returns a feed retaining at most max entries.
func NewFeed(max int) *Feed {
	return &Feed{max: max}
}

func (f *Feed) Notify(message, level string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := Notification{
		ID:      uuid.NewString(),
		Message: message,
		Level:   level,
		At:      time.Now().UTC(),
	}
	f.entries = append([]Notification{n}, f.entries...)
	if len(f.entries) > f.max {
		f.entries = f.entries[:f.max]
	}
}

// Recent returns a copy of the retained notifications, newest first.
func (f *Feed) Recent() []Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Notification, len(f.entries))
	copy(out, f.entries)
	return out
}

// Fanout delivers each notification to every sink.
type Fanout []Notifier

func (f Fanout) Notify(message, level string) {
	for _, n := range f {
		n.Notify(message, level)
	}
}
