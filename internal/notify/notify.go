// Package notify defines user-facing notifications and the gateways that
// deliver them. The engine never knows how a notification is displayed.
package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/randalmurphal/taskgraph/internal/events"
)

// Severity classifies a notification.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeveritySuccess  Severity = "success"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// ParseSeverity maps loose input to a Severity, defaulting to info.
func ParseSeverity(s string) Severity {
	switch Severity(s) {
	case SeveritySuccess, SeverityWarning, SeverityCritical:
		return Severity(s)
	case "error":
		return SeverityCritical
	default:
		return SeverityInfo
	}
}

// Notification is a message for the user.
type Notification struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Message   string   `json:"message,omitempty"`
	Severity  Severity `json:"severity"`
	ProjectID string   `json:"project_id,omitempty"`
	TaskID    string   `json:"task_id,omitempty"`
	// Persistent notifications stay in the inbox until dismissed.
	Persistent bool      `json:"persistent"`
	CreatedAt  time.Time `json:"created_at"`
}

// New creates a notification stamped at the caller's clock reading.
// Warning and critical notifications are persistent.
func New(at time.Time, title, message string, severity Severity, projectID, taskID string) Notification {
	return Notification{
		ID:         uuid.NewString(),
		Title:      title,
		Message:    message,
		Severity:   severity,
		ProjectID:  projectID,
		TaskID:     taskID,
		Persistent: severity == SeverityWarning || severity == SeverityCritical,
		CreatedAt:  at,
	}
}

// Gateway delivers notifications. Delivery is fire-and-forget.
type Gateway interface {
	Notify(ctx context.Context, n Notification)
}

// Nop discards notifications.
type Nop struct{}

func (Nop) Notify(context.Context, Notification) {}

// LogGateway writes notifications to a structured logger.
type LogGateway struct {
	logger *slog.Logger
}

// NewLogGateway creates a gateway that logs each notification.
func NewLogGateway(logger *slog.Logger) *LogGateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogGateway{logger: logger}
}

func (g *LogGateway) Notify(ctx context.Context, n Notification) {
	level := slog.LevelInfo
	switch n.Severity {
	case SeverityWarning:
		level = slog.LevelWarn
	case SeverityCritical:
		level = slog.LevelError
	}
	g.logger.Log(ctx, level, n.Title,
		"message", n.Message,
		"severity", n.Severity,
		"project", n.ProjectID,
		"task", n.TaskID)
}

// PublisherGateway forwards notifications as events.
type PublisherGateway struct {
	pub events.Publisher
}

// NewPublisherGateway creates a gateway that publishes EventNotification events.
func NewPublisherGateway(pub events.Publisher) *PublisherGateway {
	return &PublisherGateway{pub: pub}
}

func (g *PublisherGateway) Notify(_ context.Context, n Notification) {
	g.pub.Publish(events.NewEvent(events.EventNotification, n.ProjectID, n.TaskID, n))
}

// Multi fans a notification out to several gateways in order.
type Multi []Gateway

func (m Multi) Notify(ctx context.Context, n Notification) {
	for _, g := range m {
		if g != nil {
			g.Notify(ctx, n)
		}
	}
}

// DefaultInboxSize bounds the number of transient notifications an Inbox keeps.
const DefaultInboxSize = 50

// Inbox keeps recent notifications in memory. Persistent notifications are
// kept until dismissed; transient ones are trimmed oldest-first past the limit.
type Inbox struct {
	mu    sync.Mutex
	items []Notification
	limit int
}

// NewInbox creates an inbox. A non-positive limit uses DefaultInboxSize.
func NewInbox(limit int) *Inbox {
	if limit <= 0 {
		limit = DefaultInboxSize
	}
	return &Inbox{limit: limit}
}

func (b *Inbox) Notify(_ context.Context, n Notification) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.items = append(b.items, n)

	transient := 0
	for _, it := range b.items {
		if !it.Persistent {
			transient++
		}
	}
	if transient <= b.limit {
		return
	}

	// Drop the oldest transient entries.
	drop := transient - b.limit
	kept := b.items[:0]
	for _, it := range b.items {
		if !it.Persistent && drop > 0 {
			drop--
			continue
		}
		kept = append(kept, it)
	}
	b.items = kept
}

// All returns every notification in arrival order.
func (b *Inbox) All() []Notification {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Notification, len(b.items))
	copy(out, b.items)
	return out
}

// Persistent returns the notifications awaiting dismissal.
func (b *Inbox) Persistent() []Notification {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []Notification
	for _, it := range b.items {
		if it.Persistent {
			out = append(out, it)
		}
	}
	return out
}

// Dismiss removes a notification. Returns false if it was not present.
func (b *Inbox) Dismiss(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, it := range b.items {
		if it.ID == id {
			b.items = append(b.items[:i], b.items[i+1:]...)
			return true
		}
	}
	return false
}

// Clear removes every notification.
func (b *Inbox) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.items = nil
}
