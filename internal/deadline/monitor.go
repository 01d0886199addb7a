// Package deadline watches task end dates and raises overdue and due-today
// notifications, at most once per task per calendar day.
package deadline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/randalmurphal/taskgraph/internal/notify"
	"github.com/randalmurphal/taskgraph/internal/store"
	"github.com/randalmurphal/taskgraph/internal/task"
)

// DefaultInterval is how often Run checks deadlines.
const DefaultInterval = time.Minute

// Snapshotter provides the current task graph.
type Snapshotter interface {
	Snapshot() *store.Snapshot
}

// DateChecker fires date-driven rules. The rule engine implements it.
type DateChecker interface {
	CheckDates(ctx context.Context)
}

// Monitor raises deadline notifications.
type Monitor struct {
	store    Snapshotter
	notifier notify.Gateway
	rules    DateChecker
	logger   *slog.Logger
	now      func() time.Time
	interval time.Duration

	mu sync.Mutex
	// notified maps task ID to the date it was last notified.
	notified map[string]string
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Monitor) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithRules makes every check also evaluate date_reached rules.
func WithRules(rules DateChecker) Option {
	return func(m *Monitor) { m.rules = rules }
}

// WithClock overrides the time source used by Run.
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) {
		if now != nil {
			m.now = now
		}
	}
}

// WithInterval sets the Run period.
func WithInterval(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.interval = d
		}
	}
}

// NewMonitor creates a deadline monitor.
func NewMonitor(st Snapshotter, notifier notify.Gateway, opts ...Option) *Monitor {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	m := &Monitor{
		store:    st,
		notifier: notifier,
		logger:   slog.Default(),
		now:      time.Now,
		interval: DefaultInterval,
		notified: make(map[string]string),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Check notifies about every open task that is overdue or due on now's
// date, skipping tasks already notified today. Returns the number of
// notifications sent.
func (m *Monitor) Check(ctx context.Context, now time.Time) int {
	today := task.Today(now)
	snap := m.store.Snapshot()

	var pending []notify.Notification
	m.mu.Lock()
	for id, date := range m.notified {
		if date != today {
			delete(m.notified, id)
		}
	}
	for _, t := range snap.Tasks() {
		if t.IsDone() || t.EndDate == "" || t.EndDate > today {
			continue
		}
		if m.notified[t.ID] == today {
			continue
		}
		m.notified[t.ID] = today

		_, projectID, _ := snap.Task(t.ID)
		pending = append(pending, deadlineNotification(t, projectID, today, now))
	}
	m.mu.Unlock()

	for _, n := range pending {
		m.logger.Debug("deadline notification", "task", n.TaskID, "severity", n.Severity)
		m.notifier.Notify(ctx, n)
	}

	if m.rules != nil {
		m.rules.CheckDates(ctx)
	}
	return len(pending)
}

func deadlineNotification(t *task.Task, projectID, today string, now time.Time) notify.Notification {
	if t.EndDate < today {
		days, _ := task.DaysBetween(t.EndDate, today)
		return notify.New(
			now,
			"Task overdue",
			fmt.Sprintf("%q was due %s (%d %s ago)", t.Title, t.EndDate, days, plural(days, "day")),
			notify.SeverityWarning,
			projectID,
			t.ID,
		)
	}
	return notify.New(
		now,
		"Task due today",
		fmt.Sprintf("%q is due today", t.Title),
		notify.SeverityInfo,
		projectID,
		t.ID,
	)
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}

// Run checks once immediately and then every interval until ctx is done.
func (m *Monitor) Run(ctx context.Context) error {
	m.Check(ctx, m.now())

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Debug("deadline monitor stopping")
			return nil
		case <-ticker.C:
			m.Check(ctx, m.now())
		}
	}
}
