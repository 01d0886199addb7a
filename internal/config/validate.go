package config

import (
	"fmt"
	"slices"
	"strings"

	tgerrors "github.com/randalmurphal/taskgraph/internal/errors"
)

var (
	validLogLevels  = []string{"debug", "info", "warn", "error"}
	validLogFormats = []string{"text", "json", "logfmt"}
)

// Validate checks the configuration for values the engine cannot run with.
func (c *Config) Validate() error {
	if !slices.Contains(ValidBackends(), c.Storage.Backend) {
		return tgerrors.ErrConfigInvalid("storage.backend",
			fmt.Sprintf("unknown backend %q (want one of file, sqlite, postgres, memory)", c.Storage.Backend))
	}
	if c.Storage.Backend == BackendPostgres && c.Storage.DSN == "" {
		return tgerrors.ErrConfigInvalid("storage.dsn", "the postgres backend needs a DSN")
	}
	if (c.Storage.Backend == BackendFile || c.Storage.Backend == BackendSQLite) &&
		c.Storage.Path == "" && c.Storage.DSN == "" {
		return tgerrors.ErrConfigInvalid("storage.path", "a data directory is required")
	}
	if c.Storage.Debounce < 0 {
		return tgerrors.ErrConfigInvalid("storage.debounce", "must not be negative")
	}
	if c.Monitor.DeadlineInterval <= 0 {
		return tgerrors.ErrConfigInvalid("monitor.deadline_interval", "must be positive")
	}
	if c.Monitor.RecurrenceInterval <= 0 {
		return tgerrors.ErrConfigInvalid("monitor.recurrence_interval", "must be positive")
	}
	if c.Risk.DueSoonDays < 0 || c.Risk.DueWeekDays < c.Risk.DueSoonDays {
		return tgerrors.ErrConfigInvalid("risk", "need 0 <= due_soon_days <= due_week_days")
	}
	if c.Schedule.BaseDurationDays < 1 {
		return tgerrors.ErrConfigInvalid("schedule.base_duration_days", "must be at least 1")
	}
	if c.Automation.MaxCascadeDepth < 1 {
		return tgerrors.ErrConfigInvalid("automation.max_cascade_depth", "must be at least 1")
	}
	if c.Automation.HistorySize < 1 {
		return tgerrors.ErrConfigInvalid("automation.history_size", "must be at least 1")
	}
	if c.Notify.InboxSize < 1 {
		return tgerrors.ErrConfigInvalid("notify.inbox_size", "must be at least 1")
	}
	if !slices.Contains(validLogLevels, strings.ToLower(c.Log.Level)) {
		return tgerrors.ErrConfigInvalid("log.level", fmt.Sprintf("unknown level %q", c.Log.Level))
	}
	if !slices.Contains(validLogFormats, strings.ToLower(c.Log.Format)) {
		return tgerrors.ErrConfigInvalid("log.format", fmt.Sprintf("unknown format %q", c.Log.Format))
	}
	return nil
}
