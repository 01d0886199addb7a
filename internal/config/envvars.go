package config

import (
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
)

// EnvVarMapping defines the mapping between environment variables and config paths.
var EnvVarMapping = map[string]string{
	"TASKGRAPH_BACKEND":             "storage.backend",
	"TASKGRAPH_DATA_DIR":            "storage.path",
	"TASKGRAPH_DSN":                 "storage.dsn",
	"TASKGRAPH_DEBOUNCE":            "storage.debounce",
	"TASKGRAPH_DEADLINE_INTERVAL":   "monitor.deadline_interval",
	"TASKGRAPH_RECURRENCE_INTERVAL": "monitor.recurrence_interval",
	"TASKGRAPH_DUE_SOON_DAYS":       "risk.due_soon_days",
	"TASKGRAPH_DUE_WEEK_DAYS":       "risk.due_week_days",
	"TASKGRAPH_BASE_DURATION_DAYS":  "schedule.base_duration_days",
	"TASKGRAPH_AUTOMATION_ENABLED":  "automation.enabled",
	"TASKGRAPH_CASCADE":             "automation.cascade_on_complete",
	"TASKGRAPH_MAX_CASCADE_DEPTH":   "automation.max_cascade_depth",
	"TASKGRAPH_HISTORY_SIZE":        "automation.history_size",
	"TASKGRAPH_INBOX_SIZE":          "notify.inbox_size",
	"TASKGRAPH_LOG_LEVEL":           "log.level",
	"TASKGRAPH_LOG_FORMAT":          "log.format",
}

// ApplyEnvVars applies environment variable overrides to cfg.
// Returns the sorted config paths that were overridden.
func ApplyEnvVars(cfg *Config) []string {
	var overridden []string

	for envVar, configPath := range EnvVarMapping {
		value := os.Getenv(envVar)
		if value == "" {
			continue
		}
		if applyEnvVar(cfg, configPath, value) {
			overridden = append(overridden, configPath)
		}
	}

	sort.Strings(overridden)
	return overridden
}

// applyEnvVar applies a single environment variable to the config.
// Returns true if the value was applied.
func applyEnvVar(cfg *Config, path string, value string) bool {
	switch path {
	case "storage.backend":
		cfg.Storage.Backend = StorageBackend(strings.ToLower(value))
	case "storage.path":
		cfg.Storage.Path = value
	case "storage.dsn":
		cfg.Storage.DSN = value
	case "storage.debounce":
		return setDuration(&cfg.Storage.Debounce, value)
	case "monitor.deadline_interval":
		return setDuration(&cfg.Monitor.DeadlineInterval, value)
	case "monitor.recurrence_interval":
		return setDuration(&cfg.Monitor.RecurrenceInterval, value)
	case "risk.due_soon_days":
		return setInt(&cfg.Risk.DueSoonDays, value)
	case "risk.due_week_days":
		return setInt(&cfg.Risk.DueWeekDays, value)
	case "schedule.base_duration_days":
		return setInt(&cfg.Schedule.BaseDurationDays, value)
	case "automation.enabled":
		cfg.Automation.Enabled = parseBool(value)
	case "automation.cascade_on_complete":
		cfg.Automation.CascadeOnComplete = parseBool(value)
	case "automation.max_cascade_depth":
		return setInt(&cfg.Automation.MaxCascadeDepth, value)
	case "automation.history_size":
		return setInt(&cfg.Automation.HistorySize, value)
	case "notify.inbox_size":
		return setInt(&cfg.Notify.InboxSize, value)
	case "log.level":
		cfg.Log.Level = value
	case "log.format":
		cfg.Log.Format = value
	default:
		return false
	}
	return true
}

func setInt(dst *int, value string) bool {
	v, err := strconv.Atoi(value)
	if err != nil {
		return false
	}
	*dst = v
	return true
}

func setDuration(dst *time.Duration, value string) bool {
	d, err := time.ParseDuration(value)
	if err != nil {
		return false
	}
	*dst = d
	return true
}

// parseBool parses a boolean string (case-insensitive).
func parseBool(s string) bool {
	s = strings.ToLower(s)
	return s == "true" || s == "1" || s == "yes" || s == "on"
}
