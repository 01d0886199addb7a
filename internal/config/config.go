// Package config provides configuration for taskgraph.
package config

import "time"

const (
	// DirName is the per-workspace data and config directory.
	DirName = ".taskgraph"
	// ConfigFileName is the config file looked up inside DirName.
	ConfigFileName = "config.yaml"
	// DatabaseFileName is the SQLite file inside the storage path.
	DatabaseFileName = "taskgraph.db"
)

// StorageBackend selects where state is persisted.
type StorageBackend string

const (
	BackendFile     StorageBackend = "file"
	BackendSQLite   StorageBackend = "sqlite"
	BackendPostgres StorageBackend = "postgres"
	BackendMemory   StorageBackend = "memory"
)

// ValidBackends returns all storage backends.
func ValidBackends() []StorageBackend {
	return []StorageBackend{BackendFile, BackendSQLite, BackendPostgres, BackendMemory}
}

// Config represents the taskgraph configuration.
type Config struct {
	Storage    StorageConfig    `yaml:"storage" toml:"storage"`
	Monitor    MonitorConfig    `yaml:"monitor" toml:"monitor"`
	Risk       RiskConfig       `yaml:"risk" toml:"risk"`
	Schedule   ScheduleConfig   `yaml:"schedule" toml:"schedule"`
	Automation AutomationConfig `yaml:"automation" toml:"automation"`
	Notify     NotifyConfig     `yaml:"notify" toml:"notify"`
	Log        LogConfig        `yaml:"log" toml:"log"`
}

// StorageConfig configures persistence.
type StorageConfig struct {
	Backend StorageBackend `yaml:"backend" toml:"backend"`
	// Path is the data directory for the file and sqlite backends.
	Path string `yaml:"path" toml:"path"`
	// DSN overrides the sqlite file path, and is required for postgres.
	DSN string `yaml:"dsn,omitempty" toml:"dsn"`
	// Debounce batches rapid mutations into one write. Zero saves on every mutation.
	Debounce time.Duration `yaml:"debounce" toml:"debounce"`
}

// MonitorConfig configures the periodic checks.
type MonitorConfig struct {
	DeadlineInterval   time.Duration `yaml:"deadline_interval" toml:"deadline_interval"`
	RecurrenceInterval time.Duration `yaml:"recurrence_interval" toml:"recurrence_interval"`
}

// RiskConfig configures the due-date thresholds of risk analysis.
type RiskConfig struct {
	DueSoonDays int `yaml:"due_soon_days" toml:"due_soon_days"`
	DueWeekDays int `yaml:"due_week_days" toml:"due_week_days"`
}

// ScheduleConfig configures duration estimates.
type ScheduleConfig struct {
	BaseDurationDays int `yaml:"base_duration_days" toml:"base_duration_days"`
}

// AutomationConfig configures the rule engine.
type AutomationConfig struct {
	Enabled           bool `yaml:"enabled" toml:"enabled"`
	CascadeOnComplete bool `yaml:"cascade_on_complete" toml:"cascade_on_complete"`
	MaxCascadeDepth   int  `yaml:"max_cascade_depth" toml:"max_cascade_depth"`
	HistorySize       int  `yaml:"history_size" toml:"history_size"`
}

// NotifyConfig configures the notification inbox.
type NotifyConfig struct {
	InboxSize int `yaml:"inbox_size" toml:"inbox_size"`
}

// LogConfig configures console logging.
type LogConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Storage: StorageConfig{
			Backend:  BackendFile,
			Path:     DirName,
			Debounce: time.Second,
		},
		Monitor: MonitorConfig{
			DeadlineInterval:   time.Minute,
			RecurrenceInterval: time.Hour,
		},
		Risk: RiskConfig{
			DueSoonDays: 2,
			DueWeekDays: 7,
		},
		Schedule: ScheduleConfig{
			BaseDurationDays: 3,
		},
		Automation: AutomationConfig{
			Enabled:           true,
			CascadeOnComplete: true,
			MaxCascadeDepth:   8,
			HistorySize:       100,
		},
		Notify: NotifyConfig{
			InboxSize: 50,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// DatabasePath returns the sqlite DSN: the explicit DSN or a file in Path.
func (s StorageConfig) DatabasePath() string {
	if s.DSN != "" {
		return s.DSN
	}
	return joinPath(s.Path, DatabaseFileName)
}
