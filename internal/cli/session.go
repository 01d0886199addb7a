package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/viper"

	"github.com/randalmurphal/taskgraph/internal/config"
	"github.com/randalmurphal/taskgraph/internal/engine"
	"github.com/randalmurphal/taskgraph/internal/notify"
	"github.com/randalmurphal/taskgraph/internal/storage"
)

// loadConfig resolves configuration from files, environment and global flags.
func loadConfig() (*config.Loaded, error) {
	path := cfgFile
	if path == "" {
		path = viper.ConfigFileUsed()
	}
	loaded, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	cfg := loaded.Config
	if v := viper.GetString("storage.backend"); v != "" && backend != "" {
		cfg.Storage.Backend = config.StorageBackend(strings.ToLower(v))
	}
	if v := viper.GetString("storage.path"); v != "" && dataDir != "" {
		cfg.Storage.Path = v
	}
	if verbose {
		cfg.Log.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return loaded, nil
}

// newLogger builds the console logger. charmbracelet/log serves as the
// slog handler so every component logs through the same formatter.
func newLogger(cfg config.LogConfig, w io.Writer) *slog.Logger {
	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		level = log.InfoLevel
	}
	if quiet && level < log.WarnLevel {
		level = log.WarnLevel
	}

	formatter := log.TextFormatter
	switch strings.ToLower(cfg.Format) {
	case "json":
		formatter = log.JSONFormatter
	case "logfmt":
		formatter = log.LogfmtFormatter
	}

	handler := log.NewWithOptions(w, log.Options{
		Level:           level,
		Formatter:       formatter,
		ReportTimestamp: verbose,
		Prefix:          "taskgraph",
	})
	return slog.New(handler)
}

// openEngine loads configuration, opens storage and returns a ready engine.
// The caller must call the returned close function, which flushes state.
func openEngine(ctx context.Context) (*engine.Engine, func() error, error) {
	loaded, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	cfg := loaded.Config

	logger := newLogger(cfg.Log, os.Stderr)
	slog.SetDefault(logger)

	b, err := storage.NewBackend(cfg.Storage, logger)
	if err != nil {
		return nil, nil, err
	}

	eng := engine.New(cfg, b, notify.NewLogGateway(logger.With("component", "notify")), logger)
	eng.Open(ctx)
	return eng, func() error { return eng.Close(context.Background()) }, nil
}

// withEngine runs fn against an open engine and closes it afterwards.
func withEngine(ctx context.Context, fn func(eng *engine.Engine) error) (err error) {
	eng, closeFn, err := openEngine(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := closeFn(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(eng)
}
