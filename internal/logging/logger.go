// Package logging provides module loggers built on log/slog.
//
// Initialize installs the process configuration once, GetLogger hands out a logger
// tagged with its module name whose level follows the global or per-module setting.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// Config is the [logging] section of the configuration.
type Config struct {
	Level   string            `toml:"level"`
	Format  string            `toml:"format"` // text, json or journal
	Modules map[string]string `toml:"modules"`
}

var (
	moduleLoggers   = make(map[string]*slog.Logger)
	moduleLevelVars = make(map[string]*slog.LevelVar)
	globalConfig    = Config{Level: "info", Format: "text"}
	globalLevelVar  = &slog.LevelVar{}
	mutex           sync.RWMutex

	output io.Writer = os.Stderr
)

// Initialize applies config to the default logger and to every module logger.
func Initialize(config Config) {
	mutex.Lock()
	defer mutex.Unlock()

	globalConfig = config
	globalLevelVar.Set(levelOr(config.Level, slog.LevelInfo))

	for module, levelVar := range moduleLevelVars {
		levelVar.Set(moduleLevel(module))
		moduleLoggers[module] = slog.New(createHandler(config.Format, levelVar)).With("module", module)
	}

	slog.SetDefault(slog.New(createHandler(config.Format, globalLevelVar)))
}

// GetLogger returns the logger of a module, creating it on first use.
func GetLogger(module string) *slog.Logger {
	mutex.RLock()
	logger, ok := moduleLoggers[module]
	mutex.RUnlock()

	if ok {
		return logger
	}

	mutex.Lock()
	defer mutex.Unlock()

	if logger, ok := moduleLoggers[module]; ok {
		return logger
	}

	levelVar := &slog.LevelVar{}
	levelVar.Set(moduleLevel(module))

	logger = slog.New(createHandler(globalConfig.Format, levelVar)).With("module", module)
	moduleLoggers[module] = logger
	moduleLevelVars[module] = levelVar

	return logger
}

// moduleLevel returns the configured level of a module. The caller holds mutex.
func moduleLevel(module string) slog.Level {
	level := levelOr(globalConfig.Level, slog.LevelInfo)
	if s, ok := globalConfig.Modules[module]; ok {
		level = levelOr(s, level)
	}

	return level
}

// createHandler returns the handler for format. The journal format falls back to text
// when no journal socket is reachable.
func createHandler(format string, level slog.Leveler) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}

	switch format {
	case "json":
		return slog.NewJSONHandler(output, opts)
	case "journal":
		if IsJournalAvailable() {
			return NewJournalHandler(level)
		}
	}

	return slog.NewTextHandler(output, opts)
}

func levelOr(level string, def slog.Level) slog.Level {
	if l := parseLevel(level); l != nil {
		return *l
	}

	return def
}

// parseLevel converts a level name to slog.Level, nil when unknown.
func parseLevel(level string) *slog.Level {
	var l slog.Level

	switch strings.ToLower(level) {
	case "debug":
		l = slog.LevelDebug
	case "info":
		l = slog.LevelInfo
	case "warn", "warning":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		return nil
	}

	return &l
}
