package logging

import (
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"
)

const defaultRingSize = 1000

// Config represents logging configuration.
type Config struct {
	Level   string            `toml:"level"`
	Format  string            `toml:"format"`
	Modules map[string]string `toml:"modules"`
}

type module struct {
	logger *slog.Logger
	level  *slog.LevelVar
}

var (
	mu      sync.RWMutex
	cfg     = Config{Level: "info", Format: "text"}
	modules = make(map[string]*module)
	ring    = NewRing(defaultRingSize)
)

// Initialize applies cfg to every existing and future module logger and
// installs the default slog logger.
func Initialize(config Config) {
	mu.Lock()
	defer mu.Unlock()

	cfg = config
	for name, m := range modules {
		m.level.Set(levelFor(name))
		m.logger = slog.New(newHandler(cfg.Format, m.level)).With("module", name)
	}

	defaultLevel := &slog.LevelVar{}
	defaultLevel.Set(levelFor(""))
	slog.SetDefault(slog.New(newHandler(cfg.Format, defaultLevel)))
}

// GetLogger returns the logger for module, creating it on first use.
func GetLogger(name string) *slog.Logger {
	mu.RLock()
	m, ok := modules[name]
	mu.RUnlock()
	if ok {
		return m.logger
	}

	mu.Lock()
	defer mu.Unlock()
	if m, ok := modules[name]; ok {
		return m.logger
	}

	level := &slog.LevelVar{}
	level.Set(levelFor(name))
	m = &module{
		level:  level,
		logger: slog.New(newHandler(cfg.Format, level)).With("module", name),
	}
	modules[name] = m
	return m.logger
}

// SetLevel changes the level of one module at runtime.
func SetLevel(name, level string) error {
	parsed, ok := parseLevel(level)
	if !ok {
		return fmt.Errorf("invalid log level %q", level)
	}

	GetLogger(name)

	mu.Lock()
	defer mu.Unlock()
	modules[name].level.Set(parsed)
	return nil
}

// Levels returns the current level of every known module.
func Levels() map[string]string {
	mu.RLock()
	defer mu.RUnlock()

	levels := make(map[string]string, len(modules))
	for name, m := range modules {
		levels[name] = levelName(m.level.Level())
	}
	return levels
}

// Modules returns the sorted names of all known modules.
func Modules() []string {
	mu.RLock()
	defer mu.RUnlock()

	names := make([]string, 0, len(modules))
	for name := range modules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Recent returns the ring of recent log entries.
func Recent() *Ring {
	return ring
}

// levelFor resolves a module level from cfg; caller holds mu.
func levelFor(name string) slog.Level {
	level := slog.LevelInfo
	if parsed, ok := parseLevel(cfg.Level); ok {
		level = parsed
	}
	if override, exists := cfg.Modules[name]; exists {
		if parsed, ok := parseLevel(override); ok {
			level = parsed
		}
	}
	return level
}

func newHandler(format string, level slog.Leveler) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}

	handlers := []slog.Handler{NewRingHandler(ring, level)}

	if stdoutAttached() {
		if format == "json" {
			handlers = append(handlers, slog.NewJSONHandler(os.Stdout, opts))
		} else {
			handlers = append(handlers, slog.NewTextHandler(os.Stdout, opts))
		}
	}

	if JournalAvailable() {
		handlers = append(handlers, NewJournalHandler(level))
	}

	if len(handlers) == 1 {
		return handlers[0]
	}
	return NewMultiHandler(handlers...)
}

// stdoutAttached reports whether stdout is a terminal, pipe, socket or file.
// /dev/null is a device and does not count.
func stdoutAttached() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	mode := fi.Mode()
	return mode&os.ModeCharDevice != 0 || mode&os.ModeNamedPipe != 0 || mode&os.ModeSocket != 0 || mode.IsRegular()
}

func parseLevel(level string) (slog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}

func levelName(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "error"
	case level >= slog.LevelWarn:
		return "warn"
	case level >= slog.LevelInfo:
		return "info"
	default:
		return "debug"
	}
}
