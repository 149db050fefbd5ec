package logging

import (
	"log/slog"
	"os"
	"strings"
	"sync"
)

const historySize = 500

var (
	mu            sync.RWMutex
	moduleLoggers = make(map[string]*slog.Logger)
	moduleLevels  = make(map[string]*slog.LevelVar)
	globalLevel   = &slog.LevelVar{}
	cfg           Config
	initialized   bool
	history       *RingBuffer
)

// Config is the logging configuration.
type Config struct {
	Level   string            `toml:"level"`
	Format  string            `toml:"format"`
	Modules map[string]string `toml:"modules"`
}

// Initialize sets up the logging system. Loggers handed out before
// Initialize are re-pointed at the configured handler chain.
func Initialize(config Config) {
	mu.Lock()
	defer mu.Unlock()

	cfg = config
	initialized = true
	history = NewRingBuffer(historySize)

	lvl := parseLevel(config.Level, slog.LevelInfo)
	globalLevel.Set(lvl)

	for module, levelVar := range moduleLevels {
		moduleLevel := lvl
		if s, ok := config.Modules[module]; ok {
			moduleLevel = parseLevel(s, lvl)
		}
		levelVar.Set(moduleLevel)
		moduleLoggers[module] = slog.New(newHandler(config.Format, levelVar)).With("module", module)
	}

	slog.SetDefault(slog.New(newHandler(config.Format, globalLevel)))
}

// GetLogger returns the logger for module, creating it if needed.
func GetLogger(module string) *slog.Logger {
	mu.RLock()
	if l, ok := moduleLoggers[module]; ok {
		mu.RUnlock()
		return l
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if l, ok := moduleLoggers[module]; ok {
		return l
	}

	levelVar := &slog.LevelVar{}
	levelVar.Set(globalLevel.Level())
	format := "text"
	if initialized {
		if s, ok := cfg.Modules[module]; ok {
			levelVar.Set(parseLevel(s, globalLevel.Level()))
		}
		format = cfg.Format
	}

	l := slog.New(newHandler(format, levelVar)).With("module", module)
	moduleLoggers[module] = l
	moduleLevels[module] = levelVar
	return l
}

// SetModuleLevel changes one module's level at runtime. Unknown level
// strings are ignored. This is how the daemon's verbose toggle works:
// flipping it moves every module to debug and back without restarting.
func SetModuleLevel(module, level string) {
	mu.Lock()
	defer mu.Unlock()
	if lv, ok := moduleLevels[module]; ok {
		lv.Set(parseLevel(level, lv.Level()))
	}
}

// SetAllLevels changes the level of every module logger plus the default
// logger at runtime.
func SetAllLevels(level string) {
	mu.Lock()
	defer mu.Unlock()
	lvl := parseLevel(level, globalLevel.Level())
	globalLevel.Set(lvl)
	for _, lv := range moduleLevels {
		lv.Set(lvl)
	}
}

// History returns the in-memory log ring buffer, or nil before Initialize.
func History() *RingBuffer {
	mu.RLock()
	defer mu.RUnlock()
	return history
}

// newHandler builds the stdout(+journal)(+ring buffer) handler chain.
func newHandler(format string, level slog.Leveler) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}

	var handlers []slog.Handler
	if stdoutUsable() {
		if format == "json" {
			handlers = append(handlers, slog.NewJSONHandler(os.Stdout, opts))
		} else {
			handlers = append(handlers, slog.NewTextHandler(os.Stdout, opts))
		}
	}
	if journalAvailable() {
		handlers = append(handlers, newJournalHandler(level))
	}
	handlers = append(handlers, newBufferHandler(level))

	if len(handlers) == 1 {
		return handlers[0]
	}
	return newMultiHandler(handlers...)
}

// stdoutUsable reports whether stdout goes anywhere worth writing to
// (terminal, pipe, socket or regular file; not /dev/null).
func stdoutUsable() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	mode := fi.Mode()
	return mode&os.ModeCharDevice != 0 || mode&os.ModeNamedPipe != 0 || mode&os.ModeSocket != 0 || mode.IsRegular()
}

func parseLevel(s string, fallback slog.Level) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return fallback
	}
}
