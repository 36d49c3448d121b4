package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

// LogLevel represents the severity of a log message
type LogLevel int

const (
	// LevelDebug is the debug log level
	LevelDebug LogLevel = iota
	// LevelInfo is the info log level
	LevelInfo
	// LevelWarn is the warning log level
	LevelWarn
	// LevelError is the error log level
	LevelError
)

var (
	mu           sync.RWMutex
	logger       *slog.Logger
	format       string
	currentLevel LogLevel
	levelVar     = new(slog.LevelVar)
	levelOnce    sync.Once
)

// initLevel initializes the log level and handler from environment variables
func initLevel() {
	levelOnce.Do(func() {
		level := LevelInfo

		// DEBUG wins over LOG_LEVEL
		if debug := os.Getenv("DEBUG"); debug != "" {
			switch strings.ToLower(debug) {
			case "1", "true", "yes", "on":
				level = LevelDebug
			}
		}
		if level != LevelDebug {
			if parsed, ok := ParseLevel(os.Getenv("LOG_LEVEL")); ok {
				level = parsed
			}
		}

		mu.Lock()
		defer mu.Unlock()
		setLevelLocked(level)
		format = strings.ToLower(os.Getenv("LOG_FORMAT"))
		logger = slog.New(newHandler(os.Stderr, format))
	})
}

// ParseLevel converts a level name into a LogLevel. Unknown names report false.
func ParseLevel(s string) (LogLevel, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, true
	case "info":
		return LevelInfo, true
	case "warn", "warning":
		return LevelWarn, true
	case "error":
		return LevelError, true
	default:
		return LevelInfo, false
	}
}

func setLevelLocked(level LogLevel) {
	currentLevel = level
	switch level {
	case LevelDebug:
		levelVar.Set(slog.LevelDebug)
	case LevelWarn:
		levelVar.Set(slog.LevelWarn)
	case LevelError:
		levelVar.Set(slog.LevelError)
	default:
		levelVar.Set(slog.LevelInfo)
	}
}

// newHandler picks the slog handler for the requested format. Terminals get
// tint's coloured output, everything else plain text unless json is asked for.
func newHandler(w io.Writer, logFormat string) slog.Handler {
	opts := &slog.HandlerOptions{Level: levelVar}

	switch logFormat {
	case "json":
		return slog.NewJSONHandler(w, opts)
	case "text":
		return slog.NewTextHandler(w, opts)
	}

	noColor := true
	if f, ok := w.(*os.File); ok {
		noColor = !isatty.IsTerminal(f.Fd()) && !isatty.IsCygwinTerminal(f.Fd())
		w = colorable.NewColorable(f)
	}
	return tint.NewHandler(w, &tint.Options{
		Level:      levelVar,
		TimeFormat: time.DateTime,
		NoColor:    noColor,
	})
}

// Configure overrides the level and output format, typically after the
// configuration file has been read. Empty values keep the current setting.
func Configure(level, logFormat string) {
	initLevel()

	mu.Lock()
	defer mu.Unlock()

	if parsed, ok := ParseLevel(level); ok {
		setLevelLocked(parsed)
	}
	if logFormat != "" {
		format = strings.ToLower(logFormat)
		logger = slog.New(newHandler(os.Stderr, format))
	}
}

// SetOutput redirects log output, keeping the configured format.
func SetOutput(w io.Writer) {
	initLevel()

	mu.Lock()
	defer mu.Unlock()
	logger = slog.New(newHandler(w, format))
}

// Logger returns the underlying structured logger for callers that want attributes.
func Logger() *slog.Logger {
	initLevel()

	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// GetLevel returns the current log level
func GetLevel() LogLevel {
	initLevel()

	mu.RLock()
	defer mu.RUnlock()
	return currentLevel
}

// IsDebugEnabled returns true if debug logging is enabled
func IsDebugEnabled() bool {
	return GetLevel() <= LevelDebug
}

func logf(level slog.Level, format string, args []interface{}) {
	Logger().Log(context.Background(), level, fmt.Sprintf(format, args...))
}

// Debug logs a debug message (only if DEBUG=true or LOG_LEVEL=debug)
func Debug(format string, args ...interface{}) {
	if GetLevel() <= LevelDebug {
		logf(slog.LevelDebug, format, args)
	}
}

// Info logs an info message
func Info(format string, args ...interface{}) {
	if GetLevel() <= LevelInfo {
		logf(slog.LevelInfo, format, args)
	}
}

// Warn logs a warning message
func Warn(format string, args ...interface{}) {
	if GetLevel() <= LevelWarn {
		logf(slog.LevelWarn, format, args)
	}
}

// Error logs an error message
func Error(format string, args ...interface{}) {
	if GetLevel() <= LevelError {
		logf(slog.LevelError, format, args)
	}
}

// Fatal logs an error message and exits
func Fatal(format string, args ...interface{}) {
	logf(slog.LevelError, "[FATAL] "+format, args)
	os.Exit(1)
}

// String returns the string representation of a log level
func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return fmt.Sprintf("unknown(%d)", l)
	}
}
