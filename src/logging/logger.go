// Package logging is the process-wide leveled logger used by every wifibench component.
// It keeps the small Debugf/Infof/Warnf/Errorf surface and writes through log/slog so the
// same call sites can emit text for terminals or JSON for log shippers.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// LogLevel represents severity.
type LogLevel int32

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

var levelNames = map[string]LogLevel{
	"debug":   LevelDebug,
	"info":    LevelInfo,
	"warn":    LevelWarn,
	"warning": LevelWarn,
	"error":   LevelError,
}

func (l LogLevel) slogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

var currentLevel int32 = int32(LevelInfo)

var (
	mu         sync.RWMutex
	baseLogger = newSlog(os.Stderr, false)
)

func newSlog(w io.Writer, jsonOut bool) *slog.Logger {
	// Level filtering happens in logf; the handler lets everything through.
	opts := &slog.HandlerOptions{Level: slog.LevelDebug}
	if jsonOut {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// SetOutput redirects log output. jsonOut selects the JSON handler.
func SetOutput(w io.Writer, jsonOut bool) {
	mu.Lock()
	baseLogger = newSlog(w, jsonOut)
	mu.Unlock()
}

// SetLogLevel parses and sets global log level. Unknown names are ignored.
func SetLogLevel(s string) {
	l, ok := levelNames[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return
	}
	atomic.StoreInt32(&currentLevel, int32(l))
}

// ParseLevel reports whether s names a level.
func ParseLevel(s string) (LogLevel, bool) {
	l, ok := levelNames[strings.ToLower(strings.TrimSpace(s))]
	return l, ok
}

func getLevel() LogLevel { return LogLevel(atomic.LoadInt32(&currentLevel)) }

// GetLogLevel returns current global log level (exported for conditional debug logic outside package).
func GetLogLevel() LogLevel { return getLevel() }

// Logger returns the underlying slog logger for callers that want structured attributes.
func Logger() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return baseLogger
}

func logf(l LogLevel, format string, args ...interface{}) {
	if getLevel() > l {
		return
	}
	// Only format when there are args; otherwise treat the input as a plain message to avoid
	// fmt parsing literal % characters in already formatted strings (which would yield %!x(MISSING)).
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	Logger().Log(context.Background(), l.slogLevel(), msg)
}

// Public helpers
func Debugf(format string, a ...interface{}) { logf(LevelDebug, format, a...) }
func Infof(format string, a ...interface{})  { logf(LevelInfo, format, a...) }
func Warnf(format string, a ...interface{})  { logf(LevelWarn, format, a...) }
func Errorf(format string, a ...interface{}) { logf(LevelError, format, a...) }

// Timing helper for phases.
func TimeTrack(start time.Time, label string) {
	dur := time.Since(start)
	Debugf("%s took %s", label, dur)
}
