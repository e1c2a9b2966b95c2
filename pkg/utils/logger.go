package utils

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"
)

// LogLevel is a log message severity.
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

var levelNames = [...]string{"DEBUG", "INFO", "WARN", "ERROR"}

// String returns the level's name in upper case.
func (l LogLevel) String() string {
	if l < LevelDebug || l > LevelError {
		return "UNKNOWN"
	}
	return levelNames[l]
}

// ParseLogLevel maps a configuration string to a LogLevel. Unknown strings
// fall back to LevelInfo.
func ParseLogLevel(level string) LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return LevelDebug
	case "info":
		return LevelInfo
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Logger is the logging interface used throughout the detection runtime.
// WithField and WithFields return derived loggers whose fields appear on
// every line, which keeps per-run and per-process context attached without
// threading it through call sites.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	WithField(key string, value any) Logger
	WithFields(fields map[string]any) Logger
}

// DefaultLogger writes timestamped lines to a single output.
type DefaultLogger struct {
	mu     sync.Mutex
	level  LogLevel
	output io.Writer
	fields map[string]any
}

// NewDefaultLogger returns a logger filtering below level.
func NewDefaultLogger(level LogLevel, output io.Writer) *DefaultLogger {
	return &DefaultLogger{
		level:  level,
		output: output,
		fields: make(map[string]any),
	}
}

// SetLevel changes the minimum level that gets written.
func (l *DefaultLogger) SetLevel(level LogLevel) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

func (l *DefaultLogger) Debug(msg string, args ...any) { l.log(LevelDebug, msg, args...) }
func (l *DefaultLogger) Info(msg string, args ...any)  { l.log(LevelInfo, msg, args...) }
func (l *DefaultLogger) Warn(msg string, args ...any)  { l.log(LevelWarn, msg, args...) }
func (l *DefaultLogger) Error(msg string, args ...any) { l.log(LevelError, msg, args...) }

// WithField derives a logger carrying one extra field.
func (l *DefaultLogger) WithField(key string, value any) Logger {
	return l.WithFields(map[string]any{key: value})
}

// WithFields derives a logger carrying the given extra fields. The parent
// logger is left untouched.
func (l *DefaultLogger) WithFields(fields map[string]any) Logger {
	child := &DefaultLogger{
		level:  l.level,
		output: l.output,
		fields: make(map[string]any, len(l.fields)+len(fields)),
	}
	for k, v := range l.fields {
		child.fields[k] = v
	}
	for k, v := range fields {
		child.fields[k] = v
	}
	return child
}

func (l *DefaultLogger) log(level LogLevel, msg string, args ...any) {
	if level < l.level {
		return
	}

	var line strings.Builder
	line.WriteString("[")
	line.WriteString(time.Now().Format("2006-01-02 15:04:05.000"))
	line.WriteString("] [")
	line.WriteString(level.String())
	line.WriteString("]")

	// Sorted field order keeps lines greppable across runs.
	keys := make([]string, 0, len(l.fields))
	for k := range l.fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&line, " %s=%v", k, l.fields[k])
	}

	line.WriteString(" ")
	fmt.Fprintf(&line, msg, args...)
	line.WriteString("\n")

	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = io.WriteString(l.output, line.String())
}

// NullLogger discards everything. Tests and benchmarks use it to keep
// hot loops quiet.
type NullLogger struct{}

func (l *NullLogger) Debug(msg string, args ...any) {}
func (l *NullLogger) Info(msg string, args ...any)  {}
func (l *NullLogger) Warn(msg string, args ...any)  {}
func (l *NullLogger) Error(msg string, args ...any) {}

func (l *NullLogger) WithField(key string, value any) Logger { return l }

func (l *NullLogger) WithFields(fields map[string]any) Logger { return l }
