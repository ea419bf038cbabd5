// Package logger provides leveled, module-tagged logging for the
// drowsiness monitor daemon.
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"sync/atomic"
)

// Level is the severity of a log message.
type Level int32

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
	SILENT // disables all output
)

var levelNames = [...]string{"DEBUG", "INFO", "WARN", "ERROR", "SILENT"}

var levelColors = [...]string{
	"\033[36m", // cyan
	"\033[32m", // green
	"\033[33m", // yellow
	"\033[31m", // red
	"",
}

const resetColor = "\033[0m"

// Logger writes leveled messages tagged with the emitting module.
type Logger struct {
	level    atomic.Int32
	useColor bool
	out      *log.Logger
}

var (
	defaultLogger *Logger
	initOnce      sync.Once
)

// Init sets up the process-wide logger. Safe to call once at startup;
// later calls are ignored.
func Init(level Level, output io.Writer, useColor bool) {
	initOnce.Do(func() {
		defaultLogger = New(level, output, useColor)
	})
}

// New creates a standalone logger instance.
func New(level Level, output io.Writer, useColor bool) *Logger {
	if output == nil {
		output = os.Stderr
	}
	l := &Logger{
		useColor: useColor,
		out:      log.New(output, "", log.Ldate|log.Ltime|log.Lmicroseconds),
	}
	l.level.Store(int32(level))
	return l
}

// SetLevel changes the minimum emitted level.
func (l *Logger) SetLevel(level Level) { l.level.Store(int32(level)) }

// GetLevel reports the minimum emitted level.
func (l *Logger) GetLevel() Level { return Level(l.level.Load()) }

func (l *Logger) log(level Level, module, format string, args ...any) {
	if level < Level(l.level.Load()) || level >= SILENT {
		return
	}

	prefix := "[" + levelNames[level] + "]"
	if l.useColor {
		prefix = levelColors[level] + prefix + resetColor
	}
	if module != "" {
		prefix += " [" + module + "]"
	}
	l.out.Printf("%s %s", prefix, fmt.Sprintf(format, args...))
}

// Debug logs at DEBUG.
func (l *Logger) Debug(module, format string, args ...any) { l.log(DEBUG, module, format, args...) }

// Info logs at INFO.
func (l *Logger) Info(module, format string, args ...any) { l.log(INFO, module, format, args...) }

// Warn logs at WARN.
func (l *Logger) Warn(module, format string, args ...any) { l.log(WARN, module, format, args...) }

// Error logs at ERROR.
func (l *Logger) Error(module, format string, args ...any) { l.log(ERROR, module, format, args...) }

// Package-level helpers using the logger installed by Init.

// SetLevel sets the global minimum level.
func SetLevel(level Level) {
	if defaultLogger != nil {
		defaultLogger.SetLevel(level)
	}
}

// Debug logs a debug message on the global logger.
func Debug(module, format string, args ...any) {
	if defaultLogger != nil {
		defaultLogger.Debug(module, format, args...)
	}
}

// Info logs an info message on the global logger.
func Info(module, format string, args ...any) {
	if defaultLogger != nil {
		defaultLogger.Info(module, format, args...)
	}
}

// Warn logs a warning on the global logger.
func Warn(module, format string, args ...any) {
	if defaultLogger != nil {
		defaultLogger.Warn(module, format, args...)
	}
}

// Error logs an error on the global logger.
func Error(module, format string, args ...any) {
	if defaultLogger != nil {
		defaultLogger.Error(module, format, args...)
	}
}

// ParseLevel maps a config string to a Level.
func ParseLevel(s string) (Level, error) {
	switch s {
	case "debug", "DEBUG":
		return DEBUG, nil
	case "info", "INFO":
		return INFO, nil
	case "warn", "WARN", "warning", "WARNING":
		return WARN, nil
	case "error", "ERROR":
		return ERROR, nil
	case "silent", "SILENT", "none", "NONE":
		return SILENT, nil
	}
	return INFO, fmt.Errorf("invalid log level: %q", s)
}

// String returns the level name.
func (l Level) String() string {
	if l >= 0 && int(l) < len(levelNames) {
		return levelNames[l]
	}
	return "UNKNOWN"
}
