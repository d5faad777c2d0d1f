// Package logger provides leveled logging for the hvshift CLI tool.
package logger

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger writes human readable lines to the console and, optionally, JSON lines to a log file.
type Logger struct {
	zl      zerolog.Logger
	debug   bool
	logFile *os.File
}

func level(debug bool) zerolog.Level {
	if debug {
		return zerolog.DebugLevel
	}
	return zerolog.InfoLevel
}

func console(out io.Writer) io.Writer {
	return zerolog.ConsoleWriter{Out: out, TimeFormat: "2006/01/02 15:04:05"}
}

// New creates a new Logger writing to stderr.
func New(debug bool) *Logger {
	zl := zerolog.New(console(os.Stderr)).Level(level(debug)).With().Timestamp().Logger()
	return &Logger{zl: zl, debug: debug}
}

// NewWithFile creates a new Logger that writes to both the console and a file.
func NewWithFile(debug bool, logFilePath string) (*Logger, error) {
	logFile, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create log file: %w", err)
	}
	multi := zerolog.MultiLevelWriter(console(os.Stderr), logFile)
	zl := zerolog.New(multi).Level(level(debug)).With().Timestamp().Logger()
	return &Logger{zl: zl, debug: debug, logFile: logFile}, nil
}

// NewWithWriter creates a Logger that writes JSON lines to w.
func NewWithWriter(debug bool, w io.Writer) *Logger {
	zl := zerolog.New(w).Level(level(debug)).With().Timestamp().Logger()
	return &Logger{zl: zl, debug: debug}
}

// Discard returns a Logger that drops every message.
func Discard() *Logger {
	return &Logger{zl: zerolog.Nop()}
}

// With returns a child logger that adds key=value to every message.
func (l *Logger) With(key, value string) *Logger {
	return &Logger{
		zl:      l.zl.With().Str(key, value).Logger(),
		debug:   l.debug,
		logFile: l.logFile,
	}
}

// DebugEnabled reports whether debug messages are emitted.
func (l *Logger) DebugEnabled() bool {
	return l.debug
}

// Close closes the log file if one is open.
func (l *Logger) Close() error {
	if l.logFile != nil {
		return l.logFile.Close()
	}
	return nil
}

// Info logs an informational message.
func (l *Logger) Info(msg string) {
	l.zl.Info().Msg(msg)
}

// Infof logs a formatted informational message.
func (l *Logger) Infof(format string, args ...interface{}) {
	l.zl.Info().Msgf(format, args...)
}

// Success logs a success message.
func (l *Logger) Success(msg string) {
	l.zl.Info().Str("status", "done").Msg(msg)
}

// Successf logs a formatted success message.
func (l *Logger) Successf(format string, args ...interface{}) {
	l.zl.Info().Str("status", "done").Msgf(format, args...)
}

// Warning logs a warning message.
func (l *Logger) Warning(msg string) {
	l.zl.Warn().Msg(msg)
}

// Warningf logs a formatted warning message.
func (l *Logger) Warningf(format string, args ...interface{}) {
	l.zl.Warn().Msgf(format, args...)
}

// Error logs an error message.
func (l *Logger) Error(msg string) {
	l.zl.Error().Msg(msg)
}

// Errorf logs a formatted error message.
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.zl.Error().Msgf(format, args...)
}

// Debug logs a debug message (only if debug mode is enabled).
func (l *Logger) Debug(msg string) {
	l.zl.Debug().Msg(msg)
}

// Debugf logs a formatted debug message (only if debug mode is enabled).
func (l *Logger) Debugf(format string, args ...interface{}) {
	l.zl.Debug().Msgf(format, args...)
}

// Step logs a step header for workflow progress.
func (l *Logger) Step(stepNum int, description string) {
	l.Info("=========================================")
	l.zl.Info().Int("step", stepNum).Msgf("Step %d: %s", stepNum, description)
	l.Info("=========================================")
}

// GetTimestamp returns a timestamp string in the format YYYYMMDD-HHMMSS.
func GetTimestamp() string {
	return time.Now().Format("20060102-150405")
}
