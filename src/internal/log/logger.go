package log

import (
	"fmt"
	"io"
	"os"
	"sync"
)

const (
	levelDebug = iota
	levelInfo
	levelWarn
	levelError
)

var logPrefixes = map[int]string{
	levelDebug: "\033[37m[DBG]\033[0m", // White
	levelInfo:  "\033[36m[INF]\033[0m", // Cyan
	levelWarn:  "\033[33m[WRN]\033[0m", // Yellow
	levelError: "\033[31m[ERR]\033[0m", // Red
}

// sink is shared between a logger and the loggers derived from it with WithPrefix,
// so verbosity and output switches apply to the whole family.
type sink struct {
	mu          sync.Mutex
	out         io.Writer
	errOut      io.Writer
	verbose     bool
	disabled    bool
	forceStdErr bool
}

// Logger is a leveled logger writing colored lines to an output pair.
// Error messages always go to the error writer.
type Logger struct {
	sink   *sink
	prefix string
}

// New creates a logger writing regular messages to out and errors to errOut.
func New(out, errOut io.Writer) *Logger {
	return &Logger{sink: &sink{out: out, errOut: errOut}}
}

// Discard returns a logger that drops every message.
func Discard() *Logger {
	l := New(io.Discard, io.Discard)
	l.sink.disabled = true
	return l
}

// WithPrefix returns a logger sharing the same outputs that tags every message with [prefix].
func (l *Logger) WithPrefix(prefix string) *Logger {
	p := prefix
	if l.prefix != "" {
		p = l.prefix + "/" + prefix
	}
	return &Logger{sink: l.sink, prefix: p}
}

// SetVerbose sets the logging verbosity. If true, all log levels are displayed.
func (l *Logger) SetVerbose(v bool) {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	l.sink.verbose = v
}

// IsVerbose returns true if verbose logging is enabled.
func (l *Logger) IsVerbose() bool {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	return l.sink.verbose
}

// SetForceStdErr sends all messages to the error writer.
func (l *Logger) SetForceStdErr(v bool) {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	l.sink.forceStdErr = v
}

// Disable drops all further messages.
func (l *Logger) Disable() {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	l.sink.disabled = true
}

// Debugf logs a debug message if verbose is true.
func (l *Logger) Debugf(format string, args ...interface{}) {
	l.write(levelDebug, format, args...)
}

// Infof logs an info message.
func (l *Logger) Infof(format string, args ...interface{}) {
	l.write(levelInfo, format, args...)
}

// Warnf logs a warning message.
func (l *Logger) Warnf(format string, args ...interface{}) {
	l.write(levelWarn, format, args...)
}

// Errorf logs an error message.
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.write(levelError, format, args...)
}

// write formats and writes a log message with the specified log level.
func (l *Logger) write(level int, format string, args ...interface{}) {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()

	if l.sink.disabled || (level == levelDebug && !l.sink.verbose) {
		return
	}

	message := fmt.Sprintf(format, args...)
	if l.prefix != "" {
		message = "[" + l.prefix + "] " + message
	}
	output := logPrefixes[level] + " " + message + "\n"

	if l.sink.forceStdErr || level == levelError {
		_, _ = io.WriteString(l.sink.errOut, output)
	} else {
		_, _ = io.WriteString(l.sink.out, output)
	}
}

var defaultLogger = New(os.Stdout, os.Stderr)

// Default returns the process-wide logger used by the package-level functions.
func Default() *Logger {
	return defaultLogger
}

// SetVerbose sets the verbosity of the default logger.
func SetVerbose(v bool) {
	defaultLogger.SetVerbose(v)
}

// IsVerbose returns true if verbose logging is enabled on the default logger.
func IsVerbose() bool {
	return defaultLogger.IsVerbose()
}

// SetForceStdErr sends all default logger output to stderr.
func SetForceStdErr(v bool) {
	defaultLogger.SetForceStdErr(v)
}

// DisableLogs disables all logging on the default logger.
func DisableLogs() {
	defaultLogger.Disable()
}

// Debugf logs a debug message if verbose is true.
func Debugf(format string, args ...interface{}) {
	defaultLogger.write(levelDebug, format, args...)
}

// Infof logs an info message.
func Infof(format string, args ...interface{}) {
	defaultLogger.write(levelInfo, format, args...)
}

// Warnf logs a warning message.
func Warnf(format string, args ...interface{}) {
	defaultLogger.write(levelWarn, format, args...)
}

// Errorf logs an error message.
func Errorf(format string, args ...interface{}) {
	defaultLogger.write(levelError, format, args...)
}

// Fatalf logs an error message and exits the program.
func Fatalf(format string, args ...interface{}) {
	defaultLogger.write(levelError, format, args...)
	os.Exit(1)
}
