// Package logging provides the leveled, structured logger used by the CLI,
// the poller and the browser suite.
//
// Get a named logger per component and attach fields for context:
//
//	logger := logging.GetLogger("poll").WithField("probe", "stations")
//	logger.InfoWithFields("attempt failed",
//	    logging.Field("attempt", 2),
//	    logging.Field("elapsed_ms", 2004),
//	)
//
// Levels can be overridden per component name, with "name.*" wildcards:
//
//	logging.Initialize("info", map[string]string{"poll": "debug", "e2e.*": "warn"})
//
// Loggers are immutable; WithField and friends return copies, so a logger can be
// shared across goroutines.
package logging

import (
	"context"
	"sync"
)

var (
	globalMu    sync.RWMutex
	globalLevel = INFO
	// exitFunc is called by Fatal. Tests replace it.
	exitFunc = defaultExit
)

// Initialize sets the default level and optional per-package overrides.
// An unknown default level falls back to INFO; an unknown package level is an error.
func Initialize(levelStr string, packageLevels ...map[string]string) error {
	level, err := ParseLevel(levelStr)
	if err != nil {
		level = INFO
	}

	globalMu.Lock()
	globalLevel = level
	globalMu.Unlock()

	if len(packageLevels) > 0 && packageLevels[0] != nil {
		return SetPackageLogLevels(packageLevels[0])
	}
	return nil
}

// GetLogger returns a logger for the named component at the current default
// level. Before Initialize runs the default is INFO.
func GetLogger(name string) *Logger {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return &Logger{
		level:  globalLevel,
		name:   name,
		fields: map[string]interface{}{},
	}
}

// Logger writes leveled messages for one named component.
type Logger struct {
	level  LogLevel
	name   string
	fields map[string]interface{}
	ctx    context.Context
}

// Name returns the component name.
func (l *Logger) Name() string {
	return l.name
}

// Enabled reports whether a message at level would be written.
func (l *Logger) Enabled(level LogLevel) bool {
	if pkgLevel := GetPackageLogLevel(l.name); pkgLevel >= 0 {
		return level >= pkgLevel
	}
	return level >= l.level
}

func (l *Logger) clone() *Logger {
	fields := make(map[string]interface{}, len(l.fields))
	for k, v := range l.fields {
		fields[k] = v
	}
	return &Logger{level: l.level, name: l.name, fields: fields, ctx: l.ctx}
}

// WithName returns a copy of the logger under a different name, without its fields.
func (l *Logger) WithName(name string) *Logger {
	return &Logger{level: l.level, name: name, fields: map[string]interface{}{}, ctx: l.ctx}
}

// WithField returns a copy of the logger carrying key=value on every line.
func (l *Logger) WithField(key string, value interface{}) *Logger {
	nl := l.clone()
	nl.fields[key] = value
	return nl
}

// WithFields returns a copy of the logger carrying all given fields.
func (l *Logger) WithFields(fields ...LogField) *Logger {
	nl := l.clone()
	for _, f := range fields {
		nl.fields[f.Key] = f.Value
	}
	return nl
}

// WithContext attaches ctx so trace_id and span_id are added to every line.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	nl := l.clone()
	nl.ctx = ctx
	return nl
}

func (l *Logger) Debug(msg string, args ...interface{}) { l.printf(DEBUG, msg, args...) }
func (l *Logger) Info(msg string, args ...interface{})  { l.printf(INFO, msg, args...) }
func (l *Logger) Warn(msg string, args ...interface{})  { l.printf(WARN, msg, args...) }
func (l *Logger) Error(msg string, args ...interface{}) { l.printf(ERROR, msg, args...) }

// Fatal logs and exits with code 1.
func (l *Logger) Fatal(msg string, args ...interface{}) {
	if l.Enabled(FATAL) {
		l.printf(FATAL, msg, args...)
		exitFunc(1)
	}
}

// ErrorWithErr logs msg with err appended.
func (l *Logger) ErrorWithErr(msg string, err error, args ...interface{}) {
	l.printf(ERROR, msg+" - %v", append(args, err)...)
}

func (l *Logger) DebugWithFields(msg string, fields ...LogField) { l.emit(DEBUG, msg, fields) }
func (l *Logger) InfoWithFields(msg string, fields ...LogField)  { l.emit(INFO, msg, fields) }
func (l *Logger) WarnWithFields(msg string, fields ...LogField)  { l.emit(WARN, msg, fields) }
func (l *Logger) ErrorWithFields(msg string, fields ...LogField) { l.emit(ERROR, msg, fields) }
