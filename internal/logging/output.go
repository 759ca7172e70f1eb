package logging

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

// Context keys for trace and span IDs.
type contextKey string

const (
	traceIDKey contextKey = "trace_id"
	spanIDKey  contextKey = "span_id"
)

// TraceIDKey is the context key read for the trace_id field.
func TraceIDKey() interface{} { return traceIDKey }

// SpanIDKey is the context key read for the span_id field.
func SpanIDKey() interface{} { return spanIDKey }

var (
	outMu  sync.Mutex
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

func defaultExit(code int) { os.Exit(code) }

// SetOutput redirects log lines. ERROR and FATAL go to errW, the rest to w.
// It returns a function restoring the previous writers.
func SetOutput(w, errW io.Writer) (restore func()) {
	outMu.Lock()
	defer outMu.Unlock()
	prevOut, prevErr := stdout, stderr
	stdout, stderr = w, errW
	return func() {
		outMu.Lock()
		defer outMu.Unlock()
		stdout, stderr = prevOut, prevErr
	}
}

// GetTimestamp returns the RFC3339 timestamp used on each line.
// LOG_TIMESTAMP overrides it for deterministic output.
func GetTimestamp() string {
	if override := os.Getenv("LOG_TIMESTAMP"); override != "" {
		return override
	}
	return time.Now().Format(time.RFC3339)
}

func (l *Logger) printf(level LogLevel, msg string, args ...interface{}) {
	if !l.Enabled(level) {
		return
	}
	if len(args) > 0 {
		msg = fmt.Sprintf(msg, args...)
	}
	l.write(level, msg, nil)
}

func (l *Logger) emit(level LogLevel, msg string, fields []LogField) {
	if !l.Enabled(level) {
		return
	}
	l.write(level, msg, fields)
}

// write merges context, logger and call fields (later wins) and prints one line.
// Keys are sorted so lines are stable.
func (l *Logger) write(level LogLevel, msg string, fields []LogField) {
	merged := make(map[string]interface{}, len(l.fields)+len(fields)+2)
	for k, v := range extractContextFields(l.ctx) {
		merged[k] = v
	}
	for k, v := range l.fields {
		merged[k] = v
	}
	for _, f := range fields {
		merged[f.Key] = f.Value
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[%s] [%s] %s: %s", GetTimestamp(), level, l.name, msg)
	if len(merged) > 0 {
		keys := make([]string, 0, len(merged))
		for k := range merged {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString(" |")
		for _, k := range keys {
			fmt.Fprintf(&b, " %s=%v", k, merged[k])
		}
	}
	b.WriteByte('\n')

	outMu.Lock()
	defer outMu.Unlock()
	w := stdout
	if level >= ERROR {
		w = stderr
	}
	_, _ = io.WriteString(w, b.String())
}

func extractContextFields(ctx context.Context) map[string]interface{} {
	if ctx == nil {
		return nil
	}
	fields := map[string]interface{}{}
	if v := ctx.Value(traceIDKey); v != nil {
		fields["trace_id"] = v
	}
	if v := ctx.Value(spanIDKey); v != nil {
		fields["span_id"] = v
	}
	if len(fields) == 0 {
		return nil
	}
	return fields
}
