// Package logging provides structured logging with trace ID propagation.
package logging

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// contextKey is a private type for context keys defined in this package.
type contextKey string

const (
	// TraceIDKey is the context key for the request trace ID.
	TraceIDKey contextKey = "trace_id"
	// UserIDKey is the context key for the authenticated user ID.
	UserIDKey contextKey = "user_id"
	// RoleKey is the context key for the authenticated user role.
	RoleKey contextKey = "role"
)

// Logger wraps logrus with context-aware field extraction.
type Logger struct {
	log *logrus.Logger
}

var defaultLogger = New("onboarding")

// Default returns the process-wide default logger.
func Default() *Logger {
	return defaultLogger
}

// New creates a logger for the named component. Level and format come from
// LOG_LEVEL and LOG_FORMAT (json or text, json by default).
func New(component string) *Logger {
	l := logrus.New()
	l.SetOutput(os.Stdout)

	switch strings.ToLower(os.Getenv("LOG_FORMAT")) {
	case "text":
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		l.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
	}

	if lvl, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil {
		l.SetLevel(lvl)
	} else {
		l.SetLevel(logrus.InfoLevel)
	}

	logger := &Logger{log: l}
	logger.log.AddHook(&componentHook{component: component})
	return logger
}

// componentHook stamps every entry with the component name.
type componentHook struct {
	component string
}

func (h *componentHook) Levels() []logrus.Level { return logrus.AllLevels }

func (h *componentHook) Fire(e *logrus.Entry) error {
	if _, ok := e.Data["component"]; !ok {
		e.Data["component"] = h.component
	}
	return nil
}

// WithContext returns an entry carrying trace_id, user_id, and role from ctx.
func (l *Logger) WithContext(ctx context.Context) *logrus.Entry {
	entry := logrus.NewEntry(l.log)
	if ctx == nil {
		return entry
	}
	fields := logrus.Fields{}
	if traceID := GetTraceID(ctx); traceID != "" {
		fields["trace_id"] = traceID
	}
	if userID := GetUserID(ctx); userID != "" {
		fields["user_id"] = userID
	}
	if role := GetRole(ctx); role != "" {
		fields["role"] = role
	}
	return entry.WithFields(fields)
}

// WithField returns an entry with a single extra field.
func (l *Logger) WithField(key string, value interface{}) *logrus.Entry {
	return l.log.WithField(key, value)
}

// WithFields returns an entry with extra fields.
func (l *Logger) WithFields(fields map[string]interface{}) *logrus.Entry {
	return l.log.WithFields(fields)
}

// WithError returns an entry with the error field set.
func (l *Logger) WithError(err error) *logrus.Entry {
	return l.log.WithError(err)
}

// Debug logs at debug level.
func (l *Logger) Debug(args ...interface{}) { l.log.Debug(args...) }

// Info logs at info level.
func (l *Logger) Info(args ...interface{}) { l.log.Info(args...) }

// Warn logs at warn level.
func (l *Logger) Warn(args ...interface{}) { l.log.Warn(args...) }

// Error logs at error level.
func (l *Logger) Error(args ...interface{}) { l.log.Error(args...) }

// LogRequest logs a completed HTTP request.
func (l *Logger) LogRequest(ctx context.Context, method, path string, status int, duration time.Duration) {
	entry := l.WithContext(ctx).WithFields(logrus.Fields{
		"method":      method,
		"path":        path,
		"status":      status,
		"duration_ms": duration.Milliseconds(),
	})
	if status >= 500 {
		entry.Error("request completed")
	} else if status >= 400 {
		entry.Warn("request completed")
	} else {
		entry.Info("request completed")
	}
}

// LogSecurityEvent logs a security-relevant event with its details.
func (l *Logger) LogSecurityEvent(ctx context.Context, event string, details map[string]interface{}) {
	l.WithContext(ctx).WithFields(logrus.Fields(details)).WithField("security_event", event).Info("security event")
}

// WithTraceID returns a context carrying the given trace ID.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}

// GetTraceID extracts the trace ID from context, if present.
func GetTraceID(ctx context.Context) string {
	if v, ok := ctx.Value(TraceIDKey).(string); ok {
		return v
	}
	return ""
}

// WithUserID returns a context carrying the given user ID.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

// GetUserID extracts the user ID from context, if present.
func GetUserID(ctx context.Context) string {
	if v, ok := ctx.Value(UserIDKey).(string); ok {
		return v
	}
	return ""
}

// GetRole extracts the user role from context, if present.
func GetRole(ctx context.Context) string {
	if v, ok := ctx.Value(RoleKey).(string); ok {
		return v
	}
	return ""
}

// NewTraceID generates a random trace ID.
func NewTraceID() string {
	return uuid.NewString()
}
