package logger

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

type Logger struct {
	*logrus.Logger
}

type ContextKey string

// Context keys copied into every entry built by WithContext.
const (
	RequestIDKey ContextKey = "request_id"
	SyncRunIDKey ContextKey = "sync_run_id"
)

var contextFields = []ContextKey{RequestIDKey, SyncRunIDKey}

func New(level string) *Logger {
	return NewWithOutput(level, os.Stdout)
}

// NewWithOutput builds a JSON logger writing to w. Unknown levels fall back
// to info.
func NewWithOutput(level string, w io.Writer) *Logger {
	l := logrus.New()

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	l.SetLevel(lvl)
	l.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: time.RFC3339,
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "timestamp",
			logrus.FieldKeyLevel: "level",
			logrus.FieldKeyMsg:   "message",
		},
	})
	l.SetOutput(w)

	return &Logger{Logger: l}
}

// NewNop discards everything.
func NewNop() *Logger {
	return NewWithOutput("panic", io.Discard)
}

// WithRequestID tags ctx for request scoped logging.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RequestIDKey, id)
}

// WithSyncRunID tags ctx with the sync run it belongs to.
func WithSyncRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, SyncRunIDKey, id)
}

// WithContext returns an entry carrying the request and sync run ids found
// in ctx.
func (l *Logger) WithContext(ctx context.Context) *logrus.Entry {
	entry := l.Logger.WithContext(ctx)
	for _, key := range contextFields {
		if v, ok := ctx.Value(key).(string); ok && v != "" {
			entry = entry.WithField(string(key), v)
		}
	}
	return entry
}

func (l *Logger) WithFields(fields logrus.Fields) *logrus.Entry {
	return l.Logger.WithFields(fields)
}

func (l *Logger) WithField(key string, value any) *logrus.Entry {
	return l.Logger.WithField(key, value)
}

func (l *Logger) WithError(err error) *logrus.Entry {
	return l.Logger.WithError(err)
}
