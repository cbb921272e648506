package observability

import (
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

// Logger is the structured logging surface the rest of the service depends
// on. Every line is JSON with at least a service field, so log pipelines can
// route api, outbox-publisher and expiry-worker output without parsing the
// message text.
type Logger interface {
	Info(args ...interface{})
	Error(args ...interface{})
	Debug(args ...interface{})
	Warn(args ...interface{})
	WithField(key string, value interface{}) Logger
}

type entryLogger struct {
	entry *logrus.Entry
}

// NewLogger builds a JSON logger at the level named by LOG_LEVEL (info when
// unset or unparsable), tagged with the process name from SERVICE_NAME.
func NewLogger() Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	log.SetLevel(levelFromEnv())

	service := os.Getenv("SERVICE_NAME")
	if service == "" {
		service = "ticketing"
	}
	return &entryLogger{entry: log.WithField("service", service)}
}

func levelFromEnv() logrus.Level {
	lvl, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}

func (l *entryLogger) Info(args ...interface{}) {
	l.entry.Info(args...)
}

func (l *entryLogger) Error(args ...interface{}) {
	l.entry.Error(args...)
}

func (l *entryLogger) Debug(args ...interface{}) {
	l.entry.Debug(args...)
}

func (l *entryLogger) Warn(args ...interface{}) {
	l.entry.Warn(args...)
}

func (l *entryLogger) WithField(key string, value interface{}) Logger {
	return &entryLogger{entry: l.entry.WithField(key, value)}
}
