// Package logger configures structured logging for the application.
package logger

import (
	"io"

	"github.com/sirupsen/logrus"
)

// Init returns a configured log entry at the given level. Unknown level
// names fall back to info.
func Init(logLevel string) *logrus.Entry {
	formattedLogger := logrus.New()
	formattedLogger.Formatter = &logrus.TextFormatter{FullTimestamp: true}

	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		logrus.WithError(err).Error("Error parsing log level, using: info")
		level = logrus.InfoLevel
	}
	formattedLogger.Level = level

	return logrus.NewEntry(formattedLogger)
}

// Discard returns an entry that drops everything. Used by tests and as the
// fallback when a component is constructed without a logger.
func Discard() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}
