// Package logging provides a shared structured-logging setup for all
// components of the telara core.
package logging

import (
	"github.com/sirupsen/logrus"

	"github.com/eljaska/telara/internal/platform/config"
)

// Logger is the structured logger type shared across components.
type Logger = *logrus.Logger

// Fields is a shorthand for structured log fields.
type Fields = logrus.Fields

// Level mirrors logrus log levels.
type Level = logrus.Level

const (
	DebugLevel = logrus.DebugLevel
	InfoLevel  = logrus.InfoLevel
	WarnLevel  = logrus.WarnLevel
	ErrorLevel = logrus.ErrorLevel
)

// NewLogger creates a JSON-formatted logger at the level named by LOG_LEVEL.
func NewLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetLevel(config.GetLogLevel())
	return logger
}

// NewLoggerWithService creates a logger that tags every entry with a
// service name field.
func NewLoggerWithService(serviceName string) *logrus.Logger {
	logger := NewLogger()
	logger = logger.WithField("service", serviceName).Logger
	return logger
}
