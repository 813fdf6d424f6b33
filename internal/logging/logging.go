// Package logging builds the module's single logrus logger.
package logging

import (
	"github.com/sirupsen/logrus"

	"github.com/geobeacon/backend/internal/config"
)

// New builds a logrus.Logger configured from cfg: JSON in production,
// a human-readable text formatter in development.
func New(cfg config.LoggingConfig) *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.Development {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	return logger
}
