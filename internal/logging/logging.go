// Package logging builds the logrus logger that gets passed into every
// component at construction time.
package logging

import (
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"tubefeed/internal/config"
)

// New returns a logger writing to the configured file. Without a file the
// logger is a silent sink; nothing in the core logs to stderr on its own.
func New(cfg config.LoggerConfig) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	if cfg.File == "" {
		return log
	}
	if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
		return log
	}
	f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return log
	}
	log.SetOutput(f)
	return log
}
