// Package logger wraps a process-wide logrus logger that writes JSON lines to
// a rotated file and, optionally, to stderr.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"axmed/internal/config"
)

var log = newFallback()

// newFallback is used until Setup runs, so packages can log from tests.
func newFallback() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(logrus.WarnLevel)
	l.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	return l
}

// Setup points the logger at LOG_DIR/<name>.log. Call once from main.
func Setup(cfg config.Config, name string) error {
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
		fmt.Fprintf(os.Stderr, "invalid log level %q, using info\n", cfg.LogLevel)
	}

	if err := os.MkdirAll(cfg.LogDir, 0o755); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}

	writers := []io.Writer{&lumberjack.Logger{
		Filename:   filepath.Join(cfg.LogDir, name+".log"),
		MaxSize:    cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		MaxAge:     28,
		Compress:   true,
	}}
	if cfg.LogToConsole {
		writers = append(writers, os.Stderr)
	}

	l := logrus.New()
	l.SetLevel(level)
	l.SetFormatter(&logrus.JSONFormatter{TimestampFormat: "2006-01-02T15:04:05.000Z07:00"})
	l.SetOutput(io.MultiWriter(writers...))
	log = l

	log.WithField("level", level.String()).Debug("logger ready")
	return nil
}

func Debugf(format string, args ...any) { log.Debugf(format, args...) }
func Infof(format string, args ...any)  { log.Infof(format, args...) }
func Warnf(format string, args ...any)  { log.Warnf(format, args...) }
func Errorf(format string, args ...any) { log.Errorf(format, args...) }

func WithFields(fields logrus.Fields) *logrus.Entry {
	return log.WithFields(fields)
}
