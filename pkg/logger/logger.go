// Package logger wraps logrus with the defaults used across the storefront.
package logger

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// LoggingConfig controls level, format and destination.
type LoggingConfig struct {
	Level      string
	Format     string // text or json
	Output     string // stdout, stderr or file
	FilePrefix string
}

// Logger is a component-scoped logrus logger.
type Logger struct {
	*logrus.Logger
	component string
}

// New builds a logger from cfg. Unknown levels fall back to info.
func New(cfg LoggingConfig) *Logger {
	l := logrus.New()

	level, err := logrus.ParseLevel(strings.ToLower(strings.TrimSpace(cfg.Level)))
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)

	switch strings.ToLower(cfg.Format) {
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
	default:
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: time.RFC3339})
	}

	l.SetOutput(openOutput(cfg))
	return &Logger{Logger: l}
}

// NewDefault returns an info-level text logger tagged with component.
func NewDefault(component string) *Logger {
	log := New(LoggingConfig{Level: "info", Format: "text", Output: "stdout"})
	log.component = component
	return log
}

// WithError returns an entry annotated with err and the logger component.
func (l *Logger) WithError(err error) *logrus.Entry {
	return l.entry().WithError(err)
}

// WithField returns an entry annotated with key=value.
func (l *Logger) WithField(key string, value interface{}) *logrus.Entry {
	return l.entry().WithField(key, value)
}

// WithFields returns an entry annotated with fields.
func (l *Logger) WithFields(fields map[string]interface{}) *logrus.Entry {
	return l.entry().WithFields(logrus.Fields(fields))
}

func (l *Logger) entry() *logrus.Entry {
	e := logrus.NewEntry(l.Logger)
	if l.component != "" {
		e = e.WithField("component", l.component)
	}
	return e
}

// Discard returns a logger that drops everything. Used by tests.
func Discard() *Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return &Logger{Logger: l}
}

func openOutput(cfg LoggingConfig) io.Writer {
	switch strings.ToLower(cfg.Output) {
	case "stderr":
		return os.Stderr
	case "file":
		prefix := cfg.FilePrefix
		if prefix == "" {
			prefix = "storefront"
		}
		name := filepath.Clean(prefix + "-" + time.Now().UTC().Format("20060102") + ".log")
		f, err := os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
		if err != nil {
			return os.Stdout
		}
		return f
	default:
		return os.Stdout
	}
}
