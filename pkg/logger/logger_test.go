package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestNewParsesLevelAndFormat(t *testing.T) {
	log := New(LoggingConfig{Level: "DEBUG", Format: "json"})
	if log.GetLevel() != logrus.DebugLevel {
		t.Fatalf("level = %v, want debug", log.GetLevel())
	}
	if _, ok := log.Formatter.(*logrus.JSONFormatter); !ok {
		t.Fatalf("formatter = %T, want JSONFormatter", log.Formatter)
	}
}

func TestNewUnknownLevelFallsBackToInfo(t *testing.T) {
	log := New(LoggingConfig{Level: "loud"})
	if log.GetLevel() != logrus.InfoLevel {
		t.Fatalf("level = %v, want info", log.GetLevel())
	}
}

func TestComponentFieldIsAttached(t *testing.T) {
	log := NewDefault("orders")
	var buf bytes.Buffer
	log.SetOutput(&buf)
	log.SetFormatter(&logrus.JSONFormatter{})

	log.WithError(errors.New("smtp down")).Warn("confirmation not sent")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if line["component"] != "orders" {
		t.Fatalf("component = %v, want orders", line["component"])
	}
	if line["error"] != "smtp down" {
		t.Fatalf("error = %v, want smtp down", line["error"])
	}
}
