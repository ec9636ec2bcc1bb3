package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]logrus.Level{
		"debug":   logrus.DebugLevel,
		"info":    logrus.InfoLevel,
		"warn":    logrus.WarnLevel,
		"error":   logrus.ErrorLevel,
		"verbose": logrus.InfoLevel,
	}
	for level, want := range tests {
		if got := parseLevel(level); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", level, got, want)
		}
	}
}

func TestNewWithOutputWritesJSON(t *testing.T) {
	var buffer bytes.Buffer
	log := NewWithOutput("info", &buffer)

	log.WithField("provider", "koreaexim").Info("walk-back step")
	log.Debug("hidden")

	var entry map[string]any
	if err := json.Unmarshal(buffer.Bytes(), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v (%q)", err, buffer.String())
	}
	if entry["provider"] != "koreaexim" || entry["msg"] != "walk-back step" {
		t.Errorf("unexpected entry %v", entry)
	}
}
