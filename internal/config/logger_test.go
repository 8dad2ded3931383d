package config

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestNewLogger_Format(t *testing.T) {
	tests := []struct {
		format   string
		wantJSON bool
	}{
		{"json", true},
		{"text", false},
		{"auto", true}, // a buffer is not a terminal
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			cfg := Default()
			cfg.LogFormat = tt.format
			var buf bytes.Buffer
			cfg.NewLogger(&buf).Info("hello", "artifact_id", "a1")

			isJSON := json.Valid(bytes.TrimSpace(buf.Bytes()))
			if isJSON != tt.wantJSON {
				t.Errorf("output %q json=%v, want %v", buf.String(), isJSON, tt.wantJSON)
			}
			if !strings.Contains(buf.String(), "a1") {
				t.Errorf("missing attribute in %q", buf.String())
			}
		})
	}
}

func TestNewLogger_Level(t *testing.T) {
	cfg := Default()
	cfg.LogFormat = "text"
	cfg.LogLevel = "warn"
	var buf bytes.Buffer
	log := cfg.NewLogger(&buf)
	log.Info("quiet")
	log.Warn("loud")
	if strings.Contains(buf.String(), "quiet") || !strings.Contains(buf.String(), "loud") {
		t.Errorf("output = %q", buf.String())
	}
}
