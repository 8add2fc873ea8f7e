package logging

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestNewWithWriter_FiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "warn")

	log.Info("dropped")
	log.Warn("kept", "order_id", "o-1")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected a single json line, got %q: %v", buf.String(), err)
	}
	if entry["msg"] != "kept" {
		t.Errorf("expected msg kept, got %v", entry["msg"])
	}
	if entry["order_id"] != "o-1" {
		t.Errorf("expected order_id attribute, got %v", entry["order_id"])
	}
}

func TestParseLevel_DefaultsToInfo(t *testing.T) {
	if got := parseLevel("nonsense"); got.String() != "INFO" {
		t.Errorf("expected INFO, got %s", got)
	}
	if got := parseLevel("DEBUG"); got.String() != "DEBUG" {
		t.Errorf("expected DEBUG, got %s", got)
	}
}
