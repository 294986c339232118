package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestNewJSONFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(&buf, "WARN", "json")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	logger.Info("hidden")
	logger.Warn("shown", "timesheet", "t1")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected one record, got %q", buf.String())
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rec["msg"] != "shown" || rec["timesheet"] != "t1" || rec["service"] != "yojana" {
		t.Fatalf("unexpected record %v", rec)
	}
}

func TestNewText(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(&buf, "", "")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	logger.Debug("hidden")
	logger.Info("started", "addr", ":8080")
	if !strings.Contains(buf.String(), "msg=started") || strings.Contains(buf.String(), "hidden") {
		t.Fatalf("unexpected output %q", buf.String())
	}
}

func TestNewRejectsUnknownSettings(t *testing.T) {
	if _, err := New(&bytes.Buffer{}, "loud", "text"); err == nil {
		t.Fatalf("expected level error")
	}
	if _, err := New(&bytes.Buffer{}, "info", "yaml"); err == nil {
		t.Fatalf("expected format error")
	}
}
