package core

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestLogAndMultiAuditRecorders(t *testing.T) {
	var buf bytes.Buffer
	logged := NewLogAuditRecorder(slog.New(slog.NewTextHandler(&buf, nil)))
	captured := &captureAuditRecorder{}
	fanout := MultiAuditRecorder{logged, nil, captured}

	f := newFixture(t, WithAuditRecorder(fanout))
	if err := f.svc.DeleteEstimate(context.Background(), "ghost"); err == nil {
		t.Fatalf("expected deleting a missing estimate to fail")
	}

	out := buf.String()
	if !strings.Contains(out, "level=INFO msg=audit operation=create_project") {
		t.Fatalf("expected an info audit line for the fixture project, got %q", out)
	}
	if !strings.Contains(out, "level=WARN msg=audit operation=delete_estimate") || !strings.Contains(out, "error=") {
		t.Fatalf("expected a warn audit line for the failed delete, got %q", out)
	}
	if !captured.has("delete_estimate", AuditStatusError, func(AuditEntry) bool { return true }) {
		t.Fatalf("fan-out did not reach the second recorder: %+v", captured.entries)
	}

	NewLogAuditRecorder(nil).Record(context.Background(), AuditEntry{Operation: "noop"})
}
