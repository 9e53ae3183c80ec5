package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"asistencia.org/internal/auth"
	"asistencia.org/internal/obs"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	line := buf.Bytes()
	if len(line) == 0 {
		t.Fatal("expected log output")
	}
	var entry map[string]any
	if err := json.Unmarshal(line, &entry); err != nil {
		t.Fatalf("log not valid JSON: %v", err)
	}
	return entry
}

func TestLogEventOwner(t *testing.T) {
	var buf bytes.Buffer
	restore := obs.SetOutput(&buf)
	defer restore()

	ctx := WithRequestID(context.Background(), "req-123")
	ctx = auth.ContextWithClaims(ctx, auth.OwnerClaims{UserID: "user-42", Email: "a@example.com", Role: auth.RoleAdmin, ExpiresAt: time.Now().Add(time.Hour)})

	if err := LogEvent(ctx, "auth.login", map[string]any{"flow": "owner"}); err != nil {
		t.Fatalf("LogEvent failed: %v", err)
	}

	entry := decodeLine(t, &buf)
	if entry["type"] != "audit" {
		t.Fatalf("unexpected type: %v", entry["type"])
	}
	if entry["event"] != "auth.login" {
		t.Fatalf("unexpected event: %v", entry["event"])
	}
	if entry["request_id"] != "req-123" {
		t.Fatalf("unexpected request id: %v", entry["request_id"])
	}
	if entry["owner_id"] != "user-42" {
		t.Fatalf("unexpected owner id: %v", entry["owner_id"])
	}
	fields, ok := entry["fields"].(map[string]any)
	if !ok || fields["flow"] != "owner" {
		t.Fatalf("fields missing or incorrect: %v", entry["fields"])
	}
}

func TestLogEventEmployee(t *testing.T) {
	var buf bytes.Buffer
	restore := obs.SetOutput(&buf)
	defer restore()

	ctx := auth.ContextWithClaims(context.Background(), auth.EmployeeClaims{EmployeeID: "emp-7", Code: "10001"})
	if err := LogEvent(ctx, "portal.attendance", nil); err != nil {
		t.Fatalf("LogEvent failed: %v", err)
	}
	entry := decodeLine(t, &buf)
	if entry["employee_id"] != "emp-7" {
		t.Fatalf("unexpected employee id: %v", entry["employee_id"])
	}
	if _, ok := entry["owner_id"]; ok {
		t.Fatalf("owner id should be absent")
	}
}

func TestLogEventRequiresName(t *testing.T) {
	if err := LogEvent(context.Background(), "  ", nil); err == nil {
		t.Fatal("expected error for empty event")
	}
}
