package logging

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestAuditTrailWritesEvents(t *testing.T) {
	tempDir := t.TempDir()

	writeTestConfig(t, tempDir, `
logging:
  debug_mode: true
  level: debug
`)

	if err := Initialize(tempDir); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	defer CloseAll()

	if err := InitAudit(); err != nil {
		t.Fatalf("InitAudit failed: %v", err)
	}
	defer CloseAudit()

	trail := AuditWithRequest("req-42", "sess-7")
	trail.RequestStarted("explain this function")
	trail.Routed("technical", "matched app type code-editor", 0.97)
	trail.Selected("openai", "gpt-4o-mini", []string{"anthropic", "local"})
	trail.Attempted("openai", "gpt-4o-mini", 850, errors.New("429 too many requests"))
	trail.FellBack("openai", "anthropic")
	trail.Attempted("anthropic", "claude-sonnet", 1200, nil)
	trail.Completed("anthropic", 2050)

	entries, err := os.ReadDir(filepath.Join(tempDir, ".glance", "logs"))
	if err != nil {
		t.Fatalf("logs dir: %v", err)
	}
	var auditPath string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), "_dispatch.log") {
			auditPath = filepath.Join(tempDir, ".glance", "logs", e.Name())
		}
	}
	if auditPath == "" {
		t.Fatal("dispatch trail file not created")
	}

	data, err := os.ReadFile(auditPath)
	if err != nil {
		t.Fatalf("read trail: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	// First line is the header comment.
	if len(lines) != 8 {
		t.Fatalf("expected 8 lines (header + 7 events), got %d", len(lines))
	}

	var routed AuditEvent
	if err := json.Unmarshal([]byte(lines[2]), &routed); err != nil {
		t.Fatalf("unmarshal route event: %v", err)
	}
	if routed.EventType != AuditRouteDecision {
		t.Errorf("event type = %s, want %s", routed.EventType, AuditRouteDecision)
	}
	if routed.RequestID != "req-42" || routed.SessionID != "sess-7" {
		t.Errorf("scoping not applied: req=%s session=%s", routed.RequestID, routed.SessionID)
	}
	if routed.Template != "technical" {
		t.Errorf("template = %s, want technical", routed.Template)
	}

	var failed AuditEvent
	if err := json.Unmarshal([]byte(lines[4]), &failed); err != nil {
		t.Fatalf("unmarshal attempt event: %v", err)
	}
	if failed.EventType != AuditAttemptFailed || failed.Success {
		t.Errorf("failed attempt not recorded as failure: %+v", failed)
	}
	if !strings.Contains(failed.Error, "429") {
		t.Errorf("error detail lost: %q", failed.Error)
	}
}

func TestAuditDisabledInProductionMode(t *testing.T) {
	tempDir := t.TempDir()

	writeTestConfig(t, tempDir, `
logging:
  debug_mode: false
`)

	if err := Initialize(tempDir); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	defer CloseAll()

	if err := InitAudit(); err != nil {
		t.Fatalf("InitAudit failed: %v", err)
	}
	defer CloseAudit()

	Audit().RequestStarted("should be dropped")

	logsPath := filepath.Join(tempDir, ".glance", "logs")
	if entries, err := os.ReadDir(logsPath); err == nil && len(entries) > 0 {
		t.Errorf("expected no trail files in production mode, found %d", len(entries))
	}
}
