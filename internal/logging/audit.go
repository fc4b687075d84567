// Package logging audit support: a JSON-lines trail of dispatch decisions.
// Every orchestrated request appends events (routing, selection, attempts,
// fallbacks, outcome) so a session can be reconstructed after the fact.
package logging

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// AuditEventType defines the type of audit event
type AuditEventType string

const (
	// Request lifecycle events
	AuditRequestStart    AuditEventType = "request_start"
	AuditRequestComplete AuditEventType = "request_complete"
	AuditRequestExhaust  AuditEventType = "request_exhausted"

	// Decision events
	AuditRouteDecision   AuditEventType = "route_decision"
	AuditPromptComposed  AuditEventType = "prompt_composed"
	AuditProviderSelect  AuditEventType = "provider_select"

	// Dispatch events
	AuditAttempt       AuditEventType = "attempt"
	AuditAttemptFailed AuditEventType = "attempt_failed"
	AuditFallback      AuditEventType = "fallback"

	// Health events
	AuditBlacklist AuditEventType = "blacklist"
	AuditRecover   AuditEventType = "recover"

	// Memory events
	AuditMemoryStore  AuditEventType = "memory_store"
	AuditMemoryRecall AuditEventType = "memory_recall"
)

// AuditEvent represents one structured trail entry, written as a JSON line.
type AuditEvent struct {
	Timestamp  int64                  `json:"ts"` // Unix milliseconds
	EventType  AuditEventType         `json:"event"`
	RequestID  string                 `json:"req,omitempty"`
	SessionID  string                 `json:"session,omitempty"`
	Provider   string                 `json:"provider,omitempty"`
	Model      string                 `json:"model,omitempty"`
	Template   string                 `json:"template,omitempty"`
	Success    bool                   `json:"success"`
	DurationMs int64                  `json:"dur_ms,omitempty"`
	Error      string                 `json:"error,omitempty"`
	Message    string                 `json:"msg,omitempty"`
	Fields     map[string]interface{} `json:"fields,omitempty"`
}

var (
	auditFile *os.File
	auditMu   sync.Mutex
)

// AuditLogger writes trail entries scoped to a request and session.
type AuditLogger struct {
	requestID string
	sessionID string
}

// InitAudit initializes the audit trail file. No-op unless debug mode is on.
func InitAudit() error {
	if !IsDebugMode() {
		return nil
	}

	auditMu.Lock()
	defer auditMu.Unlock()

	if auditFile != nil {
		return nil // Already initialized
	}

	date := time.Now().Format("2006-01-02")
	auditPath := filepath.Join(logsDir, fmt.Sprintf("%s_dispatch.log", date))

	file, err := os.OpenFile(auditPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}
	auditFile = file

	header := fmt.Sprintf("# Dispatch trail started at %s\n", time.Now().Format(time.RFC3339))
	auditFile.WriteString(header)

	return nil
}

// CloseAudit closes the audit trail file
func CloseAudit() {
	auditMu.Lock()
	defer auditMu.Unlock()

	if auditFile != nil {
		auditFile.Close()
		auditFile = nil
	}
}

// Audit returns an unscoped audit logger
func Audit() *AuditLogger {
	return &AuditLogger{}
}

// AuditWithRequest creates an audit logger scoped to one logical request
func AuditWithRequest(requestID, sessionID string) *AuditLogger {
	return &AuditLogger{requestID: requestID, sessionID: sessionID}
}

// Log writes an audit event
func (a *AuditLogger) Log(event AuditEvent) {
	if !IsDebugMode() || auditFile == nil {
		return
	}

	if event.Timestamp == 0 {
		event.Timestamp = time.Now().UnixMilli()
	}
	if event.RequestID == "" && a.requestID != "" {
		event.RequestID = a.requestID
	}
	if event.SessionID == "" && a.sessionID != "" {
		event.SessionID = a.sessionID
	}

	auditMu.Lock()
	defer auditMu.Unlock()

	data, err := json.Marshal(event)
	if err == nil {
		auditFile.WriteString(string(data) + "\n")
	}
}

// RequestStarted records the start of a logical request
func (a *AuditLogger) RequestStarted(query string) {
	a.Log(AuditEvent{
		EventType: AuditRequestStart,
		Message:   truncateForAudit(query, 200),
	})
}

// Routed records a routing decision
func (a *AuditLogger) Routed(templateID, reason string, confidence float64) {
	a.Log(AuditEvent{
		EventType: AuditRouteDecision,
		Template:  templateID,
		Message:   reason,
		Success:   true,
		Fields:    map[string]interface{}{"confidence": confidence},
	})
}

// Selected records a provider selection with its fallback chain
func (a *AuditLogger) Selected(provider, model string, fallbackChain []string) {
	a.Log(AuditEvent{
		EventType: AuditProviderSelect,
		Provider:  provider,
		Model:     model,
		Success:   true,
		Fields:    map[string]interface{}{"fallback_chain": fallbackChain},
	})
}

// Attempted records a dispatch attempt outcome
func (a *AuditLogger) Attempted(provider, model string, durMs int64, err error) {
	e := AuditEvent{
		EventType:  AuditAttempt,
		Provider:   provider,
		Model:      model,
		DurationMs: durMs,
		Success:    err == nil,
	}
	if err != nil {
		e.EventType = AuditAttemptFailed
		e.Error = err.Error()
	}
	a.Log(e)
}

// FellBack records a fallback transition between providers
func (a *AuditLogger) FellBack(from, to string) {
	a.Log(AuditEvent{
		EventType: AuditFallback,
		Provider:  to,
		Message:   fmt.Sprintf("fallback from %s", from),
		Success:   true,
	})
}

// Completed records the terminal outcome of a request
func (a *AuditLogger) Completed(provider string, durMs int64) {
	a.Log(AuditEvent{
		EventType:  AuditRequestComplete,
		Provider:   provider,
		DurationMs: durMs,
		Success:    true,
	})
}

// Exhausted records a request that ran out of providers
func (a *AuditLogger) Exhausted(tried int, lastErr error) {
	e := AuditEvent{
		EventType: AuditRequestExhaust,
		Fields:    map[string]interface{}{"providers_tried": tried},
	}
	if lastErr != nil {
		e.Error = lastErr.Error()
	}
	a.Log(e)
}

// Blacklisted records a provider health transition to unavailable
func (a *AuditLogger) Blacklisted(provider string, successRate float64) {
	a.Log(AuditEvent{
		EventType: AuditBlacklist,
		Provider:  provider,
		Fields:    map[string]interface{}{"success_rate": successRate},
	})
}

// Recovered records a provider health transition back to available
func (a *AuditLogger) Recovered(provider string) {
	a.Log(AuditEvent{
		EventType: AuditRecover,
		Provider:  provider,
		Success:   true,
	})
}

func truncateForAudit(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
