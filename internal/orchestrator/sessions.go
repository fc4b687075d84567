package orchestrator

import (
	"glance/internal/memory"
)

// Session passthroughs. The CLI consumes the orchestrator surface only, so
// conversation management is re-exposed here rather than reaching into the
// memory store directly.

// CreateSession opens a new conversation and returns its id.
func (o *Orchestrator) CreateSession(title string, sctx *memory.SessionContext) (string, error) {
	return o.memory.CreateSession(title, sctx)
}

// AddMessage appends a turn to a session outside the dispatch path.
func (o *Orchestrator) AddMessage(id string, role memory.Role, content string, metadata map[string]string) (bool, error) {
	return o.memory.AddMessage(id, role, content, metadata)
}

// GetSession returns a copy of the session, if present.
func (o *Orchestrator) GetSession(id string) (*memory.Session, bool) {
	return o.memory.GetSession(id)
}

// ListSessions returns every session, most recently updated first.
func (o *Orchestrator) ListSessions() []*memory.Session {
	return o.memory.ListSessions()
}

// DeleteSession removes a session and its persisted record.
func (o *Orchestrator) DeleteSession(id string) error {
	return o.memory.DeleteSession(id)
}

// ArchiveSession marks a session archived without deleting it.
func (o *Orchestrator) ArchiveSession(id string) error {
	return o.memory.ArchiveSession(id)
}

// GetMemoryContext assembles the prompt-facing slice of a conversation.
func (o *Orchestrator) GetMemoryContext(id string, maxRecent int, includeSystem bool) *memory.MemoryContext {
	return o.memory.GetMemoryContext(id, maxRecent, includeSystem)
}

// Summarize digests a session's full history.
func (o *Orchestrator) Summarize(id string) (*memory.Summary, bool) {
	return o.memory.Summarize(id)
}

// FindRelevant scores older messages in a session against a query.
func (o *Orchestrator) FindRelevant(id, query string, maxResults int) []memory.RelevantMessage {
	return o.memory.FindRelevant(id, query, maxResults)
}

// ExportConversation renders a session in the named format.
func (o *Orchestrator) ExportConversation(id, format string) (string, error) {
	return o.memory.ExportConversation(id, format)
}

// ImportConversation validates and adopts an exported session under a new
// id.
func (o *Orchestrator) ImportConversation(data []byte) (string, error) {
	return o.memory.ImportConversation(data)
}
