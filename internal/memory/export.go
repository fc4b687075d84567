package memory

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"glance/internal/logging"
	"glance/internal/metrics"
)

// ImportError reports why a conversation import was rejected.
type ImportError struct {
	Reason string
	Err    error
}

func (e *ImportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("import conversation: %s: %v", e.Reason, e.Err)
	}
	return "import conversation: " + e.Reason
}

func (e *ImportError) Unwrap() error { return e.Err }

// Exporter renders one session to an output format.
type Exporter interface {
	Export(sess *Session, w io.Writer) error
	Extension() string
}

// NewExporter returns the exporter for format.
func NewExporter(format string) (Exporter, error) {
	switch strings.ToLower(format) {
	case "json":
		return &JSONExporter{}, nil
	case "md", "markdown":
		return &MarkdownExporter{}, nil
	case "txt", "text":
		return &TextExporter{}, nil
	default:
		return nil, fmt.Errorf("unsupported export format: %s (supported: json, markdown, text)", format)
	}
}

// JSONExporter writes the session as pretty-printed JSON. Its output is
// accepted back by ImportConversation unchanged.
type JSONExporter struct{}

// Export writes the session to w.
func (e *JSONExporter) Export(sess *Session, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(sess)
}

// Extension returns the file extension for this format.
func (e *JSONExporter) Extension() string { return "json" }

// MarkdownExporter writes the session as a readable Markdown transcript.
type MarkdownExporter struct{}

// Export writes the session to w.
func (e *MarkdownExporter) Export(sess *Session, w io.Writer) error {
	if _, err := fmt.Fprintf(w, "# %s\n\n", sess.Title); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(w, "**Session:** %s  \n", sess.ID)
	_, _ = fmt.Fprintf(w, "**Created:** %s  \n", sess.CreatedAt.Format(time.RFC3339))
	_, _ = fmt.Fprintf(w, "**Messages:** %d\n\n", len(sess.Messages))
	_, _ = fmt.Fprintf(w, "---\n\n")

	for i, msg := range sess.Messages {
		_, _ = fmt.Fprintf(w, "**%s** (%s)\n\n%s\n\n",
			roleLabel(msg.Role), msg.Timestamp.Format("2006-01-02 15:04:05"), msg.Content)
		if i < len(sess.Messages)-1 {
			_, _ = fmt.Fprintf(w, "---\n\n")
		}
	}
	return nil
}

// Extension returns the file extension for this format.
func (e *MarkdownExporter) Extension() string { return "md" }

// TextExporter writes the session as a plain-text transcript.
type TextExporter struct{}

// Export writes the session to w.
func (e *TextExporter) Export(sess *Session, w io.Writer) error {
	if _, err := fmt.Fprintf(w, "%s (%d messages)\n\n", sess.Title, len(sess.Messages)); err != nil {
		return err
	}
	for _, msg := range sess.Messages {
		_, _ = fmt.Fprintf(w, "[%s] %s: %s\n",
			msg.Timestamp.Format("2006-01-02 15:04"), roleLabel(msg.Role), msg.Content)
	}
	return nil
}

// Extension returns the file extension for this format.
func (e *TextExporter) Extension() string { return "txt" }

func roleLabel(r Role) string {
	switch r {
	case RoleUser:
		return "User"
	case RoleAssistant:
		return "Assistant"
	case RoleSystem:
		return "System"
	}
	return string(r)
}

// ExportConversation renders the session in the given format.
func (s *Store) ExportConversation(id, format string) (string, error) {
	sess, ok := s.GetSession(id)
	if !ok {
		return "", ErrSessionNotFound
	}
	exporter, err := NewExporter(format)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	if err := exporter.Export(sess, &sb); err != nil {
		return "", fmt.Errorf("export session %s: %w", id, err)
	}
	return sb.String(), nil
}

// importPayload is the wire shape ImportConversation validates before
// touching the store. Messages and Metadata stay raw so their JSON types
// can be checked explicitly.
type importPayload struct {
	ID        string          `json:"id" validate:"required"`
	Title     string          `json:"title" validate:"required"`
	CreatedAt time.Time       `json:"created_at" validate:"required"`
	UpdatedAt time.Time       `json:"updated_at"`
	Messages  json.RawMessage `json:"messages" validate:"required"`
	Context   SessionContext  `json:"context"`
	Metadata  json.RawMessage `json:"metadata" validate:"required"`
}

// ImportConversation validates an exported JSON conversation and adds it
// as a new session, returning the new id. Validation happens entirely
// before any mutation: a rejected import leaves the store untouched.
func (s *Store) ImportConversation(data []byte) (string, error) {
	var payload importPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return "", &ImportError{Reason: "malformed JSON", Err: err}
	}
	if err := s.validate.Struct(payload); err != nil {
		return "", &ImportError{Reason: "missing required fields", Err: err}
	}
	if !jsonStartsWith(payload.Messages, '[') {
		return "", &ImportError{Reason: "messages must be a list"}
	}
	if !jsonStartsWith(payload.Metadata, '{') {
		return "", &ImportError{Reason: "metadata must be a record"}
	}

	var messages []Message
	if err := json.Unmarshal(payload.Messages, &messages); err != nil {
		return "", &ImportError{Reason: "malformed messages", Err: err}
	}
	wrapper := struct {
		Messages []Message `validate:"dive"`
	}{messages}
	if err := s.validate.Struct(wrapper); err != nil {
		return "", &ImportError{Reason: "invalid message", Err: err}
	}

	var metadata SessionMetadata
	if err := json.Unmarshal(payload.Metadata, &metadata); err != nil {
		return "", &ImportError{Reason: "malformed metadata", Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock()
	sess := &Session{
		ID:        s.newID(),
		Title:     payload.Title,
		CreatedAt: payload.CreatedAt,
		UpdatedAt: payload.UpdatedAt,
		Messages:  messages,
		Context:   payload.Context,
		Metadata:  metadata,
	}
	if sess.UpdatedAt.IsZero() {
		sess.UpdatedAt = now
	}
	if over := len(sess.Messages) - s.cfg.MaxMessagesPerSession; over > 0 {
		sess.Messages = append([]Message(nil), sess.Messages[over:]...)
	}
	if sess.Metadata.TotalMessages < len(sess.Messages) {
		sess.Metadata.TotalMessages = len(sess.Messages)
	}
	if sess.Metadata.LastActivity.IsZero() {
		sess.Metadata.LastActivity = sess.UpdatedAt
	}

	s.sessions[sess.ID] = sess
	s.index = append(s.index, sess.ID)
	evicted := s.trimSessionsLocked()
	if err := s.flushLocked(sess.ID, evicted); err != nil {
		return "", err
	}
	metrics.ActiveSessions.Set(float64(len(s.sessions)))
	logging.Session("imported session %s (%q, %d messages)", sess.ID, sess.Title, len(sess.Messages))
	return sess.ID, nil
}

func jsonStartsWith(raw json.RawMessage, b byte) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == b
}
