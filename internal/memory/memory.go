// Package memory implements the conversation memory store: per-session
// message history bounded by FIFO eviction, naive summarization, Jaccard
// relevance retrieval, and export/import. Every mutation persists the
// affected session through the key-value store before returning, so a
// crash loses at most the very last unflushed write.
package memory

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"glance/internal/config"
	"glance/internal/logging"
	"glance/internal/metrics"
	"glance/internal/store"
)

// ErrSessionNotFound is returned when an operation names an unknown session.
var ErrSessionNotFound = errors.New("session not found")

// Role identifies the author of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

// Message is a single conversation turn.
type Message struct {
	Role      Role              `json:"role" validate:"required,oneof=user assistant system"`
	Content   string            `json:"content" validate:"required"`
	Timestamp time.Time         `json:"timestamp"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// SessionContext carries the ambient state a conversation was started in.
type SessionContext struct {
	OCRText    string `json:"ocr_text,omitempty"`
	DocumentID string `json:"document_id,omitempty"`
	TemplateID string `json:"template_id,omitempty"`
	Domain     string `json:"domain,omitempty"`
}

// SessionMetadata tracks bookkeeping counters for a session.
type SessionMetadata struct {
	// TotalMessages counts every message ever added, including ones the
	// FIFO cap has since evicted.
	TotalMessages int       `json:"total_messages"`
	LastActivity  time.Time `json:"last_activity"`
	Archived      bool      `json:"archived"`
}

// Session is one conversation with its bounded message history.
type Session struct {
	ID        string          `json:"id"`
	Title     string          `json:"title"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
	Messages  []Message       `json:"messages"`
	Context   SessionContext  `json:"context"`
	Metadata  SessionMetadata `json:"metadata"`
}

func (s *Session) clone() *Session {
	c := *s
	c.Messages = make([]Message, len(s.Messages))
	for i, m := range s.Messages {
		c.Messages[i] = m
		if m.Metadata != nil {
			meta := make(map[string]string, len(m.Metadata))
			for k, v := range m.Metadata {
				meta[k] = v
			}
			c.Messages[i].Metadata = meta
		}
	}
	return &c
}

// RelevantMessage is an older message scored against the recent window.
type RelevantMessage struct {
	Message Message `json:"message"`
	Score   float64 `json:"score"`
}

// MemoryContext is the slice of conversation memory handed to prompt
// composition: the recent window, a digest of the whole session, older
// messages that still look relevant, and short cues about the session.
type MemoryContext struct {
	SessionID       string            `json:"session_id"`
	RecentMessages  []Message         `json:"recent_messages"`
	Summary         *Summary          `json:"summary,omitempty"`
	RelevantHistory []RelevantMessage `json:"relevant_history,omitempty"`
	ContextualCues  []string          `json:"contextual_cues,omitempty"`
}

// Store is the conversation memory store. All methods are safe for
// concurrent use. Mutations flush the affected session and the session
// index through the backing key-value store before returning.
type Store struct {
	mu       sync.RWMutex
	cfg      config.MemoryConfig
	kv       store.Store
	validate *validator.Validate
	sessions map[string]*Session
	index    []string // session ids, least recently updated first

	clock func() time.Time
	newID func() string
}

// NewStore loads persisted sessions from kv and returns a ready store.
func NewStore(cfg config.MemoryConfig, kv store.Store) (*Store, error) {
	s := &Store{
		cfg:      cfg,
		kv:       kv,
		validate: validator.New(),
		sessions: make(map[string]*Session),
		clock:    time.Now,
		newID:    uuid.NewString,
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

// load restores the session table from the key-value store. Sessions that
// fail to decode are skipped, not fatal; orphan sessions missing from the
// index are re-adopted as least recently updated.
func (s *Store) load() error {
	var indexed []string
	if raw, ok, err := s.kv.Get(store.KeySessionIndex); err != nil {
		return fmt.Errorf("load session index: %w", err)
	} else if ok {
		if err := json.Unmarshal(raw, &indexed); err != nil {
			logging.MemoryWarn("session index corrupt, rebuilding: %v", err)
			indexed = nil
		}
	}

	seen := make(map[string]bool, len(indexed))
	for _, id := range indexed {
		if seen[id] {
			continue
		}
		seen[id] = true
		if sess := s.loadSession(id); sess != nil {
			s.sessions[id] = sess
			s.index = append(s.index, id)
		}
	}

	keys, err := s.kv.Keys(store.PrefixSession)
	if err != nil {
		return fmt.Errorf("scan sessions: %w", err)
	}
	var orphans []*Session
	for _, key := range keys {
		if key == store.KeySessionIndex {
			continue
		}
		id := key[len(store.PrefixSession):]
		if seen[id] {
			continue
		}
		if sess := s.loadSession(id); sess != nil {
			orphans = append(orphans, sess)
		}
	}
	if len(orphans) > 0 {
		sort.Slice(orphans, func(i, j int) bool {
			return orphans[i].UpdatedAt.Before(orphans[j].UpdatedAt)
		})
		front := make([]string, 0, len(orphans))
		for _, sess := range orphans {
			s.sessions[sess.ID] = sess
			front = append(front, sess.ID)
		}
		s.index = append(front, s.index...)
		logging.MemoryWarn("re-adopted %d sessions missing from the index", len(orphans))
	}

	evicted := s.trimSessionsLocked()
	if len(evicted) > 0 || len(orphans) > 0 {
		if err := s.flushLocked("", evicted); err != nil {
			return err
		}
	}
	metrics.ActiveSessions.Set(float64(len(s.sessions)))
	logging.Memory("loaded %d sessions", len(s.sessions))
	return nil
}

func (s *Store) loadSession(id string) *Session {
	raw, ok, err := s.kv.Get(store.PrefixSession + id)
	if err != nil || !ok {
		if err != nil {
			logging.MemoryWarn("read session %s: %v", id, err)
		}
		return nil
	}
	var sess Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		logging.MemoryWarn("skipping corrupt session %s: %v", id, err)
		return nil
	}
	if sess.ID == "" {
		sess.ID = id
	}
	return &sess
}

// CreateSession starts a new conversation and returns its id. An empty
// title gets a placeholder; sctx may be nil.
func (s *Store) CreateSession(title string, sctx *SessionContext) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if title == "" {
		title = "New conversation"
	}
	now := s.clock()
	sess := &Session{
		ID:        s.newID(),
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
		Messages:  []Message{},
		Metadata:  SessionMetadata{LastActivity: now},
	}
	if sctx != nil {
		sess.Context = *sctx
	}
	s.sessions[sess.ID] = sess
	s.index = append(s.index, sess.ID)

	evicted := s.trimSessionsLocked()
	if err := s.flushLocked(sess.ID, evicted); err != nil {
		return "", err
	}
	metrics.ActiveSessions.Set(float64(len(s.sessions)))
	logging.Session("created session %s (%q)", sess.ID, title)
	return sess.ID, nil
}

// AddMessage appends a turn to the session. ok reports whether the session
// exists; err reports validation or persistence failures. The session's
// message list is trimmed to the configured cap, oldest first.
func (s *Store) AddMessage(id string, role Role, content string, metadata map[string]string) (bool, error) {
	if !role.Valid() {
		return false, fmt.Errorf("unknown message role %q", role)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		logging.MemoryDebug("add message to unknown session %s", id)
		return false, nil
	}

	now := s.clock()
	msg := Message{Role: role, Content: content, Timestamp: now}
	if len(metadata) > 0 {
		msg.Metadata = make(map[string]string, len(metadata))
		for k, v := range metadata {
			msg.Metadata[k] = v
		}
	}
	sess.Messages = append(sess.Messages, msg)
	if over := len(sess.Messages) - s.cfg.MaxMessagesPerSession; over > 0 {
		sess.Messages = append([]Message(nil), sess.Messages[over:]...)
	}
	sess.Metadata.TotalMessages++
	sess.Metadata.LastActivity = now
	sess.UpdatedAt = now
	s.touchLocked(id)

	if err := s.flushLocked(id, nil); err != nil {
		return true, err
	}
	metrics.MessagesStored.Inc()
	return true, nil
}

// GetSession returns a copy of the session, if present.
func (s *Store) GetSession(id string) (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, false
	}
	return sess.clone(), true
}

// ListSessions returns copies of all sessions, most recently updated first.
func (s *Store) ListSessions() []*Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Session, 0, len(s.index))
	for i := len(s.index) - 1; i >= 0; i-- {
		if sess, ok := s.sessions[s.index[i]]; ok {
			out = append(out, sess.clone())
		}
	}
	return out
}

// DeleteSession removes a session and its persisted record.
func (s *Store) DeleteSession(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		return ErrSessionNotFound
	}
	delete(s.sessions, id)
	s.dropFromIndexLocked(id)
	if err := s.kv.Delete(store.PrefixSession + id); err != nil {
		return fmt.Errorf("delete session %s: %w", id, err)
	}
	if err := s.persistIndexLocked(); err != nil {
		return err
	}
	metrics.ActiveSessions.Set(float64(len(s.sessions)))
	logging.Session("deleted session %s", id)
	return nil
}

// ArchiveSession marks a session archived without changing its position
// in the eviction order.
func (s *Store) ArchiveSession(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}
	sess.Metadata.Archived = true
	if err := s.persistSessionLocked(sess); err != nil {
		return err
	}
	logging.Session("archived session %s", id)
	return nil
}

// GetMemoryContext assembles the memory slice for one session: the last
// maxRecent messages, a summary, older messages relevant to the recent
// window, and contextual cues. maxRecent <= 0 uses the configured window.
// System messages are excluded unless includeSystem is set. An unknown
// session yields an empty context, not an error.
func (s *Store) GetMemoryContext(id string, maxRecent int, includeSystem bool) *MemoryContext {
	s.mu.RLock()
	defer s.mu.RUnlock()

	mc := &MemoryContext{SessionID: id}
	sess, ok := s.sessions[id]
	if !ok {
		logging.MemoryDebug("memory context for unknown session %s", id)
		return mc
	}

	if maxRecent <= 0 {
		maxRecent = s.cfg.RecentWindow
	}
	visible := make([]Message, 0, len(sess.Messages))
	for _, m := range sess.Messages {
		if m.Role == RoleSystem && !includeSystem {
			continue
		}
		visible = append(visible, m)
	}

	start := len(visible) - maxRecent
	if start < 0 {
		start = 0
	}
	mc.RecentMessages = append([]Message(nil), visible[start:]...)
	mc.Summary = summarize(sess.Messages)
	mc.RelevantHistory = relevantHistory(visible[:start], mc.RecentMessages, s.cfg.RelevanceThreshold, s.cfg.MaxRelevant)
	mc.ContextualCues = contextualCues(sess)

	logging.MemoryDebug("memory context for %s: %d recent, %d relevant",
		id, len(mc.RecentMessages), len(mc.RelevantHistory))
	return mc
}

// Summarize digests one session, if present.
func (s *Store) Summarize(id string) (*Summary, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, false
	}
	return summarize(sess.Messages), true
}

// FindRelevant scores every message in the session against the query and
// returns the ones above the configured similarity threshold, best first,
// capped at maxResults.
func (s *Store) FindRelevant(id, query string, maxResults int) []RelevantMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil
	}
	return scoreAgainst(sess.Messages, tokenSet(query), s.cfg.RelevanceThreshold, maxResults)
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// contextualCues derives short hints about the session's origin.
func contextualCues(sess *Session) []string {
	var cues []string
	if sess.Context.Domain != "" {
		cues = append(cues, "domain: "+sess.Context.Domain)
	}
	if sess.Context.TemplateID != "" {
		cues = append(cues, "template: "+sess.Context.TemplateID)
	}
	if sess.Context.DocumentID != "" {
		cues = append(cues, "document: "+sess.Context.DocumentID)
	}
	if sess.Context.OCRText != "" {
		cues = append(cues, "screen text captured at session start")
	}
	if sess.Metadata.Archived {
		cues = append(cues, "archived session")
	}
	return cues
}

// touchLocked moves id to the most-recently-updated end of the index.
func (s *Store) touchLocked(id string) {
	s.dropFromIndexLocked(id)
	s.index = append(s.index, id)
}

func (s *Store) dropFromIndexLocked(id string) {
	for i, v := range s.index {
		if v == id {
			s.index = append(s.index[:i], s.index[i+1:]...)
			return
		}
	}
}

// trimSessionsLocked enforces the store-wide session cap, dropping the
// least recently updated sessions first. Returns the evicted ids.
func (s *Store) trimSessionsLocked() []string {
	var evicted []string
	for len(s.index) > s.cfg.MaxSessions {
		id := s.index[0]
		s.index = s.index[1:]
		delete(s.sessions, id)
		evicted = append(evicted, id)
	}
	if len(evicted) > 0 {
		logging.Memory("evicted %d sessions over the %d cap", len(evicted), s.cfg.MaxSessions)
	}
	return evicted
}

// flushLocked persists the named session (if any), removes evicted
// records, and rewrites the index. Mutations call this before returning.
func (s *Store) flushLocked(id string, evicted []string) error {
	for _, ev := range evicted {
		if err := s.kv.Delete(store.PrefixSession + ev); err != nil {
			return fmt.Errorf("delete evicted session %s: %w", ev, err)
		}
	}
	if id != "" {
		if sess, ok := s.sessions[id]; ok {
			if err := s.persistSessionLocked(sess); err != nil {
				return err
			}
		}
	}
	return s.persistIndexLocked()
}

func (s *Store) persistSessionLocked(sess *Session) error {
	raw, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", sess.ID, err)
	}
	if err := s.kv.Set(store.PrefixSession+sess.ID, raw); err != nil {
		return fmt.Errorf("persist session %s: %w", sess.ID, err)
	}
	return nil
}

func (s *Store) persistIndexLocked() error {
	raw, err := json.Marshal(s.index)
	if err != nil {
		return fmt.Errorf("encode session index: %w", err)
	}
	if err := s.kv.Set(store.KeySessionIndex, raw); err != nil {
		return fmt.Errorf("persist session index: %w", err)
	}
	return nil
}
