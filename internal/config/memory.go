package config

import "fmt"

// MemoryConfig bounds conversation memory.
type MemoryConfig struct {
	MaxMessagesPerSession int     `yaml:"max_messages_per_session"` // per-session FIFO cap
	MaxSessions           int     `yaml:"max_sessions"`             // store-wide cap, least-recently-updated evicted
	RecentWindow          int     `yaml:"recent_window"`            // messages returned as recent context
	MaxRelevant           int     `yaml:"max_relevant"`             // relevance retrieval result cap
	RelevanceThreshold    float64 `yaml:"relevance_threshold"`      // minimum Jaccard similarity kept
}

// ValidateMemory checks memory bounds are usable.
func (c *Config) ValidateMemory() error {
	m := c.Memory
	if m.MaxMessagesPerSession < 2 {
		return fmt.Errorf("memory.max_messages_per_session must be >= 2, got %d", m.MaxMessagesPerSession)
	}
	if m.MaxSessions < 1 {
		return fmt.Errorf("memory.max_sessions must be >= 1, got %d", m.MaxSessions)
	}
	if m.RecentWindow < 1 {
		return fmt.Errorf("memory.recent_window must be >= 1, got %d", m.RecentWindow)
	}
	if m.RelevanceThreshold < 0 || m.RelevanceThreshold >= 1 {
		return fmt.Errorf("memory.relevance_threshold must be in [0,1), got %v", m.RelevanceThreshold)
	}
	return nil
}
