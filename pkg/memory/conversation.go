// Package memory provides the agent's short-term stores: per-conversation
// message history and a response cache for repeated utterances. Both are
// bounded and safe for concurrent use across sessions.
package memory

import (
	"sync"
	"time"

	"github.com/kamaraj/voicebot/pkg/llm"
)

const (
	defaultMaxMessages      = 10
	defaultMaxConversations = 1000
)

type conversation struct {
	messages    []llm.Message
	lastUpdated time.Time
}

// ConversationMemory keeps a sliding window of messages per conversation.
type ConversationMemory struct {
	mu               sync.Mutex
	conversations    map[string]*conversation
	maxMessages      int
	maxConversations int
	ttl              time.Duration
	now              func() time.Time
}

// MemoryOption configures a ConversationMemory.
type MemoryOption func(*ConversationMemory)

// WithMaxMessages bounds the per-conversation window.
func WithMaxMessages(n int) MemoryOption {
	return func(m *ConversationMemory) {
		if n > 0 {
			m.maxMessages = n
		}
	}
}

// WithConversationTTL expires conversations idle for longer than ttl.
func WithConversationTTL(ttl time.Duration) MemoryOption {
	return func(m *ConversationMemory) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

// WithMemoryClock injects a time source for tests.
func WithMemoryClock(now func() time.Time) MemoryOption {
	return func(m *ConversationMemory) {
		if now != nil {
			m.now = now
		}
	}
}

// NewConversationMemory returns an empty store.
func NewConversationMemory(opts ...MemoryOption) *ConversationMemory {
	m := &ConversationMemory{
		conversations:    make(map[string]*conversation),
		maxMessages:      defaultMaxMessages,
		maxConversations: defaultMaxConversations,
		ttl:              24 * time.Hour,
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Add appends one message, evicting the oldest conversation when the
// store is full and the oldest window entry when the conversation is.
func (m *ConversationMemory) Add(conversationID, role, content string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	conv, ok := m.conversations[conversationID]
	if !ok {
		for len(m.conversations) >= m.maxConversations {
			m.evictOldestLocked()
		}
		conv = &conversation{}
		m.conversations[conversationID] = conv
	}
	conv.messages = append(conv.messages, llm.Message{Role: role, Content: content})
	if len(conv.messages) > m.maxMessages {
		conv.messages = conv.messages[len(conv.messages)-m.maxMessages:]
	}
	conv.lastUpdated = m.now()
}

// Context returns up to max of the most recent messages.
func (m *ConversationMemory) Context(conversationID string, max int) []llm.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	conv, ok := m.conversations[conversationID]
	if !ok {
		return nil
	}
	msgs := conv.messages
	if max > 0 && len(msgs) > max {
		msgs = msgs[len(msgs)-max:]
	}
	out := make([]llm.Message, len(msgs))
	copy(out, msgs)
	return out
}

// Forget drops one conversation's history.
func (m *ConversationMemory) Forget(conversationID string) {
	m.mu.Lock()
	delete(m.conversations, conversationID)
	m.mu.Unlock()
}

// Cleanup removes conversations idle past the TTL and returns the count.
func (m *ConversationMemory) Cleanup() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := m.now().Add(-m.ttl)
	removed := 0
	for id, conv := range m.conversations {
		if conv.lastUpdated.Before(cutoff) {
			delete(m.conversations, id)
			removed++
		}
	}
	return removed
}

// Len reports the number of live conversations.
func (m *ConversationMemory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.conversations)
}

func (m *ConversationMemory) evictOldestLocked() {
	var oldestID string
	var oldest time.Time
	for id, conv := range m.conversations {
		if oldestID == "" || conv.lastUpdated.Before(oldest) {
			oldestID = id
			oldest = conv.lastUpdated
		}
	}
	if oldestID != "" {
		delete(m.conversations, oldestID)
	}
}
