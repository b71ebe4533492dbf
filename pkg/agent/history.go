package agent

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"pilot/pkg/utils"
)

// DefaultMaxMessages bounds the history when no limit is configured.
const DefaultMaxMessages = 200

// History is the ordered conversation. Appends evict the oldest messages
// once the message or token budget is exceeded.
type History struct {
	messages    []Message
	maxMessages int
	maxTokens   int
	counter     *utils.TokenCounter
	mu          sync.RWMutex
}

// NewHistory creates a history bounded to maxMessages and, when maxTokens is
// positive, to maxTokens as counted by counter.
func NewHistory(maxMessages, maxTokens int, counter *utils.TokenCounter) *History {
	if maxMessages <= 0 {
		maxMessages = DefaultMaxMessages
	}
	return &History{
		maxMessages: maxMessages,
		maxTokens:   maxTokens,
		counter:     counter,
	}
}

// Append adds msg and evicts old messages as needed.
func (h *History) Append(msg Message) {
	if msg.At.IsZero() {
		msg.At = time.Now().UTC()
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = append(h.messages, msg)
	h.evictLocked()
}

// Messages returns a copy of the conversation.
func (h *History) Messages() []Message {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Message, len(h.messages))
	copy(out, h.messages)
	return out
}

// Len returns the number of messages.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.messages)
}

// Tokens returns the counted size of the conversation.
func (h *History) Tokens() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.tokensLocked()
}

// Marshal serializes the conversation for a session snapshot.
func (h *History) Marshal() ([]byte, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	data, err := json.Marshal(h.messages)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal history: %w", err)
	}
	return data, nil
}

// Restore replaces the conversation with a snapshot produced by Marshal.
func (h *History) Restore(data []byte) error {
	var msgs []Message
	if len(data) > 0 {
		if err := json.Unmarshal(data, &msgs); err != nil {
			return fmt.Errorf("failed to unmarshal history: %w", err)
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = msgs
	h.evictLocked()
	return nil
}

func (h *History) tokensLocked() int {
	total := 0
	for i := range h.messages {
		total += h.counter.CountTokens(h.messages[i].Content)
	}
	return total
}

func (h *History) evictLocked() {
	drop := 0
	if n := len(h.messages); n > h.maxMessages {
		drop = n - h.maxMessages
	}
	if h.maxTokens > 0 {
		total := h.tokensLocked()
		for i := 0; i < drop; i++ {
			total -= h.counter.CountTokens(h.messages[i].Content)
		}
		// The newest message always stays.
		for total > h.maxTokens && drop < len(h.messages)-1 {
			total -= h.counter.CountTokens(h.messages[drop].Content)
			drop++
		}
	}
	// A tool result must not outlive the request it answers.
	for drop < len(h.messages)-1 && h.messages[drop].Role == RoleTool {
		drop++
	}
	if drop == 0 {
		return
	}
	h.messages = append([]Message(nil), h.messages[drop:]...)
}
