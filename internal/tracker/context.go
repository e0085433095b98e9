package tracker

import "sync"

// DefaultContextSize is how many recent texts are kept per conversation.
const DefaultContextSize = 10

// ConversationContext is a per-conversation FIFO of recent message texts used
// for similarity checks.
type ConversationContext struct {
	mu   sync.Mutex
	size int
	msgs map[string][]string
}

func NewConversationContext(size int) *ConversationContext {
	if size <= 0 {
		size = DefaultContextSize
	}
	return &ConversationContext{size: size, msgs: make(map[string][]string)}
}

// Append adds text, evicting the oldest entry on overflow.
func (c *ConversationContext) Append(conversationID, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	buf := append(c.msgs[conversationID], text)
	if len(buf) > c.size {
		buf = append([]string(nil), buf[len(buf)-c.size:]...)
	}
	c.msgs[conversationID] = buf
}

// Recent returns up to n most recent texts, oldest first.
func (c *ConversationContext) Recent(conversationID string, n int) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	buf := c.msgs[conversationID]
	if n <= 0 || n > len(buf) {
		n = len(buf)
	}
	return append([]string(nil), buf[len(buf)-n:]...)
}
