package entities

import "sync"

// MessageLog is the ordered, append-only record of chat turns. Append order
// is the single source of truth for rendering order; entries are never
// edited, removed, or reordered. Safe for concurrent use.
type MessageLog struct {
	mu       sync.RWMutex
	messages []Message
	nextSeq  uint64
}

// NewMessageLog creates an empty log.
func NewMessageLog() *MessageLog {
	return &MessageLog{nextSeq: 1}
}

// Append assigns the next sequence number to m, stores it, and returns the
// stored copy. Sequence numbers are unique and strictly increasing within a
// session.
func (l *MessageLog) Append(m Message) Message {
	l.mu.Lock()
	defer l.mu.Unlock()

	m.Seq = l.nextSeq
	l.nextSeq++
	l.messages = append(l.messages, m)
	return m
}

// Messages returns a copy of the log in append order.
func (l *MessageLog) Messages() []Message {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Message, len(l.messages))
	copy(out, l.messages)
	return out
}

// Len returns the number of appended messages.
func (l *MessageLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.messages)
}

// Last returns the most recently appended message, if any.
func (l *MessageLog) Last() (Message, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if len(l.messages) == 0 {
		return Message{}, false
	}
	return l.messages[len(l.messages)-1], true
}
