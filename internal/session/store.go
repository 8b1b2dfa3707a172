// Package session holds the in-memory state of one chat session: the
// ordered message list and the per-message feedback and copy flags.
// Nothing is persisted; Clear and Reset end the session.
package session

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samsaffron/seek-chat/internal/llm"
)

// Store is an append-only ordered list of messages. Only the tail message
// may change, and only by growing, until it is finalized. It is safe for
// concurrent use.
type Store struct {
	mu       sync.RWMutex
	messages []Message
	index    map[string]int
	version  uint64

	newID func() string
	now   func() time.Time
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		index: make(map[string]int),
		newID: uuid.NewString,
		now:   time.Now,
	}
}

// Append adds a new message with a fresh identity and returns it.
func (s *Store) Append(role llm.Role, content string, final bool) Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := Message{
		ID:        s.newID(),
		Role:      role,
		Content:   content,
		Final:     final,
		CreatedAt: s.now(),
	}
	s.push(m)
	return m
}

// AppendMessage adds m as is. An empty ID is filled in.
func (s *Store) AppendMessage(m Message) (Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if m.ID == "" {
		m.ID = s.newID()
	}
	if _, ok := s.index[m.ID]; ok {
		return Message{}, fmt.Errorf("append %s: %w", m.ID, ErrDuplicateID)
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = s.now()
	}
	s.push(m)
	return m, nil
}

func (s *Store) push(m Message) {
	s.index[m.ID] = len(s.messages)
	s.messages = append(s.messages, m)
	s.version++
}

// tail returns the index of the live tail message named id.
// Must be called with s.mu held.
func (s *Store) tail(id string) (int, error) {
	i, ok := s.index[id]
	if !ok || i != len(s.messages)-1 {
		return 0, fmt.Errorf("message %s: %w", id, ErrNotTail)
	}
	if s.messages[i].Final {
		return 0, fmt.Errorf("message %s: %w", id, ErrFinal)
	}
	return i, nil
}

// ReplaceTail swaps the content of the streaming tail message. The new
// content must extend the old.
func (s *Store) ReplaceTail(id, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, err := s.tail(id)
	if err != nil {
		return err
	}
	if !strings.HasPrefix(content, s.messages[i].Content) {
		return fmt.Errorf("message %s: %w", id, ErrShrink)
	}
	if content == s.messages[i].Content {
		return nil
	}
	s.messages[i].Content = content
	s.version++
	return nil
}

// AppendTail appends delta to the streaming tail message.
func (s *Store) AppendTail(id, delta string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, err := s.tail(id)
	if err != nil {
		return err
	}
	if delta == "" {
		return nil
	}
	s.messages[i].Content += delta
	s.version++
	return nil
}

// Finalize marks a message final. Finalizing twice is a no-op.
func (s *Store) Finalize(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[id]
	if !ok {
		return fmt.Errorf("finalize %s: %w", id, ErrNotTail)
	}
	if s.messages[i].Final {
		return nil
	}
	s.messages[i].Final = true
	s.version++
	return nil
}

// DropTail removes the unfinished tail message named id.
func (s *Store) DropTail(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, err := s.tail(id)
	if err != nil {
		return err
	}
	delete(s.index, id)
	s.messages = s.messages[:i]
	s.version++
	return nil
}

// Clear removes every message.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages = nil
	s.index = make(map[string]int)
	s.version++
}

// Messages returns a snapshot in insertion order.
func (s *Store) Messages() []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Message(nil), s.messages...)
}

// Get returns the message with the given identity.
func (s *Store) Get(id string) (Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[id]
	if !ok {
		return Message{}, false
	}
	return s.messages[i], true
}

// Tail returns the newest message.
func (s *Store) Tail() (Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.messages) == 0 {
		return Message{}, false
	}
	return s.messages[len(s.messages)-1], true
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

// Version increases on every mutation. Renderers use it to skip work when
// nothing changed.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// History returns the conversation for a provider request, skipping empty
// messages.
func (s *Store) History() []llm.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]llm.Message, 0, len(s.messages))
	for _, m := range s.messages {
		if m.Content == "" {
			continue
		}
		out = append(out, m.LLM())
	}
	return out
}
