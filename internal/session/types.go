package session

import (
	"errors"
	"time"

	"github.com/samsaffron/seek-chat/internal/llm"
)

var (
	// ErrDuplicateID is returned when a message identity is already present.
	ErrDuplicateID = errors.New("session: duplicate message id")
	// ErrNotTail is returned when a tail operation names another message.
	ErrNotTail = errors.New("session: message is not the tail")
	// ErrFinal is returned when mutating a message that was finalized.
	ErrFinal = errors.New("session: message is final")
	// ErrShrink is returned when a replacement does not extend the content.
	ErrShrink = errors.New("session: streamed content may only grow")
)

// Message is one conversation entry. Content grows while Final is false and
// never changes after.
type Message struct {
	ID        string    `json:"id"`
	Role      llm.Role  `json:"role"`
	Content   string    `json:"content"`
	Final     bool      `json:"final"`
	CreatedAt time.Time `json:"created_at"`
}

// LLM converts the message for a provider request.
func (m Message) LLM() llm.Message {
	return llm.TextMessage(m.Role, m.Content)
}

// Feedback is the like/dislike state of a message.
type Feedback int

const (
	FeedbackUnset Feedback = iota
	FeedbackLiked
	FeedbackDisliked
)

func (f Feedback) String() string {
	switch f {
	case FeedbackLiked:
		return "liked"
	case FeedbackDisliked:
		return "disliked"
	default:
		return "unset"
	}
}
