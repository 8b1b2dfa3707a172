package llm

import "strings"

func collectTextParts(parts []Part) string {
	var b strings.Builder
	for _, part := range parts {
		if part.Type == PartText {
			b.WriteString(part.Text)
		}
	}
	return b.String()
}

// Text returns the concatenated text parts of the message.
func (m Message) Text() string {
	return collectTextParts(m.Parts)
}

// HasRole reports whether any message has the given role.
func HasRole(messages []Message, role Role) bool {
	for _, m := range messages {
		if m.Role == role {
			return true
		}
	}
	return false
}

// LastMessage returns the final message, or false for an empty list.
func LastMessage(messages []Message) (Message, bool) {
	if len(messages) == 0 {
		return Message{}, false
	}
	return messages[len(messages)-1], true
}
