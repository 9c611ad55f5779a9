package core

import (
	"strings"

	"github.com/google/uuid"
)

// NewID generates a new unique identifier for messages, discussions and
// conversations.
func NewID() string { return uuid.NewString() }

// TruncateTitle derives a conversation title from a question. Questions longer
// than 50 characters are cut to 47 characters followed by "...".
func TruncateTitle(question string) string {
	runes := []rune(strings.TrimSpace(question))
	if len(runes) > 50 {
		return string(runes[:47]) + "..."
	}
	return string(runes)
}
