package core

// Conversational roles used throughout the turn pipeline.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single conversational element exchanged with the generation
// capability. Ordered slices of Message form a session's history.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// TailWindow returns at most n messages from the end of history, preserving
// order. A non-positive n returns the full slice.
func TailWindow(history []Message, n int) []Message {
	if n <= 0 || len(history) <= n {
		return history
	}
	return history[len(history)-n:]
}
