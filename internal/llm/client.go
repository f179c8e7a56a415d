// Package llm wraps the text-completion providers behind one oracle
// interface. The engine always sends a single user prompt, except for
// extraction retries which replay the prior assistant reply plus a
// corrective follow-up in the same call.
package llm

import "context"

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string
	Content string
}

// UserMessage builds the common single-prompt message list.
func UserMessage(content string) []Message {
	return []Message{{Role: RoleUser, Content: content}}
}

type Client interface {
	Complete(ctx context.Context, messages []Message) (string, error)
}
