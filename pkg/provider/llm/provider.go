// Package llm defines the Provider interface for Large Language Model backends.
//
// The notes stage talks to the model exclusively through [Provider], so the
// transcript pipeline never depends on a particular SDK. Concrete backends
// live in sub-packages (anyllm) and a recording test double lives in mock.
//
// Implementors must be safe for concurrent use.
package llm

import "context"

// Role values for [Message].
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single message in a completion request.
type Message struct {
	// Role is one of [RoleSystem], [RoleUser] or [RoleAssistant].
	Role string

	// Content is the text content of the message.
	Content string
}

// Usage holds token accounting returned by the backend.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// CompletionRequest carries everything the model needs to produce a reply.
// At minimum Messages must be non-empty.
type CompletionRequest struct {
	// Messages is the ordered conversation. The last message drives the reply.
	Messages []Message

	// SystemPrompt, when set, is sent ahead of Messages as a system message.
	SystemPrompt string

	// Temperature controls randomness in [0.0, 2.0]. Zero leaves the
	// provider default in place.
	Temperature float64

	// MaxTokens caps the completion length. Zero means provider default.
	MaxTokens int
}

// CompletionResponse is the model's full reply.
type CompletionResponse struct {
	Content string
	Usage   Usage
}

// ModelCapabilities describes the limits of the configured model.
type ModelCapabilities struct {
	// ContextWindow is the maximum token count for input plus output.
	ContextWindow int

	// MaxOutputTokens is the maximum tokens generated in one completion.
	MaxOutputTokens int
}

// Provider is the abstraction over any LLM backend.
type Provider interface {
	// Complete sends req to the model and waits for the full response.
	// It returns promptly with ctx.Err() when ctx is cancelled.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// CountTokens estimates the tokens messages would consume. The result
	// need not be exact but should not undercount.
	CountTokens(messages []Message) (int, error)

	// Capabilities returns static metadata about the model.
	Capabilities() ModelCapabilities
}
