package resilience

import (
	"context"

	"github.com/MrWong99/rpgnotes/pkg/provider/llm"
)

// LLMFallback implements [llm.Provider] with failover across LLM backends.
type LLMFallback struct {
	group *FallbackGroup[llm.Provider]
}

var _ llm.Provider = (*LLMFallback)(nil)

// NewLLMFallback creates an [LLMFallback] with primary as the preferred
// backend.
func NewLLMFallback(primary llm.Provider, primaryName string, cfg FallbackConfig) *LLMFallback {
	return &LLMFallback{group: NewFallbackGroup(primary, primaryName, cfg)}
}

// AddFallback registers another backend, tried after the ones already added.
func (f *LLMFallback) AddFallback(name string, p llm.Provider) {
	f.group.AddFallback(name, p)
}

// Names returns the backend names in failover order.
func (f *LLMFallback) Names() []string { return f.group.Names() }

// Complete sends req to the first healthy backend.
func (f *LLMFallback) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	return ExecuteWithResult(ctx, f.group, func(ctx context.Context, p llm.Provider) (*llm.CompletionResponse, error) {
		return p.Complete(ctx, req)
	})
}

// CountTokens uses the primary's estimate, which is what the budget check
// is calibrated against.
func (f *LLMFallback) CountTokens(messages []llm.Message) (int, error) {
	return f.group.entries[0].value.CountTokens(messages)
}

// Capabilities returns the smallest limits across all backends, so a
// transcript that fits passes the budget check whichever backend answers.
func (f *LLMFallback) Capabilities() llm.ModelCapabilities {
	caps := f.group.entries[0].value.Capabilities()
	for _, e := range f.group.entries[1:] {
		c := e.value.Capabilities()
		caps.ContextWindow = min(caps.ContextWindow, c.ContextWindow)
		caps.MaxOutputTokens = min(caps.MaxOutputTokens, c.MaxOutputTokens)
	}
	return caps
}
