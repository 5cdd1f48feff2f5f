// Package mock provides a recording test double for llm.Provider.
//
// Set Responses to script a sequence of replies (one per Complete call) or
// CompleteResponse for a fixed reply. Call records are safe to read after
// the code under test returns.
//
//	p := &mock.Provider{Responses: []mock.Reply{
//	    {Response: &llm.CompletionResponse{Content: "summary"}},
//	    {Err: errors.New("rate limited")},
//	}}
package mock

import (
	"context"
	"slices"
	"sync"

	"github.com/MrWong99/rpgnotes/pkg/provider/llm"
)

// Reply is one scripted result of Complete.
type Reply struct {
	Response *llm.CompletionResponse
	Err      error
}

// CompleteCall records a single invocation of Complete.
type CompleteCall struct {
	Ctx context.Context
	Req llm.CompletionRequest
}

// Provider is a mock implementation of llm.Provider.
type Provider struct {
	mu sync.Mutex

	// Responses is consumed in order, one entry per Complete call. Once it
	// is exhausted Complete falls back to CompleteResponse and CompleteErr.
	Responses []Reply

	// CompleteResponse is returned by Complete when Responses is exhausted.
	CompleteResponse *llm.CompletionResponse

	// CompleteErr is returned by Complete when Responses is exhausted.
	CompleteErr error

	// TokenCount and CountTokensErr are returned by CountTokens.
	TokenCount     int
	CountTokensErr error

	// ModelCapabilities is returned by Capabilities.
	ModelCapabilities llm.ModelCapabilities

	// CompleteCalls records every invocation of Complete in order.
	CompleteCalls []CompleteCall

	// CountTokensCalls records the messages of every CountTokens call.
	CountTokensCalls [][]llm.Message
}

// Complete records the call and returns the next scripted reply. A
// cancelled ctx short-circuits with ctx.Err() after recording.
func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.CompleteCalls = append(p.CompleteCalls, CompleteCall{Ctx: ctx, Req: req})
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(p.Responses) > 0 {
		r := p.Responses[0]
		p.Responses = p.Responses[1:]
		return r.Response, r.Err
	}
	return p.CompleteResponse, p.CompleteErr
}

// CountTokens records the call and returns TokenCount, CountTokensErr.
func (p *Provider) CountTokens(messages []llm.Message) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.CountTokensCalls = append(p.CountTokensCalls, slices.Clone(messages))
	return p.TokenCount, p.CountTokensErr
}

// Capabilities returns ModelCapabilities.
func (p *Provider) Capabilities() llm.ModelCapabilities {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ModelCapabilities
}

// Calls returns a copy of the recorded Complete calls.
func (p *Provider) Calls() []CompleteCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.CompleteCalls)
}

var _ llm.Provider = (*Provider)(nil)
