// Package compat provides an LLM provider for servers that speak the OpenAI
// chat completions protocol (vLLM, LM Studio, LocalAI, OpenRouter, ...).
// It talks to them with the official openai-go SDK pointed at a custom base
// URL.
package compat

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"

	"github.com/MrWong99/rpgnotes/pkg/provider/llm"
)

// placeholderKey is sent when the server needs no authentication; the SDK
// refuses to build requests without one.
const placeholderKey = "unused"

// Provider implements llm.Provider against an OpenAI-compatible server.
type Provider struct {
	client oai.Client
	model  string
	caps   llm.ModelCapabilities
}

type config struct {
	apiKey  string
	timeout time.Duration
	caps    llm.ModelCapabilities
}

// Option is a functional option for Provider.
type Option func(*config)

// WithAPIKey sets the bearer token. Local servers usually need none.
func WithAPIKey(key string) Option {
	return func(c *config) { c.apiKey = key }
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// WithContextWindow declares the model's context window, which the server
// does not report. Default: 32768 tokens.
func WithContextWindow(tokens int) Option {
	return func(c *config) {
		if tokens > 0 {
			c.caps.ContextWindow = tokens
		}
	}
}

// New constructs a Provider for model served at baseURL.
func New(baseURL, model string, opts ...Option) (*Provider, error) {
	if baseURL == "" {
		return nil, errors.New("compat: baseURL must not be empty")
	}
	if model == "" {
		return nil, errors.New("compat: model must not be empty")
	}

	cfg := &config{
		apiKey: placeholderKey,
		caps:   llm.ModelCapabilities{ContextWindow: 32_768, MaxOutputTokens: 4_096},
	}
	for _, o := range opts {
		o(cfg)
	}
	if cfg.apiKey == "" {
		cfg.apiKey = placeholderKey
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(cfg.apiKey),
		option.WithBaseURL(baseURL),
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{Timeout: cfg.timeout}))
	}
	return &Provider{client: oai.NewClient(reqOpts...), model: model, caps: cfg.caps}, nil
}

// Complete implements llm.Provider.
func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	params, err := p.buildParams(req)
	if err != nil {
		return nil, fmt.Errorf("compat: build params: %w", err)
	}
	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("compat: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("compat: empty choices in response")
	}
	return &llm.CompletionResponse{
		Content: resp.Choices[0].Message.Content,
		Usage: llm.Usage{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:      int(resp.Usage.TotalTokens),
		},
	}, nil
}

// CountTokens implements llm.Provider with the ~4 characters per token
// approximation plus a per-message overhead.
func (p *Provider) CountTokens(messages []llm.Message) (int, error) {
	total := 0
	for _, m := range messages {
		total += (len(m.Content)+3)/4 + 4
	}
	return total, nil
}

// Capabilities implements llm.Provider.
func (p *Provider) Capabilities() llm.ModelCapabilities { return p.caps }

func (p *Provider) buildParams(req llm.CompletionRequest) (oai.ChatCompletionNewParams, error) {
	var messages []oai.ChatCompletionMessageParamUnion
	if req.SystemPrompt != "" {
		messages = append(messages, oai.SystemMessage(req.SystemPrompt))
	}
	for _, m := range req.Messages {
		msg, err := convertMessage(m)
		if err != nil {
			return oai.ChatCompletionNewParams{}, err
		}
		messages = append(messages, msg)
	}

	params := oai.ChatCompletionNewParams{
		Model:    shared.ChatModel(p.model),
		Messages: messages,
	}
	if req.Temperature != 0 {
		params.Temperature = param.NewOpt(req.Temperature)
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = param.NewOpt(int64(req.MaxTokens))
	}
	return params, nil
}

func convertMessage(m llm.Message) (oai.ChatCompletionMessageParamUnion, error) {
	switch m.Role {
	case llm.RoleSystem:
		return oai.SystemMessage(m.Content), nil
	case llm.RoleUser:
		return oai.UserMessage(m.Content), nil
	case llm.RoleAssistant:
		return oai.AssistantMessage(m.Content), nil
	default:
		return oai.ChatCompletionMessageParamUnion{}, fmt.Errorf("compat: unknown message role %q", m.Role)
	}
}

var _ llm.Provider = (*Provider)(nil)
