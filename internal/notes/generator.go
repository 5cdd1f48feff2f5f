// Package notes turns an assembled session transcript into campaign notes:
// a narrative summary plus structured details (title, events, NPCs, ...)
// extracted by an LLM and rendered to Markdown.
package notes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/MrWong99/rpgnotes/internal/observe"
	"github.com/MrWong99/rpgnotes/pkg/provider/llm"
)

// ErrNoTranscript is returned when there is no transcript text to work from.
var ErrNoTranscript = errors.New("notes: transcript is empty")

// ErrMalformedDetails is returned when every details attempt produced
// output that could not be decoded.
var ErrMalformedDetails = errors.New("notes: malformed details response")

const (
	summaryTemperature = 0.7
	detailsTemperature = 0.2
)

// Details is the structured part of the notes.
type Details struct {
	Title     string   `json:"title"`
	Events    []string `json:"events"`
	NPCs      []string `json:"npcs"`
	Locations []string `json:"locations"`
	Items     []string `json:"items"`
	Quotes    []string `json:"quotes"`
	Hooks     []string `json:"hooks"`
	Images    []string `json:"images"`
	Videos    []string `json:"videos"`
}

// Notes is the generator output.
type Notes struct {
	Summary string
	Details Details
}

// Generator runs the two-step summary and details exchange against an
// [llm.Provider].
type Generator struct {
	provider      llm.Provider
	providerName  string
	summaryPrompt string
	detailsPrompt string
	contextDir    string
	pause         time.Duration
	maxAttempts   int
	metrics       *observe.Metrics
	sleep         func(context.Context, time.Duration) error
}

// Option is a functional option for [NewGenerator].
type Option func(*Generator)

// WithProviderName sets the provider label used in metrics. Default: "llm".
func WithProviderName(name string) Option {
	return func(g *Generator) {
		if name != "" {
			g.providerName = name
		}
	}
}

// WithSummaryPrompt replaces the built-in summary system prompt.
func WithSummaryPrompt(p string) Option {
	return func(g *Generator) {
		if strings.TrimSpace(p) != "" {
			g.summaryPrompt = p
		}
	}
}

// WithDetailsPrompt replaces the built-in details system prompt.
func WithDetailsPrompt(p string) Option {
	return func(g *Generator) {
		if strings.TrimSpace(p) != "" {
			g.detailsPrompt = p
		}
	}
}

// WithContextDir points the generator at a directory of campaign context
// files (.md and .txt) that are sent along with the summary request.
func WithContextDir(dir string) Option {
	return func(g *Generator) { g.contextDir = dir }
}

// WithPause sets the delay between the summary and details requests.
// Default: 10s. Zero disables the pause.
func WithPause(d time.Duration) Option {
	return func(g *Generator) {
		if d >= 0 {
			g.pause = d
		}
	}
}

// WithMaxAttempts sets how often a malformed details response is retried.
// Default: 3.
func WithMaxAttempts(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.maxAttempts = n
		}
	}
}

// WithMetrics overrides the metrics sink. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(g *Generator) {
		if m != nil {
			g.metrics = m
		}
	}
}

// NewGenerator creates a Generator backed by p.
func NewGenerator(p llm.Provider, opts ...Option) *Generator {
	g := &Generator{
		provider:      p,
		providerName:  "llm",
		summaryPrompt: DefaultSummaryPrompt,
		detailsPrompt: DefaultDetailsPrompt,
		pause:         10 * time.Second,
		maxAttempts:   3,
		sleep:         sleepCtx,
	}
	for _, o := range opts {
		o(g)
	}
	if g.metrics == nil {
		g.metrics = observe.DefaultMetrics()
	}
	return g
}

// Generate produces notes for transcript. Cancelling ctx aborts both the
// LLM calls and the pause between them.
func (g *Generator) Generate(ctx context.Context, transcript string) (*Notes, error) {
	if strings.TrimSpace(transcript) == "" {
		return nil, ErrNoTranscript
	}
	ctx, span := observe.StartSpan(ctx, "notes.generate")
	defer span.End()
	log := observe.Logger(ctx)

	campaign, err := loadContext(g.contextDir)
	if err != nil {
		log.Warn("campaign context unavailable", "dir", g.contextDir, "err", err)
	}

	summaryMsgs := make([]llm.Message, 0, 2)
	if campaign != "" {
		summaryMsgs = append(summaryMsgs, llm.Message{Role: llm.RoleUser, Content: "ADDITIONAL CAMPAIGN CONTEXT:\n" + campaign})
	}
	summaryMsgs = append(summaryMsgs, llm.Message{Role: llm.RoleUser, Content: "TRANSCRIPT OF THE CURRENT SESSION:\n" + transcript})
	g.checkBudget(ctx, summaryMsgs)

	log.Info("generating session summary", "chars", len(transcript), "context_chars", len(campaign))
	summary, err := g.complete(ctx, llm.CompletionRequest{
		SystemPrompt: g.summaryPrompt,
		Messages:     summaryMsgs,
		Temperature:  summaryTemperature,
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("notes: summary: %w", err)
	}
	summary = strings.TrimSpace(summary)

	if g.pause > 0 {
		log.Debug("pausing between requests", "pause", g.pause)
		if err := g.sleep(ctx, g.pause); err != nil {
			return nil, fmt.Errorf("notes: %w", err)
		}
	}

	details, err := g.details(ctx, summary, transcript)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.String("notes.title", details.Title))
	return &Notes{Summary: summary, Details: *details}, nil
}

func (g *Generator) details(ctx context.Context, summary, transcript string) (*Details, error) {
	log := observe.Logger(ctx)
	req := llm.CompletionRequest{
		SystemPrompt: g.detailsPrompt + "\n\n" + detailsSchema,
		Messages: []llm.Message{{
			Role: llm.RoleUser,
			Content: "SESSION SUMMARY (use for title, events, NPCs, locations, items and hooks):\n" + summary +
				"\n\nFULL TRANSCRIPT (use ONLY to find exact quotes):\n" + transcript,
		}},
		Temperature: detailsTemperature,
	}

	var lastErr error
	for attempt := 1; attempt <= g.maxAttempts; attempt++ {
		raw, err := g.complete(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("notes: details: %w", err)
		}
		d, err := ParseDetails(raw)
		if err == nil {
			return d, nil
		}
		lastErr = err
		log.Warn("details response rejected", "attempt", attempt, "max_attempts", g.maxAttempts, "err", err)
	}
	return nil, fmt.Errorf("%w after %d attempts: %w", ErrMalformedDetails, g.maxAttempts, lastErr)
}

func (g *Generator) complete(ctx context.Context, req llm.CompletionRequest) (string, error) {
	start := time.Now()
	resp, err := g.provider.Complete(ctx, req)
	g.metrics.LLMDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		g.metrics.RecordProviderRequest(ctx, g.providerName, "error")
		g.metrics.RecordProviderError(ctx, g.providerName)
		return "", err
	}
	g.metrics.RecordProviderRequest(ctx, g.providerName, "ok")
	if resp == nil {
		return "", errors.New("empty response")
	}
	observe.Logger(ctx).Debug("completion done",
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
		"elapsed", time.Since(start))
	return resp.Content, nil
}

// checkBudget warns when the request probably does not fit the model window.
func (g *Generator) checkBudget(ctx context.Context, msgs []llm.Message) {
	window := g.provider.Capabilities().ContextWindow
	if window <= 0 {
		return
	}
	all := append([]llm.Message{{Role: llm.RoleSystem, Content: g.summaryPrompt}}, msgs...)
	n, err := g.provider.CountTokens(all)
	if err != nil {
		return
	}
	if n > window {
		observe.Logger(ctx).Warn("transcript likely exceeds model context window",
			"estimated_tokens", n, "context_window", window)
	}
}

// ParseDetails decodes a details response. Markdown code fences around the
// JSON object are tolerated; a missing title is an error.
func ParseDetails(raw string) (*Details, error) {
	s := stripFences(raw)
	if i, j := strings.IndexByte(s, '{'), strings.LastIndexByte(s, '}'); i >= 0 && j > i {
		s = s[i : j+1]
	}
	var d Details
	if err := json.Unmarshal([]byte(s), &d); err != nil {
		return nil, fmt.Errorf("decode details: %w", err)
	}
	d.Title = strings.TrimSpace(d.Title)
	if d.Title == "" {
		return nil, errors.New("details have no title")
	}
	return &d, nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "```")
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
}

// loadContext concatenates the .md and .txt files of dir in name order.
// An empty dir setting or a missing directory yields no context.
func loadContext(dir string) (string, error) {
	if dir == "" {
		return "", nil
	}
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	var names []string
	for _, e := range entries {
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if e.Type().IsRegular() && (ext == ".md" || ext == ".txt") {
			names = append(names, e.Name())
		}
	}
	slices.Sort(names)

	var b strings.Builder
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return b.String(), err
		}
		text := strings.TrimSpace(string(data))
		if text == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(text)
	}
	return b.String(), nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
