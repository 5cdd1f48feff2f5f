package main

import (
	"context"
	"log/slog"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/MrWong99/rpgnotes/internal/config"
	"github.com/MrWong99/rpgnotes/internal/observe"
	"github.com/MrWong99/rpgnotes/internal/resilience"
	"github.com/MrWong99/rpgnotes/pkg/provider/llm"
	"github.com/MrWong99/rpgnotes/pkg/provider/llm/anyllm"
	"github.com/MrWong99/rpgnotes/pkg/provider/llm/compat"
)

// compatName is the provider name for self-hosted OpenAI-compatible servers.
const compatName = "openai-compatible"

// registerBuiltinProviders wires every any-llm backend, plus the generic
// OpenAI-compatible client, into reg. Local
// servers (ollama, llamacpp, llamafile) only use BaseURL; hosted ones take
// an optional APIKey and BaseURL.
func registerBuiltinProviders(reg *config.Registry) {
	for _, providerName := range anyllm.Supported {
		reg.RegisterLLM(providerName, func(entry config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			p, err := anyllm.New(providerName, entry.Model, opts...)
			if err != nil {
				return nil, err
			}
			return p, nil
		})
	}
	reg.RegisterLLM(compatName, func(entry config.ProviderEntry) (llm.Provider, error) {
		return compat.New(entry.BaseURL, entry.Model, compat.WithAPIKey(entry.APIKey))
	})
	slog.Debug("registered llm providers", "names", reg.LLMNames())
}

// buildLLM creates the configured primary LLM and its fallbacks. Backends
// that cannot be created are logged and left out; when none remain, nil is
// returned and only the transcript workflow is available.
func buildLLM(cfg *config.Config, reg *config.Registry) (llm.Provider, string) {
	type named struct {
		name string
		p    llm.Provider
	}
	var backends []named
	for _, entry := range append([]config.ProviderEntry{cfg.Providers.LLM}, cfg.Providers.LLMFallbacks...) {
		if !entry.Configured() {
			continue
		}
		p, err := reg.CreateLLM(entry)
		if err != nil {
			slog.Warn("llm provider unavailable", "name", entry.Name, "model", entry.Model, "err", err)
			continue
		}
		slog.Info("provider created", "kind", "llm", "name", entry.Name, "model", entry.Model)
		backends = append(backends, named{name: entry.Name, p: p})
	}

	switch len(backends) {
	case 0:
		return nil, ""
	case 1:
		return backends[0].p, backends[0].name
	}

	fb := resilience.NewLLMFallback(backends[0].p, backends[0].name, resilience.FallbackConfig{
		OnAttempt: func(ctx context.Context, name string, err error) {
			if err != nil {
				observe.Logger(ctx).Warn("llm backend failed, trying next", "backend", name, "err", err)
			}
		},
	})
	for _, b := range backends[1:] {
		fb.AddFallback(b.name, b.p)
	}
	return fb, "fallback"
}
