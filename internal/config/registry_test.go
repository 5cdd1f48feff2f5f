package config_test

import (
	"errors"
	"slices"
	"testing"

	"github.com/MrWong99/rpgnotes/internal/config"
	"github.com/MrWong99/rpgnotes/pkg/provider/llm"
	"github.com/MrWong99/rpgnotes/pkg/provider/llm/mock"
)

func TestRegistry_UnknownLLM(t *testing.T) {
	t.Parallel()
	reg := config.NewRegistry()
	_, err := reg.CreateLLM(config.ProviderEntry{Name: "nonexistent"})
	if !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Errorf("err = %v, want ErrProviderNotRegistered", err)
	}
}

func TestRegistry_RegisteredLLM(t *testing.T) {
	t.Parallel()
	reg := config.NewRegistry()
	var got config.ProviderEntry
	reg.RegisterLLM("stub", func(e config.ProviderEntry) (llm.Provider, error) {
		got = e
		return &mock.Provider{}, nil
	})
	entry := config.ProviderEntry{Name: "stub", Model: "m", APIKey: "k"}
	p, err := reg.CreateLLM(entry)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p == nil {
		t.Fatal("expected non-nil provider")
	}
	if got != entry {
		t.Errorf("factory got %+v, want %+v", got, entry)
	}
	if names := reg.LLMNames(); !slices.Equal(names, []string{"stub"}) {
		t.Errorf("LLMNames = %v", names)
	}
}

func TestRegistry_FactoryError(t *testing.T) {
	t.Parallel()
	reg := config.NewRegistry()
	boom := errors.New("no api key")
	reg.RegisterLLM("broken", func(config.ProviderEntry) (llm.Provider, error) { return nil, boom })
	if _, err := reg.CreateLLM(config.ProviderEntry{Name: "broken"}); !errors.Is(err, boom) {
		t.Errorf("err = %v, want %v", err, boom)
	}
}
