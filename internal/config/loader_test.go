package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/MrWong99/rpgnotes/internal/config"
)

func TestLoad_File(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "rpgnotes.yaml")
	if err := os.WriteFile(path, []byte("log_level: warn\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.LogLevel != config.LogWarn {
		t.Errorf("LogLevel = %q", cfg.LogLevel)
	}
}

func TestLoadOrDefault(t *testing.T) {
	t.Parallel()
	missing := filepath.Join(t.TempDir(), "missing.yaml")

	cfg, err := config.LoadOrDefault(missing, false)
	if err != nil {
		t.Fatalf("implicit missing file: %v", err)
	}
	if cfg.Paths.Output != config.DefaultOutputDir {
		t.Errorf("Output = %q", cfg.Paths.Output)
	}

	if _, err := config.LoadOrDefault(missing, true); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("explicit missing file err = %v, want ErrNotExist", err)
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("RPGNOTES_TEST_DOTENV=from-file\nRPGNOTES_TEST_PRESET=from-file\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("RPGNOTES_TEST_PRESET", "from-env")
	// Registers cleanup for the variable the file sets.
	t.Setenv("RPGNOTES_TEST_DOTENV", "")
	os.Unsetenv("RPGNOTES_TEST_DOTENV")

	if err := config.LoadDotEnv(path, true); err != nil {
		t.Fatal(err)
	}
	if got := os.Getenv("RPGNOTES_TEST_DOTENV"); got != "from-file" {
		t.Errorf("RPGNOTES_TEST_DOTENV = %q", got)
	}
	if got := os.Getenv("RPGNOTES_TEST_PRESET"); got != "from-env" {
		t.Errorf("RPGNOTES_TEST_PRESET = %q, environment should win", got)
	}

	missing := filepath.Join(dir, "nope.env")
	if err := config.LoadDotEnv(missing, false); err != nil {
		t.Errorf("optional missing file: %v", err)
	}
	if err := config.LoadDotEnv(missing, true); err == nil {
		t.Error("required missing file: expected error")
	}
}

func TestApplyEnv(t *testing.T) {
	t.Parallel()
	env := map[string]string{
		config.EnvOutputDir:     "/out",
		config.EnvTempDir:       "/tmp/rpg",
		config.EnvDownloadsDir:  "/dl",
		config.EnvSpeakerMap:    "/speakers.json",
		config.EnvTemplate:      "/tpl.md",
		config.EnvSummaryPrompt: "/summary.txt",
		config.EnvDetailsPrompt: "/details.txt",
		config.EnvContextDir:    "/ctx",
		config.EnvGeminiAPIKey:  "key-123",
		config.EnvGeminiModel:   "gemini-2.5-flash",
		config.EnvLogLevel:      "debug",
	}
	lookup := func(k string) (string, bool) { v, ok := env[k]; return v, ok }

	cfg := config.Default()
	if err := config.ApplyEnv(cfg, lookup); err != nil {
		t.Fatal(err)
	}
	want := config.PathsConfig{
		Output: "/out", Temp: "/tmp/rpg", Downloads: "/dl", SpeakerMap: "/speakers.json",
		Template: "/tpl.md", SummaryPrompt: "/summary.txt", DetailsPrompt: "/details.txt", ContextDir: "/ctx",
	}
	if cfg.Paths != want {
		t.Errorf("Paths = %+v\nwant %+v", cfg.Paths, want)
	}
	if cfg.Providers.LLM.APIKey != "key-123" || cfg.Providers.LLM.Model != "gemini-2.5-flash" {
		t.Errorf("LLM = %+v", cfg.Providers.LLM)
	}
	if cfg.LogLevel != config.LogDebug {
		t.Errorf("LogLevel = %q", cfg.LogLevel)
	}
}

func TestApplyEnv_GeminiOnlyForGemini(t *testing.T) {
	t.Parallel()
	cfg := config.Default()
	cfg.Providers.LLM = config.ProviderEntry{Name: "openai", Model: "gpt-4o"}
	lookup := func(k string) (string, bool) {
		if k == config.EnvGeminiModel {
			return "gemini-2.5-flash", true
		}
		return "", false
	}
	if err := config.ApplyEnv(cfg, lookup); err != nil {
		t.Fatal(err)
	}
	if cfg.Providers.LLM.Model != "gpt-4o" {
		t.Errorf("Model = %q, gemini override leaked", cfg.Providers.LLM.Model)
	}
}

func TestApplyEnv_InvalidLogLevel(t *testing.T) {
	t.Parallel()
	cfg := config.Default()
	lookup := func(k string) (string, bool) {
		if k == config.EnvLogLevel {
			return "chatty", true
		}
		return "", false
	}
	if err := config.ApplyEnv(cfg, lookup); err == nil {
		t.Fatal("expected validation error")
	}
}
