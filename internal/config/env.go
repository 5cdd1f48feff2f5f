package config

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
)

// Environment variables that override the config file.
const (
	EnvOutputDir     = "OUTPUT_DIR"
	EnvTempDir       = "TEMP_DIR"
	EnvDownloadsDir  = "DOWNLOADS_DIR"
	EnvSpeakerMap    = "DISCORD_MAPPING_FILE"
	EnvTemplate      = "TEMPLATE_FILE"
	EnvSummaryPrompt = "SUMMARY_PROMPT_FILE"
	EnvDetailsPrompt = "DETAILS_PROMPT_FILE"
	EnvContextDir    = "CONTEXT_DIR"
	EnvGeminiAPIKey  = "GEMINI_API_KEY"
	EnvGeminiModel   = "GEMINI_MODEL_NAME"
	EnvLogLevel      = "RPGNOTES_LOG_LEVEL"
)

// LookupFunc reads one environment variable. [os.LookupEnv] satisfies it.
type LookupFunc func(key string) (string, bool)

// LoadDotEnv loads KEY=value pairs from path into the process environment.
// Variables already set in the environment win. A missing file is only an
// error when required is set.
func LoadDotEnv(path string, required bool) error {
	err := godotenv.Load(path)
	if err == nil {
		return nil
	}
	if !required && errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("config: load env file %q: %w", path, err)
}

// ApplyEnv overrides cfg with the environment variables that are set and
// non-empty, then re-validates it. The Gemini variables only apply when the
// primary LLM provider is gemini.
func ApplyEnv(cfg *Config, lookup LookupFunc) error {
	get := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	p := &cfg.Paths
	get(EnvOutputDir, &p.Output)
	get(EnvTempDir, &p.Temp)
	get(EnvDownloadsDir, &p.Downloads)
	get(EnvSpeakerMap, &p.SpeakerMap)
	get(EnvTemplate, &p.Template)
	get(EnvSummaryPrompt, &p.SummaryPrompt)
	get(EnvDetailsPrompt, &p.DetailsPrompt)
	get(EnvContextDir, &p.ContextDir)

	if cfg.Providers.LLM.Name == "gemini" {
		get(EnvGeminiAPIKey, &cfg.Providers.LLM.APIKey)
		get(EnvGeminiModel, &cfg.Providers.LLM.Model)
	}

	var level string
	get(EnvLogLevel, &level)
	if level != "" {
		cfg.LogLevel = LogLevel(level)
	}
	return Validate(cfg)
}
