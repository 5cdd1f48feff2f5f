package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults applied by [ApplyDefaults].
const (
	DefaultOutputDir      = "./output"
	DefaultTempDir        = "./temp"
	DefaultDownloadsDir   = "./downloads"
	DefaultSpeakerMap     = "./discord_speaker_mapping.json"
	DefaultTemplate       = "./template.md"
	DefaultSummaryPrompt  = "./prompts/summary.txt"
	DefaultDetailsPrompt  = "./prompts/details.txt"
	DefaultContextDir     = "./prompts/context"
	DefaultChatLogPattern = "session*.json"
	DefaultLLMProvider    = "gemini"
	DefaultLLMModel       = "gemini-2.5-pro"
	DefaultWorkers        = 4
	DefaultMaxAttempts    = 3
	DefaultPause          = 10 * time.Second
	DefaultTrackExt       = ".json"
)

// ValidProviderNames lists the LLM backends the binary ships with.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = []string{
	"gemini", "openai", "anthropic", "ollama", "deepseek", "mistral", "groq", "llamacpp", "llamafile",
	"openai-compatible",
}

// Load reads the YAML configuration file at path, applies defaults and
// returns a validated [Config].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults and
// validates the result. An empty document is a valid, all-default config.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns a config with every default applied.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills every unset field of cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.LogLevel == "" {
		cfg.LogLevel = LogInfo
	}

	p := &cfg.Paths
	setDefault(&p.Output, DefaultOutputDir)
	setDefault(&p.Temp, DefaultTempDir)
	setDefault(&p.Downloads, DefaultDownloadsDir)
	setDefault(&p.SpeakerMap, DefaultSpeakerMap)
	setDefault(&p.Template, DefaultTemplate)
	setDefault(&p.SummaryPrompt, DefaultSummaryPrompt)
	setDefault(&p.DetailsPrompt, DefaultDetailsPrompt)
	setDefault(&p.ContextDir, DefaultContextDir)

	t := &cfg.Transcript
	if t.Workers <= 0 {
		t.Workers = DefaultWorkers
	}
	setDefault(&t.TrackExt, DefaultTrackExt)
	if t.SpeakerKey.Delimiter == "" && t.SpeakerKey.Pattern == "" {
		t.SpeakerKey.Delimiter = "-"
		if t.SpeakerKey.Field == 0 {
			t.SpeakerKey.Field = 1
		}
	}

	setDefault(&cfg.Session.ChatLogPattern, DefaultChatLogPattern)
	if cfg.Session.DateFallback == "" {
		cfg.Session.DateFallback = DateToday
	}

	setDefault(&cfg.Providers.LLM.Name, DefaultLLMProvider)
	if cfg.Providers.LLM.Name == DefaultLLMProvider {
		setDefault(&cfg.Providers.LLM.Model, DefaultLLMModel)
	}

	if cfg.Notes.Pause == nil {
		d := Duration(DefaultPause)
		cfg.Notes.Pause = &d
	}
	if cfg.Notes.MaxAttempts <= 0 {
		cfg.Notes.MaxAttempts = DefaultMaxAttempts
	}
}

func setDefault(field *string, value string) {
	if *field == "" {
		*field = value
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.LogLevel != "" && !cfg.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("log_level %q is invalid; valid values: debug, info, warn, error", cfg.LogLevel))
	}

	// Transcript
	t := cfg.Transcript
	if th := t.NoSpeechThreshold; th != nil && (*th < 0 || *th > 1) {
		errs = append(errs, fmt.Errorf("transcript.no_speech_threshold %.2f is out of range [0, 1]", *th))
	}
	if t.Workers < 0 {
		errs = append(errs, fmt.Errorf("transcript.workers %d must not be negative", t.Workers))
	}
	if t.TrackExt != "" && !strings.HasPrefix(t.TrackExt, ".") {
		errs = append(errs, fmt.Errorf("transcript.track_ext %q must start with a dot", t.TrackExt))
	}
	if st := t.SpeakerKey.Strategy; !st.IsValid() {
		errs = append(errs, fmt.Errorf("transcript.speaker_key.strategy %q is invalid; valid values: delimited, craig", st))
	}
	if t.SpeakerKey.Field < 0 {
		errs = append(errs, fmt.Errorf("transcript.speaker_key.field %d must not be negative", t.SpeakerKey.Field))
	}
	if p := t.SpeakerKey.Pattern; p != "" {
		if re, err := regexp.Compile(p); err != nil {
			errs = append(errs, fmt.Errorf("transcript.speaker_key.pattern: %w", err))
		} else if re.NumSubexp() == 0 {
			errs = append(errs, fmt.Errorf("transcript.speaker_key.pattern %q has no capture group", p))
		}
	}

	// Session
	if d := cfg.Session.DateFallback; d != "" && !d.IsValid() {
		errs = append(errs, fmt.Errorf("session.date_fallback %q is invalid; valid values: today, last_monday", d))
	}

	// Providers
	validateProviderName("providers.llm", cfg.Providers.LLM.Name)
	for i, fb := range cfg.Providers.LLMFallbacks {
		prefix := fmt.Sprintf("providers.llm_fallbacks[%d]", i)
		if fb.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
			continue
		}
		validateProviderName(prefix, fb.Name)
		if fb.Model == "" {
			errs = append(errs, fmt.Errorf("%s.model is required", prefix))
		}
	}

	// Notes
	if p := cfg.Notes.Pause; p != nil && p.Std() < 0 {
		errs = append(errs, fmt.Errorf("notes.pause %s must not be negative", p.Std()))
	}
	if cfg.Notes.MaxAttempts < 0 {
		errs = append(errs, fmt.Errorf("notes.max_attempts %d must not be negative", cfg.Notes.MaxAttempts))
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not one of
// [ValidProviderNames].
func validateProviderName(field, name string) {
	if name == "" || slices.Contains(ValidProviderNames, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or third-party provider",
		"field", field,
		"name", name,
		"known", ValidProviderNames,
	)
}

// LoadOrDefault loads path like [Load]. When the file does not exist and
// was not named explicitly by the user, the all-default config is returned
// instead.
func LoadOrDefault(path string, explicit bool) (*Config, error) {
	cfg, err := Load(path)
	if err == nil {
		return cfg, nil
	}
	if !explicit && errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return nil, err
}
