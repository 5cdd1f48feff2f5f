// Package config provides the configuration schema, loader, environment
// overrides and LLM provider registry for rpgnotes.
package config

import "path/filepath"

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// DateFallback selects the session date when no chat log is found.
type DateFallback string

const (
	DateToday      DateFallback = "today"
	DateLastMonday DateFallback = "last_monday"
)

// IsValid reports whether d is a recognised fallback.
func (d DateFallback) IsValid() bool {
	return d == DateToday || d == DateLastMonday
}

// Config is the root configuration structure for rpgnotes.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	LogLevel   LogLevel         `yaml:"log_level"`
	Paths      PathsConfig      `yaml:"paths"`
	Transcript TranscriptConfig `yaml:"transcript"`
	Session    SessionConfig    `yaml:"session"`
	Providers  ProvidersConfig  `yaml:"providers"`
	Notes      NotesConfig      `yaml:"notes"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
}

// PathsConfig holds every file system location the pipeline touches.
type PathsConfig struct {
	// Output receives notes, transcripts (_transcripts) and archived chat
	// logs (_chat_log).
	Output string `yaml:"output"`

	// Temp holds intermediate data. Recognizer output is read from
	// Temp/transcriptions.
	Temp string `yaml:"temp"`

	// Downloads is where chat-log exports are looked up.
	Downloads string `yaml:"downloads"`

	// SpeakerMap is the JSON or YAML file mapping speaker keys to names.
	SpeakerMap string `yaml:"speaker_map"`

	// Template, SummaryPrompt and DetailsPrompt are optional; when the file
	// does not exist the built-in text is used.
	Template      string `yaml:"template"`
	SummaryPrompt string `yaml:"summary_prompt"`
	DetailsPrompt string `yaml:"details_prompt"`

	// ContextDir holds campaign background files sent with the summary.
	ContextDir string `yaml:"context_dir"`
}

// TrackDir is the directory of per-track recognizer output.
func (p PathsConfig) TrackDir() string { return filepath.Join(p.Temp, "transcriptions") }

// TranscriptDir is where assembled transcripts are written.
func (p PathsConfig) TranscriptDir() string { return filepath.Join(p.Output, "_transcripts") }

// ChatLogDir is where chat logs are archived.
func (p PathsConfig) ChatLogDir() string { return filepath.Join(p.Output, "_chat_log") }

// TranscriptConfig tunes transcript assembly.
type TranscriptConfig struct {
	// NoSpeechThreshold drops segments whose no-speech probability is
	// strictly greater. Nil selects the built-in default.
	NoSpeechThreshold *float64 `yaml:"no_speech_threshold"`

	// Junk lists filler utterances that are always dropped.
	Junk []string `yaml:"junk"`

	// IgnoredSpeakers lists name fragments of bot accounts. Nil selects the
	// built-in list; an empty list ignores nobody.
	IgnoredSpeakers []string `yaml:"ignored_speakers"`

	// SpeakerKey describes how a speaker key is cut out of a track name.
	SpeakerKey SpeakerKeyConfig `yaml:"speaker_key"`

	// Workers bounds how many tracks are decoded concurrently.
	Workers int `yaml:"workers"`

	// TrackExt is the extension of track files.
	TrackExt string `yaml:"track_ext"`
}

// KeyStrategy names how a speaker key is cut out of a delimited stem.
type KeyStrategy string

const (
	// KeyDelimited takes part Field of the stem, or everything from it on
	// when Rest is set. The empty strategy means the same.
	KeyDelimited KeyStrategy = "delimited"
	// KeyCraig takes the third part of a three-part stem and the second part
	// of a two-part stem, matching Craig's "<n>-<date>-<user>" downloads as
	// well as plain "<prefix>-<user>" tracks.
	KeyCraig KeyStrategy = "craig"
)

// IsValid reports whether s is a recognised strategy.
func (s KeyStrategy) IsValid() bool {
	return s == "" || s == KeyDelimited || s == KeyCraig
}

// SpeakerKeyConfig selects the speaker-key strategy. Pattern wins over the
// delimiter settings when set.
type SpeakerKeyConfig struct {
	Strategy  KeyStrategy `yaml:"strategy"`
	Delimiter string      `yaml:"delimiter"`
	Field     int         `yaml:"field"`
	Rest      bool        `yaml:"rest"`
	Pattern   string      `yaml:"pattern"`
}

// SessionConfig controls session identification.
type SessionConfig struct {
	ChatLogPattern string       `yaml:"chat_log_pattern"`
	DateFallback   DateFallback `yaml:"date_fallback"`
}

// ProvidersConfig declares the LLM used for notes and its fallbacks.
type ProvidersConfig struct {
	LLM          ProviderEntry   `yaml:"llm"`
	LLMFallbacks []ProviderEntry `yaml:"llm_fallbacks"`
}

// ProviderEntry is the configuration block of one LLM backend.
// The Name field is used to look up the constructor in the [Registry].
type ProviderEntry struct {
	// Name selects the registered provider implementation (e.g., "gemini").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API if any.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider.
	Model string `yaml:"model"`
}

// Configured reports whether the entry names a provider.
func (e ProviderEntry) Configured() bool { return e.Name != "" }

// NotesConfig controls notes generation.
type NotesConfig struct {
	// Pause separates the summary and details requests, e.g. "10s".
	// "0s" disables it.
	Pause *Duration `yaml:"pause"`

	// MaxAttempts bounds the details extraction retries.
	MaxAttempts int `yaml:"max_attempts"`
}

// TelemetryConfig controls the optional metrics and health listener.
type TelemetryConfig struct {
	MetricsAddr string `yaml:"metrics_addr"`
}
