// Package app wires the rpgnotes subsystems into the two workflows the CLI
// offers: transcript only, and transcript followed by AI session notes.
//
// The App owns no background goroutines; every method runs to completion
// on the caller's goroutine and honours context cancellation. For testing,
// inject doubles via functional options (WithLLM, WithMetrics, WithClock).
package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"time"

	"github.com/MrWong99/rpgnotes/internal/config"
	"github.com/MrWong99/rpgnotes/internal/health"
	"github.com/MrWong99/rpgnotes/internal/notes"
	"github.com/MrWong99/rpgnotes/internal/observe"
	"github.com/MrWong99/rpgnotes/internal/segstore"
	"github.com/MrWong99/rpgnotes/internal/session"
	"github.com/MrWong99/rpgnotes/internal/speaker"
	"github.com/MrWong99/rpgnotes/internal/transcript"
	"github.com/MrWong99/rpgnotes/pkg/provider/llm"
)

// ErrNoLLM is returned by [App.RunFull] when no LLM provider is available.
var ErrNoLLM = errors.New("app: no LLM provider configured")

// App owns the configured pipeline components.
type App struct {
	cfg *config.Config

	llm     llm.Provider
	llmName string
	metrics *observe.Metrics
	now     func() time.Time

	store      *segstore.Store
	assembler  *transcript.Assembler
	identifier *session.Identifier
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithLLM sets the provider used for notes generation. name labels metrics.
func WithLLM(p llm.Provider, name string) Option {
	return func(a *App) {
		a.llm = p
		a.llmName = name
	}
}

// WithMetrics overrides the metrics sink. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithClock overrides time.Now for session identification.
func WithClock(now func() time.Time) Option {
	return func(a *App) { a.now = now }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App from cfg. cfg must have passed [config.Validate].
func New(cfg *config.Config, opts ...Option) (*App, error) {
	a := &App{cfg: cfg, now: time.Now}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	keyFn, err := KeyFunc(cfg.Transcript.SpeakerKey)
	if err != nil {
		return nil, err
	}

	a.store = segstore.New(cfg.Paths.TrackDir(), cfg.Paths.TranscriptDir(),
		segstore.WithTrackExt(cfg.Transcript.TrackExt))

	var filterOpts []transcript.FilterOption
	if th := cfg.Transcript.NoSpeechThreshold; th != nil {
		filterOpts = append(filterOpts, transcript.WithNoSpeechThreshold(*th))
	}
	if len(cfg.Transcript.Junk) > 0 {
		filterOpts = append(filterOpts, transcript.WithJunk(cfg.Transcript.Junk))
	}
	asmOpts := []transcript.Option{
		transcript.WithSpeakerMap(cfg.Paths.SpeakerMap),
		transcript.WithKeyFunc(keyFn),
		transcript.WithFilterOptions(filterOpts...),
		transcript.WithWorkers(cfg.Transcript.Workers),
		transcript.WithMetrics(a.metrics),
	}
	if cfg.Transcript.IgnoredSpeakers != nil {
		asmOpts = append(asmOpts, transcript.WithIgnoredSpeakers(cfg.Transcript.IgnoredSpeakers))
	}
	a.assembler = transcript.NewAssembler(a.store, asmOpts...)

	a.identifier = session.NewIdentifier(cfg.Paths.Downloads,
		session.WithPattern(cfg.Session.ChatLogPattern),
		session.WithDateFallback(session.DateFallback(cfg.Session.DateFallback)),
		session.WithClock(a.now),
	)
	return a, nil
}

// KeyFunc builds the speaker-key strategy described by c.
func KeyFunc(c config.SpeakerKeyConfig) (speaker.KeyFunc, error) {
	if c.Pattern != "" {
		re, err := regexp.Compile(c.Pattern)
		if err != nil {
			return nil, fmt.Errorf("app: speaker key pattern: %w", err)
		}
		return speaker.PatternKey(re), nil
	}
	if c.Strategy == config.KeyCraig {
		delim := c.Delimiter
		if delim == "" {
			delim = "-"
		}
		return speaker.CraigKey(delim), nil
	}
	if c.Delimiter == "" {
		return speaker.DefaultKeyFunc, nil
	}
	return speaker.DelimitedKey(c.Delimiter, c.Field, c.Rest), nil
}

// ─── Workflows ───────────────────────────────────────────────────────────────

// Run reports what a workflow did.
type Run struct {
	Session    session.Info
	Transcript *transcript.Result

	// NotesPath is set once notes exist for the session.
	NotesPath    string
	NotesWritten bool
}

// Identify returns the session a run would work on. A positive override
// replaces the detected number.
func (a *App) Identify(ctx context.Context, override int) session.Info {
	if override > 0 {
		return a.identifier.Manual(override)
	}
	return a.identifier.Identify(ctx)
}

// RunTranscript identifies the session, archives its chat log and assembles
// its transcript. An assembly with no usable input is reported as an error
// wrapping [transcript.ErrNoUsableInput]; the returned Run is still set.
func (a *App) RunTranscript(ctx context.Context, override int) (*Run, error) {
	info := a.Identify(ctx, override)
	ctx = observe.WithSession(ctx, info.Number)
	log := observe.Logger(ctx)
	run := &Run{Session: info}
	log.Info("session identified", "date", info.Date.Format(time.DateOnly), "source", info.Source)

	if dest, wrote, err := session.ArchiveChatLog(info, a.cfg.Paths.ChatLogDir()); err != nil {
		log.Warn("chat log not archived", "err", err)
	} else if wrote {
		log.Info("chat log archived", "path", dest)
	}

	res, err := a.assembler.Assemble(ctx, info.Number)
	if err != nil {
		return run, fmt.Errorf("app: assemble session %d: %w", info.Number, err)
	}
	run.Transcript = res

	switch res.Outcome {
	case transcript.OutcomeEmpty:
		return run, fmt.Errorf("app: session %d: %s: %w", info.Number, res.Reason, transcript.ErrNoUsableInput)
	case transcript.OutcomeAlreadyExists:
		log.Info("transcript already exists, skipping assembly", "json", res.JSONPath, "text", res.TextPath)
	default:
		log.Info("transcript written",
			"json", res.JSONPath,
			"text", res.TextPath,
			"segments", res.Stats.Accepted,
			"tracks", res.Stats.Tracks,
			"skipped_tracks", res.Stats.SkippedTracks,
		)
	}
	return run, nil
}

// RunFull runs [App.RunTranscript] and then generates and saves the session
// notes. Notes that already exist are kept and no LLM call is made.
func (a *App) RunFull(ctx context.Context, override int) (*Run, error) {
	run, err := a.RunTranscript(ctx, override)
	if err != nil {
		return run, err
	}
	n := run.Session.Number
	ctx = observe.WithSession(ctx, n)
	log := observe.Logger(ctx)

	writer, err := a.notesWriter()
	if err != nil {
		return run, err
	}
	existing, err := writer.Existing(n)
	if err != nil {
		return run, err
	}
	if len(existing) > 0 {
		run.NotesPath = existing[0]
		log.Info("notes already exist, skipping generation", "path", existing[0])
		return run, nil
	}

	if a.llm == nil {
		return run, ErrNoLLM
	}
	text, err := a.store.ReadText(n)
	if err != nil {
		return run, fmt.Errorf("app: %w", err)
	}
	gen, err := a.generator()
	if err != nil {
		return run, err
	}
	generated, err := gen.Generate(ctx, text)
	if err != nil {
		return run, fmt.Errorf("app: generate notes for session %d: %w", n, err)
	}

	path, written, err := writer.Save(n, run.Session.Date, generated)
	if err != nil {
		return run, fmt.Errorf("app: %w", err)
	}
	run.NotesPath, run.NotesWritten = path, written
	log.Info("notes saved", "path", path, "title", generated.Details.Title)
	return run, nil
}

func (a *App) generator() (*notes.Generator, error) {
	summary, err := readOptional(a.cfg.Paths.SummaryPrompt)
	if err != nil {
		return nil, err
	}
	details, err := readOptional(a.cfg.Paths.DetailsPrompt)
	if err != nil {
		return nil, err
	}
	opts := []notes.Option{
		notes.WithProviderName(a.llmName),
		notes.WithSummaryPrompt(summary),
		notes.WithDetailsPrompt(details),
		notes.WithContextDir(a.cfg.Paths.ContextDir),
		notes.WithMaxAttempts(a.cfg.Notes.MaxAttempts),
		notes.WithMetrics(a.metrics),
	}
	if p := a.cfg.Notes.Pause; p != nil {
		opts = append(opts, notes.WithPause(p.Std()))
	}
	return notes.NewGenerator(a.llm, opts...), nil
}

func (a *App) notesWriter() (*notes.Writer, error) {
	path := a.cfg.Paths.Template
	ok, err := fileExists(path)
	if err != nil {
		return nil, fmt.Errorf("app: template: %w", err)
	}
	if !ok {
		path = ""
	}
	tpl, err := notes.LoadTemplate(path)
	if err != nil {
		return nil, err
	}
	return notes.NewWriter(a.cfg.Paths.Output, tpl), nil
}

// readOptional returns the content of path, or "" when it does not exist.
func readOptional(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("app: %w", err)
	}
	return string(data), nil
}

func fileExists(path string) (bool, error) {
	if path == "" {
		return false, nil
	}
	fi, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return fi.Mode().IsRegular(), nil
}

// ─── Readiness ───────────────────────────────────────────────────────────────

// ReadinessChecks returns the probes served on /readyz.
func (a *App) ReadinessChecks() []health.Checker {
	return []health.Checker{
		health.DirReadable("tracks", a.cfg.Paths.TrackDir()),
		health.DirWritable("output", a.cfg.Paths.Output),
		health.Configured("llm", a.llm != nil, "no LLM provider configured; only the transcript workflow is available"),
	}
}
