// Package transcript merges the per-track recognizer output of one session
// into a single chronologically ordered, speaker-attributed transcript.
//
// The [Assembler] enumerates track files, resolves each track's speaker,
// runs every segment through a [Filter] with per-track duplicate state,
// stable-sorts the survivors by start time and persists a structured record
// plus a speaker-grouped text rendering. Assembly is write-once per session:
// once both artifacts exist, later runs return [OutcomeAlreadyExists]
// without touching them.
package transcript

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/rpgnotes/internal/observe"
	"github.com/MrWong99/rpgnotes/internal/speaker"
	"github.com/MrWong99/rpgnotes/pkg/types"
)

// ErrNoUsableInput marks a session for which nothing could be assembled.
// [Assembler.Assemble] reports this as [OutcomeEmpty]; callers that treat it
// as fatal wrap it.
var ErrNoUsableInput = errors.New("transcript: no usable input")

// Empty-outcome reasons.
const (
	ReasonNoSourceFiles   = "no source files"
	ReasonNoReadableFiles = "no readable source files"
	ReasonAllFiltered     = "all segments filtered"
)

// Outcome distinguishes the three non-error results of an assembly run.
type Outcome int

const (
	// OutcomeCreated means both artifacts were written by this run.
	OutcomeCreated Outcome = iota

	// OutcomeAlreadyExists means both artifacts were already present and
	// nothing was recomputed.
	OutcomeAlreadyExists

	// OutcomeEmpty means no segment survived; nothing was written.
	OutcomeEmpty
)

// String returns the metric label for the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeCreated:
		return "created"
	case OutcomeAlreadyExists:
		return "already_exists"
	case OutcomeEmpty:
		return "empty"
	default:
		return "unknown"
	}
}

// Store is the file-system surface the assembler needs.
// [segstore.Store] implements it.
type Store interface {
	Tracks(ctx context.Context) ([]string, error)
	ReadTrack(path string) ([]types.Segment, error)
	Exists(session int) (bool, error)
	Paths(session int) (jsonPath, textPath string)
	Write(t *types.SessionTranscript, text string) error
}

// RunStats counts what happened to the input of one run.
type RunStats struct {
	Tracks        int
	SkippedTracks int
	Accepted      int
	Rejected      map[Reason]int
}

// Result describes a finished assembly run.
type Result struct {
	Outcome Outcome

	// Reason explains [OutcomeEmpty].
	Reason string

	// Transcript and Text are set for [OutcomeCreated].
	Transcript *types.SessionTranscript
	Text       string

	JSONPath string
	TextPath string

	Stats RunStats
}

// Option is a functional option for [NewAssembler].
type Option func(*Assembler)

// WithSpeakerMap sets the speaker map file loaded at the start of every run.
func WithSpeakerMap(path string) Option {
	return func(a *Assembler) { a.mapPath = path }
}

// WithKeyFunc sets how speaker keys are derived from track filenames.
func WithKeyFunc(fn speaker.KeyFunc) Option {
	return func(a *Assembler) { a.keyFn = fn }
}

// WithIgnoredSpeakers replaces the default bot-name fragments.
func WithIgnoredSpeakers(fragments []string) Option {
	return func(a *Assembler) { a.ignored = fragments }
}

// WithFilterOptions configures the segment filter built for every run.
func WithFilterOptions(opts ...FilterOption) Option {
	return func(a *Assembler) { a.filterOpts = append(a.filterOpts, opts...) }
}

// WithWorkers bounds how many tracks are decoded and filtered concurrently.
// Default: 4. Output does not depend on this value.
func WithWorkers(n int) Option {
	return func(a *Assembler) {
		if n > 0 {
			a.workers = n
		}
	}
}

// WithMetrics sets the metrics sink. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *Assembler) { a.metrics = m }
}

// Assembler builds session transcripts. Configuration is fixed at
// construction; a single Assembler may serve concurrent runs for different
// sessions.
type Assembler struct {
	store      Store
	mapPath    string
	keyFn      speaker.KeyFunc
	ignored    []string
	filterOpts []FilterOption
	workers    int
	metrics    *observe.Metrics
}

// NewAssembler creates an Assembler over store.
func NewAssembler(store Store, opts ...Option) *Assembler {
	a := &Assembler{store: store, workers: 4}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}
	return a
}

// trackResult is what one worker produces for one track file.
type trackResult struct {
	segs     []types.Segment
	rejected map[Reason]int
	skipped  bool
}

// Assemble builds the transcript of session. It returns an error only when
// the idempotence check, the track listing or an artifact write fails, or
// when ctx is cancelled; unreadable tracks are logged and skipped.
func (a *Assembler) Assemble(ctx context.Context, session int) (*Result, error) {
	start := time.Now()
	ctx, span := observe.StartSpan(observe.WithSession(ctx, session), "transcript.assemble")
	defer span.End()

	res, err := a.assemble(ctx, session)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(
		attribute.String("outcome", res.Outcome.String()),
		attribute.Int("segments.accepted", res.Stats.Accepted),
	)
	a.metrics.RecordAssembly(ctx, res.Outcome.String(), time.Since(start).Seconds())
	return res, nil
}

func (a *Assembler) assemble(ctx context.Context, session int) (*Result, error) {
	log := observe.Logger(ctx)
	jsonPath, textPath := a.store.Paths(session)
	res := &Result{JSONPath: jsonPath, TextPath: textPath, Stats: RunStats{Rejected: map[Reason]int{}}}

	done, err := a.store.Exists(session)
	if err != nil {
		return nil, fmt.Errorf("transcript: session %d: %w", session, err)
	}
	if done {
		log.Info("transcript already assembled", "path", textPath)
		res.Outcome = OutcomeAlreadyExists
		return res, nil
	}

	resolver := a.resolver(log)

	tracks, err := a.store.Tracks(ctx)
	if err != nil {
		return nil, fmt.Errorf("transcript: session %d: %w", session, err)
	}
	res.Stats.Tracks = len(tracks)
	if len(tracks) == 0 {
		log.Warn("no track files to assemble")
		res.Outcome, res.Reason = OutcomeEmpty, ReasonNoSourceFiles
		return res, nil
	}

	filter := NewFilter(append(slices.Clone(a.filterOpts), WithIgnoreFunc(resolver.IsIgnored))...)
	results := make([]trackResult, len(tracks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.workers)
	for i, path := range tracks {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = a.processTrack(gctx, path, resolver, filter)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("transcript: session %d: %w", session, err)
	}

	var segs []types.Segment
	for _, r := range results {
		if r.skipped {
			res.Stats.SkippedTracks++
			continue
		}
		segs = append(segs, r.segs...)
		for reason, n := range r.rejected {
			res.Stats.Rejected[reason] += n
		}
	}
	slices.SortStableFunc(segs, func(x, y types.Segment) int {
		return cmp.Compare(x.Start, y.Start)
	})
	res.Stats.Accepted = len(segs)
	a.record(ctx, res.Stats)

	if len(segs) == 0 {
		res.Outcome, res.Reason = OutcomeEmpty, ReasonAllFiltered
		if res.Stats.SkippedTracks == res.Stats.Tracks {
			res.Reason = ReasonNoReadableFiles
		}
		log.Warn("nothing to assemble", "reason", res.Reason, "tracks", res.Stats.Tracks)
		return res, nil
	}

	tr := &types.SessionTranscript{SessionNumber: session, Segments: segs}
	text := Render(segs)
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("transcript: session %d: %w", session, err)
	}
	if err := a.store.Write(tr, text); err != nil {
		return nil, fmt.Errorf("transcript: session %d: %w", session, err)
	}

	log.Info("transcript assembled",
		"segments", len(segs),
		"tracks", res.Stats.Tracks,
		"skipped_tracks", res.Stats.SkippedTracks,
		"path", textPath,
	)
	res.Outcome, res.Transcript, res.Text = OutcomeCreated, tr, text
	return res, nil
}

// resolver loads the speaker map for this run. A corrupt map is logged and
// treated as empty so that every speaker still appears under its raw key.
func (a *Assembler) resolver(log *slog.Logger) *speaker.Resolver {
	names, err := speaker.LoadMap(a.mapPath)
	if err != nil {
		log.Warn("speaker map unusable, falling back to raw keys", "err", err)
		names = speaker.Map{}
	}
	var opts []speaker.Option
	if a.keyFn != nil {
		opts = append(opts, speaker.WithKeyFunc(a.keyFn))
	}
	if a.ignored != nil {
		opts = append(opts, speaker.WithIgnored(a.ignored))
	}
	return speaker.NewResolver(names, opts...)
}

// processTrack decodes and filters one track. Duplicate suppression state
// lives here and never crosses tracks.
func (a *Assembler) processTrack(ctx context.Context, path string, r *speaker.Resolver, f *Filter) trackResult {
	log := observe.Logger(ctx).With("track", path)

	raw, err := a.store.ReadTrack(path)
	if err != nil {
		log.Error("skipping unreadable track", "err", err)
		a.metrics.TracksSkipped.Add(ctx, 1)
		return trackResult{skipped: true}
	}

	key := r.Key(path)
	display := r.DisplayName(key)
	r.LogUnmapped(log, key)

	out := trackResult{rejected: map[Reason]int{}}
	var prev *string
	for _, seg := range raw {
		seg.SpeakerKey = key
		seg.Speaker = display
		ok, reason := f.Accept(seg, prev)
		if !ok {
			out.rejected[reason]++
			continue
		}
		text := strings.TrimSpace(seg.Text)
		prev = &text
		out.segs = append(out.segs, seg)
	}
	log.Debug("track filtered", "speaker", display, "accepted", len(out.segs), "segments", len(raw))
	return out
}

func (a *Assembler) record(ctx context.Context, s RunStats) {
	a.metrics.SegmentsAccepted.Add(ctx, int64(s.Accepted))
	for _, reason := range Reasons {
		a.metrics.RecordRejected(ctx, string(reason), int64(s.Rejected[reason]))
	}
}
