// Package speaker turns per-track filenames into human-readable speaker
// names and recognises bot accounts whose tracks must never reach a
// transcript.
//
// A [Resolver] is built once per run from a [Map] and a list of ignore
// fragments, and is read-only afterwards, so it can be shared by the
// per-track workers.
package speaker

import (
	"log/slog"
	"sort"
	"strings"

	"github.com/antzucaro/matchr"
)

// DefaultIgnored lists the recording and notification bots seen in the
// group's voice channel.
var DefaultIgnored = []string{"craig", "botyan", "bot_yan", "bot yan"}

// suggestThreshold is the minimum Jaro-Winkler similarity for a mapping
// key to be offered as a "did you mean" hint.
const suggestThreshold = 0.85

// Option is a functional option for [NewResolver].
type Option func(*Resolver)

// WithKeyFunc sets the speaker-key extraction strategy. Default:
// [DefaultKeyFunc].
func WithKeyFunc(fn KeyFunc) Option {
	return func(r *Resolver) {
		if fn != nil {
			r.keyFn = fn
		}
	}
}

// WithIgnored replaces the ignore fragments. Default: [DefaultIgnored].
func WithIgnored(fragments []string) Option {
	return func(r *Resolver) {
		r.ignored = normalizeAll(fragments)
	}
}

// Resolver maps track filenames to speaker keys and display names.
type Resolver struct {
	names   Map
	keys    []string
	keyFn   KeyFunc
	ignored []string
}

// NewResolver creates a Resolver over names. A nil map behaves as empty.
func NewResolver(names Map, opts ...Option) *Resolver {
	r := &Resolver{
		names:   names,
		keyFn:   DefaultKeyFunc,
		ignored: normalizeAll(DefaultIgnored),
	}
	for _, o := range opts {
		o(r)
	}
	for k := range names {
		r.keys = append(r.keys, k)
	}
	sort.Strings(r.keys)
	return r
}

// Key returns the speaker key encoded in a track filename.
func (r *Resolver) Key(filename string) string {
	return r.keyFn(Stem(filename))
}

// DisplayName returns the mapped name for key, or key itself when the
// mapping has no entry.
func (r *Resolver) DisplayName(key string) string {
	if name, ok := r.names[key]; ok && name != "" {
		return name
	}
	return key
}

// IsIgnored reports whether name belongs to a bot. Matching is a substring
// test after lower-casing and removing spaces and underscores, so "Bot Yan",
// "bot_yan" and "BOTYAN#1234" all match the fragment "botyan".
func (r *Resolver) IsIgnored(name string) bool {
	n := normalize(name)
	if n == "" {
		return false
	}
	for _, frag := range r.ignored {
		if strings.Contains(n, frag) {
			return true
		}
	}
	return false
}

// Mapped reports whether key has an explicit mapping entry.
func (r *Resolver) Mapped(key string) bool {
	_, ok := r.names[key]
	return ok
}

// Suggest returns the mapping key most similar to key, for hinting at typos
// in the speaker map. It returns "" when nothing is close enough.
func (r *Resolver) Suggest(key string) string {
	best, bestScore := "", suggestThreshold
	lower := strings.ToLower(key)
	for _, k := range r.keys {
		if s := matchr.JaroWinkler(lower, strings.ToLower(k), false); s >= bestScore {
			best, bestScore = k, s
		}
	}
	return best
}

// LogUnmapped emits a hint for a key without a mapping entry.
func (r *Resolver) LogUnmapped(log *slog.Logger, key string) {
	if r.Mapped(key) {
		return
	}
	if hint := r.Suggest(key); hint != "" {
		log.Warn("unmapped speaker", "key", key, "did_you_mean", hint)
		return
	}
	log.Info("unmapped speaker, using raw key", "key", key)
}

func normalize(s string) string {
	s = strings.ToLower(s)
	return strings.NewReplacer(" ", "", "_", "").Replace(s)
}

func normalizeAll(fragments []string) []string {
	out := make([]string, 0, len(fragments))
	for _, f := range fragments {
		if n := normalize(f); n != "" {
			out = append(out, n)
		}
	}
	return out
}
