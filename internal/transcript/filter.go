package transcript

import (
	"strings"

	"github.com/MrWong99/rpgnotes/pkg/types"
)

// DefaultNoSpeechThreshold is the no-speech probability above which a
// segment is dropped. Whisper-family models put most silence hallucinations
// well above it and most genuine speech well below.
const DefaultNoSpeechThreshold = 0.35

// Reason says why a segment was rejected. The zero value means accepted.
type Reason string

// Rejection reasons, in the order the checks run.
const (
	ReasonEmpty          Reason = "empty"
	ReasonNoSpeech       Reason = "no_speech"
	ReasonJunk           Reason = "junk"
	ReasonDuplicate      Reason = "duplicate"
	ReasonIgnoredSpeaker Reason = "ignored_speaker"
)

// Reasons lists every rejection reason in check order.
var Reasons = []Reason{ReasonEmpty, ReasonNoSpeech, ReasonJunk, ReasonDuplicate, ReasonIgnoredSpeaker}

// FilterOption is a functional option for [NewFilter].
type FilterOption func(*Filter)

// WithNoSpeechThreshold sets the rejection threshold. Segments whose
// no-speech probability is strictly greater are dropped.
func WithNoSpeechThreshold(p float64) FilterOption {
	return func(f *Filter) { f.threshold = p }
}

// WithJunk sets the denylist of filler utterances the recognizer produces
// on silence or breathing. Entries are compared to the trimmed segment text
// exactly.
func WithJunk(phrases []string) FilterOption {
	return func(f *Filter) {
		f.junk = make(map[string]struct{}, len(phrases))
		for _, p := range phrases {
			if p = strings.TrimSpace(p); p != "" {
				f.junk[p] = struct{}{}
			}
		}
	}
}

// WithIgnoreFunc sets the predicate that flags bot speakers by display
// name. Default: nothing is ignored.
func WithIgnoreFunc(fn func(name string) bool) FilterOption {
	return func(f *Filter) { f.ignored = fn }
}

// Filter decides which recognizer segments make it into a transcript. It is
// stateless; the caller carries the per-track previous accepted text.
type Filter struct {
	threshold float64
	junk      map[string]struct{}
	ignored   func(string) bool
}

// NewFilter creates a Filter with [DefaultNoSpeechThreshold] and an empty
// denylist.
func NewFilter(opts ...FilterOption) *Filter {
	f := &Filter{threshold: DefaultNoSpeechThreshold}
	for _, o := range opts {
		o(f)
	}
	return f
}

// Threshold returns the configured no-speech threshold.
func (f *Filter) Threshold() float64 { return f.threshold }

// Accept reports whether seg should be kept. prev is the trimmed text of the
// previous accepted segment of the same track, or nil for the first one.
// seg.Speaker must already hold the resolved display name.
func (f *Filter) Accept(seg types.Segment, prev *string) (bool, Reason) {
	text := strings.TrimSpace(seg.Text)
	switch {
	case text == "":
		return false, ReasonEmpty
	case seg.NoSpeechProb > f.threshold:
		return false, ReasonNoSpeech
	case f.isJunk(text):
		return false, ReasonJunk
	case prev != nil && *prev == text:
		return false, ReasonDuplicate
	case f.ignored != nil && f.ignored(seg.Speaker):
		return false, ReasonIgnoredSpeaker
	}
	return true, ""
}

func (f *Filter) isJunk(text string) bool {
	_, ok := f.junk[text]
	return ok
}
