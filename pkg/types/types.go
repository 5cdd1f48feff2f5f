// Package types defines the data shared between the rpgnotes pipeline
// stages: the per-track transcription segment and the assembled session
// transcript.
package types

import (
	"encoding/json"
	"fmt"
)

// Segment is one time-stamped utterance produced by the speech recognizer
// for a single audio track.
//
// Only the fields the pipeline interprets are typed. Every other field the
// recognizer emitted (id, seek, tokens, avg_logprob, ...) is kept in Extra
// and written back unchanged, so the combined record has the shape of the
// inputs plus the speaker attribution.
type Segment struct {
	// Start and End are offsets in seconds from the start of the recording.
	// End >= Start is expected but not enforced.
	Start float64
	End   float64

	// Text is the recognized speech.
	Text string

	// NoSpeechProb is the recognizer's probability that the segment contains
	// no speech. Missing in the input means 0.
	NoSpeechProb float64

	// SpeakerKey is the identifier derived from the track filename.
	SpeakerKey string

	// Speaker is the resolved display name. Set during assembly.
	Speaker string

	// Extra holds recognizer fields the pipeline does not interpret.
	Extra map[string]json.RawMessage
}

// Duration returns End - Start, clamped at zero.
func (s Segment) Duration() float64 {
	if d := s.End - s.Start; d > 0 {
		return d
	}
	return 0
}

const (
	fieldStart        = "start"
	fieldEnd          = "end"
	fieldText         = "text"
	fieldNoSpeechProb = "no_speech_prob"
	fieldSpeaker      = "speaker"
	fieldSpeakerKey   = "speaker_id"
)

// UnmarshalJSON decodes a recognizer segment object, keeping unknown fields.
func (s *Segment) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		return fmt.Errorf("types: segment is null")
	}

	*s = Segment{}
	fields := []struct {
		name string
		dst  any
	}{
		{fieldStart, &s.Start},
		{fieldEnd, &s.End},
		{fieldText, &s.Text},
		{fieldNoSpeechProb, &s.NoSpeechProb},
		{fieldSpeaker, &s.Speaker},
		{fieldSpeakerKey, &s.SpeakerKey},
	}
	for _, f := range fields {
		v, ok := raw[f.name]
		if !ok {
			continue
		}
		delete(raw, f.name)
		if string(v) == "null" {
			continue
		}
		if err := json.Unmarshal(v, f.dst); err != nil {
			return fmt.Errorf("types: segment field %q: %w", f.name, err)
		}
	}
	if len(raw) > 0 {
		s.Extra = raw
	}
	return nil
}

// MarshalJSON encodes the segment with its extra fields. Keys are emitted in
// sorted order so that identical transcripts produce identical bytes.
func (s Segment) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(s.Extra)+6)
	for k, v := range s.Extra {
		out[k] = v
	}
	out[fieldStart] = s.Start
	out[fieldEnd] = s.End
	out[fieldText] = s.Text
	out[fieldNoSpeechProb] = s.NoSpeechProb
	if s.SpeakerKey != "" {
		out[fieldSpeakerKey] = s.SpeakerKey
	}
	if s.Speaker != "" {
		out[fieldSpeaker] = s.Speaker
	}
	return json.Marshal(out)
}

// SessionTranscript is the assembled, speaker-attributed transcript of one
// session. Segments are ordered by Start; ties keep track enumeration order.
type SessionTranscript struct {
	SessionNumber int
	Segments      []Segment
}
