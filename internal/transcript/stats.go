package transcript

import (
	"cmp"
	"slices"
	"strings"

	"github.com/MrWong99/rpgnotes/pkg/types"
)

// SpeakerStats summarises one speaker's share of a transcript.
type SpeakerStats struct {
	Speaker  string
	Segments int
	// Duration is the summed segment length in seconds.
	Duration float64
	Words    int
}

// Stats computes per-speaker totals, ordered by speaking time, longest
// first, with ties broken by name.
func Stats(segs []types.Segment) []SpeakerStats {
	idx := make(map[string]int)
	var out []SpeakerStats
	for _, s := range segs {
		i, ok := idx[s.Speaker]
		if !ok {
			i = len(out)
			idx[s.Speaker] = i
			out = append(out, SpeakerStats{Speaker: s.Speaker})
		}
		out[i].Segments++
		out[i].Duration += s.Duration()
		out[i].Words += len(strings.Fields(s.Text))
	}
	slices.SortFunc(out, func(a, b SpeakerStats) int {
		if c := cmp.Compare(b.Duration, a.Duration); c != 0 {
			return c
		}
		return strings.Compare(a.Speaker, b.Speaker)
	})
	return out
}
