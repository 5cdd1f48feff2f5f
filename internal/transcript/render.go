package transcript

import (
	"strings"

	"github.com/MrWong99/rpgnotes/pkg/types"
)

// Render produces the human-readable transcript. A "[Name]" header block
// opens whenever the speaker changes; consecutive segments of the same
// speaker are joined into one paragraph, each followed by a single space.
func Render(segs []types.Segment) string {
	var b strings.Builder
	last := ""
	for i, s := range segs {
		if i == 0 || s.Speaker != last {
			b.WriteString("\n\n[")
			b.WriteString(s.Speaker)
			b.WriteString("]\n")
			last = s.Speaker
		}
		b.WriteString(strings.TrimSpace(s.Text))
		b.WriteByte(' ')
	}
	return b.String()
}
