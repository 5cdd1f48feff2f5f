package speaker

import (
	"path/filepath"
	"regexp"
	"strings"
)

// KeyFunc derives a speaker key from a track filename stem (the base name
// without directory or extension). Implementations must never fail: a stem
// that does not have the expected shape yields the stem itself.
type KeyFunc func(stem string) string

// DelimitedKey splits the stem on delim and returns part field (0-based).
// With rest set, everything from that part to the end of the stem is
// returned, delimiters included, which suits layouts where the identifier
// itself may contain the delimiter.
//
// The default layout "<prefix>-<speaker>[-<suffix>]" is DelimitedKey("-", 1, false).
func DelimitedKey(delim string, field int, rest bool) KeyFunc {
	return func(stem string) string {
		if delim == "" || field < 0 {
			return stem
		}
		n := -1
		if rest {
			n = field + 1
		}
		parts := strings.SplitN(stem, delim, n)
		if field >= len(parts) || parts[field] == "" {
			return stem
		}
		return parts[field]
	}
}

// CraigKey adapts to the number of parts: "<n>-<date>-<speaker>" yields the
// third part and "<prefix>-<speaker>" the second. Everything after the second
// delimiter belongs to the speaker. Other shapes yield the stem.
func CraigKey(delim string) KeyFunc {
	return func(stem string) string {
		if delim == "" {
			return stem
		}
		parts := strings.SplitN(stem, delim, 3)
		var key string
		switch len(parts) {
		case 3:
			key = parts[2]
		case 2:
			key = parts[1]
		}
		if key == "" {
			return stem
		}
		return key
	}
}

// PatternKey returns the capture group named "speaker", or group 1 when no
// such group exists. No match, or an empty capture, yields the stem.
func PatternKey(re *regexp.Regexp) KeyFunc {
	idx := re.SubexpIndex("speaker")
	if idx < 0 && re.NumSubexp() >= 1 {
		idx = 1
	}
	return func(stem string) string {
		if idx < 0 {
			return stem
		}
		m := re.FindStringSubmatch(stem)
		if m == nil || m[idx] == "" {
			return stem
		}
		return m[idx]
	}
}

// DefaultKeyFunc handles "<prefix>-<speaker>[-<suffix>]".
var DefaultKeyFunc = DelimitedKey("-", 1, false)

// Stem strips the directory and the final extension from a filename.
func Stem(filename string) string {
	base := filepath.Base(filename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
