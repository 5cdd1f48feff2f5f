// Package session works out which session a pipeline run belongs to and
// keeps a copy of the session's chat-log export next to its transcript.
//
// The session number normally comes from the newest chat-log export in the
// downloads directory ("session42.json"). Ad-hoc sessions without an export
// get a calendar-derived number (YYYYMMDD), so [Identifier.Identify] always
// produces an answer.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/MrWong99/rpgnotes/internal/observe"
)

// Source says where a session number came from.
type Source string

const (
	// SourceChatLog means number and date came from a chat-log export.
	SourceChatLog Source = "chat_log"

	// SourceCalendar means the number was derived from today's date.
	SourceCalendar Source = "calendar"

	// SourceManual means the number was given by the user.
	SourceManual Source = "manual"
)

// DateFallback selects the session date when no chat log is available.
type DateFallback string

const (
	// FallbackToday dates the session today.
	FallbackToday DateFallback = "today"

	// FallbackLastMonday dates the session on the Monday of the current
	// week, for groups that always play on Mondays and process later.
	FallbackLastMonday DateFallback = "last_monday"
)

// dateFields are checked in order for an embedded session date.
var dateFields = []string{"archiveDate", "date", "timestamp", "created_at"}

var numberPattern = regexp.MustCompile(`(?i)session(\d+)`)

// Info identifies one session.
type Info struct {
	Number int
	Date   time.Time
	Source Source

	// ChatLog is the chat-log export the number came from, if any.
	ChatLog string
}

// Identifier derives [Info] from the downloads directory.
type Identifier struct {
	dir      string
	pattern  string
	fallback DateFallback
	now      func() time.Time
}

// Option is a functional option for [NewIdentifier].
type Option func(*Identifier)

// WithPattern sets the glob matched against chat-log filenames. Default:
// "session*.json".
func WithPattern(glob string) Option {
	return func(id *Identifier) {
		if glob != "" {
			id.pattern = glob
		}
	}
}

// WithDateFallback sets the calendar fallback date. Default: [FallbackToday].
func WithDateFallback(f DateFallback) Option {
	return func(id *Identifier) {
		if f != "" {
			id.fallback = f
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(id *Identifier) { id.now = now }
}

// NewIdentifier creates an Identifier that looks for chat logs in dir.
func NewIdentifier(dir string, opts ...Option) *Identifier {
	id := &Identifier{dir: dir, pattern: "session*.json", fallback: FallbackToday, now: time.Now}
	for _, o := range opts {
		o(id)
	}
	return id
}

// Identify returns the current session. It never fails: every problem with
// the chat log is logged and answered with the calendar fallback.
func (id *Identifier) Identify(ctx context.Context) Info {
	log := observe.Logger(ctx)

	path, mtime, ok := id.newest(log)
	if !ok {
		log.Info("no chat log found, using calendar session number", "dir", id.dir, "pattern", id.pattern)
		return id.calendar()
	}

	m := numberPattern.FindStringSubmatch(filepath.Base(path))
	if m == nil {
		log.Warn("chat log name carries no session number, using calendar", "file", path)
		return id.calendar()
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		log.Warn("session number out of range, using calendar", "file", path, "err", err)
		return id.calendar()
	}

	date, err := embeddedDate(path)
	if err != nil {
		log.Warn("no usable date in chat log, using file modification date", "file", path, "err", err)
		date = midnight(mtime)
	}
	log.Info("session identified", "number", n, "date", date.Format(time.DateOnly), "chat_log", path)
	return Info{Number: n, Date: date, Source: SourceChatLog, ChatLog: path}
}

// newest returns the most recently modified file matching the pattern.
// Ties go to the lexicographically greater name.
func (id *Identifier) newest(log *slog.Logger) (path string, mtime time.Time, ok bool) {
	matches, err := filepath.Glob(filepath.Join(id.dir, id.pattern))
	if err != nil {
		log.Warn("bad chat log pattern", "pattern", id.pattern, "err", err)
		return "", time.Time{}, false
	}
	for _, m := range matches {
		fi, err := os.Stat(m)
		if err != nil || !fi.Mode().IsRegular() {
			continue
		}
		if !ok || fi.ModTime().After(mtime) || (fi.ModTime().Equal(mtime) && m > path) {
			path, mtime, ok = m, fi.ModTime(), true
		}
	}
	return path, mtime, ok
}

// Manual returns the Info for a session number given by the user. The
// date follows the calendar fallback.
func (id *Identifier) Manual(n int) Info {
	info := id.calendar()
	info.Number = n
	info.Source = SourceManual
	return info
}

func (id *Identifier) calendar() Info {
	today := midnight(id.now())
	date := today
	if id.fallback == FallbackLastMonday {
		back := (int(today.Weekday()) + 6) % 7
		date = today.AddDate(0, 0, -back)
	}
	return Info{
		Number: today.Year()*10000 + int(today.Month())*100 + today.Day(),
		Date:   date,
		Source: SourceCalendar,
	}
}

// embeddedDate reads the first date field of a chat-log export. Only the
// leading YYYY-MM-DD is used, so both plain dates and RFC 3339 timestamps
// work.
func embeddedDate(path string) (time.Time, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return time.Time{}, err
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return time.Time{}, fmt.Errorf("decode: %w", err)
	}
	for _, field := range dateFields {
		s, ok := doc[field].(string)
		if !ok {
			continue
		}
		s = strings.TrimSpace(s)
		if len(s) < len(time.DateOnly) {
			continue
		}
		if d, err := time.ParseInLocation(time.DateOnly, s[:len(time.DateOnly)], time.Local); err == nil {
			return d, nil
		}
	}
	return time.Time{}, fmt.Errorf("none of %v holds a date", dateFields)
}

func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
