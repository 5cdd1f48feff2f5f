package notes

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/MrWong99/rpgnotes/internal/atomicfile"
)

var unsafeChars = regexp.MustCompile(`[\\/*?:"<>|]`)

// SafeTitle removes characters that are not allowed in file names.
func SafeTitle(title string) string {
	return strings.TrimSpace(unsafeChars.ReplaceAllString(title, ""))
}

// Writer stores rendered notes in an output directory.
type Writer struct {
	dir string
	tpl *template.Template
}

// NewWriter creates a Writer. A nil tpl selects [DefaultTemplate].
func NewWriter(dir string, tpl *template.Template) *Writer {
	if tpl == nil {
		tpl = template.Must(ParseTemplate(DefaultTemplate))
	}
	return &Writer{dir: dir, tpl: tpl}
}

// Existing returns the notes files already written for session n.
func (w *Writer) Existing(n int) ([]string, error) {
	entries, err := os.ReadDir(w.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("notes: %w", err)
	}
	prefix := "Session " + strconv.Itoa(n) + " - "
	var out []string
	for _, e := range entries {
		if e.Type().IsRegular() && strings.HasPrefix(e.Name(), prefix) && strings.HasSuffix(e.Name(), ".md") {
			out = append(out, filepath.Join(w.dir, e.Name()))
		}
	}
	return out, nil
}

// Save renders and writes the notes of session n. When notes for the
// session already exist, Save leaves them alone and returns their path with
// written == false.
func (w *Writer) Save(n int, date time.Time, notes *Notes) (path string, written bool, err error) {
	existing, err := w.Existing(n)
	if err != nil {
		return "", false, err
	}
	if len(existing) > 0 {
		return existing[0], false, nil
	}

	var buf bytes.Buffer
	doc := Document{Number: n, Date: date, Summary: notes.Summary, Details: notes.Details}
	if err := Render(&buf, w.tpl, doc); err != nil {
		return "", false, err
	}

	title := SafeTitle(notes.Details.Title)
	if title == "" {
		title = "Untitled"
	}
	path = filepath.Join(w.dir, fmt.Sprintf("Session %d - %s.md", n, title))
	if err := atomicfile.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return "", false, fmt.Errorf("notes: %w", err)
	}
	return path, true, nil
}
