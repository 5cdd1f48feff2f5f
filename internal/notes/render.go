package notes

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/template"
	"time"
)

// Document is the data passed to the notes template.
type Document struct {
	Number  int
	Date    time.Time
	Summary string
	Details
}

// DefaultTemplate renders a Markdown page for one session.
const DefaultTemplate = `# Session {{.Number}}: {{.Title}}

**Date:** {{date .Date}}

## Summary

{{.Summary}}

## Key Events and Decisions

{{bullets .Events}}

## Memorable Quotes

{{bullets .Quotes}}

## Non-Player Characters

{{bullets .NPCs}}

## Locations

{{bullets .Locations}}

## Items

{{bullets .Items}}

## Hooks for the Next Session

{{bullets .Hooks}}

## Image Prompts

{{code .Images}}

## Video Prompts

{{code .Videos}}
`

var funcs = template.FuncMap{
	"date":    func(t time.Time) string { return t.Format("02.01.2006") },
	"bullets": func(items []string) string { return list(items, "* %s") },
	"code":    func(items []string) string { return list(items, "* `%s`") },
}

func list(items []string, format string) string {
	lines := make([]string, 0, len(items))
	for _, it := range items {
		if it = strings.TrimSpace(it); it != "" {
			lines = append(lines, fmt.Sprintf(format, it))
		}
	}
	return strings.Join(lines, "\n")
}

// ParseTemplate compiles a notes template. The helpers date, bullets and
// code are available inside it.
func ParseTemplate(text string) (*template.Template, error) {
	t, err := template.New("notes").Funcs(funcs).Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("notes: parse template: %w", err)
	}
	return t, nil
}

// LoadTemplate reads a template file. An empty path selects
// [DefaultTemplate].
func LoadTemplate(path string) (*template.Template, error) {
	if path == "" {
		return ParseTemplate(DefaultTemplate)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("notes: read template: %w", err)
	}
	return ParseTemplate(string(data))
}

// Render executes tpl for doc.
func Render(w io.Writer, tpl *template.Template, doc Document) error {
	if err := tpl.Execute(w, doc); err != nil {
		return fmt.Errorf("notes: render: %w", err)
	}
	return nil
}
