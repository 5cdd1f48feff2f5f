package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/MrWong99/rpgnotes/internal/app"
	"github.com/MrWong99/rpgnotes/internal/transcript"
)

func printRun(w io.Writer, run *app.Run) {
	fmt.Fprintf(w, "Session %d (%s, %s)\n", run.Session.Number, run.Session.Date.Format(time.DateOnly), run.Session.Source)
	if res := run.Transcript; res != nil {
		switch res.Outcome {
		case transcript.OutcomeCreated:
			fmt.Fprintf(w, "  transcript: written, %d segments from %d tracks\n", res.Stats.Accepted, res.Stats.Tracks)
		case transcript.OutcomeAlreadyExists:
			fmt.Fprintln(w, "  transcript: already present")
		}
		fmt.Fprintf(w, "    %s\n    %s\n", res.JSONPath, res.TextPath)
	}
	switch {
	case run.NotesWritten:
		fmt.Fprintf(w, "  notes: written\n    %s\n", run.NotesPath)
	case run.NotesPath != "":
		fmt.Fprintf(w, "  notes: already present\n    %s\n", run.NotesPath)
	}
}

func printStatus(w io.Writer, st *app.Status) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "session\t%d (%s, %s)\n", st.Session.Number, st.Session.Date.Format(time.DateOnly), st.Session.Source)
	fmt.Fprintf(tw, "tracks\t%d\n", st.Tracks)
	fmt.Fprintf(tw, "speaker map\t%s\n", yesNo(st.SpeakerMapPresent))
	fmt.Fprintf(tw, "notes template\t%s\n", yesNo(st.TemplatePresent))
	fmt.Fprintf(tw, "llm configured\t%s\n", yesNo(st.LLMConfigured))
	fmt.Fprintf(tw, "chat log archived\t%s\n", yesNo(st.ChatLogArchived))
	fmt.Fprintf(tw, "transcript\t%s\n", yesNo(st.TranscriptExists))
	notes := "no"
	if len(st.NotesFiles) > 0 {
		notes = strings.Join(st.NotesFiles, ", ")
	}
	fmt.Fprintf(tw, "notes\t%s\n", notes)
	tw.Flush()
}

func printStats(w io.Writer, session int, stats []transcript.SpeakerStats) {
	fmt.Fprintf(w, "Session %d\n", session)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "speaker\tsegments\tspeaking time\twords\t")
	for _, s := range stats {
		d := time.Duration(s.Duration * float64(time.Second)).Round(time.Second)
		fmt.Fprintf(tw, "%s\t%d\t%s\t%d\t\n", s.Speaker, s.Segments, d, s.Words)
	}
	tw.Flush()
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
