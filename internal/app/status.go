package app

import (
	"context"
	"fmt"

	"github.com/MrWong99/rpgnotes/internal/session"
	"github.com/MrWong99/rpgnotes/internal/transcript"
)

// Status summarises what exists for one session.
type Status struct {
	Session session.Info

	Tracks            int
	SpeakerMapPresent bool
	TemplatePresent   bool
	LLMConfigured     bool
	TranscriptExists  bool
	ChatLogArchived   bool
	NotesFiles        []string
}

// Status inspects the inputs and artifacts of a session without changing
// anything. A positive override selects the session number.
func (a *App) Status(ctx context.Context, override int) (*Status, error) {
	info := a.Identify(ctx, override)
	st := &Status{Session: info, LLMConfigured: a.llm != nil}

	tracks, err := a.store.Tracks(ctx)
	if err != nil {
		return nil, fmt.Errorf("app: status: %w", err)
	}
	st.Tracks = len(tracks)

	if st.SpeakerMapPresent, err = fileExists(a.cfg.Paths.SpeakerMap); err != nil {
		return nil, fmt.Errorf("app: status: %w", err)
	}
	if st.TemplatePresent, err = fileExists(a.cfg.Paths.Template); err != nil {
		return nil, fmt.Errorf("app: status: %w", err)
	}
	if st.TranscriptExists, err = a.store.Exists(info.Number); err != nil {
		return nil, fmt.Errorf("app: status: %w", err)
	}
	if st.ChatLogArchived, err = fileExists(session.ArchivePath(a.cfg.Paths.ChatLogDir(), info.Number)); err != nil {
		return nil, fmt.Errorf("app: status: %w", err)
	}

	writer, err := a.notesWriter()
	if err != nil {
		return nil, err
	}
	if st.NotesFiles, err = writer.Existing(info.Number); err != nil {
		return nil, err
	}
	return st, nil
}

// Stats returns per-speaker statistics of an assembled transcript.
func (a *App) Stats(ctx context.Context, override int) (session.Info, []transcript.SpeakerStats, error) {
	info := a.Identify(ctx, override)
	t, err := a.store.ReadCombined(info.Number)
	if err != nil {
		return info, nil, fmt.Errorf("app: stats: %w", err)
	}
	return info, transcript.Stats(t.Segments), nil
}
