package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/MrWong99/rpgnotes/internal/app"
)

type menuAction int

const (
	actionNone menuAction = iota
	actionFull
	actionTranscript
	actionExit
)

type menuItem struct {
	key    string
	label  string
	action menuAction
}

var menuItems = []menuItem{
	{key: "1", label: "Full pipeline (transcript + notes)", action: actionFull},
	{key: "2", label: "Transcript only", action: actionTranscript},
	{key: "3", label: "Exit", action: actionExit},
}

// lookupAction maps a typed choice to an action. "q" and "exit" also exit.
func lookupAction(choice string) menuAction {
	switch strings.ToLower(choice) {
	case "q", "exit":
		return actionExit
	}
	for _, it := range menuItems {
		if it.key == choice {
			return it.action
		}
	}
	return actionNone
}

// chooser asks for the next action. End of input counts as actionExit.
type chooser interface {
	choose(ctx context.Context, header string) (menuAction, error)
}

// menu offers the workflows until the user exits, input ends or ctx is
// cancelled. A terminal gets the full-screen picker; piped input is read
// as numbered choices, one per line. Workflow errors are reported and the
// menu continues.
func menu(ctx context.Context, in io.Reader, out io.Writer, a *app.App, session int) error {
	var c chooser
	if f, ok := in.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		c = &tuiChooser{in: f, out: out}
	} else {
		c = newLineChooser(ctx, in, out)
	}

	for {
		action, err := c.choose(ctx, menuHeader(ctx, a, session))
		if err != nil {
			return err
		}

		switch action {
		case actionFull:
			err = runFullTo(ctx, out, a, session)
		case actionTranscript:
			err = runTranscriptTo(ctx, out, a, session)
		default:
			return nil
		}
		if errors.Is(err, context.Canceled) {
			return err
		}
		if err != nil {
			slog.Error("workflow failed", "err", err)
		}
	}
}

// menuHeader describes the session the next run would pick up.
func menuHeader(ctx context.Context, a *app.App, session int) string {
	st, err := a.Status(ctx, session)
	if err != nil {
		return ""
	}
	h := fmt.Sprintf("Session %d · %s · %d tracks", st.Session.Number, st.Session.Date.Format(time.DateOnly), st.Tracks)
	if st.TranscriptExists {
		h += " · transcript done"
	}
	if len(st.NotesFiles) > 0 {
		h += " · notes done"
	}
	return h
}

type lineChooser struct {
	out   io.Writer
	lines <-chan string
}

func newLineChooser(ctx context.Context, in io.Reader, out io.Writer) *lineChooser {
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	return &lineChooser{out: out, lines: lines}
}

func (c *lineChooser) choose(ctx context.Context, header string) (menuAction, error) {
	for {
		fmt.Fprint(c.out, "\n=== RPG session notes ===\n")
		if header != "" {
			fmt.Fprintln(c.out, header)
		}
		for _, it := range menuItems {
			fmt.Fprintf(c.out, "[%s] %s\n", it.key, it.label)
		}
		fmt.Fprint(c.out, "> ")

		select {
		case <-ctx.Done():
			return actionNone, ctx.Err()
		case line, ok := <-c.lines:
			if !ok {
				return actionExit, nil
			}
			choice := strings.TrimSpace(line)
			if action := lookupAction(choice); action != actionNone {
				return action, nil
			}
			fmt.Fprintf(c.out, "unknown option %q\n", choice)
		}
	}
}

func runTranscriptTo(ctx context.Context, out io.Writer, a *app.App, session int) error {
	run, err := a.RunTranscript(ctx, session)
	if err != nil {
		return err
	}
	printRun(out, run)
	return nil
}

func runFullTo(ctx context.Context, out io.Writer, a *app.App, session int) error {
	run, err := a.RunFull(ctx, session)
	if run != nil && (err == nil || errors.Is(err, app.ErrNoLLM)) {
		printRun(out, run)
	}
	return err
}
