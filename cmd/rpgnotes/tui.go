package main

import (
	"context"
	"io"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Key bindings of the menu picker.
const (
	keyUp    = "up"
	keyDown  = "down"
	keyK     = "k"
	keyJ     = "j"
	keyEnter = "enter"
	keyQuit  = "q"
	keyEsc   = "esc"
	keyCtrlC = "ctrl+c"
)

var (
	colorCyan   = lipgloss.Color("#00FFFF")
	colorYellow = lipgloss.Color("#FFFF00")
	colorGray   = lipgloss.Color("#666666")

	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	dimStyle       = lipgloss.NewStyle().Foreground(colorGray)
	selectedStyle  = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	footerKeyStyle = lipgloss.NewStyle().Bold(true).Foreground(colorYellow)
)

// menuModel is the bubbletea model of the menu picker. It quits as soon as
// an action is chosen; the workflow then runs outside the program.
type menuModel struct {
	header string
	cursor int
	chosen menuAction
}

func newMenuModel(header string) menuModel {
	return menuModel{header: header}
}

func (m menuModel) Init() tea.Cmd { return nil }

func (m menuModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch key.String() {
	case keyUp, keyK:
		m.cursor = (m.cursor + len(menuItems) - 1) % len(menuItems)
	case keyDown, keyJ:
		m.cursor = (m.cursor + 1) % len(menuItems)
	case keyEnter:
		m.chosen = menuItems[m.cursor].action
		return m, tea.Quit
	case keyQuit, keyEsc, keyCtrlC:
		m.chosen = actionExit
		return m, tea.Quit
	default:
		if action := lookupAction(key.String()); action != actionNone {
			m.chosen = action
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m menuModel) View() string {
	if m.chosen != actionNone {
		return ""
	}
	var b strings.Builder
	b.WriteString(titleStyle.Render("RPG session notes"))
	b.WriteString("\n")
	if m.header != "" {
		b.WriteString(dimStyle.Render(m.header))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	for i, it := range menuItems {
		line := "[" + it.key + "] " + it.label
		if i == m.cursor {
			b.WriteString(selectedStyle.Render("› " + line))
		} else {
			b.WriteString("  " + line)
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(footerKeyStyle.Render("↑/↓") + dimStyle.Render(" move  "))
	b.WriteString(footerKeyStyle.Render("enter") + dimStyle.Render(" run  "))
	b.WriteString(footerKeyStyle.Render("q") + dimStyle.Render(" quit"))
	b.WriteString("\n")
	return b.String()
}

type tuiChooser struct {
	in  io.Reader
	out io.Writer
}

func (c *tuiChooser) choose(ctx context.Context, header string) (menuAction, error) {
	p := tea.NewProgram(newMenuModel(header),
		tea.WithInput(c.in),
		tea.WithOutput(c.out),
		tea.WithContext(ctx),
	)
	final, err := p.Run()
	if err != nil {
		if ctx.Err() != nil {
			return actionNone, ctx.Err()
		}
		return actionNone, err
	}
	m, ok := final.(menuModel)
	if !ok || m.chosen == actionNone {
		return actionExit, nil
	}
	return m.chosen, nil
}
