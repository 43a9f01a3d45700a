// Package prompt asks the user whether queued offline requests should run.
package prompt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// Question returns the confirmation text for pending queued requests.
func Question(pending int) string {
	noun := "searches"
	if pending == 1 {
		noun = "search"
	}
	return fmt.Sprintf("You have %d saved %s from when you were offline. Run them now?", pending, noun)
}

// Fixed answers every prompt with the same value. It is used when there is
// no terminal to ask on.
type Fixed bool

// Confirm returns the fixed answer.
func (f Fixed) Confirm(ctx context.Context, pending int) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return bool(f), nil
}

// Dialog asks in an interactive terminal dialog.
type Dialog struct {
	In  io.Reader
	Out io.Writer
}

// Confirm shows the dialog and waits for an answer. Escape or ctrl+c is a no.
func (d Dialog) Confirm(ctx context.Context, pending int) (bool, error) {
	opts := []tea.ProgramOption{tea.WithContext(ctx)}
	if d.In != nil {
		opts = append(opts, tea.WithInput(d.In))
	}
	if d.Out != nil {
		opts = append(opts, tea.WithOutput(d.Out))
	}

	final, err := tea.NewProgram(newConfirmModel(Question(pending)), opts...).Run()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return false, ctxErr
		}
		if errors.Is(err, tea.ErrProgramKilled) {
			return false, nil
		}
		return false, fmt.Errorf("confirmation dialog: %w", err)
	}
	m, ok := final.(confirmModel)
	if !ok {
		return false, nil
	}
	return m.answer, nil
}

// Prompter is what Select returns; it matches syncer.Prompter.
type Prompter interface {
	Confirm(ctx context.Context, pending int) (bool, error)
}

// Select picks a prompter: assumeYes always confirms, a terminal gets the
// dialog, and anything else declines so nothing runs unattended.
func Select(assumeYes bool) Prompter {
	if assumeYes {
		return Fixed(true)
	}
	if isTerminal(os.Stdin) && isTerminal(os.Stdout) {
		return Dialog{}
	}
	return Fixed(false)
}

func isTerminal(f *os.File) bool {
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

var boxStyle = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(lipgloss.Color("12")).
	Padding(1, 2).
	Width(56)

var activeStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(lipgloss.Color("0")).
	Background(lipgloss.Color("10")).
	Padding(0, 2)

var inactiveStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("8")).
	Padding(0, 2)

var hintStyle = lipgloss.NewStyle().Faint(true)

type confirmModel struct {
	question string
	yes      bool // highlighted choice
	answer   bool
	done     bool
}

func newConfirmModel(question string) confirmModel {
	return confirmModel{question: question, yes: true}
}

func (m confirmModel) Init() tea.Cmd { return nil }

func (m confirmModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch key.String() {
	case "y", "Y":
		m.answer, m.done = true, true
	case "n", "N", "esc", "q", "ctrl+c":
		m.answer, m.done = false, true
	case "enter", " ":
		m.answer, m.done = m.yes, true
	case "left", "right", "tab", "shift+tab", "h", "l":
		m.yes = !m.yes
	default:
		return m, nil
	}
	if m.done {
		return m, tea.Quit
	}
	return m, nil
}

func (m confirmModel) View() string {
	if m.done {
		return ""
	}
	yes, no := inactiveStyle, activeStyle
	if m.yes {
		yes, no = activeStyle, inactiveStyle
	}
	var b strings.Builder
	b.WriteString(m.question)
	b.WriteString("\n\n")
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, yes.Render("Yes"), " ", no.Render("No")))
	b.WriteString("\n\n")
	b.WriteString(hintStyle.Render("y/n, ←/→ to choose, enter to confirm"))
	return boxStyle.Render(b.String()) + "\n"
}
