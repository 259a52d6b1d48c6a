package picker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mj1618/tab-bridge/internal/model"
)

// ErrCancelled is returned when the user leaves the picker without
// choosing a tab.
var ErrCancelled = errors.New("picker cancelled")

var (
	promptStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	selectedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("8"))
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	countStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
)

const defaultHeight = 20

type pickerModel struct {
	tabs    []model.Tab
	input   textinput.Model
	matches []Match
	cursor  int
	height  int

	chosen *model.Tab
	done   bool
}

func newModel(tabs []model.Tab, query string) *pickerModel {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.PromptStyle = promptStyle
	ti.Placeholder = "filter tabs"
	ti.SetValue(query)
	ti.Focus()

	return &pickerModel{
		tabs:    tabs,
		input:   ti,
		matches: Rank(tabs, query),
		height:  defaultHeight,
	}
}

func (m *pickerModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m *pickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.height = max(msg.Height-2, 1)
		return m, nil
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.done = true
			return m, tea.Quit
		case tea.KeyEnter:
			if len(m.matches) > 0 {
				tab := m.matches[m.cursor].Tab
				m.chosen = &tab
			}
			m.done = true
			return m, tea.Quit
		case tea.KeyUp, tea.KeyCtrlP:
			if m.cursor > 0 {
				m.cursor--
			}
			return m, nil
		case tea.KeyDown, tea.KeyCtrlN:
			if m.cursor < len(m.matches)-1 {
				m.cursor++
			}
			return m, nil
		}
	}

	before := m.input.Value()
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if m.input.Value() != before {
		m.matches = Rank(m.tabs, m.input.Value())
		m.cursor = 0
	}
	return m, cmd
}

func (m *pickerModel) View() string {
	if m.done {
		return ""
	}
	var b strings.Builder
	b.WriteString(m.input.View())
	b.WriteString("  ")
	b.WriteString(countStyle.Render(fmt.Sprintf("%d/%d", len(m.matches), len(m.tabs))))
	b.WriteByte('\n')

	// Scroll so the cursor stays visible.
	start := 0
	if m.cursor >= m.height {
		start = m.cursor - m.height + 1
	}
	end := min(start+m.height, len(m.matches))
	for i := start; i < end; i++ {
		t := m.matches[i].Tab
		line := fmt.Sprintf("%d:%d %s", t.WindowID, t.ID, t.Title)
		if t.URL != "" {
			line += " " + dimStyle.Render(t.URL)
		}
		if i == m.cursor {
			line = selectedStyle.Render(line)
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String()
}

// Options configures Run.
type Options struct {
	Query  string
	Input  io.Reader // nil uses the terminal
	Output io.Writer // nil uses stdout
}

// Run shows an interactive picker over tabs and returns the chosen tab. It
// returns ErrCancelled if the user quits without choosing.
func Run(ctx context.Context, tabs []model.Tab, opts Options) (model.Tab, error) {
	m := newModel(tabs, opts.Query)
	progOpts := []tea.ProgramOption{tea.WithContext(ctx)}
	if opts.Input != nil {
		progOpts = append(progOpts, tea.WithInput(opts.Input))
	}
	if opts.Output != nil {
		progOpts = append(progOpts, tea.WithOutput(opts.Output))
	}

	if _, err := tea.NewProgram(m, progOpts...).Run(); err != nil {
		if ctx.Err() != nil {
			return model.Tab{}, ctx.Err()
		}
		return model.Tab{}, fmt.Errorf("run picker: %w", err)
	}
	if m.chosen == nil {
		return model.Tab{}, ErrCancelled
	}
	return *m.chosen, nil
}
