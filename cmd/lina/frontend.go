package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/oMatheuss/lina/driver"
)

type model struct {
	path     string
	source   string
	d        *driver.Driver
	status   *runStatus
	viewport viewport.Model
	input    textinput.Model
	ready    bool
	width    int
	height   int
	shown    string
	state    driver.State
	gen      uint64
}

var (
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("230")).Background(lipgloss.Color("24")).Padding(0, 1)
	inputStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("230"))
)

func newModel(path, source string, d *driver.Driver, status *runStatus) model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.CharLimit = 4096
	return model{
		path:     path,
		source:   source,
		d:        d,
		status:   status,
		viewport: viewport.New(80, 20),
		input:    ti,
	}
}

func (m model) Init() tea.Cmd {
	return func() tea.Msg { return restartMsg{} }
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		vh := msg.Height - 2
		if vh < 1 {
			vh = 1
		}
		m.viewport.Width = msg.Width
		m.viewport.Height = vh
		m.input.Width = msg.Width - len(m.input.Prompt) - 1
		m.ready = true
		return m, m.refresh()

	case restartMsg:
		m.status.reset()
		m.d.Start(m.source)
		return m, m.refresh()

	case yieldMsg:
		msg.fn()
		return m, m.refresh()

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			m.d.Shutdown()
			return m, tea.Quit
		case "ctrl+r":
			m.status.reset()
			if src, err := loadSource(m.path); err != nil {
				m.status.note = err.Error()
			} else {
				m.source = src
			}
			m.d.Start(m.source)
			return m, m.refresh()
		case "ctrl+l":
			m.d.Clear()
			return m, m.refresh()
		}

		if m.state == driver.AwaitingInput {
			if msg.Type == tea.KeyEnter {
				line := m.input.Value()
				m.input.SetValue("")
				if err := m.d.SubmitInput(line); err != nil {
					m.status.note = err.Error()
				}
				return m, m.refresh()
			}
			var cmd tea.Cmd
			m.input, cmd = m.input.Update(msg)
			return m, cmd
		}
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// refresh pulls the driver snapshot into the view and moves focus to the
// input line only while a read is pending.
func (m *model) refresh() tea.Cmd {
	snap := m.d.Snapshot()
	m.state = snap.State
	m.gen = snap.Generation
	if snap.Output != m.shown || m.viewport.TotalLineCount() == 0 {
		m.shown = snap.Output
		content := snap.Output
		if content == "" {
			content = dimStyle.Render("(no output yet)")
		}
		m.viewport.SetContent(content)
		m.viewport.GotoBottom()
	}
	if m.state == driver.AwaitingInput {
		return m.input.Focus()
	}
	m.input.Blur()
	return nil
}

func (m model) View() string {
	if !m.ready {
		return "initializing..."
	}
	var input string
	if m.state == driver.AwaitingInput {
		input = inputStyle.Render(m.input.View())
	} else {
		input = dimStyle.Render("  input disabled while " + m.state.String())
	}
	return strings.Join([]string{m.viewport.View(), input, m.statusLine()}, "\n")
}

func (m model) statusLine() string {
	left := fmt.Sprintf("%s · run %d · %s", m.path, m.gen, m.state)
	switch {
	case m.status.fault != nil:
		left = errStyle.Render(fmt.Sprintf("%s · %s fault", left, m.status.fault.Kind))
	case m.state == driver.Completed:
		left = okStyle.Render(left)
	}
	if m.status.note != "" {
		left += " · " + m.status.note
	}
	restart := "ctrl+r restart"
	if m.state.Terminal() {
		restart = "ctrl+r run again"
	}
	return statusStyle.Render(left) + dimStyle.Render("  "+restart+" · ctrl+l clear · ctrl+c quit")
}
