// Package tui is the terminal front panel: it forwards keystrokes to the
// session's input source and redraws the grid on every session update.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/cbegin/drumgrid-go/internal/grid"
	"github.com/cbegin/drumgrid-go/internal/render"
	"github.com/cbegin/drumgrid-go/internal/sequencer"
)

// TempoStep is the bpm change of one tempo key press.
const TempoStep = 10

// Machine is the part of a session the panel drives.
type Machine interface {
	Start(ctx context.Context) error
	Stop() error
	State() sequencer.State
	SetTempo(bpm int) error
	Tempo() int
	Volume() float64
	Snapshot() grid.Snapshot
	Cursor() int
	Names() []string
	Updates() <-chan struct{}
	HandleSymbol(sym rune) bool
}

var (
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Bold(true)
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

type Model struct {
	machine  Machine
	ctx      context.Context
	keys     keyMap
	help     help.Model
	styles   render.Styles
	save     func() error
	status   string
	err      error
	quitting bool
}

type UpdateMsg struct{}

// NewModel builds the panel. save, when set, is called on ctrl+s.
func NewModel(ctx context.Context, m Machine, save func() error) Model {
	return Model{
		machine: m,
		ctx:     ctx,
		keys:    defaultKeyMap(),
		help:    help.New(),
		styles:  render.DefaultStyles(),
		save:    save,
	}
}

func ListenForUpdates(m Machine) tea.Cmd {
	return func() tea.Msg {
		<-m.Updates()
		return UpdateMsg{}
	}
}

func (m Model) Init() tea.Cmd {
	return ListenForUpdates(m.machine)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		m.err = nil
		m.status = ""
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.quitting = true
			m.err = m.machine.Stop()
			return m, tea.Quit
		case key.Matches(msg, m.keys.Play):
			if m.machine.State() == sequencer.Running {
				m.err = m.machine.Stop()
			} else {
				m.err = m.machine.Start(m.ctx)
			}
		case key.Matches(msg, m.keys.TempoUp):
			m.err = m.machine.SetTempo(m.machine.Tempo() + TempoStep)
		case key.Matches(msg, m.keys.TempoDown):
			m.err = m.machine.SetTempo(m.machine.Tempo() - TempoStep)
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
		case key.Matches(msg, m.keys.Save):
			if m.save != nil {
				if m.err = m.save(); m.err == nil {
					m.status = "pattern saved"
				}
			}
		case msg.Type == tea.KeyRunes:
			for _, r := range msg.Runes {
				m.machine.HandleSymbol(r)
			}
		}

	case tea.WindowSizeMsg:
		m.help.Width = msg.Width

	case UpdateMsg:
		return m, ListenForUpdates(m.machine)
	}
	return m, nil
}

// playhead is the step most recently played, or -1 when stopped.
func (m Model) playhead(steps int) int {
	if m.machine.State() != sequencer.Running || steps <= 0 {
		return -1
	}
	return (m.machine.Cursor() + steps - 1) % steps
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	snap := m.machine.Snapshot()
	head := m.playhead(snap.Steps())

	playState := "STOP"
	if m.machine.State() == sequencer.Running {
		playState = "PLAY"
	}
	stepLabel := "--"
	if head >= 0 {
		stepLabel = fmt.Sprintf("%02d", head+1)
	}
	header := headerStyle.Render(fmt.Sprintf("drumgrid  %s  %3dbpm  vol:%3.0f%%  step:%s",
		playState, m.machine.Tempo(), m.machine.Volume()*100, stepLabel))

	var out strings.Builder
	out.WriteString("\n")
	out.WriteString(header)
	out.WriteString("\n\n")
	out.WriteString(m.styles.Grid(snap, head, m.machine.Names()))
	out.WriteString("\n\n")
	out.WriteString(m.help.View(m.keys))
	if m.err != nil {
		out.WriteString("\n")
		out.WriteString(errStyle.Render(m.err.Error()))
	} else if m.status != "" {
		out.WriteString("\n")
		out.WriteString(statusStyle.Render(m.status))
	}
	return out.String()
}

// Run starts the bubbletea program and blocks until the user quits.
func Run(ctx context.Context, m Machine, save func() error) error {
	p := tea.NewProgram(NewModel(ctx, m, save), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}
