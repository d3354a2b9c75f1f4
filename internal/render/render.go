// Package render draws beat grid snapshots as text panels.
package render

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/cbegin/drumgrid-go/internal/grid"
)

const (
	MarkActive   = '●'
	MarkEmpty    = '○'
	MarkPlayhead = '▲'
)

type Styles struct {
	Label    lipgloss.Style
	Active   lipgloss.Style
	Empty    lipgloss.Style
	Playhead lipgloss.Style
}

func DefaultStyles() Styles {
	return Styles{
		Label:    lipgloss.NewStyle().Foreground(lipgloss.Color("245")).PaddingRight(1),
		Active:   lipgloss.NewStyle().Foreground(lipgloss.Color("205")),
		Empty:    lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
		Playhead: lipgloss.NewStyle().Foreground(lipgloss.Color("229")).Bold(true),
	}
}

// Grid renders s with DefaultStyles.
func Grid(s grid.Snapshot, cursor int, names []string) string {
	return DefaultStyles().Grid(s, cursor, names)
}

// Grid renders one line per instrument with a filled or hollow marker per
// step, followed by a playhead line under the cursor column. A cursor outside
// the grid draws no playhead.
func (st Styles) Grid(s grid.Snapshot, cursor int, names []string) string {
	width := 0
	for i := 0; i < s.Instruments(); i++ {
		if w := lipgloss.Width(label(names, i)); w > width {
			width = w
		}
	}
	labelStyle := st.Label.Width(width + 1)

	var b strings.Builder
	for i := 0; i < s.Instruments(); i++ {
		cells := make([]string, s.Steps())
		for step := range cells {
			if s.Active(i, step) {
				cells[step] = st.Active.Render(string(MarkActive))
			} else {
				cells[step] = st.Empty.Render(string(MarkEmpty))
			}
		}
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, labelStyle.Render(label(names, i)), strings.Join(cells, " ")))
		b.WriteByte('\n')
	}
	if cursor >= 0 && cursor < s.Steps() {
		b.WriteString(labelStyle.Render(""))
		b.WriteString(strings.Repeat(" ", cursor*2))
		b.WriteString(st.Playhead.Render(string(MarkPlayhead)))
	}
	return b.String()
}

func label(names []string, i int) string {
	if i < len(names) {
		return names[i]
	}
	return ""
}
