package render

import (
	"strings"
	"testing"

	"github.com/cbegin/drumgrid-go/internal/grid"
)

func TestGridMarkers(t *testing.T) {
	g := grid.New(3, 8)
	_ = g.Toggle(0, 0)
	_ = g.Toggle(1, 3)
	_ = g.Toggle(2, 7)
	out := Grid(g.Snapshot(), 2, []string{"snare", "hihat", "kick"})

	if n := strings.Count(out, string(MarkActive)); n != 3 {
		t.Errorf("active markers = %d, want 3", n)
	}
	if n := strings.Count(out, string(MarkEmpty)); n != 21 {
		t.Errorf("empty markers = %d, want 21", n)
	}
	if n := strings.Count(out, string(MarkPlayhead)); n != 1 {
		t.Errorf("playhead markers = %d, want 1", n)
	}
	for _, name := range []string{"snare", "hihat", "kick"} {
		if !strings.Contains(out, name) {
			t.Errorf("output missing label %q", name)
		}
	}
}

func TestGridWithoutCursor(t *testing.T) {
	g := grid.New(2, 4)
	out := Grid(g.Snapshot(), -1, nil)
	if strings.ContainsRune(out, MarkPlayhead) {
		t.Error("playhead drawn for cursor -1")
	}
	if n := strings.Count(out, string(MarkEmpty)); n != 8 {
		t.Errorf("empty markers = %d, want 8", n)
	}
	if lines := strings.Count(out, "\n"); lines != 2 {
		t.Errorf("lines = %d, want 2", lines)
	}
}

func TestGridZeroSteps(t *testing.T) {
	g := grid.New(3, 0)
	out := Grid(g.Snapshot(), 0, []string{"a", "b", "c"})
	if strings.ContainsAny(out, string([]rune{MarkActive, MarkEmpty, MarkPlayhead})) {
		t.Errorf("zero-step grid drew markers: %q", out)
	}
}
