package grid

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
)

var (
	// ErrOutOfRange is returned when a coordinate falls outside the grid.
	ErrOutOfRange = errors.New("grid coordinate out of range")
	// ErrShape is returned when a snapshot does not match the grid dimensions.
	ErrShape = errors.New("grid shape mismatch")
)

// Grid is the instrument x step matrix of active beats. Dimensions are fixed
// at construction. All methods are safe for concurrent use.
type Grid struct {
	mu          sync.RWMutex
	instruments int
	steps       int
	cells       []bool // row-major: instrument*steps + step
}

func New(instruments, steps int) *Grid {
	if instruments < 0 {
		instruments = 0
	}
	if steps < 0 {
		steps = 0
	}
	return &Grid{
		instruments: instruments,
		steps:       steps,
		cells:       make([]bool, instruments*steps),
	}
}

func (g *Grid) Instruments() int { return g.instruments }
func (g *Grid) Steps() int       { return g.steps }

func (g *Grid) index(instrument, step int) (int, error) {
	if instrument < 0 || instrument >= g.instruments || step < 0 || step >= g.steps {
		return 0, fault.Wrap(ErrOutOfRange,
			fmsg.With(fmt.Sprintf("cell (%d,%d) outside %dx%d", instrument, step, g.instruments, g.steps)),
			ftag.With(ftag.InvalidArgument),
		)
	}
	return instrument*g.steps + step, nil
}

// Toggle flips one cell. An out-of-range coordinate leaves the grid untouched.
func (g *Grid) Toggle(instrument, step int) error {
	idx, err := g.index(instrument, step)
	if err != nil {
		return err
	}
	g.mu.Lock()
	g.cells[idx] = !g.cells[idx]
	g.mu.Unlock()
	return nil
}

func (g *Grid) Set(instrument, step int, active bool) error {
	idx, err := g.index(instrument, step)
	if err != nil {
		return err
	}
	g.mu.Lock()
	g.cells[idx] = active
	g.mu.Unlock()
	return nil
}

// Read reports whether a cell is active. Out-of-range cells read as inactive.
func (g *Grid) Read(instrument, step int) bool {
	idx, err := g.index(instrument, step)
	if err != nil {
		return false
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.cells[idx]
}

// Column scans every instrument at step in one pass under the read lock, so
// a concurrent Toggle is either fully visible or not visible at all. The
// result is written into dst when it has room.
func (g *Grid) Column(step int, dst []bool) []bool {
	if cap(dst) < g.instruments {
		dst = make([]bool, g.instruments)
	}
	dst = dst[:g.instruments]
	if step < 0 || step >= g.steps {
		clear(dst)
		return dst
	}
	g.mu.RLock()
	for i := 0; i < g.instruments; i++ {
		dst[i] = g.cells[i*g.steps+step]
	}
	g.mu.RUnlock()
	return dst
}

// Snapshot returns a deep copy of the grid.
func (g *Grid) Snapshot() Snapshot {
	rows := make([][]bool, g.instruments)
	g.mu.RLock()
	for i := range rows {
		row := make([]bool, g.steps)
		copy(row, g.cells[i*g.steps:(i+1)*g.steps])
		rows[i] = row
	}
	g.mu.RUnlock()
	return Snapshot{rows: rows}
}

// Load replaces every cell with the contents of s, which must have the same
// dimensions as the grid.
func (g *Grid) Load(s Snapshot) error {
	if s.Instruments() != g.instruments || s.Steps() != g.steps {
		return fault.Wrap(ErrShape,
			fmsg.With(fmt.Sprintf("snapshot %dx%d, grid %dx%d", s.Instruments(), s.Steps(), g.instruments, g.steps)),
			ftag.With(ftag.InvalidArgument),
		)
	}
	g.mu.Lock()
	for i, row := range s.rows {
		copy(g.cells[i*g.steps:(i+1)*g.steps], row)
	}
	g.mu.Unlock()
	return nil
}

func (g *Grid) Clear() {
	g.mu.Lock()
	clear(g.cells)
	g.mu.Unlock()
}
