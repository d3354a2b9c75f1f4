package grid

import (
	"fmt"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
)

// Snapshot is an immutable copy of a Grid.
type Snapshot struct {
	rows [][]bool
}

// NewSnapshot copies rows into a snapshot. Every row must have the same length.
func NewSnapshot(rows [][]bool) (Snapshot, error) {
	out := make([][]bool, len(rows))
	for i, row := range rows {
		if len(row) != len(rows[0]) {
			return Snapshot{}, fault.Wrap(ErrShape,
				fmsg.With(fmt.Sprintf("row %d has %d steps, want %d", i, len(row), len(rows[0]))),
				ftag.With(ftag.InvalidArgument),
			)
		}
		out[i] = append([]bool(nil), row...)
	}
	return Snapshot{rows: out}, nil
}

func (s Snapshot) Instruments() int { return len(s.rows) }

func (s Snapshot) Steps() int {
	if len(s.rows) == 0 {
		return 0
	}
	return len(s.rows[0])
}

func (s Snapshot) Active(instrument, step int) bool {
	if instrument < 0 || instrument >= len(s.rows) {
		return false
	}
	row := s.rows[instrument]
	if step < 0 || step >= len(row) {
		return false
	}
	return row[step]
}

// Rows returns a copy of the cell matrix.
func (s Snapshot) Rows() [][]bool {
	out := make([][]bool, len(s.rows))
	for i, row := range s.rows {
		out[i] = append([]bool(nil), row...)
	}
	return out
}

// ActiveCount returns the number of active cells.
func (s Snapshot) ActiveCount() int {
	n := 0
	for _, row := range s.rows {
		for _, on := range row {
			if on {
				n++
			}
		}
	}
	return n
}
