// Package pattern stores beat grids as JSON pattern files.
package pattern

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	"github.com/google/uuid"

	"github.com/cbegin/drumgrid-go/internal/grid"
)

var ErrShape = errors.New("pattern does not fit the grid")

// File is a saved pattern. Rows are strings of 'x' (active) and '.' (rest),
// one per instrument.
type File struct {
	ID      string    `json:"id"`
	Name    string    `json:"name"`
	BPM     int       `json:"bpm"`
	Created time.Time `json:"created"`
	Updated time.Time `json:"updated"`
	Rows    []string  `json:"rows"`
}

// New captures a snapshot as a new pattern with a fresh ID.
func New(name string, bpm int, s grid.Snapshot) *File {
	now := time.Now().UTC()
	f := &File{
		ID:      uuid.New().String(),
		Name:    name,
		BPM:     bpm,
		Created: now,
		Updated: now,
	}
	f.SetSnapshot(s)
	return f
}

// SetSnapshot replaces the rows and bumps Updated.
func (f *File) SetSnapshot(s grid.Snapshot) {
	f.Rows = make([]string, s.Instruments())
	for i := range f.Rows {
		row := make([]byte, s.Steps())
		for step := range row {
			row[step] = '.'
			if s.Active(i, step) {
				row[step] = 'x'
			}
		}
		f.Rows[i] = string(row)
	}
	f.Updated = time.Now().UTC()
}

// Snapshot decodes the rows.
func (f *File) Snapshot() (grid.Snapshot, error) {
	rows := make([][]bool, len(f.Rows))
	for i, r := range f.Rows {
		rows[i] = make([]bool, len(r))
		for step := 0; step < len(r); step++ {
			switch r[step] {
			case 'x', 'X', '1':
				rows[i][step] = true
			case '.', '-', '0':
			default:
				return grid.Snapshot{}, fault.Wrap(ErrShape,
					fmsg.With(fmt.Sprintf("row %d: unexpected %q at step %d", i, r[step], step)),
					ftag.With(ftag.InvalidArgument),
				)
			}
		}
	}
	s, err := grid.NewSnapshot(rows)
	if err != nil {
		return grid.Snapshot{}, fault.Wrap(ErrShape, fmsg.With(err.Error()), ftag.With(ftag.InvalidArgument))
	}
	return s, nil
}

// Apply loads the pattern into g. The pattern must have exactly g's
// dimensions.
func (f *File) Apply(g *grid.Grid) error {
	s, err := f.Snapshot()
	if err != nil {
		return err
	}
	if s.Instruments() != g.Instruments() || s.Steps() != g.Steps() {
		return fault.Wrap(ErrShape,
			fmsg.With(fmt.Sprintf("pattern is %dx%d, grid is %dx%d", s.Instruments(), s.Steps(), g.Instruments(), g.Steps())),
			ftag.With(ftag.InvalidArgument),
		)
	}
	return g.Load(s)
}

func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fault.Wrap(err, fmsg.With("read pattern"))
	}
	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fault.Wrap(err, fmsg.With(fmt.Sprintf("parse pattern %s", path)), ftag.With(ftag.InvalidArgument))
	}
	if f.ID == "" {
		f.ID = uuid.New().String()
	} else if _, err := uuid.Parse(f.ID); err != nil {
		return nil, fault.Wrap(err, fmsg.With("pattern id"), ftag.With(ftag.InvalidArgument))
	}
	return &f, nil
}

func (f *File) Save(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fault.Wrap(err, fmsg.With("create pattern dir"))
		}
	}
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fault.Wrap(err, fmsg.With("encode pattern"))
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fault.Wrap(err, fmsg.With("write pattern"))
	}
	return nil
}
