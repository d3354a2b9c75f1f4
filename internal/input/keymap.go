package input

import (
	"errors"
	"fmt"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
)

// Kind identifies what an input symbol does.
type Kind int

const (
	None Kind = iota
	Toggle
	Volume
)

func (k Kind) String() string {
	switch k {
	case Toggle:
		return "toggle"
	case Volume:
		return "volume"
	default:
		return "none"
	}
}

// VolumeStep is the level change of one volume key.
const VolumeStep = 0.05

// Event is a decoded input symbol.
type Event struct {
	Kind       Kind
	Symbol     rune
	Instrument int
	Step       int
	Delta      float64
}

// Binding is the action bound to one symbol.
type Binding struct {
	Kind       Kind
	Instrument int
	Step       int
	Delta      float64
}

// Keymap is a static symbol lookup table.
type Keymap map[rune]Binding

// DefaultRows are the key rows of the default layout, one per instrument.
var DefaultRows = []string{"ertyuiop", "sdfghjkl", "zxcvbnm,"}

const (
	DefaultVolumeUp   = ';'
	DefaultVolumeDown = '.'
)

var ErrKeymap = errors.New("invalid keymap")

// DefaultKeymap maps the three key rows to the grid rows and ';' / '.' to
// volume up and down.
func DefaultKeymap() Keymap {
	km, _ := NewKeymap(DefaultRows, DefaultVolumeUp, DefaultVolumeDown)
	return km
}

// NewKeymap builds a keymap where the n-th rune of rows[i] toggles
// instrument i at step n. A symbol may only be bound once.
func NewKeymap(rows []string, volumeUp, volumeDown rune) (Keymap, error) {
	km := make(Keymap)
	bind := func(r rune, b Binding) error {
		if _, dup := km[r]; dup {
			return fault.Wrap(ErrKeymap,
				fmsg.With(fmt.Sprintf("symbol %q bound twice", r)),
				ftag.With(ftag.InvalidArgument),
			)
		}
		km[r] = b
		return nil
	}
	for i, row := range rows {
		step := 0
		for _, r := range row {
			if err := bind(r, Binding{Kind: Toggle, Instrument: i, Step: step}); err != nil {
				return nil, err
			}
			step++
		}
	}
	if err := bind(volumeUp, Binding{Kind: Volume, Delta: VolumeStep}); err != nil {
		return nil, err
	}
	if err := bind(volumeDown, Binding{Kind: Volume, Delta: -VolumeStep}); err != nil {
		return nil, err
	}
	return km, nil
}

// Decode looks up sym. Unmapped symbols decode to an event of Kind None.
func (k Keymap) Decode(sym rune) Event {
	b, ok := k[sym]
	if !ok {
		return Event{Kind: None, Symbol: sym}
	}
	return Event{Kind: b.Kind, Symbol: sym, Instrument: b.Instrument, Step: b.Step, Delta: b.Delta}
}

// Symbol returns the symbol bound to toggling (instrument, step).
func (k Keymap) Symbol(instrument, step int) (rune, bool) {
	for r, b := range k {
		if b.Kind == Toggle && b.Instrument == instrument && b.Step == step {
			return r, true
		}
	}
	return 0, false
}
