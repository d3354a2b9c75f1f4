package input

import (
	"fmt"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
)

// DefaultPadBase is the note of the first pad on most grid controllers.
const DefaultPadBase uint8 = 36

// PadHandler turns note-on messages from a pad controller into toggle
// symbols. Note base+n toggles instrument n/steps at step n%steps. Notes
// without a bound symbol are ignored.
func PadHandler(src *Source, base uint8, steps int) func(msg midi.Message, timestampms int32) {
	return func(msg midi.Message, timestampms int32) {
		var ch, key, vel uint8
		if !msg.GetNoteStart(&ch, &key, &vel) || key < base || steps <= 0 {
			return
		}
		n := int(key - base)
		if sym, ok := src.Keymap().Symbol(n/steps, n%steps); ok {
			src.Push(sym)
		}
	}
}

// ListenMIDI feeds pad presses from in into src until stop is called.
func ListenMIDI(in drivers.In, src *Source, base uint8, steps int) (stop func(), err error) {
	stop, err = midi.ListenTo(in, PadHandler(src, base, steps))
	if err != nil {
		return nil, fault.Wrap(err, fmsg.With(fmt.Sprintf("listen to %s", in)))
	}
	return stop, nil
}
