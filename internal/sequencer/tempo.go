package sequencer

import (
	"errors"
	"fmt"
	"time"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
)

// ErrInvalidTempo is returned for a tempo that does not yield a positive step
// interval.
var ErrInvalidTempo = errors.New("invalid tempo")

// StepSeconds returns the step interval in seconds: one step per beat.
func StepSeconds(bpm int) float64 {
	return 60.0 / float64(bpm)
}

// StepInterval converts bpm into the duration between ticks.
func StepInterval(bpm int) (time.Duration, error) {
	if bpm <= 0 {
		return 0, fault.Wrap(ErrInvalidTempo,
			fmsg.With(fmt.Sprintf("bpm %d must be positive", bpm)),
			ftag.With(ftag.InvalidArgument),
		)
	}
	d := time.Duration(StepSeconds(bpm) * float64(time.Second))
	if d <= 0 {
		return 0, fault.Wrap(ErrInvalidTempo,
			fmsg.With(fmt.Sprintf("bpm %d is too fast", bpm)),
			ftag.With(ftag.InvalidArgument),
		)
	}
	return d, nil
}
