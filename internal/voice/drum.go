package voice

import (
	"errors"
	"math"
	"sync"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"

	"github.com/cbegin/drumgrid-go/internal/effects"
	"github.com/cbegin/drumgrid-go/internal/lfo"
)

// TriggerFailure tags errors returned by Play.
const TriggerFailure ftag.Kind = "VOICE_TRIGGER_FAILURE"

// ErrVoiceClosed is returned by Play after Close.
var ErrVoiceClosed = errors.New("voice closed")

type partial struct {
	freq   float64
	wave   Waveform
	step   float64 // envelope decrement per sample
	env    float64
	phase  float64
	filter effects.Filter
	active bool
}

// Drum is a synthesized percussion voice: a chord of decaying partials
// sharing one pitch-bend LFO and one filter setting. Play and Process may be
// called from different goroutines.
type Drum struct {
	mu         sync.Mutex
	sampleRate float64
	rate       int
	patch      Patch
	partials   []partial
	bend       lfo.LFO
	closed     bool
	presses    uint64
}

func NewDrum(sampleRate int, p Patch) *Drum {
	d := &Drum{
		sampleRate: float64(sampleRate),
		rate:       sampleRate,
		patch:      clonePatch(p),
		partials:   make([]partial, len(p.Notes)),
	}
	d.bend.Set(p.Bend.Depth, p.Bend.RateHz, lfo.WaveSaw)
	d.bend.SetOffset(p.Bend.Offset)
	d.bend.SetOnce(true)
	return d
}

func clonePatch(p Patch) Patch {
	p.Notes = append([]Note(nil), p.Notes...)
	return p
}

func (d *Drum) Name() string { return d.patch.Name }

// Play restarts the bend sweep and presses every note of the chord. Each call
// sounds the same regardless of what was playing before.
func (d *Drum) Play() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return fault.Wrap(ErrVoiceClosed,
			fmsg.With("play "+d.patch.Name),
			ftag.With(TriggerFailure),
		)
	}
	d.bend.Retrigger()
	for i, n := range d.patch.Notes {
		pt := &d.partials[i]
		pt.freq = n.Freq
		pt.wave = n.Wave
		pt.env = 1
		pt.phase = 0
		pt.step = 1
		if n.Decay > 0 && d.sampleRate > 0 {
			pt.step = 1 / (n.Decay * d.sampleRate)
		}
		pt.filter = effects.NewFilter(d.patch.Filter, d.rate, d.patch.Cutoff)
		pt.active = true
	}
	d.presses++
	return nil
}

// SetFilterFrequency changes the cutoff used by notes pressed from now on.
// Notes already sounding keep the filter they were pressed with.
func (d *Drum) SetFilterFrequency(hz float64) {
	d.mu.Lock()
	d.patch.Cutoff = hz
	d.mu.Unlock()
}

func (d *Drum) FilterFrequency() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.patch.Cutoff
}

// SetDecay sets the decay of the first note to sec and keeps the other notes'
// offsets from it. It applies to the next Play.
func (d *Drum) SetDecay(sec float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.patch.Notes) == 0 {
		return
	}
	base := d.patch.Notes[0].Decay
	for i := range d.patch.Notes {
		v := sec + d.patch.Notes[i].Decay - base
		if v < 0 {
			v = 0
		}
		d.patch.Notes[i].Decay = v
	}
}

// Decays returns the decay time of every note.
func (d *Drum) Decays() []float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]float64, len(d.patch.Notes))
	for i, n := range d.patch.Notes {
		out[i] = n.Decay
	}
	return out
}

// Presses returns how many times Play succeeded.
func (d *Drum) Presses() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.presses
}

func (d *Drum) Active() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := range d.partials {
		if d.partials[i].active {
			return true
		}
	}
	return false
}

// Process renders mono samples into dst, overwriting it.
func (d *Drum) Process(dst []float32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	norm := 1.0
	if len(d.partials) > 0 {
		norm = 1 / float64(len(d.partials))
	}
	for i := range dst {
		bend := d.bend.Sample(d.sampleRate)
		mul := math.Exp2(bend)
		var out float64
		for j := range d.partials {
			pt := &d.partials[j]
			if !pt.active {
				continue
			}
			s := pt.filter.Apply(pt.wave.At(pt.phase))
			out += s * pt.env
			pt.phase += pt.freq * mul / d.sampleRate
			pt.phase -= math.Floor(pt.phase)
			pt.env -= pt.step
			if pt.env <= 0 {
				pt.env = 0
				pt.active = false
			}
		}
		dst[i] = float32(clamp(out*norm, -1, 1))
	}
}

// Close silences the voice; later Play calls fail.
func (d *Drum) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	for i := range d.partials {
		d.partials[i].active = false
	}
	return nil
}
