package effects

import "math"

type FilterKind int

const (
	LowPass FilterKind = iota
	HighPass
)

func (k FilterKind) String() string {
	if k == HighPass {
		return "highpass"
	}
	return "lowpass"
}

// Filter is a mono one-pole filter. The zero value passes audio through.
type Filter struct {
	kind   FilterKind
	cutoff float64
	alpha  float64
	lp     float64
}

// NewFilter builds a filter at cutoff Hz. A cutoff at or above Nyquist
// disables low-pass filtering; a non-positive cutoff disables high-pass.
func NewFilter(kind FilterKind, sampleRate int, cutoff float64) Filter {
	f := Filter{kind: kind, cutoff: cutoff}
	nyquist := float64(sampleRate) / 2
	switch {
	case sampleRate <= 0, cutoff <= 0:
		f.alpha = 1
		if kind == HighPass {
			f.alpha = 0
		}
	case cutoff >= nyquist:
		f.alpha = 1
	default:
		rc := 1.0 / (2 * math.Pi * cutoff)
		dt := 1.0 / float64(sampleRate)
		f.alpha = dt / (rc + dt)
	}
	return f
}

func (f *Filter) Kind() FilterKind { return f.kind }
func (f *Filter) Cutoff() float64  { return f.cutoff }

// Apply filters one sample.
func (f *Filter) Apply(x float64) float64 {
	if f.alpha == 0 && f.kind == LowPass {
		return x
	}
	f.lp += f.alpha * (x - f.lp)
	if f.kind == HighPass {
		return x - f.lp
	}
	return f.lp
}

func (f *Filter) Reset() { f.lp = 0 }
