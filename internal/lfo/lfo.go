package lfo

import "math"

// Waveform shapes.
const (
	WaveSaw      = 0 // ramps from +1 down to -1
	WaveSquare   = 1
	WaveTriangle = 2
	WaveRandom   = 3
)

// LFO is a low-frequency oscillator producing one modulation value per
// sample: offset + depth*wave. A one-shot LFO runs a single cycle after
// Retrigger and then holds its final value.
type LFO struct {
	depth    float64
	offset   float64
	rateHz   float64
	waveform int
	once     bool
	phase    float64 // [0, 1)
	done     bool
	randVal  float64
}

// Set configures depth, rate and waveform. Unknown waveforms fall back to
// triangle.
func (l *LFO) Set(depth, rateHz float64, waveform int) {
	l.depth = depth
	l.rateHz = rateHz
	if waveform < 0 || waveform > 3 {
		waveform = WaveTriangle
	}
	l.waveform = waveform
}

// SetOffset shifts the output by a constant.
func (l *LFO) SetOffset(offset float64) { l.offset = offset }

// SetOnce selects one-shot mode.
func (l *LFO) SetOnce(once bool) { l.once = once }

// Sample returns the current value and advances by one sample.
func (l *LFO) Sample(sampleRate float64) float64 {
	if l.depth == 0 || l.rateHz == 0 || sampleRate == 0 {
		return l.offset
	}
	if l.done {
		return l.offset + l.depth*l.wave(1)
	}

	v := l.offset + l.depth*l.wave(l.phase)

	oldPhase := l.phase
	l.phase += l.rateHz / sampleRate
	if l.phase >= 1.0 {
		if l.once {
			l.phase = 1
			l.done = true
			return v
		}
		l.phase -= math.Floor(l.phase)
	}
	if l.waveform == WaveRandom && l.phase < oldPhase {
		l.randVal = math.Sin(l.phase*12345.6789+l.randVal*67890.1234) * 2.0
		l.randVal -= math.Floor(l.randVal)
		l.randVal = l.randVal*2.0 - 1.0
	}
	return v
}

func (l *LFO) wave(phase float64) float64 {
	switch l.waveform {
	case WaveSaw:
		return 1.0 - 2.0*phase
	case WaveSquare:
		if phase < 0.5 {
			return 1.0
		}
		return -1.0
	case WaveRandom:
		return l.randVal
	default:
		if phase < 0.5 {
			return 4.0*phase - 1.0
		}
		return 3.0 - 4.0*phase
	}
}

// Active returns true if the LFO has non-zero depth and rate.
func (l *LFO) Active() bool {
	return l.depth != 0 && l.rateHz != 0
}

// Done reports whether a one-shot cycle has completed.
func (l *LFO) Done() bool { return l.done }

// Retrigger restarts the cycle from phase 0.
func (l *LFO) Retrigger() {
	l.phase = 0
	l.done = false
	l.randVal = 0
}
