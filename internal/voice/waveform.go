package voice

import (
	"math"
	"math/rand"
)

const (
	twoPi     = math.Pi * 2
	tableSize = 200
)

// Waveform is one cycle of a periodic wave with samples in [-1, 1].
type Waveform []float64

// At returns the sample at phase [0,1).
func (w Waveform) At(phase float64) float64 {
	if len(w) == 0 {
		return 0
	}
	i := int(phase * float64(len(w)))
	if i >= len(w) {
		i = len(w) - 1
	}
	if i < 0 {
		i = 0
	}
	return w[i]
}

var (
	// Sine starts at zero; SineQuarter starts a quarter cycle later.
	Sine        = sineTable(0)
	SineQuarter = sineTable(math.Pi / 2)
	// Noise is a fixed white-noise cycle so every hit sounds the same.
	Noise = noiseTable(1)
	// NoisySine and NoisySineQuarter blend half-level noise into the sines.
	NoisySine        = blend(Sine, Noise)
	NoisySineQuarter = blend(SineQuarter, Noise)
)

func sineTable(start float64) Waveform {
	w := make(Waveform, tableSize)
	for i := range w {
		w[i] = math.Sin(start + twoPi*float64(i)/tableSize)
	}
	return w
}

func noiseTable(seed int64) Waveform {
	r := rand.New(rand.NewSource(seed))
	w := make(Waveform, tableSize)
	for i := range w {
		w[i] = r.Float64()*2 - 1
	}
	return w
}

func blend(tone, noise Waveform) Waveform {
	w := make(Waveform, len(tone))
	for i := range w {
		w[i] = clamp(tone[i]+noise[i]/2, -1, 1)
	}
	return w
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
