package effects

import "math"

// Limiter is a stereo-linked peak limiter for the master bus. Gain drops
// instantly when a frame exceeds the ceiling and recovers over the release
// time.
type Limiter struct {
	ceiling float32
	release float32 // per-sample recovery coefficient
	gain    float32
}

// NewLimiter creates a limiter. ceiling is a linear peak level (e.g. 0.9).
func NewLimiter(sampleRate int, ceiling float32, releaseMs float64) *Limiter {
	if ceiling <= 0 {
		ceiling = 1
	}
	rel := float32(1)
	if sampleRate > 0 && releaseMs > 0 {
		rel = float32(1.0 - math.Exp(-1.0/(releaseMs*float64(sampleRate)/1000.0)))
	}
	return &Limiter{ceiling: ceiling, release: rel, gain: 1}
}

func (lm *Limiter) Process(l, r float32) (float32, float32) {
	peak := abs32(l)
	if ar := abs32(r); ar > peak {
		peak = ar
	}
	target := float32(1)
	if peak > lm.ceiling {
		target = lm.ceiling / peak
	}
	if target < lm.gain {
		lm.gain = target
	} else {
		lm.gain += lm.release * (target - lm.gain)
	}
	return l * lm.gain, r * lm.gain
}

// Gain returns the gain applied to the last frame.
func (lm *Limiter) Gain() float32 { return lm.gain }

func (lm *Limiter) Reset() { lm.gain = 1 }

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
