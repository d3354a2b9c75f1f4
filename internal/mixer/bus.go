package mixer

import (
	"math"
	"sync"
	"sync/atomic"

	"github.com/cbegin/drumgrid-go/internal/effects"
)

// VolumeStep is the change applied by one volume key press.
const VolumeStep = 0.05

// Channel renders mono samples for one voice.
type Channel interface {
	Process(dst []float32)
}

// Bus mixes voice channels to stereo. Every channel plays at the same level;
// the level can be changed from any goroutine while the audio thread reads it.
type Bus struct {
	level atomic.Uint64 // math.Float64bits of the level in [0,1]

	mu       sync.Mutex
	channels []Channel
	scratch  []float32
	master   *effects.Chain
}

// New creates a bus at the given level. The master chain ends with a limiter
// so that summed voices do not clip.
func New(sampleRate int, level float64, channels ...Channel) *Bus {
	b := &Bus{
		channels: channels,
		master:   effects.NewChain(effects.NewLimiter(sampleRate, 0.98, 80)),
	}
	b.level.Store(math.Float64bits(clamp01(level)))
	return b
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// AdjustVolume adds delta to the level, clamps it to [0,1] and returns the
// new level.
func (b *Bus) AdjustVolume(delta float64) float64 {
	for {
		old := b.level.Load()
		next := clamp01(math.Float64frombits(old) + delta)
		if b.level.CompareAndSwap(old, math.Float64bits(next)) {
			return next
		}
	}
}

// SetVolume sets the level, clamped to [0,1], and returns it.
func (b *Bus) SetVolume(v float64) float64 {
	v = clamp01(v)
	b.level.Store(math.Float64bits(v))
	return v
}

func (b *Bus) Volume() float64 { return math.Float64frombits(b.level.Load()) }

// ChannelLevel returns the gain applied to channel i, or 0 if there is no
// such channel.
func (b *Bus) ChannelLevel(i int) float64 {
	b.mu.Lock()
	n := len(b.channels)
	b.mu.Unlock()
	if i < 0 || i >= n {
		return 0
	}
	return b.Volume()
}

func (b *Bus) Channels() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.channels)
}

// AddEffect appends an effect to the master chain before samples reach the
// output.
func (b *Bus) AddEffect(e effects.Effector) {
	b.mu.Lock()
	b.master.Add(e)
	b.mu.Unlock()
}

// Process fills dst with interleaved stereo frames.
func (b *Bus) Process(dst []float32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range dst {
		dst[i] = 0
	}
	frames := len(dst) / 2
	if cap(b.scratch) < frames {
		b.scratch = make([]float32, frames)
	}
	mono := b.scratch[:frames]
	gain := float32(b.Volume())
	for _, ch := range b.channels {
		ch.Process(mono)
		for f, s := range mono {
			v := s * gain
			dst[2*f] += v
			dst[2*f+1] += v
		}
	}
	b.master.ProcessBuffer(dst)
	for i, v := range dst {
		if v > 1 {
			dst[i] = 1
		} else if v < -1 {
			dst[i] = -1
		}
	}
}
