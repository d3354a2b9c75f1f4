package drumgrid

import (
	"encoding/binary"
	"math"

	"github.com/cbegin/drumgrid-go/internal/grid"
	"github.com/cbegin/drumgrid-go/internal/mixer"
	"github.com/cbegin/drumgrid-go/internal/sequencer"
	"github.com/cbegin/drumgrid-go/internal/voice"
)

// RenderOptions controls RenderPattern. Zero fields take the machine
// defaults, except Volume where zero is silence.
type RenderOptions struct {
	BPM        int
	SampleRate int
	Loops      int
	Volume     float64
	HiHatDecay float64
}

func (o RenderOptions) withDefaults() RenderOptions {
	if o.BPM == 0 {
		o.BPM = 240
	}
	if o.SampleRate <= 0 {
		o.SampleRate = 24000
	}
	if o.Loops <= 0 {
		o.Loops = 1
	}
	return o
}

// syncDispatcher plays triggers inline so that offline hits land on the
// exact sample of their step.
type syncDispatcher []voice.Trigger

func (d syncDispatcher) Submit(instrument int) {
	if instrument >= 0 && instrument < len(d) {
		_ = d[instrument].Play()
	}
}

// RenderPattern plays s for o.Loops passes through the grid and returns
// interleaved stereo samples. Time advances by samples rather than the wall
// clock, so the output is identical on every run.
func RenderPattern(s grid.Snapshot, o RenderOptions) ([]float32, error) {
	o = o.withDefaults()
	interval, err := sequencer.StepInterval(o.BPM)
	if err != nil {
		return nil, err
	}
	g := grid.New(s.Instruments(), s.Steps())
	if err := g.Load(s); err != nil {
		return nil, err
	}

	kit := voice.Kit(o.HiHatDecay)
	channels := make([]mixer.Channel, g.Instruments())
	triggers := make(syncDispatcher, g.Instruments())
	for i := range triggers {
		d := voice.NewDrum(o.SampleRate, kit[i%len(kit)])
		channels[i] = d
		triggers[i] = d
	}
	bus := mixer.New(o.SampleRate, o.Volume, channels...)
	seq, err := sequencer.New(g, triggers, o.BPM)
	if err != nil {
		return nil, err
	}

	ticks := o.Loops * g.Steps()
	stepFrames := interval.Seconds() * float64(o.SampleRate)
	total := int(math.Round(float64(ticks) * stepFrames))
	out := make([]float32, total*2)
	pos := 0
	for tick := 1; tick <= ticks; tick++ {
		seq.Tick()
		end := int(math.Round(float64(tick) * stepFrames))
		bus.Process(out[pos*2 : end*2])
		pos = end
	}
	return out, nil
}

func EncodeWAVFloat32LE(samples []float32, sampleRate int, channels int) []byte {
	dataSize := len(samples) * 4
	byteRate := sampleRate * channels * 4
	blockAlign := channels * 4
	chunkSize := 36 + dataSize
	out := make([]byte, 44+dataSize)
	copy(out[0:], []byte("RIFF"))
	binary.LittleEndian.PutUint32(out[4:], uint32(chunkSize))
	copy(out[8:], []byte("WAVE"))
	copy(out[12:], []byte("fmt "))
	binary.LittleEndian.PutUint32(out[16:], 16)
	binary.LittleEndian.PutUint16(out[20:], 3)
	binary.LittleEndian.PutUint16(out[22:], uint16(channels))
	binary.LittleEndian.PutUint32(out[24:], uint32(sampleRate))
	binary.LittleEndian.PutUint32(out[28:], uint32(byteRate))
	binary.LittleEndian.PutUint16(out[32:], uint16(blockAlign))
	binary.LittleEndian.PutUint16(out[34:], 32)
	copy(out[36:], []byte("data"))
	binary.LittleEndian.PutUint32(out[40:], uint32(dataSize))
	for i, s := range samples {
		binary.LittleEndian.PutUint32(out[44+i*4:], math.Float32bits(s))
	}
	return out
}
