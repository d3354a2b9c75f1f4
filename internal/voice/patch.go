package voice

import "github.com/cbegin/drumgrid-go/internal/effects"

// Note is one partial of a drum chord. The amplitude envelope jumps to full
// level and decays linearly to silence over Decay seconds.
type Note struct {
	Freq  float64
	Decay float64
	Wave  Waveform
}

// Bend is the one-shot pitch sweep applied to every note of a patch, in
// octaves: Offset + Depth*ramp, where ramp runs from +1 to -1 at RateHz.
type Bend struct {
	Depth  float64
	Offset float64
	RateHz float64
}

// Patch describes a percussion sound.
type Patch struct {
	Name   string
	Notes  []Note
	Filter effects.FilterKind
	Cutoff float64
	Bend   Bend
}

// HiHatDecay is the default hi-hat decay in seconds.
const HiHatDecay = 0.115

func drumBend() Bend {
	return Bend{Depth: 0.3, Offset: 0.33, RateHz: 20}
}

func KickPatch() Patch {
	return Patch{
		Name: "kick",
		Notes: []Note{
			{Freq: 53, Decay: 0.075, Wave: SineQuarter},
			{Freq: 72, Decay: 0.055, Wave: Sine},
			{Freq: 41, Decay: 0.095, Wave: SineQuarter},
		},
		Filter: effects.LowPass,
		Cutoff: 2000,
		Bend:   drumBend(),
	}
}

func SnarePatch() Patch {
	return Patch{
		Name: "snare",
		Notes: []Note{
			{Freq: 90, Decay: 0.115, Wave: NoisySine},
			{Freq: 135, Decay: 0.095, Wave: NoisySineQuarter},
			{Freq: 165, Decay: 0.115, Wave: NoisySineQuarter},
		},
		Filter: effects.LowPass,
		Cutoff: 9500,
		Bend:   drumBend(),
	}
}

// HiHatPatch builds the hi-hat with the given decay; the middle partial is
// 20ms shorter.
func HiHatPatch(decay float64) Patch {
	return Patch{
		Name: "hihat",
		Notes: []Note{
			{Freq: 90, Decay: decay, Wave: Noise},
			{Freq: 135, Decay: decay - 0.02, Wave: Noise},
			{Freq: 165, Decay: decay, Wave: Noise},
		},
		Filter: effects.HighPass,
		Cutoff: 9500,
		Bend:   drumBend(),
	}
}

// DefaultKit returns the patches in grid row order: snare, hi-hat, kick.
func DefaultKit() []Patch { return Kit(HiHatDecay) }

// Kit is DefaultKit with a custom hi-hat decay; a non-positive decay keeps
// the default.
func Kit(hihatDecay float64) []Patch {
	if hihatDecay <= 0 {
		hihatDecay = HiHatDecay
	}
	return []Patch{SnarePatch(), HiHatPatch(hihatDecay), KickPatch()}
}
