package effects

import (
	"math"
	"testing"
)

func TestLowPassPassesDC(t *testing.T) {
	f := NewFilter(LowPass, 24000, 2000)
	var out float64
	for i := 0; i < 2000; i++ {
		out = f.Apply(0.5)
	}
	if math.Abs(out-0.5) > 0.01 {
		t.Errorf("lowpass DC response = %f, want ~0.5", out)
	}
}

func TestHighPassBlocksDC(t *testing.T) {
	f := NewFilter(HighPass, 24000, 9500)
	var out float64
	for i := 0; i < 2000; i++ {
		out = f.Apply(0.5)
	}
	if math.Abs(out) > 0.01 {
		t.Errorf("highpass DC response = %f, want ~0", out)
	}
}

func TestLowPassAttenuatesNyquist(t *testing.T) {
	f := NewFilter(LowPass, 24000, 500)
	var maxOut float64
	for i := 0; i < 2000; i++ {
		x := 1.0
		if i%2 == 1 {
			x = -1
		}
		if v := math.Abs(f.Apply(x)); i > 1000 && v > maxOut {
			maxOut = v
		}
	}
	if maxOut > 0.2 {
		t.Errorf("lowpass left too much at nyquist: %f", maxOut)
	}
}

func TestZeroFilterPassesThrough(t *testing.T) {
	var f Filter
	if v := f.Apply(0.7); v != 0.7 {
		t.Errorf("zero filter = %f, want 0.7", v)
	}
	hp := NewFilter(HighPass, 24000, 0)
	if v := hp.Apply(0.7); v != 0.7 {
		t.Errorf("disabled highpass = %f, want 0.7", v)
	}
	lp := NewFilter(LowPass, 24000, 20000)
	if v := lp.Apply(0.7); v != 0.7 {
		t.Errorf("lowpass above nyquist = %f, want 0.7", v)
	}
}

func TestLimiterHoldsCeiling(t *testing.T) {
	lm := NewLimiter(24000, 0.9, 50)
	for i := 0; i < 100; i++ {
		l, r := lm.Process(2.0, -1.5)
		if abs32(l) > 0.9001 || abs32(r) > 0.9001 {
			t.Fatalf("frame %d exceeds ceiling: l=%f r=%f", i, l, r)
		}
	}
	for i := 0; i < 48000; i++ {
		lm.Process(0.1, 0.1)
	}
	if lm.Gain() < 0.99 {
		t.Errorf("limiter did not recover: gain=%f", lm.Gain())
	}
}

func TestChainAppliesEffectsInOrder(t *testing.T) {
	c := NewChain(NewLimiter(24000, 0.5, 10))
	buf := []float32{1, 1, 0.25, 0.25}
	c.ProcessBuffer(buf)
	if buf[0] > 0.5001 {
		t.Errorf("chain did not limit: %f", buf[0])
	}
	empty := NewChain()
	raw := []float32{1, -1}
	empty.ProcessBuffer(raw)
	if raw[0] != 1 || raw[1] != -1 {
		t.Errorf("empty chain changed samples: %v", raw)
	}
}
