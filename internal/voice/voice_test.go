package voice

import (
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/Southclaws/fault/ftag"
	"gitlab.com/gomidi/midi/v2"
)

func render(d *Drum, n int) []float32 {
	buf := make([]float32, n)
	d.Process(buf)
	return buf
}

func peak(buf []float32) float64 {
	var p float64
	for _, v := range buf {
		if a := math.Abs(float64(v)); a > p {
			p = a
		}
	}
	return p
}

func TestDrumSilentUntilPlayed(t *testing.T) {
	d := NewDrum(24000, KickPatch())
	if d.Active() {
		t.Fatal("new drum should be idle")
	}
	if p := peak(render(d, 512)); p != 0 {
		t.Errorf("idle drum produced %f", p)
	}
}

func TestDrumPlayIsRepeatable(t *testing.T) {
	for _, p := range DefaultKit() {
		d := NewDrum(24000, p)
		if err := d.Play(); err != nil {
			t.Fatalf("%s: play: %v", p.Name, err)
		}
		first := render(d, 1024)
		// render partway through, then retrigger: the hit must restart
		render(d, 300)
		if err := d.Play(); err != nil {
			t.Fatalf("%s: replay: %v", p.Name, err)
		}
		second := render(d, 1024)
		for i := range first {
			if math.Abs(float64(first[i]-second[i])) > 1e-6 {
				t.Fatalf("%s: sample %d differs after retrigger: %f vs %f", p.Name, i, first[i], second[i])
			}
		}
		if peak(first) == 0 {
			t.Errorf("%s: played drum is silent", p.Name)
		}
	}
}

func TestDrumDecaysToSilence(t *testing.T) {
	d := NewDrum(24000, HiHatPatch(HiHatDecay))
	_ = d.Play()
	render(d, 24000)
	if d.Active() {
		t.Error("hi-hat should have decayed within one second")
	}
	if p := peak(render(d, 256)); p != 0 {
		t.Errorf("decayed drum produced %f", p)
	}
}

func TestDrumOutputBounded(t *testing.T) {
	for _, p := range DefaultKit() {
		d := NewDrum(24000, p)
		_ = d.Play()
		if v := peak(render(d, 4096)); v > 1 {
			t.Errorf("%s: peak %f exceeds 1", p.Name, v)
		}
	}
}

func TestFilterFrequencyAppliesToNextPress(t *testing.T) {
	d := NewDrum(24000, SnarePatch())
	_ = d.Play()
	d.SetFilterFrequency(100)
	if got := d.FilterFrequency(); got != 100 {
		t.Fatalf("FilterFrequency = %f, want 100", got)
	}
	d.mu.Lock()
	pressed := d.partials[0].filter.Cutoff()
	d.mu.Unlock()
	if pressed != 9500 {
		t.Errorf("sounding note cutoff = %f, want 9500", pressed)
	}
	_ = d.Play()
	d.mu.Lock()
	pressed = d.partials[0].filter.Cutoff()
	d.mu.Unlock()
	if pressed != 100 {
		t.Errorf("new note cutoff = %f, want 100", pressed)
	}
}

func TestSetDecayKeepsOffsets(t *testing.T) {
	d := NewDrum(24000, HiHatPatch(HiHatDecay))
	d.SetDecay(0.3)
	got := d.Decays()
	want := []float64{0.3, 0.28, 0.3}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-9 {
			t.Errorf("decay[%d] = %f, want %f", i, got[i], want[i])
		}
	}
	d.SetDecay(0.01)
	if got := d.Decays(); got[1] != 0 {
		t.Errorf("negative decay not clamped: %f", got[1])
	}
}

func TestPatchIsCopied(t *testing.T) {
	p := KickPatch()
	d := NewDrum(24000, p)
	d.SetDecay(1)
	if p.Notes[0].Decay == 1 {
		t.Error("SetDecay mutated the caller's patch")
	}
}

func TestClosedDrumFails(t *testing.T) {
	d := NewDrum(24000, KickPatch())
	_ = d.Close()
	err := d.Play()
	if !errors.Is(err, ErrVoiceClosed) {
		t.Fatalf("Play after Close = %v, want ErrVoiceClosed", err)
	}
	if k := ftag.Get(err); k != TriggerFailure {
		t.Errorf("kind = %q, want %q", k, TriggerFailure)
	}
	if d.Presses() != 0 {
		t.Errorf("presses = %d, want 0", d.Presses())
	}
}

func TestConcurrentPlayAndProcess(t *testing.T) {
	d := NewDrum(24000, SnarePatch())
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			_ = d.Play()
		}
	}()
	go func() {
		defer wg.Done()
		buf := make([]float32, 64)
		for i := 0; i < 200; i++ {
			d.Process(buf)
		}
	}()
	wg.Wait()
	if d.Presses() != 200 {
		t.Errorf("presses = %d, want 200", d.Presses())
	}
}

type countingTrigger struct {
	n   int
	err error
}

func (c *countingTrigger) Play() error {
	c.n++
	return c.err
}

func TestLayerPlaysEveryTrigger(t *testing.T) {
	boom := errors.New("boom")
	a := &countingTrigger{err: boom}
	b := &countingTrigger{}
	err := Layer{a, nil, b}.Play()
	if a.n != 1 || b.n != 1 {
		t.Errorf("plays = %d, %d; want 1, 1", a.n, b.n)
	}
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want boom", err)
	}
	if err := (Layer{b}).Play(); err != nil {
		t.Errorf("healthy layer returned %v", err)
	}
}

type midiRecorder struct {
	mu   sync.Mutex
	msgs []midi.Message
	err  error
}

func (r *midiRecorder) send(msg midi.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.msgs = append(r.msgs, msg)
	return nil
}

func (r *midiRecorder) snapshot() []midi.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]midi.Message(nil), r.msgs...)
}

func TestMIDINoteOnThenOff(t *testing.T) {
	rec := &midiRecorder{}
	m := NewMIDI(rec.send, GMChannel, GMKick, 100, 10*time.Millisecond)
	if err := m.Play(); err != nil {
		t.Fatalf("play: %v", err)
	}
	deadline := time.Now().Add(time.Second)
	for len(rec.snapshot()) < 2 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	msgs := rec.snapshot()
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
	var ch, key, vel uint8
	if !msgs[0].GetNoteStart(&ch, &key, &vel) || ch != GMChannel || key != GMKick || vel != 100 {
		t.Errorf("first message = %v", msgs[0])
	}
	if !msgs[1].GetNoteEnd(&ch, &key) || key != GMKick {
		t.Errorf("second message = %v", msgs[1])
	}
}

func TestMIDIRetriggerReleasesFirst(t *testing.T) {
	rec := &midiRecorder{}
	m := NewMIDI(rec.send, GMChannel, GMSnare, 0, time.Hour)
	_ = m.Play()
	_ = m.Play()
	msgs := rec.snapshot()
	if len(msgs) != 3 {
		t.Fatalf("got %d messages, want 3", len(msgs))
	}
	var ch, key uint8
	if !msgs[1].GetNoteEnd(&ch, &key) {
		t.Errorf("retrigger should release the held note first, got %v", msgs[1])
	}
	if err := m.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if got := len(rec.snapshot()); got != 4 {
		t.Errorf("close should send note off, have %d messages", got)
	}
}

func TestMIDISendFailure(t *testing.T) {
	rec := &midiRecorder{err: errors.New("port closed")}
	m := NewMIDI(rec.send, GMChannel, GMHiHat, 100, time.Millisecond)
	err := m.Play()
	if err == nil {
		t.Fatal("expected send error")
	}
	if ftag.Get(err) != TriggerFailure {
		t.Errorf("kind = %q, want %q", ftag.Get(err), TriggerFailure)
	}
}
