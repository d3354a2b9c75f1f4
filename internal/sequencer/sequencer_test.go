package sequencer

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/cbegin/drumgrid-go/internal/grid"
)

type recordingDispatcher struct {
	mu    sync.Mutex
	calls []int
}

func (d *recordingDispatcher) Submit(instrument int) {
	d.mu.Lock()
	d.calls = append(d.calls, instrument)
	d.mu.Unlock()
}

func (d *recordingDispatcher) count(instrument int) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, c := range d.calls {
		if c == instrument {
			n++
		}
	}
	return n
}

// fakeClock advances virtual time on every After call and cancels the run
// once the limit is reached.
type fakeClock struct {
	mu    sync.Mutex
	now   time.Time
	limit time.Time
	stop  func()
}

func newFakeClock(limit time.Duration, stop func()) *fakeClock {
	start := time.Unix(0, 0)
	return &fakeClock{now: start, limit: start.Add(limit), stop: stop}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	c.now = c.now.Add(d)
	now := c.now
	reached := !now.Before(c.limit)
	c.mu.Unlock()
	if reached {
		c.stop()
	}
	ch := make(chan time.Time, 1)
	ch <- now
	return ch
}

func (c *fakeClock) elapsed() time.Duration {
	return c.Now().Sub(time.Unix(0, 0))
}

func TestStepIntervalMatchesBPM(t *testing.T) {
	for _, bpm := range []int{1, 7, 60, 97, 120, 240, 313, 1000} {
		d, err := StepInterval(bpm)
		if err != nil {
			t.Fatalf("bpm %d: %v", bpm, err)
		}
		want := 60.0 / float64(bpm)
		if math.Abs(d.Seconds()-want) > 1e-9 {
			t.Fatalf("bpm %d: interval %v, want %fs", bpm, d, want)
		}
	}
	if d, _ := StepInterval(240); d != 250*time.Millisecond {
		t.Fatalf("bpm 240 interval = %v, want 250ms", d)
	}
}

func TestNewRejectsInvalidTempo(t *testing.T) {
	for _, bpm := range []int{0, -1, -240} {
		_, err := New(grid.New(3, 8), &recordingDispatcher{}, bpm)
		if !errors.Is(err, ErrInvalidTempo) {
			t.Fatalf("bpm %d: err = %v, want ErrInvalidTempo", bpm, err)
		}
	}
}

func TestCursorIsPeriodic(t *testing.T) {
	g := grid.New(3, 8)
	seq, err := New(g, &recordingDispatcher{}, 240)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	for cycle := 0; cycle < 3; cycle++ {
		for i := 0; i < 8; i++ {
			if got := seq.Cursor(); got != i {
				t.Fatalf("cycle %d tick %d: cursor = %d", cycle, i, got)
			}
			seq.Tick()
		}
		if seq.Cursor() != 0 {
			t.Fatalf("cursor after %d ticks = %d, want 0", (cycle+1)*8, seq.Cursor())
		}
	}
}

func TestSingleActiveCellFiresOncePerLoop(t *testing.T) {
	g := grid.New(3, 8)
	_ = g.Set(0, 0, true)
	d := &recordingDispatcher{}
	seq, err := New(g, d, 240)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	for loop := 1; loop <= 4; loop++ {
		for i := 0; i < 8; i++ {
			seq.Tick()
		}
		if got := d.count(0); got != loop {
			t.Fatalf("after %d loops: %d plays for instrument 0", loop, got)
		}
	}
	if d.count(1) != 0 || d.count(2) != 0 {
		t.Fatalf("empty rows fired: hat=%d kick=%d", d.count(1), d.count(2))
	}
}

func TestActiveInstrumentsFireOnSameTick(t *testing.T) {
	g := grid.New(3, 8)
	_ = g.Set(0, 4, true)
	_ = g.Set(2, 4, true)
	d := &recordingDispatcher{}
	seq, _ := New(g, d, 120)
	for i := 0; i < 4; i++ {
		seq.Tick()
	}
	if len(d.calls) != 0 {
		t.Fatalf("calls before step 4: %v", d.calls)
	}
	seq.Tick()
	if len(d.calls) != 2 || d.calls[0] != 0 || d.calls[1] != 2 {
		t.Fatalf("step 4 calls = %v, want [0 2]", d.calls)
	}
}

func TestToggleBetweenTicksSeenByNextScan(t *testing.T) {
	g := grid.New(1, 2)
	d := &recordingDispatcher{}
	seq, _ := New(g, d, 120, WithBeforeTick(func() {}))
	seq.Tick() // step 0, empty
	_ = g.Toggle(0, 1)
	seq.Tick() // step 1 sees the toggle
	if d.count(0) != 1 {
		t.Fatalf("plays = %d, want 1", d.count(0))
	}
}

func TestBeforeTickRunsPrecedingScan(t *testing.T) {
	g := grid.New(1, 8)
	d := &recordingDispatcher{}
	seq, _ := New(g, d, 120, WithBeforeTick(func() {
		_ = g.Set(0, 0, true)
	}))
	seq.Tick()
	if d.count(0) != 1 {
		t.Fatalf("edit from hook not observed in the same tick")
	}
}

func TestZeroLengthGridNeverFires(t *testing.T) {
	g := grid.New(3, 0)
	d := &recordingDispatcher{}
	seq, err := New(g, d, 240)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	for i := 0; i < 16; i++ {
		seq.Tick()
	}
	if len(d.calls) != 0 || seq.Cursor() != 0 {
		t.Fatalf("calls=%v cursor=%d", d.calls, seq.Cursor())
	}
}

func TestPlayheadPublishesPlayedStep(t *testing.T) {
	seq, _ := New(grid.New(1, 8), &recordingDispatcher{}, 120)
	seq.Tick()
	seq.Tick()
	select {
	case step := <-seq.Playhead():
		if step != 0 {
			t.Fatalf("first published step = %d, want 0", step)
		}
	default:
		t.Fatal("no playhead update")
	}
}

func TestRunTwoSecondsAt240BPM(t *testing.T) {
	g := grid.New(3, 8)
	d := &recordingDispatcher{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	clk := newFakeClock(2*time.Second, cancel)
	seq, err := New(g, d, 240, WithClock(clk))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if seq.State() != Idle {
		t.Fatalf("state = %v, want idle", seq.State())
	}
	seq.Start(ctx)
	seq.Wait()
	if got := seq.Ticks(); got != 8 {
		t.Fatalf("ticks = %d, want 8", got)
	}
	if seq.Cursor() != 0 {
		t.Fatalf("cursor = %d, want 0", seq.Cursor())
	}
	if clk.elapsed() != 2*time.Second {
		t.Fatalf("elapsed = %v", clk.elapsed())
	}
	if seq.State() != Stopped {
		t.Fatalf("state = %v, want stopped", seq.State())
	}
}

func TestOverrunSkipsAheadWithoutReplay(t *testing.T) {
	g := grid.New(1, 8)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	clk := newFakeClock(1500*time.Millisecond, cancel)
	var times []time.Duration
	seq, err := New(g, &recordingDispatcher{}, 240, WithClock(clk), WithBeforeTick(func() {
		times = append(times, clk.elapsed())
		if len(times) == 2 {
			clk.Advance(600 * time.Millisecond)
		}
	}))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	seq.Start(ctx)
	seq.Wait()

	want := []time.Duration{0, 250 * time.Millisecond, 850 * time.Millisecond, 1100 * time.Millisecond, 1350 * time.Millisecond}
	if len(times) != len(want) {
		t.Fatalf("tick times = %v, want %v", times, want)
	}
	for i := range want {
		if times[i] != want[i] {
			t.Fatalf("tick %d at %v, want %v (all: %v)", i, times[i], want[i], times)
		}
	}
	if seq.Overruns() != 1 {
		t.Fatalf("overruns = %d, want 1", seq.Overruns())
	}
}

func TestStartStopRestart(t *testing.T) {
	seq, _ := New(grid.New(1, 8), &recordingDispatcher{}, 6000)
	seq.Start(context.Background())
	seq.Start(context.Background()) // no-op while running
	if seq.State() != Running {
		t.Fatalf("state = %v, want running", seq.State())
	}
	seq.Stop()
	if seq.State() != Stopped {
		t.Fatalf("state = %v, want stopped", seq.State())
	}
	seq.Start(context.Background())
	if seq.State() != Running {
		t.Fatalf("restart state = %v", seq.State())
	}
	seq.Stop()
	seq.Stop()
}

func TestSetTempo(t *testing.T) {
	seq, _ := New(grid.New(1, 8), &recordingDispatcher{}, 240)
	if err := seq.SetTempo(120); err != nil {
		t.Fatalf("set tempo: %v", err)
	}
	if seq.Interval() != 500*time.Millisecond || seq.Tempo() != 120 {
		t.Fatalf("interval=%v tempo=%d", seq.Interval(), seq.Tempo())
	}
	if err := seq.SetTempo(0); !errors.Is(err, ErrInvalidTempo) {
		t.Fatalf("err = %v, want ErrInvalidTempo", err)
	}
	if seq.Tempo() != 120 {
		t.Fatalf("invalid tempo changed state: %d", seq.Tempo())
	}
}
