package sequencer

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// State is the lifecycle state of a Sequencer.
type State int32

const (
	Idle State = iota
	Running
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Grid is the beat matrix read by the tick loop.
type Grid interface {
	Instruments() int
	Steps() int
	Column(step int, dst []bool) []bool
}

// Dispatcher receives one trigger request per active instrument per tick.
// Submit must not block.
type Dispatcher interface {
	Submit(instrument int)
}

type Option func(*Sequencer)

// WithClock replaces the wall clock, mainly for tests.
func WithClock(c Clock) Option {
	return func(s *Sequencer) { s.clock = c }
}

// WithBeforeTick installs a hook run at the start of every tick on the tick
// goroutine. The session drains pending input here so grid edits and scans
// are serialized.
func WithBeforeTick(fn func()) Option {
	return func(s *Sequencer) { s.beforeTick = fn }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Sequencer) { s.logger = l }
}

// Sequencer steps a cursor across the grid at a fixed tempo and submits a
// trigger for every active cell of the current step.
type Sequencer struct {
	grid       Grid
	dispatch   Dispatcher
	clock      Clock
	beforeTick func()
	logger     *slog.Logger

	bpm      atomic.Int64
	interval atomic.Int64 // time.Duration
	cursor   atomic.Int64
	ticks    atomic.Uint64
	overruns atomic.Uint64

	tickMu sync.Mutex
	column []bool

	mu     sync.Mutex
	state  State
	cancel context.CancelFunc
	done   chan struct{}

	stepCh chan int
}

func New(g Grid, d Dispatcher, bpm int, opts ...Option) (*Sequencer, error) {
	interval, err := StepInterval(bpm)
	if err != nil {
		return nil, err
	}
	s := &Sequencer{
		grid:     g,
		dispatch: d,
		clock:    WallClock(),
		logger:   slog.Default(),
		stepCh:   make(chan int, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.bpm.Store(int64(bpm))
	s.interval.Store(int64(interval))
	return s, nil
}

// SetTempo changes the tempo starting with the next tick.
func (s *Sequencer) SetTempo(bpm int) error {
	interval, err := StepInterval(bpm)
	if err != nil {
		return err
	}
	s.bpm.Store(int64(bpm))
	s.interval.Store(int64(interval))
	return nil
}

func (s *Sequencer) Tempo() int              { return int(s.bpm.Load()) }
func (s *Sequencer) Interval() time.Duration { return time.Duration(s.interval.Load()) }
func (s *Sequencer) Ticks() uint64           { return s.ticks.Load() }
func (s *Sequencer) Overruns() uint64        { return s.overruns.Load() }

// Playhead receives the step just played; a slow reader only misses updates.
func (s *Sequencer) Playhead() <-chan int { return s.stepCh }

// Cursor returns the step the next tick will play.
func (s *Sequencer) Cursor() int { return int(s.cursor.Load()) }

func (s *Sequencer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Tick plays one step: it runs the before-tick hook, scans the cursor column,
// submits a trigger per active instrument and advances the cursor.
func (s *Sequencer) Tick() {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()

	if s.beforeTick != nil {
		s.beforeTick()
	}
	s.ticks.Add(1)
	steps := s.grid.Steps()
	if steps <= 0 {
		return
	}
	step := int(s.cursor.Load())
	if step >= steps {
		step = 0
	}
	s.column = s.grid.Column(step, s.column)
	for inst, on := range s.column {
		if on {
			s.dispatch.Submit(inst)
		}
	}
	select {
	case s.stepCh <- step:
	default:
	}
	s.cursor.Store(int64((step + 1) % steps))
}

// Start resets the cursor and begins ticking on a new goroutine. It is a
// no-op while already running.
func (s *Sequencer) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Running {
		return
	}
	s.cursor.Store(0)
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done
	s.state = Running
	go s.run(ctx, done)
}

// Stop halts ticking and waits for the loop to exit.
func (s *Sequencer) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Wait blocks until the loop exits, either from Stop or from cancellation of
// the context given to Start. It returns immediately when never started.
func (s *Sequencer) Wait() {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done != nil {
		<-done
	}
}

func (s *Sequencer) run(ctx context.Context, done chan struct{}) {
	defer func() {
		s.mu.Lock()
		if s.done == done {
			s.cancel()
			s.cancel = nil
			s.state = Stopped
		}
		s.mu.Unlock()
		close(done)
	}()

	next := s.clock.Now()
	for ctx.Err() == nil {
		s.Tick()
		next = next.Add(s.Interval())
		now := s.clock.Now()
		wait := next.Sub(now)
		if wait <= 0 {
			// Overran the step: play the next one now and do not replay the
			// steps that were missed.
			if wait < 0 {
				s.overruns.Add(1)
				s.logger.Debug("tick overran", "component", "sequencer", "late", -wait)
			}
			next = now
			continue
		}
		select {
		case <-ctx.Done():
			return
		case <-s.clock.After(wait):
		}
	}
}
