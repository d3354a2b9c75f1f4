package drumgrid

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"

	"github.com/cbegin/drumgrid-go/internal/audio"
	"github.com/cbegin/drumgrid-go/internal/config"
	"github.com/cbegin/drumgrid-go/internal/grid"
	"github.com/cbegin/drumgrid-go/internal/input"
	"github.com/cbegin/drumgrid-go/internal/mixer"
	"github.com/cbegin/drumgrid-go/internal/pattern"
	"github.com/cbegin/drumgrid-go/internal/sequencer"
	"github.com/cbegin/drumgrid-go/internal/voice"
)

// Output is a running audio device.
type Output interface {
	Play()
	Pause()
	Close() error
}

// OutputFactory opens an Output that pulls samples from source.
type OutputFactory func(sampleRate, bufferFrames int, source audio.SampleSource) (Output, error)

// DeviceOutput opens the default audio device.
func DeviceOutput(sampleRate, bufferFrames int, source audio.SampleSource) (Output, error) {
	return audio.NewOutput(sampleRate, bufferFrames, source)
}

type Option func(*sessionConfig)

type sessionConfig struct {
	logger *slog.Logger
	clock  sequencer.Clock
	output OutputFactory
	keymap input.Keymap
	buffer int
	layers map[int][]voice.Trigger
	tap    func([]float32)
}

func defaultSessionConfig() sessionConfig {
	return sessionConfig{
		logger: slog.Default(),
		clock:  sequencer.WallClock(),
		output: DeviceOutput,
		buffer: input.DefaultBuffer,
		layers: make(map[int][]voice.Trigger),
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(cfg *sessionConfig) {
		if l != nil {
			cfg.logger = l
		}
	}
}

// WithClock replaces the wall clock driving the tick loop.
func WithClock(c sequencer.Clock) Option {
	return func(cfg *sessionConfig) { cfg.clock = c }
}

// WithOutput selects the audio device. A nil factory runs the session
// without sound.
func WithOutput(f OutputFactory) Option {
	return func(cfg *sessionConfig) { cfg.output = f }
}

func WithKeymap(km input.Keymap) Option {
	return func(cfg *sessionConfig) { cfg.keymap = km }
}

// WithInputBuffer sets how many unread symbols the input source holds.
func WithInputBuffer(n int) Option {
	return func(cfg *sessionConfig) { cfg.buffer = n }
}

// WithLayer plays t together with the built-in voice of row, e.g. a MIDI
// note on an external drum module.
func WithLayer(row int, t voice.Trigger) Option {
	return func(cfg *sessionConfig) {
		cfg.layers[row] = append(cfg.layers[row], t)
	}
}

// WithSampleTap installs a callback invoked with each generated stereo buffer.
// The callback runs on the audio thread; keep work brief and non-blocking.
func WithSampleTap(tap func([]float32)) Option {
	return func(cfg *sessionConfig) { cfg.tap = tap }
}

// Session owns one drum machine: the beat grid, a voice per row, the mix
// bus, the trigger pool, the sequencer and the input source.
type Session struct {
	cfg        config.Config
	logger     *slog.Logger
	grid       *grid.Grid
	drums      []*voice.Drum
	triggers   []voice.Trigger
	bus        *mixer.Bus
	pool       *sequencer.Pool
	seq        *sequencer.Sequencer
	input      *input.Source
	openOutput OutputFactory
	tap        func([]float32)

	mu      sync.Mutex
	output  Output
	updates chan struct{}
	closed  chan struct{}
	once    sync.Once
}

// NewSession builds a stopped session from cfg.
func NewSession(cfg *config.Config, opts ...Option) (*Session, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	sc := defaultSessionConfig()
	for _, opt := range opts {
		opt(&sc)
	}
	if sc.keymap == nil {
		sc.keymap = input.DefaultKeymap()
	}

	s := &Session{
		cfg:        *cfg,
		logger:     sc.logger,
		grid:       grid.New(cfg.Instruments, cfg.Steps),
		input:      input.NewSource(sc.keymap, sc.buffer),
		openOutput: sc.output,
		tap:        sc.tap,
		updates:    make(chan struct{}, 1),
		closed:     make(chan struct{}),
	}

	kit := voice.Kit(cfg.HiHatDecay)
	channels := make([]mixer.Channel, cfg.Instruments)
	poolTriggers := make([]sequencer.Trigger, cfg.Instruments)
	for i := 0; i < cfg.Instruments; i++ {
		d := voice.NewDrum(cfg.SampleRate, kit[i%len(kit)])
		s.drums = append(s.drums, d)
		channels[i] = d
		var t voice.Trigger = d
		if extra := sc.layers[i]; len(extra) > 0 {
			t = append(voice.Layer{d}, extra...)
		}
		s.triggers = append(s.triggers, t)
		poolTriggers[i] = t
	}
	s.bus = mixer.New(cfg.SampleRate, cfg.MixVolume, channels...)
	s.pool = sequencer.NewPool(s.logger, poolTriggers...)

	seq, err := sequencer.New(s.grid, s.pool, cfg.BPM,
		sequencer.WithClock(sc.clock),
		sequencer.WithBeforeTick(s.drainInput),
		sequencer.WithLogger(s.logger),
	)
	if err != nil {
		s.pool.Close()
		return nil, err
	}
	s.seq = seq
	go s.forwardPlayhead()
	return s, nil
}

func (s *Session) forwardPlayhead() {
	for {
		select {
		case <-s.closed:
			return
		case <-s.seq.Playhead():
			s.notify()
		}
	}
}

// HandleSymbol queues one raw input symbol. While the sequencer is not
// running the symbol is applied at once, since no tick will drain it.
func (s *Session) HandleSymbol(sym rune) bool {
	if !s.input.Push(sym) {
		return false
	}
	if s.seq.State() != sequencer.Running {
		s.drainInput()
	}
	return true
}

// drainInput runs at the start of every tick so edits and scans never
// interleave.
func (s *Session) drainInput() {
	if n := s.input.Drain(s.apply); n > 0 {
		s.notify()
	}
}

func (s *Session) apply(ev input.Event) {
	switch ev.Kind {
	case input.Toggle:
		if err := s.grid.Toggle(ev.Instrument, ev.Step); err != nil {
			s.logger.Debug("toggle ignored", "component", "session", "instrument", ev.Instrument, "step", ev.Step, "err", err)
		}
	case input.Volume:
		level := s.bus.AdjustVolume(ev.Delta)
		s.logger.Debug("volume", "component", "session", "level", level)
	}
}

func (s *Session) notify() {
	select {
	case s.updates <- struct{}{}:
	default:
	}
}

// Updates receives a value whenever the grid, the level or the playhead
// changed. Updates coalesce; a reader should redraw everything.
func (s *Session) Updates() <-chan struct{} { return s.updates }

// Start opens the audio output and begins playback from step 0. Starting a
// running session does nothing.
func (s *Session) Start(ctx context.Context) error {
	select {
	case <-s.closed:
		return fault.Wrap(ErrSessionClosed, fmsg.With("start"))
	default:
	}
	if s.seq.State() == sequencer.Running {
		return nil
	}
	s.mu.Lock()
	if s.output == nil && s.openOutput != nil {
		out, err := s.openOutput(s.cfg.SampleRate, s.cfg.BufferSize, s)
		if err != nil {
			s.mu.Unlock()
			return fault.Wrap(err, fmsg.With("open audio output"))
		}
		s.output = out
	}
	if s.output != nil {
		s.output.Play()
	}
	s.mu.Unlock()
	s.seq.Start(ctx)
	s.logger.Info("playback started", "component", "session", "bpm", s.seq.Tempo(), "steps", s.grid.Steps())
	s.notify()
	return nil
}

// Stop halts the sequencer and releases the audio output.
func (s *Session) Stop() error {
	s.seq.Stop()
	s.mu.Lock()
	out := s.output
	s.output = nil
	s.mu.Unlock()
	s.notify()
	if out == nil {
		return nil
	}
	s.logger.Info("playback stopped", "component", "session", "ticks", s.seq.Ticks())
	return out.Close()
}

// Wait blocks until the sequencer loop exits.
func (s *Session) Wait() { s.seq.Wait() }

var ErrSessionClosed = errors.New("session closed")

// Close stops playback and shuts down voices and trigger workers.
func (s *Session) Close() error {
	var errs []error
	s.once.Do(func() {
		if err := s.Stop(); err != nil {
			errs = append(errs, err)
		}
		close(s.closed)
		s.pool.Close()
		for _, t := range s.triggers {
			if c, ok := t.(io.Closer); ok {
				if err := c.Close(); err != nil {
					errs = append(errs, err)
				}
			}
			if l, ok := t.(voice.Layer); ok {
				for _, lt := range l {
					if c, ok := lt.(io.Closer); ok {
						if err := c.Close(); err != nil {
							errs = append(errs, err)
						}
					}
				}
			}
		}
	})
	return errors.Join(errs...)
}

// Toggle flips one cell. Out-of-range coordinates leave the grid unchanged
// and return an error matching grid.ErrOutOfRange.
func (s *Session) Toggle(instrument, step int) error {
	if err := s.grid.Toggle(instrument, step); err != nil {
		return err
	}
	s.notify()
	return nil
}

// AdjustVolume changes the shared level and returns the clamped result.
func (s *Session) AdjustVolume(delta float64) float64 {
	v := s.bus.AdjustVolume(delta)
	s.notify()
	return v
}

func (s *Session) Volume() float64 { return s.bus.Volume() }

// SetVolume sets the shared level, clamped to [0,1].
func (s *Session) SetVolume(v float64) float64 {
	v = s.bus.SetVolume(v)
	s.notify()
	return v
}

func (s *Session) SetTempo(bpm int) error {
	if err := s.seq.SetTempo(bpm); err != nil {
		return err
	}
	s.notify()
	return nil
}

func (s *Session) Tempo() int                 { return s.seq.Tempo() }
func (s *Session) Cursor() int                { return s.seq.Cursor() }
func (s *Session) State() sequencer.State     { return s.seq.State() }
func (s *Session) Snapshot() grid.Snapshot    { return s.grid.Snapshot() }
func (s *Session) Input() *input.Source       { return s.input }
func (s *Session) Stats() sequencer.PoolStats { return s.pool.Stats() }
func (s *Session) Instruments() int           { return s.grid.Instruments() }
func (s *Session) Steps() int                 { return s.grid.Steps() }
func (s *Session) SampleRate() int            { return s.cfg.SampleRate }
func (s *Session) Bus() *mixer.Bus            { return s.bus }

// Sequencer exposes the tick loop, mainly for offline rendering and tests.
func (s *Session) Sequencer() *sequencer.Sequencer { return s.seq }

// Process renders the mix for the audio output.
func (s *Session) Process(dst []float32) {
	s.bus.Process(dst)
	if s.tap != nil {
		s.tap(dst)
	}
}

// Voice returns the built-in drum of row i, or nil.
func (s *Session) Voice(i int) *voice.Drum {
	if i < 0 || i >= len(s.drums) {
		return nil
	}
	return s.drums[i]
}

// Names returns the voice names in row order.
func (s *Session) Names() []string {
	names := make([]string, len(s.drums))
	for i, d := range s.drums {
		names[i] = d.Name()
	}
	return names
}

// LoadPattern replaces the grid with the pattern and adopts its tempo when
// it has one.
func (s *Session) LoadPattern(f *pattern.File) error {
	if err := f.Apply(s.grid); err != nil {
		return err
	}
	if f.BPM > 0 {
		if err := s.seq.SetTempo(f.BPM); err != nil {
			return err
		}
	}
	s.notify()
	return nil
}

// Pattern captures the current grid and tempo.
func (s *Session) Pattern(name string) *pattern.File {
	return pattern.New(name, s.seq.Tempo(), s.grid.Snapshot())
}

// Render plays the current grid offline for the given number of loops.
func (s *Session) Render(loops int) ([]float32, error) {
	return RenderPattern(s.grid.Snapshot(), RenderOptions{
		BPM:        s.seq.Tempo(),
		SampleRate: s.cfg.SampleRate,
		Loops:      loops,
		Volume:     s.bus.Volume(),
		HiHatDecay: s.cfg.HiHatDecay,
	})
}
