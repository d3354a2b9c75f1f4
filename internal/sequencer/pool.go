package sequencer

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Trigger starts one instrument's sound. Play must return quickly.
type Trigger interface {
	Play() error
}

// PoolStats counts what a Pool has done since it was created.
type PoolStats struct {
	Plays      uint64
	Failures   uint64
	Superseded uint64
}

// Pool runs one worker per instrument. Each worker has a single-slot mailbox,
// so at most one trigger per instrument is pending; a trigger submitted while
// another is still pending is folded into it.
type Pool struct {
	triggers []Trigger
	slots    []chan struct{}
	quit     chan struct{}
	wg       sync.WaitGroup
	once     sync.Once
	logger   *slog.Logger

	plays      atomic.Uint64
	failures   atomic.Uint64
	superseded atomic.Uint64
}

func NewPool(logger *slog.Logger, triggers ...Trigger) *Pool {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Pool{
		triggers: triggers,
		slots:    make([]chan struct{}, len(triggers)),
		quit:     make(chan struct{}),
		logger:   logger,
	}
	for i := range p.slots {
		p.slots[i] = make(chan struct{}, 1)
		p.wg.Add(1)
		go p.worker(i)
	}
	return p
}

// Submit queues a trigger for instrument without blocking.
func (p *Pool) Submit(instrument int) {
	if instrument < 0 || instrument >= len(p.slots) {
		return
	}
	select {
	case p.slots[instrument] <- struct{}{}:
	default:
		p.superseded.Add(1)
	}
}

func (p *Pool) worker(instrument int) {
	defer p.wg.Done()
	for {
		select {
		case <-p.quit:
			return
		case <-p.slots[instrument]:
			p.play(instrument)
		}
	}
}

func (p *Pool) play(instrument int) {
	defer func() {
		if r := recover(); r != nil {
			p.failures.Add(1)
			p.logger.Error("voice trigger panicked", "component", "dispatch", "instrument", instrument, "err", fmt.Sprint(r))
		}
	}()
	p.plays.Add(1)
	if err := p.triggers[instrument].Play(); err != nil {
		p.failures.Add(1)
		p.logger.Warn("voice trigger failed", "component", "dispatch", "instrument", instrument, "err", err)
	}
}

func (p *Pool) Stats() PoolStats {
	return PoolStats{
		Plays:      p.plays.Load(),
		Failures:   p.failures.Load(),
		Superseded: p.superseded.Load(),
	}
}

// Close stops the workers and waits for in-flight triggers. Pending triggers
// are dropped.
func (p *Pool) Close() {
	p.once.Do(func() {
		close(p.quit)
		p.wg.Wait()
	})
}
