package input

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"unicode"
)

// DefaultBuffer is the number of symbols a Source holds before Push starts
// dropping them.
const DefaultBuffer = 64

// Source queues raw symbols from any producer and hands decoded events to
// the sequencer loop without blocking either side.
type Source struct {
	keymap  Keymap
	ch      chan rune
	dropped atomic.Uint64
}

func NewSource(km Keymap, buffer int) *Source {
	if km == nil {
		km = DefaultKeymap()
	}
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Source{keymap: km, ch: make(chan rune, buffer)}
}

func (s *Source) Keymap() Keymap { return s.keymap }

// Push queues sym. It returns false, and counts the symbol as dropped, if
// the buffer is full.
func (s *Source) Push(sym rune) bool {
	select {
	case s.ch <- sym:
		return true
	default:
		s.dropped.Add(1)
		return false
	}
}

// Dropped returns the number of symbols lost to a full buffer.
func (s *Source) Dropped() uint64 { return s.dropped.Load() }

// Pending returns the number of queued symbols.
func (s *Source) Pending() int { return len(s.ch) }

// Poll returns the next mapped event. Unmapped symbols are discarded. When
// nothing is pending it returns immediately with ok false.
func (s *Source) Poll() (Event, bool) {
	for {
		select {
		case sym := <-s.ch:
			ev := s.keymap.Decode(sym)
			if ev.Kind == None {
				continue
			}
			return ev, true
		default:
			return Event{}, false
		}
	}
}

// Drain hands every mapped event queued at the time of the call to fn and
// returns how many it handled. Symbols pushed while draining wait for the
// next call.
func (s *Source) Drain(fn func(Event)) int {
	n := 0
	for pending := len(s.ch); pending > 0; pending-- {
		var sym rune
		select {
		case sym = <-s.ch:
		default:
			return n
		}
		ev := s.keymap.Decode(sym)
		if ev.Kind == None {
			continue
		}
		fn(ev)
		n++
	}
	return n
}

// Feed reads UTF-8 symbols from r and pushes them until r is exhausted or
// ctx is done. Control characters such as newlines are skipped. A blocked
// read only returns when r is closed.
func (s *Source) Feed(ctx context.Context, r io.Reader, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	br := bufio.NewReader(r)
	for ctx.Err() == nil {
		sym, _, err := br.ReadRune()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if unicode.IsControl(sym) {
			continue
		}
		if !s.Push(sym) {
			logger.Debug("input buffer full, symbol dropped", "component", "input", "symbol", string(sym))
		}
	}
	return ctx.Err()
}
