package voice

import (
	"fmt"
	"sync"
	"time"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	"gitlab.com/gomidi/midi/v2"
)

// General MIDI percussion on channel 10 (index 9).
const (
	GMChannel uint8 = 9
	GMKick    uint8 = 36
	GMSnare   uint8 = 38
	GMHiHat   uint8 = 42
)

// DefaultMIDINotes returns GM notes in grid row order: snare, hi-hat, kick.
func DefaultMIDINotes() []uint8 {
	return []uint8{GMSnare, GMHiHat, GMKick}
}

// Sender writes one MIDI message, e.g. the func returned by midi.SendTo.
type Sender func(msg midi.Message) error

// MIDI triggers a note on an external MIDI instrument. The note is released
// after the gate time; a retrigger releases the previous note first.
type MIDI struct {
	send     Sender
	channel  uint8
	note     uint8
	velocity uint8
	gate     time.Duration

	mu  sync.Mutex
	off *time.Timer
}

func NewMIDI(send Sender, channel, note, velocity uint8, gate time.Duration) *MIDI {
	if velocity == 0 || velocity > 127 {
		velocity = 100
	}
	if gate <= 0 {
		gate = 50 * time.Millisecond
	}
	return &MIDI{send: send, channel: channel, note: note, velocity: velocity, gate: gate}
}

func (m *MIDI) Play() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.off != nil && m.off.Stop() {
		_ = m.send(midi.NoteOff(m.channel, m.note))
	}
	if err := m.send(midi.NoteOn(m.channel, m.note, m.velocity)); err != nil {
		return fault.Wrap(err,
			fmsg.With(fmt.Sprintf("midi note %d on channel %d", m.note, m.channel+1)),
			ftag.With(TriggerFailure),
		)
	}
	m.off = time.AfterFunc(m.gate, m.release)
	return nil
}

func (m *MIDI) release() {
	m.mu.Lock()
	defer m.mu.Unlock()
	_ = m.send(midi.NoteOff(m.channel, m.note))
}

// Close releases a sounding note.
func (m *MIDI) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.off != nil && m.off.Stop() {
		m.off = nil
		return m.send(midi.NoteOff(m.channel, m.note))
	}
	return nil
}
