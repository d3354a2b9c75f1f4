package input

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/Southclaws/fault/ftag"
	"gitlab.com/gomidi/midi/v2"
)

func TestDefaultKeymap(t *testing.T) {
	km := DefaultKeymap()
	cases := []struct {
		sym  rune
		want Event
	}{
		{'e', Event{Kind: Toggle, Symbol: 'e', Instrument: 0, Step: 0}},
		{'p', Event{Kind: Toggle, Symbol: 'p', Instrument: 0, Step: 7}},
		{'s', Event{Kind: Toggle, Symbol: 's', Instrument: 1, Step: 0}},
		{'h', Event{Kind: Toggle, Symbol: 'h', Instrument: 1, Step: 4}},
		{'z', Event{Kind: Toggle, Symbol: 'z', Instrument: 2, Step: 0}},
		{',', Event{Kind: Toggle, Symbol: ',', Instrument: 2, Step: 7}},
		{';', Event{Kind: Volume, Symbol: ';', Delta: VolumeStep}},
		{'.', Event{Kind: Volume, Symbol: '.', Delta: -VolumeStep}},
		{'q', Event{Kind: None, Symbol: 'q'}},
		{'E', Event{Kind: None, Symbol: 'E'}},
	}
	for _, tc := range cases {
		if got := km.Decode(tc.sym); got != tc.want {
			t.Errorf("Decode(%q) = %+v, want %+v", tc.sym, got, tc.want)
		}
	}
	if len(km) != 26 {
		t.Errorf("keymap has %d entries, want 26", len(km))
	}
	if r, ok := km.Symbol(2, 3); !ok || r != 'v' {
		t.Errorf("Symbol(2,3) = %q, %v; want 'v'", r, ok)
	}
	if _, ok := km.Symbol(3, 0); ok {
		t.Error("Symbol(3,0) should not exist")
	}
}

func TestNewKeymapRejectsDuplicates(t *testing.T) {
	_, err := NewKeymap([]string{"abc", "cde"}, '+', '-')
	if !errors.Is(err, ErrKeymap) {
		t.Fatalf("err = %v, want ErrKeymap", err)
	}
	if ftag.Get(err) != ftag.InvalidArgument {
		t.Errorf("kind = %q", ftag.Get(err))
	}
	if _, err := NewKeymap([]string{"ab"}, 'a', '-'); err == nil {
		t.Error("volume key colliding with a step key should fail")
	}
}

func TestPollNonBlocking(t *testing.T) {
	s := NewSource(nil, 4)
	if _, ok := s.Poll(); ok {
		t.Fatal("empty source returned an event")
	}
	s.Push('q')
	s.Push('r')
	ev, ok := s.Poll()
	if !ok || ev.Kind != Toggle || ev.Instrument != 0 || ev.Step != 1 {
		t.Fatalf("Poll = %+v, %v", ev, ok)
	}
	if _, ok := s.Poll(); ok {
		t.Error("source should be empty")
	}
}

func TestPushDropsWhenFull(t *testing.T) {
	s := NewSource(nil, 2)
	if !s.Push('e') || !s.Push('r') {
		t.Fatal("push into empty buffer failed")
	}
	if s.Push('t') {
		t.Error("push into full buffer succeeded")
	}
	if s.Dropped() != 1 {
		t.Errorf("dropped = %d, want 1", s.Dropped())
	}
}

func TestDrainHandlesEveryPendingSymbol(t *testing.T) {
	s := NewSource(nil, 16)
	for _, r := range "e?s;z" {
		s.Push(r)
	}
	var got []Event
	n := s.Drain(func(ev Event) { got = append(got, ev) })
	if n != 4 || len(got) != 4 {
		t.Fatalf("drained %d events (%d collected), want 4", n, len(got))
	}
	if got[2].Kind != Volume || got[2].Delta != VolumeStep {
		t.Errorf("third event = %+v, want volume up", got[2])
	}
	if s.Pending() != 0 {
		t.Errorf("pending = %d after drain", s.Pending())
	}
	if n := s.Drain(func(Event) {}); n != 0 {
		t.Errorf("second drain = %d, want 0", n)
	}
}

func TestDrainLeavesSymbolsPushedDuringDrain(t *testing.T) {
	s := NewSource(nil, 16)
	s.Push('e')
	n := s.Drain(func(Event) { s.Push('r') })
	if n != 1 {
		t.Errorf("drained %d, want 1", n)
	}
	if s.Pending() != 1 {
		t.Errorf("pending = %d, want 1", s.Pending())
	}
}

func TestFeedPushesSymbols(t *testing.T) {
	s := NewSource(nil, 16)
	if err := s.Feed(context.Background(), strings.NewReader("er\nz;\r\n"), nil); err != nil {
		t.Fatalf("feed: %v", err)
	}
	if s.Pending() != 4 {
		t.Fatalf("pending = %d, want 4", s.Pending())
	}
	var syms []rune
	s.Drain(func(ev Event) { syms = append(syms, ev.Symbol) })
	if string(syms) != "erz;" {
		t.Errorf("symbols = %q", string(syms))
	}
}

func TestFeedStopsOnCancel(t *testing.T) {
	s := NewSource(nil, 16)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Feed(ctx, strings.NewReader("er"), nil); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if s.Pending() != 0 {
		t.Errorf("pending = %d, want 0", s.Pending())
	}
}

func TestOpenSerialMissingDevice(t *testing.T) {
	if _, err := OpenSerial("/dev/drumgrid-no-such-port", 0); err == nil {
		t.Error("opening a missing device should fail")
	}
}

func TestPadHandlerMapsNotes(t *testing.T) {
	s := NewSource(nil, 16)
	h := PadHandler(s, DefaultPadBase, 8)
	h(midi.NoteOn(9, 36, 100), 0)  // row 0 step 0 -> 'e'
	h(midi.NoteOn(9, 45, 100), 0)  // row 1 step 1 -> 'd'
	h(midi.NoteOn(9, 36, 0), 0)    // velocity 0 is a release
	h(midi.NoteOff(9, 36), 0)      // release
	h(midi.NoteOn(9, 20, 100), 0)  // below the pads
	h(midi.NoteOn(9, 100, 100), 0) // beyond the grid
	var syms []rune
	s.Drain(func(ev Event) { syms = append(syms, ev.Symbol) })
	if string(syms) != "ed" {
		t.Errorf("symbols = %q, want %q", string(syms), "ed")
	}
}
