package host

import (
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"sync"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/roach88/tangram/internal/ir"
)

// MIDI file defaults: 960 ticks per quarter note at 120 BPM, one logical
// tick per sixteenth note.
const (
	DefaultResolution = 960
	DefaultBPM        = 120.0
	DefaultStepTicks  = DefaultResolution / 4
)

// MIDIWriter is a Sink that renders a performance as a standard MIDI file.
//
// Logical ticks are laid out on a fixed grid of StepTicks MIDI ticks per
// tick. Note durations are milliseconds at the writer's tempo. Values are
// clamped into the MIDI range 0..127.
//
// Thread-safety: Note and Control are safe for concurrent use.
type MIDIWriter struct {
	mu        sync.Mutex
	channel   uint8
	bpm       float64
	stepTicks uint32
	events    []midiEvent
	seq       int
}

type midiEvent struct {
	at  uint32
	off bool // note-offs sort before note-ons at the same time
	seq int
	msg midi.Message
}

// MIDIOption configures a MIDIWriter.
type MIDIOption func(*MIDIWriter)

// WithChannel sets the MIDI channel (0..15). Default: 0.
func WithChannel(ch uint8) MIDIOption {
	return func(w *MIDIWriter) {
		w.channel = ch & 0x0f
	}
}

// WithTempo sets the tempo used to convert durations. Default: 120 BPM.
// A tempo that is not positive keeps the default.
func WithTempo(bpm float64) MIDIOption {
	return func(w *MIDIWriter) {
		if bpm > 0 && !math.IsInf(bpm, 1) {
			w.bpm = bpm
		}
	}
}

// WithStepTicks sets the MIDI ticks per logical tick. Default: a sixteenth.
func WithStepTicks(n uint32) MIDIOption {
	return func(w *MIDIWriter) {
		w.stepTicks = n
	}
}

// NewMIDIWriter creates an empty MIDIWriter.
func NewMIDIWriter(opts ...MIDIOption) *MIDIWriter {
	w := &MIDIWriter{
		bpm:       DefaultBPM,
		stepTicks: DefaultStepTicks,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Note implements Sink.
func (w *MIDIWriter) Note(n ir.Note) error {
	if n.Tick < 0 {
		return fmt.Errorf("note at negative tick %d", n.Tick)
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	start, err := w.position(n.Tick)
	if err != nil {
		return fmt.Errorf("note: %w", err)
	}
	end := uint64(start) + w.durationTicks(n.Duration)
	if end > math.MaxUint32 {
		return fmt.Errorf("note at tick %d ends past the end of a MIDI file", n.Tick)
	}
	key, vel := clamp7(n.Pitch), clamp7(n.Velocity)
	w.add(start, false, midi.NoteOn(w.channel, key, vel))
	w.add(uint32(end), true, midi.NoteOff(w.channel, key))
	return nil
}

// Control implements Sink.
func (w *MIDIWriter) Control(c ir.Control) error {
	if c.Tick < 0 {
		return fmt.Errorf("control at negative tick %d", c.Tick)
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	at, err := w.position(c.Tick)
	if err != nil {
		return fmt.Errorf("control: %w", err)
	}
	w.add(at, false, midi.ControlChange(w.channel, clamp7(c.Number), clamp7(c.Value)))
	return nil
}

// position returns the MIDI time of a logical tick.
func (w *MIDIWriter) position(tick int64) (uint32, error) {
	at := uint64(tick) * uint64(w.stepTicks)
	if (w.stepTicks != 0 && at/uint64(w.stepTicks) != uint64(tick)) || at > math.MaxUint32 {
		return 0, fmt.Errorf("tick %d is past the end of a MIDI file", tick)
	}
	return uint32(at), nil
}

// Len returns the number of MIDI messages collected.
func (w *MIDIWriter) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.events)
}

// SMF builds a single-track standard MIDI file from the collected output.
func (w *MIDIWriter) SMF() (*smf.SMF, error) {
	w.mu.Lock()
	events := make([]midiEvent, len(w.events))
	copy(events, w.events)
	w.mu.Unlock()

	sort.SliceStable(events, func(i, j int) bool {
		if events[i].at != events[j].at {
			return events[i].at < events[j].at
		}
		if events[i].off != events[j].off {
			return events[i].off
		}
		return events[i].seq < events[j].seq
	})

	var track smf.Track
	track.Add(0, smf.MetaTempo(w.bpm))
	var last uint32
	for _, ev := range events {
		track.Add(ev.at-last, ev.msg)
		last = ev.at
	}
	track.Close(0)

	s := smf.New()
	s.TimeFormat = smf.MetricTicks(DefaultResolution)
	if err := s.Add(track); err != nil {
		return nil, fmt.Errorf("add track: %w", err)
	}
	return s, nil
}

// WriteTo writes the MIDI file to out.
func (w *MIDIWriter) WriteTo(out io.Writer) (int64, error) {
	s, err := w.SMF()
	if err != nil {
		return 0, err
	}
	return s.WriteTo(out)
}

// WriteFile writes the MIDI file to path.
func (w *MIDIWriter) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create midi file: %w", err)
	}
	if _, err := w.WriteTo(f); err != nil {
		f.Close()
		return fmt.Errorf("write midi file: %w", err)
	}
	return f.Close()
}

func (w *MIDIWriter) add(at uint32, off bool, msg midi.Message) {
	w.events = append(w.events, midiEvent{at: at, off: off, seq: w.seq, msg: msg})
	w.seq++
}

// durationTicks converts milliseconds to MIDI ticks at the writer's tempo.
// Every note lasts at least one tick.
func (w *MIDIWriter) durationTicks(ms int) uint64 {
	quarterMS := 60000.0 / w.bpm
	ticks := float64(max(ms, 0)) / quarterMS * DefaultResolution
	if ticks > math.MaxUint32 {
		return math.MaxUint32
	}
	return max(uint64(ticks), 1)
}

func clamp7(v int) uint8 {
	return uint8(min(max(v, 0), 127))
}
