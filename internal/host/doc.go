// Package host bridges a tangram network to the outside world.
//
// An Outputter owns three Holders (pitch, velocity, duration) that pulses fire
// values into, and an emit pulse that packages the held values into an
// ir.Note for a Sink. ControlOutput sends control changes the same way.
// Keyboard exposes the notes currently held on an input device as a chain.
//
// Sinks decide where output goes: a Recorder keeps it in memory, LogSink
// writes it to slog, MIDIWriter renders a standard MIDI file, and Multi fans
// out to several sinks. The store package provides a sink that records a
// performance to SQLite.
package host
