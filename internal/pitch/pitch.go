// Package pitch holds musical constants for building patches: scale interval
// tables, pitch classes and MIDI octave numbers.
package pitch

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/tangram/internal/ir"
)

// Scale interval tables in semitones, indexed from 1 (the tonic).
// Index 0 is a rest so a scale degree can index the table directly.
var (
	Major = ir.Seq{ir.Rest, ir.Val(0), ir.Val(2), ir.Val(4), ir.Val(5), ir.Val(7), ir.Val(9), ir.Val(11), ir.Val(12)}
	Minor = ir.Seq{ir.Rest, ir.Val(0), ir.Val(2), ir.Val(3), ir.Val(5), ir.Val(7), ir.Val(8), ir.Val(10), ir.Val(12)}
)

// Pitch classes, 0 through 11, with enharmonic aliases.
const (
	C  = 0
	Cs = 1
	Db = 1
	D  = 2
	Ds = 3
	Eb = 3
	E  = 4
	F  = 5
	Fs = 6
	Gb = 6
	G  = 7
	Gs = 8
	Ab = 8
	A  = 9
	As = 10
	Bb = 10
	B  = 11
)

var noteNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

var classes = map[string]int{
	"C": C, "C#": Cs, "DB": Db,
	"D": D, "D#": Ds, "EB": Eb,
	"E": E,
	"F": F, "F#": Fs, "GB": Gb,
	"G": G, "G#": Gs, "AB": Ab,
	"A": A, "A#": As, "BB": Bb,
	"B": B,
}

// Octave returns the MIDI note number of C in octave i (Octave(3) == 60).
func Octave(i int) int {
	return (i + 2) * 12
}

// Name renders a MIDI note number in scientific notation, e.g. 60 is "C4".
func Name(p int) string {
	if p < 0 {
		return fmt.Sprintf("?%d", p)
	}
	return fmt.Sprintf("%s%d", noteNames[p%12], p/12-1)
}

// Parse reads a note name such as "C4", "f#3" or "Bb-1" as a MIDI note number.
// A bare number is accepted as-is.
func Parse(name string) (int, error) {
	if n, err := strconv.Atoi(name); err == nil {
		return n, nil
	}

	upper := strings.ToUpper(strings.TrimSpace(name))
	split := 1
	if len(upper) > 1 && (upper[1] == '#' || upper[1] == 'B') {
		split = 2
	}
	if len(upper) <= split {
		return 0, fmt.Errorf("invalid note name %q", name)
	}

	class, ok := classes[upper[:split]]
	if !ok {
		return 0, fmt.Errorf("invalid note name %q", name)
	}
	octave, err := strconv.Atoi(upper[split:])
	if err != nil {
		return 0, fmt.Errorf("invalid octave in note name %q", name)
	}
	return (octave+1)*12 + class, nil
}
