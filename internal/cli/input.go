package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/roach88/tangram/internal/pitch"
)

type inputKind int

const (
	inputSkip inputKind = iota
	inputTrigger
	inputNoteOn
	inputNoteOff
	inputAllOff
	inputQuit
)

// input is one parsed line of performance input.
type input struct {
	kind  inputKind
	value int
}

// parseInput reads one line of performance input:
//
//	42          trigger the root pulse with 42
//	on C4       hold a key on every keyboard chain
//	off 60      release a key
//	off, panic  release every key
//	quit        stop reading
//
// Blank lines and lines starting with # are skipped.
func parseInput(line string) (input, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
		return input{kind: inputSkip}, nil
	}

	switch strings.ToLower(fields[0]) {
	case "quit", "exit":
		return input{kind: inputQuit}, nil
	case "panic":
		return input{kind: inputAllOff}, nil
	case "on", "off":
		if len(fields) == 1 {
			if strings.EqualFold(fields[0], "off") {
				return input{kind: inputAllOff}, nil
			}
			return input{}, fmt.Errorf("on needs a pitch")
		}
		if len(fields) > 2 {
			return input{}, fmt.Errorf("unexpected %q after pitch", strings.Join(fields[2:], " "))
		}
		p, err := pitch.Parse(fields[1])
		if err != nil {
			return input{}, err
		}
		kind := inputNoteOn
		if strings.EqualFold(fields[0], "off") {
			kind = inputNoteOff
		}
		return input{kind: kind, value: p}, nil
	}

	if len(fields) > 1 {
		return input{}, fmt.Errorf("expected one trigger value, got %d fields", len(fields))
	}
	v, err := strconv.Atoi(fields[0])
	if err != nil {
		return input{}, fmt.Errorf("invalid trigger %q", fields[0])
	}
	return input{kind: inputTrigger, value: v}, nil
}

// readLines sends each line of r on the returned channel until EOF, a read
// error or ctx is done. The channel is closed when reading stops.
func readLines(ctx context.Context, r io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	return lines
}
