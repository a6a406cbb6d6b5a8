package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/tangram/internal/engine"
	"github.com/roach88/tangram/internal/host"
	"github.com/roach88/tangram/internal/ir"
	"github.com/roach88/tangram/internal/metrics"
	"github.com/roach88/tangram/internal/patch"
	"github.com/roach88/tangram/internal/pitch"
	"github.com/roach88/tangram/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database string
	Seed     int64
	Count    int
	Modulo   int
	MIDI     string
	Tempo    float64
	Metrics  string
	Watch    bool
	Debounce time.Duration

	// SessionGenerator allows overriding session IDs (for testing).
	// If nil, defaults to store.UUIDv7Generator.
	SessionGenerator store.SessionIDGenerator

	seedSet bool
}

// RunSummary describes a finished performance.
type RunSummary struct {
	Patch    string   `json:"patch"`
	Seed     int64    `json:"seed"`
	Sessions []string `json:"sessions,omitempty"`
	Events   int      `json:"events"`
	Failed   int      `json:"failed"`
	Notes    int      `json:"notes"`
	Controls int      `json:"controls"`
	Reloads  int      `json:"reloads,omitempty"`
	LastTick int64    `json:"last_tick"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <patch>",
		Short: "Play a patch",
		Long: `Play a patch, one tick per trigger.

Triggers are read from stdin, one per line. A line holds an integer trigger
value, "on <pitch>" or "off <pitch>" to hold or release a key on every
keyboard chain, "off" or "panic" to release all keys, or "quit". With
--count the patch is driven by a counter instead and stdin is ignored.

With --db the performance is recorded as a session that replay and trace can
read. With --watch the patch file is reloaded whenever it changes; the tick
keeps counting and each reload records a new session.

Example:
  tangram run @tangram --count 128 --modulo 32
  tangram run --db ./tangram.db --midi out.mid ./patches/arp.cue < triggers.txt
  tangram run --watch ./patches/live.cue`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.seedSet = cmd.Flags().Changed("seed")
			return runPatch(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "record the performance to this SQLite database")
	cmd.Flags().Int64Var(&opts.Seed, "seed", 0, "random seed (default: the patch's seed)")
	cmd.Flags().IntVar(&opts.Count, "count", 0, "drive the patch with a counter for this many ticks")
	cmd.Flags().IntVar(&opts.Modulo, "modulo", 0, "wrap counter values at this modulus")
	cmd.Flags().StringVar(&opts.MIDI, "midi", "", "write the notes to this Standard MIDI File")
	cmd.Flags().Float64Var(&opts.Tempo, "tempo", 120, "tempo of the MIDI file in BPM")
	cmd.Flags().StringVar(&opts.Metrics, "metrics", "", "write Prometheus metrics to this file when done")
	cmd.Flags().BoolVar(&opts.Watch, "watch", false, "reload the patch when its files change")
	cmd.Flags().DurationVar(&opts.Debounce, "debounce", patch.DefaultDebounce, "wait this long for more changes before reloading")

	return cmd
}

func runPatch(opts *RunOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())

	if opts.Count < 0 {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, "--count must not be negative")
	}
	if opts.Modulo < 0 {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, "--modulo must not be negative")
	}
	if opts.Tempo <= 0 {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, "--tempo must be positive")
	}
	if opts.Watch && opts.Count > 0 {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, "--watch reads triggers from stdin and cannot be combined with --count")
	}
	if opts.Watch && path == BuiltinTangram {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, "the built-in patch cannot be watched")
	}

	lr, err := LoadPatch(path)
	if err != nil {
		code, msg := loadErrorParts(err)
		return formatter.Fail(ExitCommandError, code, msg)
	}

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, stopping", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	perf := &performance{
		opts:    opts,
		ctx:     ctx,
		logger:  logger,
		printer: &notePrinter{w: cmd.OutOrStdout(), text: opts.Format != "json"},
		clock:   engine.NewClock(),
		stages:  make(map[*engine.Context]*stage),
	}

	if opts.Database != "" {
		st, err := store.Open(opts.Database)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeStore, fmt.Sprintf("opening database: %v", err))
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				logger.Error("error closing database", "error", closeErr)
			}
		}()
		perf.store = st
	}
	if opts.Metrics != "" {
		c, err := metrics.NewCollector()
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeGeneric, fmt.Sprintf("creating metrics: %v", err))
		}
		perf.metrics = c
	}
	if opts.MIDI != "" {
		perf.midi = host.NewMIDIWriter(host.WithTempo(opts.Tempo))
	}

	st, err := perf.build(lr)
	if err != nil {
		var verrs patch.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			first := verrs[0]
			return formatter.Fail(ExitFailure, first.Code, fmt.Sprintf("%s: %s", first.Field, first.Message))
		}
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, err.Error())
	}
	perf.activate(st)
	n := st.network

	var d *engine.Driver
	d = n.Driver(
		engine.WithLogger(logger),
		engine.WithEventHook(func(stamp int64, value int, err error) {
			perf.record(d.Context(), stamp, value, err)
		}),
	)

	logger.Debug("performance starting", "patch", lr.Patch.Name, "path", path)
	switch {
	case opts.Count > 0:
		perf.count(d)
	case opts.Watch:
		if err := perf.watch(d, path, cmd.InOrStdin()); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeGeneric, err.Error())
		}
	default:
		perf.play(d, cmd.InOrStdin())
	}

	if err := perf.finish(); err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeWriteFailed, err.Error())
	}
	return outputRunSummary(formatter, perf.summarize())
}

// performance is one run of a patch, possibly across several reloads.
//
// Output sinks and the clock outlive any single network. Each network gets
// its own stage, looked up by Context because Rewire swaps networks inside
// the Driver.
type performance struct {
	opts    *RunOptions
	ctx     context.Context
	logger  *slog.Logger
	store   *store.Store
	metrics *metrics.Collector
	midi    *host.MIDIWriter
	printer *notePrinter
	clock   *engine.Clock

	mu      sync.Mutex
	stages  map[*engine.Context]*stage
	summary RunSummary
}

// stage is one network of a performance and where it records.
type stage struct {
	network *patch.Network
	seed    int64
	hook    engine.EventHook
	session *store.SessionSink
}

// build instantiates lr, recording into a new session if a store is open.
// The stage does not count towards the summary until it is activated.
func (p *performance) build(lr *LoadResult) (*stage, error) {
	seed := lr.Patch.Seed
	if p.opts.seedSet {
		seed = p.opts.Seed
	}

	sinks := []host.Sink{p.printer}
	if p.midi != nil {
		sinks = append(sinks, p.midi)
	}
	var hook engine.EventHook
	var ss *store.SessionSink

	if p.store != nil {
		gen := p.opts.SessionGenerator
		if gen == nil {
			gen = store.UUIDv7Generator{}
		}
		sess, err := store.NewSession(gen, lr.Patch, string(lr.Source), seed)
		if err != nil {
			return nil, err
		}
		if errs := patch.Validate(lr.Patch); len(errs) > 0 {
			return nil, patch.ValidationErrors(errs)
		}
		if err := p.store.CreateSession(p.ctx, sess, lr.Patch); err != nil {
			return nil, fmt.Errorf("recording session: %w", err)
		}
		ss = store.NewSessionSink(p.ctx, p.store, sess.ID, p.logger)
		sinks = append([]host.Sink{ss}, sinks...)
		hook = ss.Hook()
	}

	sink := host.Multi(sinks...)
	ctxOpts := []engine.ContextOption{engine.WithClock(p.clock)}
	if p.metrics != nil {
		sink = p.metrics.Sink(sink)
		hook = p.metrics.Hook(hook)
		ctxOpts = append(ctxOpts, engine.WithObserver(p.metrics))
	}

	n, err := patch.Build(lr.Patch, sink,
		patch.WithSeed(seed),
		patch.WithLogger(p.logger),
		patch.WithContextOptions(ctxOpts...),
	)
	if err != nil {
		return nil, err
	}

	st := &stage{network: n, seed: seed, hook: hook, session: ss}
	p.mu.Lock()
	p.stages[n.Context()] = st
	p.mu.Unlock()
	return st, nil
}

// activate makes st the network the summary describes.
func (p *performance) activate(st *stage) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.summary.Patch = st.network.Patch().Name
	p.summary.Seed = st.seed
	if st.session != nil {
		p.summary.Sessions = append(p.summary.Sessions, st.session.SessionID())
	}
}

// stage returns the stage built for ctx, or nil.
func (p *performance) stage(ctx *engine.Context) *stage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stages[ctx]
}

// record is the Driver's event hook. It runs on the goroutine delivering
// events, so the stage for ctx is never replaced while it runs.
func (p *performance) record(ctx *engine.Context, stamp int64, value int, err error) {
	var hook engine.EventHook
	p.mu.Lock()
	if st := p.stages[ctx]; st != nil {
		hook = st.hook
	}
	p.summary.Events++
	if err != nil {
		p.summary.Failed++
	}
	p.summary.LastTick = stamp
	p.mu.Unlock()

	if hook != nil {
		hook(stamp, value, err)
	}
}

// count drives d with counter values until the count is reached or the
// run is cancelled.
func (p *performance) count(d *engine.Driver) {
	for i := 0; i < p.opts.Count; i++ {
		if p.ctx.Err() != nil {
			return
		}
		v := i
		if p.opts.Modulo > 0 {
			v %= p.opts.Modulo
		}
		if err := d.OnEvent(v); err != nil {
			p.logger.Warn("event failed", "tick", d.Context().Stamp(), "value", v, "error", err)
		}
	}
}

// play delivers stdin input to d synchronously until EOF or quit.
func (p *performance) play(d *engine.Driver, r io.Reader) {
	p.readInput(r,
		func(v int) {
			if err := d.OnEvent(v); err != nil {
				p.logger.Warn("event failed", "tick", d.Context().Stamp(), "value", v, "error", err)
			}
		},
		func(in input) { p.press(d.Context(), in) },
	)
}

// watch runs d on its own goroutine, reloading the patch at path whenever
// it changes, while stdin input is enqueued.
func (p *performance) watch(d *engine.Driver, path string, r io.Reader) error {
	w, err := patch.NewWatcher(path, func() { p.reload(d, path) },
		patch.WithDebounce(p.opts.Debounce),
		patch.WithWatchLogger(p.logger),
	)
	if err != nil {
		return err
	}
	defer w.Stop()
	go w.Run(p.ctx)

	done := make(chan error, 1)
	go func() { done <- d.Run(p.ctx) }()

	p.logger.Info("watching for changes", "path", path)
	p.readInput(r,
		func(v int) { d.Enqueue(v) },
		func(in input) { d.Submit(func(ctx *engine.Context) { p.press(ctx, in) }) },
	)

	d.Stop()
	if err := <-done; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// reload recompiles the patch and swaps it into d. A patch that fails to
// load or validate is logged and the current network keeps playing.
//
// The new network takes over on the Driver's goroutine, between triggers.
// Keys held on the old network are pressed again on the new one.
func (p *performance) reload(d *engine.Driver, path string) {
	lr, err := LoadPatch(path)
	if err != nil {
		p.logger.Error("reload failed", "path", path, "error", err)
		return
	}
	st, err := p.build(lr)
	if err != nil {
		p.logger.Error("reload failed", "path", path, "error", err)
		return
	}

	next := st.network.Context()
	swapped := d.RewireThen(next, st.network.Root(), func(prev *engine.Context) {
		old := p.stage(prev)
		p.mu.Lock()
		delete(p.stages, prev)
		p.summary.Reloads++
		p.mu.Unlock()
		p.activate(st)

		if old != nil && len(st.network.Keyboards()) > 0 {
			for _, k := range held(old.network) {
				p.press(next, input{kind: inputNoteOn, value: k})
			}
		}
		p.logger.Info("patch reloaded", "patch", lr.Patch.Name, "chains", len(lr.Patch.Chains), "pulses", len(lr.Patch.Pulses))
	})
	if !swapped {
		p.mu.Lock()
		delete(p.stages, next)
		p.mu.Unlock()
	}
}

// held returns the pitches held on n's first keyboard. Every keyboard of a
// network receives the same keys.
func held(n *patch.Network) []int {
	keyboards := n.Keyboards()
	if len(keyboards) == 0 {
		return nil
	}
	return keyboards[0].Held()
}

// readInput applies stdin lines until EOF, quit or cancellation. Triggers
// go to trigger and key changes to key.
func (p *performance) readInput(r io.Reader, trigger func(int), key func(input)) {
	lines := readLines(p.ctx, r)
	lineNo := 0
	for {
		var line string
		var ok bool
		select {
		case <-p.ctx.Done():
			return
		case line, ok = <-lines:
			if !ok {
				return
			}
		}
		lineNo++

		in, err := parseInput(line)
		if err != nil {
			p.logger.Warn("ignoring input", "line", lineNo, "error", err)
			continue
		}
		switch in.kind {
		case inputQuit:
			return
		case inputTrigger:
			trigger(in.value)
		case inputNoteOn, inputNoteOff, inputAllOff:
			key(in)
		}
	}
}

// press applies a key change to every keyboard of the network running on
// ctx and records it against the next tick. It must run on the goroutine
// delivering ctx's triggers.
func (p *performance) press(ctx *engine.Context, in input) {
	st := p.stage(ctx)
	if st == nil || len(st.network.Keyboards()) == 0 {
		p.logger.Warn("patch has no keyboard chain")
		return
	}

	k := ir.KeyEvent{Tick: ctx.Stamp() + 1, Pitch: in.value}
	switch in.kind {
	case inputNoteOn:
		k.Kind = ir.KeyOn
	case inputNoteOff:
		k.Kind = ir.KeyOff
	default:
		k.Kind = ir.KeyAllOff
		k.Pitch = 0
	}

	for _, kbd := range st.network.Keyboards() {
		if err := kbd.Apply(k); err != nil {
			p.logger.Warn("ignoring key", "kind", k.Kind, "error", err)
			return
		}
	}
	if st.session != nil {
		st.session.Key(k)
	}
}

// finish writes the MIDI file and metrics, if requested.
func (p *performance) finish() error {
	if p.midi != nil {
		if err := p.midi.WriteFile(p.opts.MIDI); err != nil {
			return err
		}
		p.logger.Info("wrote MIDI file", "path", p.opts.MIDI, "events", p.midi.Len())
	}
	if p.metrics != nil {
		if err := p.metrics.WriteTextfile(p.opts.Metrics); err != nil {
			return err
		}
		p.logger.Debug("wrote metrics", "path", p.opts.Metrics)
	}
	return nil
}

func (p *performance) summarize() RunSummary {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := p.summary
	s.Notes, s.Controls = p.printer.counts()
	return s
}

func outputRunSummary(f *OutputFormatter, s RunSummary) error {
	if f.Format == "json" {
		resp := CLIResponse{Status: "ok", Data: s}
		if len(s.Sessions) > 0 {
			resp.Session = s.Sessions[len(s.Sessions)-1]
		}
		return f.EncodeIndented(resp)
	}

	fmt.Fprintf(f.Writer, "✓ %s: %d events, %d notes, %d controls", s.Patch, s.Events, s.Notes, s.Controls)
	if s.Failed > 0 {
		fmt.Fprintf(f.Writer, ", %d failed", s.Failed)
	}
	fmt.Fprintln(f.Writer)
	if s.Reloads > 0 {
		fmt.Fprintf(f.Writer, "  reloads: %d\n", s.Reloads)
	}
	for _, id := range s.Sessions {
		fmt.Fprintf(f.Writer, "  session: %s\n", id)
	}
	return nil
}

// notePrinter is the Sink printing every note and control change as it is
// emitted. In JSON mode it only counts.
type notePrinter struct {
	w    io.Writer
	text bool

	mu       sync.Mutex
	notes    int
	controls int
}

func (np *notePrinter) Note(n ir.Note) error {
	np.mu.Lock()
	defer np.mu.Unlock()
	np.notes++
	if np.text {
		fmt.Fprintf(np.w, "%6d.%d  %-4s %3d  vel %3d  dur %d\n",
			n.Tick, n.Ordinal, pitch.Name(n.Pitch), n.Pitch, n.Velocity, n.Duration)
	}
	return nil
}

func (np *notePrinter) Control(c ir.Control) error {
	np.mu.Lock()
	defer np.mu.Unlock()
	np.controls++
	if np.text {
		fmt.Fprintf(np.w, "%6d.%d  cc %-3d = %d\n", c.Tick, c.Ordinal, c.Number, c.Value)
	}
	return nil
}

func (np *notePrinter) counts() (notes, controls int) {
	np.mu.Lock()
	defer np.mu.Unlock()
	return np.notes, np.controls
}
