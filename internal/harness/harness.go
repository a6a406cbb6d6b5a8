package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/roach88/tangram/internal/engine"
	"github.com/roach88/tangram/internal/ir"
	"github.com/roach88/tangram/internal/patch"
	"github.com/roach88/tangram/internal/store"
	"github.com/roach88/tangram/internal/testutil"
)

// Harness plays one scenario into a store.
type Harness struct {
	store  *store.Store
	sink   *store.SessionSink
	driver *engine.Driver
	logger *slog.Logger
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
//
// Execution flow:
//  1. Compile the patch file
//  2. Create a session under the scenario's fixed session id
//  3. Build the network with the store as its sink
//  4. Deliver every trigger through a Driver
//  5. Read the performance back and evaluate assertions
func Run(scenario *Scenario) (*Result, error) {
	return RunContext(context.Background(), scenario)
}

// RunContext is Run with a caller-supplied context bounding store access.
func RunContext(ctx context.Context, scenario *Scenario) (*Result, error) {
	src, err := os.ReadFile(scenario.Patch)
	if err != nil {
		return nil, fmt.Errorf("failed to read patch: %w", err)
	}
	p, err := patch.CompileSource(scenario.Patch, src)
	if err != nil {
		return nil, fmt.Errorf("failed to compile patch: %w", err)
	}

	st, err := store.Open(store.MemoryPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	seed := seedOf(scenario, p)

	sess, err := store.NewSession(testutil.NewFixedSessionGenerator(scenario.SessionID), p, string(src), seed)
	if err != nil {
		return nil, err
	}
	if err := st.CreateSession(ctx, sess, p); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	// Suppress logs in tests
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	sink := store.NewSessionSink(ctx, st, sess.ID, logger)
	network, err := patch.Build(p, sink, patch.WithSeed(seed), patch.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to build patch: %w", err)
	}

	h := &Harness{
		store:  st,
		sink:   sink,
		driver: network.Driver(engine.WithLogger(logger), engine.WithEventHook(sink.Hook())),
		logger: logger,
	}

	h.play(scenario.Inputs())
	if n := h.sink.Failed(); n > 0 {
		return nil, fmt.Errorf("failed to record %d events", n)
	}

	result, err := h.collect(ctx, sess.ID)
	if err != nil {
		return nil, err
	}
	result.Seed = seed

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

// play delivers every trigger. Evaluation errors are part of the
// performance: the event hook records them and play moves on.
func (h *Harness) play(values []int) {
	for i, v := range values {
		if err := h.driver.OnEvent(v); err != nil {
			h.logger.Debug("event failed", "index", i, "value", v, "error", err)
		}
	}
}

// collect reads the recorded performance back from the store.
func (h *Harness) collect(ctx context.Context, sessionID string) (*Result, error) {
	result := NewResult()
	result.SessionID = sessionID

	events, err := h.store.ReadEvents(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to read events: %w", err)
	}
	notes, err := h.store.ReadNotes(ctx, sessionID, store.NoteFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to read notes: %w", err)
	}
	controls, err := h.store.ReadControls(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to read controls: %w", err)
	}

	result.Events = append(result.Events, events...)
	result.Notes = append(result.Notes, notes...)
	result.Controls = append(result.Controls, controls...)
	return result, nil
}

// seedOf reports the seed a scenario plays with.
func seedOf(scenario *Scenario, p *ir.Patch) int64 {
	if scenario.Seed != nil {
		return *scenario.Seed
	}
	return p.Seed
}
