package store

import (
	"context"
	"log/slog"
	"sync"

	"github.com/roach88/tangram/internal/engine"
	"github.com/roach88/tangram/internal/host"
	"github.com/roach88/tangram/internal/ir"
)

var _ host.Sink = (*SessionSink)(nil)

// SessionSink records one session's output and triggers into a Store.
//
// It is a host.Sink for the network's notes and control changes, and Hook
// returns an engine.EventHook for the Driver's triggers.
type SessionSink struct {
	ctx       context.Context
	store     *Store
	sessionID string
	logger    *slog.Logger

	mu     sync.Mutex
	failed int
	keySeq int
}

// NewSessionSink creates a SessionSink writing under sessionID.
// ctx bounds every write.
func NewSessionSink(ctx context.Context, s *Store, sessionID string, logger *slog.Logger) *SessionSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionSink{ctx: ctx, store: s, sessionID: sessionID, logger: logger}
}

// SessionID returns the session being recorded.
func (s *SessionSink) SessionID() string {
	return s.sessionID
}

// Note implements host.Sink.
func (s *SessionSink) Note(n ir.Note) error {
	n.SessionID = s.sessionID
	_, err := s.store.WriteNote(s.ctx, n)
	return err
}

// Control implements host.Sink.
func (s *SessionSink) Control(c ir.Control) error {
	c.SessionID = s.sessionID
	return s.store.WriteControl(s.ctx, c)
}

// Hook returns an EventHook recording every trigger with its outcome.
// Write failures are logged and counted, never returned to the Driver.
func (s *SessionSink) Hook() engine.EventHook {
	return func(stamp int64, value int, evalErr error) {
		e := ir.Event{SessionID: s.sessionID, Tick: stamp, Value: value}
		if evalErr != nil {
			e.Error = evalErr.Error()
		}
		if err := s.store.WriteEvent(s.ctx, e); err != nil {
			s.mu.Lock()
			s.failed++
			s.mu.Unlock()
			s.logger.Error("event write failed",
				"session", s.sessionID,
				"tick", stamp,
				"error", err,
			)
		}
	}
}

// Key records a keyboard change, numbering it after the session's previous
// keys. Write failures are logged and counted like trigger writes.
func (s *SessionSink) Key(k ir.KeyEvent) {
	s.mu.Lock()
	s.keySeq++
	k.Seq = s.keySeq
	s.mu.Unlock()

	k.SessionID = s.sessionID
	if err := s.store.WriteKey(s.ctx, k); err != nil {
		s.mu.Lock()
		s.failed++
		s.mu.Unlock()
		s.logger.Error("key write failed",
			"session", s.sessionID,
			"tick", k.Tick,
			"kind", k.Kind,
			"error", err,
		)
	}
}

// Failed returns how many event and key writes have failed.
func (s *SessionSink) Failed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failed
}
