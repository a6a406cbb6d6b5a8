package store

import (
	"context"
	"fmt"

	"github.com/roach88/tangram/internal/ir"
)

// CreateSession inserts a session and the compiled patch it performs.
// Uses ON CONFLICT(id) DO NOTHING for idempotency - duplicate IDs are silently ignored.
//
// The patch is stored as canonical JSON so a replay runs exactly what was
// recorded, even if the source file has changed since.
func (s *Store) CreateSession(ctx context.Context, sess ir.Session, p *ir.Patch) error {
	patchJSON, err := marshalPatch(p)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sessions
		(id, patch_name, patch_hash, patch_source, patch_ir, seed, engine_version, ir_version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		sess.ID,
		sess.PatchName,
		sess.PatchHash,
		sess.PatchSource,
		patchJSON,
		sess.Seed,
		sess.EngineVersion,
		sess.IRVersion,
	)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}

	return nil
}

// WriteEvent records one trigger and its outcome.
// Uses ON CONFLICT DO NOTHING: a tick is recorded at most once per session.
//
// Note: The session referenced by SessionID must exist (foreign key constraint).
func (s *Store) WriteEvent(ctx context.Context, e ir.Event) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO events (session_id, tick, value, error)
		VALUES (?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`,
		e.SessionID,
		e.Tick,
		e.Value,
		e.Error,
	)
	if err != nil {
		return fmt.Errorf("write event: %w", err)
	}

	return nil
}

// WriteNote records one emitted note and returns its ID.
//
// If n.ID is empty it is computed with ir.NoteID, so writing the same note
// twice (e.g. from a replay into the same session) is a no-op.
// Uses ON CONFLICT DO NOTHING for both the ID and the (session, tick, ordinal) slot.
func (s *Store) WriteNote(ctx context.Context, n ir.Note) (string, error) {
	if n.ID == "" {
		id, err := ir.NoteID(n)
		if err != nil {
			return "", fmt.Errorf("write note: %w", err)
		}
		n.ID = id
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notes
		(id, session_id, tick, ordinal, pitch, velocity, duration)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`,
		n.ID,
		n.SessionID,
		n.Tick,
		n.Ordinal,
		n.Pitch,
		n.Velocity,
		n.Duration,
	)
	if err != nil {
		return "", fmt.Errorf("write note: %w", err)
	}

	return n.ID, nil
}

// WriteControl records one emitted control change.
// Uses ON CONFLICT DO NOTHING for idempotency.
func (s *Store) WriteControl(ctx context.Context, c ir.Control) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO controls (session_id, tick, ordinal, number, value)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`,
		c.SessionID,
		c.Tick,
		c.Ordinal,
		c.Number,
		c.Value,
	)
	if err != nil {
		return fmt.Errorf("write control: %w", err)
	}

	return nil
}

// WriteKey records one key change.
// Uses ON CONFLICT DO NOTHING: a sequence number is recorded at most once per session.
func (s *Store) WriteKey(ctx context.Context, k ir.KeyEvent) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO keys (session_id, seq, tick, kind, pitch)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`,
		k.SessionID,
		k.Seq,
		k.Tick,
		k.Kind,
		k.Pitch,
	)
	if err != nil {
		return fmt.Errorf("write key: %w", err)
	}

	return nil
}
