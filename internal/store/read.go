package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/tangram/internal/ir"
)

const sessionColumns = `id, patch_name, patch_hash, patch_source, seed, engine_version, ir_version`

// GetSession retrieves a single session by ID.
// Returns an error wrapping sql.ErrNoRows if not found.
func (s *Store) GetSession(ctx context.Context, id string) (ir.Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+sessionColumns+`
		FROM sessions
		WHERE id = ?
	`, id)

	var sess ir.Session
	if err := row.Scan(
		&sess.ID, &sess.PatchName, &sess.PatchHash, &sess.PatchSource,
		&sess.Seed, &sess.EngineVersion, &sess.IRVersion,
	); err != nil {
		return ir.Session{}, fmt.Errorf("get session %s: %w", id, err)
	}
	return sess, nil
}

// ReadPatch returns the compiled patch a session performed.
// Returns an error wrapping sql.ErrNoRows if the session does not exist.
func (s *Store) ReadPatch(ctx context.Context, sessionID string) (*ir.Patch, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `
		SELECT patch_ir FROM sessions WHERE id = ?
	`, sessionID).Scan(&data)
	if err != nil {
		return nil, fmt.Errorf("read patch %s: %w", sessionID, err)
	}
	return unmarshalPatch(data)
}

// ListSessions returns all sessions in the order they were created.
// Returns an empty slice (not nil) if there are none.
func (s *Store) ListSessions(ctx context.Context) ([]ir.Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+sessionColumns+`
		FROM sessions
		ORDER BY seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	sessions := []ir.Session{}
	for rows.Next() {
		var sess ir.Session
		if err := rows.Scan(
			&sess.ID, &sess.PatchName, &sess.PatchHash, &sess.PatchSource,
			&sess.Seed, &sess.EngineVersion, &sess.IRVersion,
		); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

// LatestSession returns the most recently created session.
// Returns an error wrapping sql.ErrNoRows if the store is empty.
func (s *Store) LatestSession(ctx context.Context) (ir.Session, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `
		SELECT id FROM sessions ORDER BY seq DESC LIMIT 1
	`).Scan(&id)
	if err != nil {
		return ir.Session{}, fmt.Errorf("latest session: %w", err)
	}
	return s.GetSession(ctx, id)
}

// ReadEvents returns a session's triggers ordered by tick.
// Returns an empty slice (not nil) if none were recorded.
func (s *Store) ReadEvents(ctx context.Context, sessionID string) ([]ir.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, tick, value, error
		FROM events
		WHERE session_id = ?
		ORDER BY tick ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := []ir.Event{}
	for rows.Next() {
		var e ir.Event
		if err := rows.Scan(&e.SessionID, &e.Tick, &e.Value, &e.Error); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

// ReadKeys returns a session's key changes in the order they were played.
// Returns an empty slice (not nil) if none were recorded.
func (s *Store) ReadKeys(ctx context.Context, sessionID string) ([]ir.KeyEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, seq, tick, kind, pitch
		FROM keys
		WHERE session_id = ?
		ORDER BY seq ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query keys: %w", err)
	}
	defer rows.Close()

	keys := []ir.KeyEvent{}
	for rows.Next() {
		var k ir.KeyEvent
		if err := rows.Scan(&k.SessionID, &k.Seq, &k.Tick, &k.Kind, &k.Pitch); err != nil {
			return nil, fmt.Errorf("scan key: %w", err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate keys: %w", err)
	}
	return keys, nil
}

// NoteFilter narrows ReadNotes. Zero values do not filter.
type NoteFilter struct {
	FromTick int64 // first tick included
	ToTick   int64 // last tick included
	Pitch    *int  // only this pitch
	Limit    int   // at most this many notes
}

// ReadNotes returns a session's notes ordered by tick, then ordinal.
// Returns an empty slice (not nil) if none match.
func (s *Store) ReadNotes(ctx context.Context, sessionID string, filter NoteFilter) ([]ir.Note, error) {
	var (
		where = []string{"session_id = ?"}
		args  = []any{sessionID}
	)
	if filter.FromTick > 0 {
		where = append(where, "tick >= ?")
		args = append(args, filter.FromTick)
	}
	if filter.ToTick > 0 {
		where = append(where, "tick <= ?")
		args = append(args, filter.ToTick)
	}
	if filter.Pitch != nil {
		where = append(where, "pitch = ?")
		args = append(args, *filter.Pitch)
	}

	query := `
		SELECT id, session_id, tick, ordinal, pitch, velocity, duration
		FROM notes
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY tick ASC, ordinal ASC`
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query notes: %w", err)
	}
	defer rows.Close()

	notes := []ir.Note{}
	for rows.Next() {
		var n ir.Note
		if err := rows.Scan(&n.ID, &n.SessionID, &n.Tick, &n.Ordinal, &n.Pitch, &n.Velocity, &n.Duration); err != nil {
			return nil, fmt.Errorf("scan note: %w", err)
		}
		notes = append(notes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notes: %w", err)
	}
	return notes, nil
}

// ReadControls returns a session's control changes ordered by tick, then ordinal.
// Returns an empty slice (not nil) if none were recorded.
func (s *Store) ReadControls(ctx context.Context, sessionID string) ([]ir.Control, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, tick, ordinal, number, value
		FROM controls
		WHERE session_id = ?
		ORDER BY tick ASC, ordinal ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query controls: %w", err)
	}
	defer rows.Close()

	controls := []ir.Control{}
	for rows.Next() {
		var c ir.Control
		if err := rows.Scan(&c.SessionID, &c.Tick, &c.Ordinal, &c.Number, &c.Value); err != nil {
			return nil, fmt.Errorf("scan control: %w", err)
		}
		controls = append(controls, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate controls: %w", err)
	}
	return controls, nil
}

// SessionStats summarises one session.
type SessionStats struct {
	Events   int   `json:"events"`
	Errors   int   `json:"errors"`
	Notes    int   `json:"notes"`
	Controls int   `json:"controls"`
	Keys     int   `json:"keys"`
	LastTick int64 `json:"last_tick"`

	// Pitch range of the emitted notes; both zero when there are none.
	LowestPitch  int `json:"lowest_pitch"`
	HighestPitch int `json:"highest_pitch"`
}

// SessionStats counts a session's events, errors, notes, controls and key changes.
func (s *Store) SessionStats(ctx context.Context, sessionID string) (SessionStats, error) {
	var stats SessionStats

	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN error != '' THEN 1 ELSE 0 END), 0),
		       COALESCE(MAX(tick), 0)
		FROM events
		WHERE session_id = ?
	`, sessionID).Scan(&stats.Events, &stats.Errors, &stats.LastTick)
	if err != nil {
		return stats, fmt.Errorf("session stats: events: %w", err)
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(MIN(pitch), 0), COALESCE(MAX(pitch), 0)
		FROM notes
		WHERE session_id = ?
	`, sessionID).Scan(&stats.Notes, &stats.LowestPitch, &stats.HighestPitch)
	if err != nil {
		return stats, fmt.Errorf("session stats: notes: %w", err)
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM controls WHERE session_id = ?
	`, sessionID).Scan(&stats.Controls)
	if err != nil {
		return stats, fmt.Errorf("session stats: controls: %w", err)
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM keys WHERE session_id = ?
	`, sessionID).Scan(&stats.Keys)
	if err != nil {
		return stats, fmt.Errorf("session stats: keys: %w", err)
	}

	return stats, nil
}
