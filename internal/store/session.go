package store

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/roach88/tangram/internal/ir"
)

// SessionIDGenerator produces session IDs.
type SessionIDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 session IDs.
//
// UUIDv7 embeds a timestamp in the most significant bits, so sessions listed
// by ID come out in the order they were recorded.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 and returns it as a hyphenated string.
//
// Panics if UUID generation fails (should never happen in practice).
func (g UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// NewSession describes a new performance of p with the given seed.
// source is the patch text as written, kept for display only.
func NewSession(gen SessionIDGenerator, p *ir.Patch, source string, seed int64) (ir.Session, error) {
	hash, err := ir.PatchHash(p)
	if err != nil {
		return ir.Session{}, fmt.Errorf("new session: %w", err)
	}
	return ir.Session{
		ID:            gen.Generate(),
		PatchName:     p.Name,
		PatchHash:     hash,
		PatchSource:   source,
		Seed:          seed,
		EngineVersion: ir.EngineVersion,
		IRVersion:     ir.IRVersion,
	}, nil
}
