package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainPatch = "tangram/patch/v1"
	DomainNote  = "tangram/note/v1"
	DomainTrace = "tangram/trace/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// PatchHash computes the content-addressed hash of a compiled patch.
// Two patches with the same structure hash equally regardless of source formatting.
func PatchHash(p *Patch) (string, error) {
	canonical, err := MarshalCanonical(p)
	if err != nil {
		return "", fmt.Errorf("PatchHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainPatch, canonical), nil
}

// NoteID computes the content-addressed ID of an emitted note.
// The ID is stable across replays given the same session, tick and values.
func NoteID(n Note) (string, error) {
	canonical, err := MarshalCanonical(n)
	if err != nil {
		return "", fmt.Errorf("NoteID: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainNote, canonical), nil
}

// TraceDigest hashes an ordered note list, ignoring session and IDs.
// Equal digests mean two performances emitted the same notes at the same ticks.
func TraceDigest(notes []Note) (string, error) {
	list := make([]any, len(notes))
	for i, n := range notes {
		list[i] = []any{n.Tick, n.Ordinal, n.Pitch, n.Velocity, n.Duration}
	}
	canonical, err := MarshalCanonical(list)
	if err != nil {
		return "", fmt.Errorf("TraceDigest: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainTrace, canonical), nil
}

// MustNoteID is like NoteID but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustNoteID(n Note) string {
	id, err := NoteID(n)
	if err != nil {
		panic(err)
	}
	return id
}
