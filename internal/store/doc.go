// Package store provides SQLite-backed durable storage for Tangram performances.
//
// A performance is recorded as:
//   - Sessions: one per run, with the compiled patch (canonical JSON), its
//     hash and the seed
//   - Events: every trigger delivered to the root pulse, with its error if
//     evaluation failed
//   - Notes and controls: everything the network emitted
//
// This is a log of what was played. Chain and cycler state is never stored;
// Replay reproduces it by running the stored patch against the stored events.
//
// # Ordering
//
// All ordering uses the logical tick and the per-tick ordinal, never
// timestamps, so reads return identical results across replays.
//
// # Idempotency
//
// Note IDs are content-addressed (ir.NoteID) and every insert uses
// ON CONFLICT DO NOTHING, so writing the same output twice is harmless.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
