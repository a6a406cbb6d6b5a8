// Package ir provides the shared value and record types for Tangram.
//
// This package contains type definitions only. All other internal packages
// import ir; ir imports nothing internal. This keeps ir the foundational
// layer with no circular dependencies.
//
// Key design constraints:
//   - Slot values are integers or an explicit rest, never floats
//   - All JSON tags use snake_case
//   - Logical ticks only, never wall-clock timestamps
//   - Content-addressed IDs use canonical JSON (see canonical.go)
package ir
