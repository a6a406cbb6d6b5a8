// Package patch reads tangram patches and turns them into running networks.
//
// A patch is a CUE document naming chains and pulses and the root pulse that
// receives triggers:
//
//	name: "demo"
//	seed: 7
//	chains: {
//		notes: {kind: "assembler", parts: [60, 62, 64]}
//		up:    {kind: "transposer", source: {ref: "notes"}, offset: 12}
//	}
//	pulses: {
//		walk: {kind: "cycler", chain: {ref: "up"}, out: "pitch", first_if: 0, next_if: ".."}
//		fan:  {kind: "sprayer", targets: ["walk", "emit"]}
//	}
//	root: "fan"
//
// Arguments are literals (an int, a digit/dot string, null or a list of those)
// or {ref: "chain"}. Pulses fire into other pulses by name or into the
// built-in targets pitch, velocity, duration, emit and nop.
//
// The pipeline is Compile (CUE to ir.Patch), Validate (references, literals,
// chain cycles), then Build (ir.Patch to a Network). AnalyzeCycles reports
// pulse feedback loops as warnings. Watcher reloads a patch when its file
// changes.
package patch
