// Package engine implements the tangram dataflow engine.
//
// A network is built from two kinds of node:
//
// Chains are lazily computed sequences of optional integers (ir.Seq).
// Each chain owns a cache cell keyed by the Context's stamp, so a chain is
// computed at most once per tick no matter how many consumers read it or how
// often. Const holds a literal; Assembler, Transposer, Ranger, Indexer and
// Selector derive new sequences from other chains without mutating them.
//
// Pulses react to integer events. Sprayer fans an event out in order; Cycler
// walks a chain and fires the slot at its position downstream, moving that
// position according to its firstIf, nextIf and loopIf ranges.
//
// EVALUATION:
//
// A Driver advances the tick and fires one value into the root pulse
// (OnEvent). Everything reachable runs synchronously before OnEvent returns.
// Evaluation is single-threaded; no chain or pulse is safe for concurrent use.
//
// Literals passed to constructors go through Wrap: a Chain is used as-is,
// anything else is parsed by Flatten ("1.2" is [1 . 2]) into a Const.
//
// FAILURE:
//
// Value-level problems (out-of-range index, missing limit, empty range)
// degrade to rests, empty sequences or suppressed fires. Two conditions abort
// the current event instead: a chain re-entered during its own compute
// (CYCLIC_DEPENDENCY) and a tick exceeding its pulse-fire quota
// (QUOTA_EXCEEDED). Both are *RuntimeError values returned by OnEvent.
//
// DETERMINISM:
//
// Randomness comes only from the Context's PCG source. The same seed and
// event sequence always produce the same output.
package engine
