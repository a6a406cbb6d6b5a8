package patch

import (
	_ "embed"

	"github.com/roach88/tangram/internal/ir"
)

//go:embed tangram.cue
var tangramSource []byte

// TangramFile is the name the built-in composition reports in errors and logs.
const TangramFile = "tangram.cue"

// TangramSource returns the CUE source of the built-in "Tangram" composition.
func TangramSource() []byte {
	out := make([]byte, len(tangramSource))
	copy(out, tangramSource)
	return out
}

// Tangram compiles the built-in "Tangram" composition.
func Tangram() (*ir.Patch, error) {
	return CompileSource(TangramFile, tangramSource)
}

// Hash returns the content hash of a compiled patch.
// Formatting and comments in the source do not affect it.
func Hash(p *ir.Patch) (string, error) {
	return ir.PatchHash(p)
}
