package ir

// Version constants for the patch IR and engine.
const (
	// IRVersion is the patch IR schema version.
	IRVersion = "1"

	// EngineVersion is the Tangram engine version.
	EngineVersion = "0.1.0"
)
