package ir

// Version constants for the view format and engine.
const (
	// FormatVersion is the view definition format version.
	FormatVersion = "1"

	// EngineVersion is the fhirflat engine version.
	EngineVersion = "0.1.0"
)
