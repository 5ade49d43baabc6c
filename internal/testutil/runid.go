package testutil

// FixedRunID generates the same run ID every time.
//
// Unlike engine.FixedGenerator, which returns IDs in sequence and panics when
// exhausted, FixedRunID never runs out. Use it where the number of runs is
// not known up front, such as a suite executed against golden output.
//
// FixedRunID is stateless and safe for concurrent use.
type FixedRunID string

// DefaultRunID is used when a FixedRunID is empty.
const DefaultRunID = "00000000-0000-7000-8000-000000000000"

// Generate returns the fixed ID. Implements engine.RunIDGenerator.
func (id FixedRunID) Generate() string {
	if id == "" {
		return DefaultRunID
	}
	return string(id)
}
