package fingerprint

import (
	"fmt"
)

// Compare returns an error when the live tables no longer match the state
// a plan was computed from.
func Compare(expected, actual *SchemaFingerprint) error {
	if expected.Hash == actual.Hash {
		return nil
	}
	return fmt.Errorf("schema fingerprint mismatch - expected: %s, actual: %s; the tables changed since the plan was generated",
		preview(expected.Hash), preview(actual.Hash))
}

func preview(hash string) string {
	if len(hash) > 16 {
		return hash[:16]
	}
	return hash
}
