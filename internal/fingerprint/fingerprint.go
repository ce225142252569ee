// Package fingerprint hashes the live state of a set of tables so that a
// plan can be checked against the catalog it was computed from.
package fingerprint

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"

	"github.com/pgschema/pgreconcile/internal/ir"
)

// TableState is what the fingerprint covers for one table. Live is nil
// when the table does not exist.
type TableState struct {
	Name   string            `json:"name"`
	Live   *ir.LiveTable     `json:"live"`
	Checks map[string]string `json:"checks,omitempty"` // constraint name -> definition
}

// SchemaFingerprint represents a fingerprint of the state of some tables
type SchemaFingerprint struct {
	Hash string `json:"hash"` // SHA256 of the JSON encoded states
}

// ComputeFingerprint hashes the states in the order given.
func ComputeFingerprint(states []TableState) (*SchemaFingerprint, error) {
	hash, err := hashObject(states)
	if err != nil {
		return nil, fmt.Errorf("failed to compute schema hash: %w", err)
	}
	return &SchemaFingerprint{Hash: hash}, nil
}

// hashObject computes a SHA256 hash of any object
func hashObject(obj any) (string, error) {
	data, err := json.Marshal(obj)
	if err != nil {
		return "", err
	}

	hash := sha256.Sum256(data)
	return fmt.Sprintf("%x", hash), nil
}

// String returns a human-readable representation of the fingerprint
func (f *SchemaFingerprint) String() string {
	if len(f.Hash) >= 8 {
		return fmt.Sprintf("Schema fingerprint: %s", f.Hash[:8])
	}
	return fmt.Sprintf("Schema fingerprint: %s", f.Hash)
}
