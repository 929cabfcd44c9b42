package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/pgschema/pgdiff/internal/ir"
)

// SchemaFingerprint represents a fingerprint of a snapshot's structure.
// Snapshot metadata is not part of the hash, so two databases with the same
// objects share a fingerprint.
type SchemaFingerprint struct {
	Hash    string `json:"hash"`
	Objects int    `json:"objects"`
}

// ComputeFingerprint hashes every object of the snapshot in key order
func ComputeFingerprint(snap *ir.Snapshot) (*SchemaFingerprint, error) {
	h := sha256.New()
	for _, obj := range snap.Objects() {
		data, err := json.Marshal(obj)
		if err != nil {
			return nil, fmt.Errorf("failed to hash %s: %w", obj.Key(), err)
		}
		h.Write([]byte(obj.Key().String()))
		h.Write([]byte{0})
		h.Write(data)
		h.Write([]byte{0})
	}
	return &SchemaFingerprint{
		Hash:    hex.EncodeToString(h.Sum(nil)),
		Objects: snap.Len(),
	}, nil
}

// ObjectHash computes a SHA256 hash of one object's definition
func ObjectHash(obj ir.Object) (string, error) {
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
		return fmt.Sprintf("Schema fingerprint: %s (%d objects)", f.Hash[:8], f.Objects)
	}
	return fmt.Sprintf("Schema fingerprint: %s (%d objects)", f.Hash, f.Objects)
}

// Compare compares two schema fingerprints and returns an error if they don't match
func Compare(expected, actual *SchemaFingerprint) error {
	if expected.Hash == actual.Hash {
		return nil
	}

	expectedPreview := expected.Hash
	if len(expectedPreview) > 16 {
		expectedPreview = expectedPreview[:16]
	}

	actualPreview := actual.Hash
	if len(actualPreview) > 16 {
		actualPreview = actualPreview[:16]
	}

	return fmt.Errorf("schema fingerprint mismatch - expected: %s, actual: %s",
		expectedPreview, actualPreview)
}
