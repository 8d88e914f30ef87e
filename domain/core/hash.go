package core

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"
)

// Hash represents a cryptographic content hash
type Hash string

// NewHash creates a new hash from data
func NewHash(data []byte) Hash {
	sum := sha256.Sum256(data)
	return Hash(hex.EncodeToString(sum[:]))
}

// String returns the string representation
func (h Hash) String() string {
	return string(h)
}

// IsEmpty checks if the hash is empty
func (h Hash) IsEmpty() bool {
	return h == ""
}

// Equals checks if two hashes are equal
func (h Hash) Equals(other Hash) bool {
	return h == other
}

// Domain-specific hash types
type (
	DatasetFingerprint Hash
	TreeFingerprint    Hash
)

// Constructors
func NewDatasetFingerprint(data []byte) DatasetFingerprint { return DatasetFingerprint(NewHash(data)) }
func NewTreeFingerprint(data []byte) TreeFingerprint       { return TreeFingerprint(NewHash(data)) }

// String conversions
func (h DatasetFingerprint) String() string { return Hash(h).String() }
func (h TreeFingerprint) String() string    { return Hash(h).String() }

// ComputeDatasetFingerprint hashes a numeric matrix so runs can record
// exactly which data they were estimated against.
func ComputeDatasetFingerprint(rows [][]float64) DatasetFingerprint {
	var buf [8]byte
	h := sha256.New()
	binary.LittleEndian.PutUint64(buf[:], uint64(len(rows)))
	h.Write(buf[:])
	for _, row := range rows {
		for _, v := range row {
			binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
			h.Write(buf[:])
		}
	}
	return DatasetFingerprint(hex.EncodeToString(h.Sum(nil)))
}
