// Package determinism provides hashing and ordering primitives so that the same
// source bytes always produce the same table, hash and report.
package determinism

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"sort"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// Fingerprint is a fast non-cryptographic digest of raw source bytes
type Fingerprint uint64

// FingerprintOf digests data
func FingerprintOf(data []byte) Fingerprint {
	return Fingerprint(xxhash.Sum64(data))
}

// String returns the fingerprint as 16 hex digits
func (f Fingerprint) String() string {
	return fmt.Sprintf("%016x", uint64(f))
}

// ContentHash is a SHA-256 hash for content integrity
type ContentHash [32]byte

// Hex returns the hash as a hex string
func (h ContentHash) Hex() string {
	return hex.EncodeToString(h[:])
}

// String implements Stringer
func (h ContentHash) String() string {
	return h.Hex()[:16] + "..."
}

// Hasher accumulates fields into a ContentHash. Every field is terminated by
// a separator so that ("ab","c") and ("a","bc") hash differently.
type Hasher struct {
	h hash.Hash
}

// NewHasher creates a hasher
func NewHasher() *Hasher {
	return &Hasher{h: sha256.New()}
}

// String adds a text field
func (h *Hasher) String(s string) *Hasher {
	h.h.Write([]byte(s))
	h.h.Write([]byte{0})
	return h
}

// Int adds an integer field
func (h *Hasher) Int(n int) *Hasher {
	return h.String(strconv.Itoa(n))
}

// Sum returns the accumulated hash
func (h *Hasher) Sum() ContentHash {
	var out ContentHash
	copy(out[:], h.h.Sum(nil))
	return out
}

// SortedKeys returns map keys ordered by less
func SortedKeys[K comparable, V any](m map[K]V, less func(a, b K) bool) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return less(keys[i], keys[j])
	})
	return keys
}
