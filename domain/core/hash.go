package core

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// Hash represents a cryptographic hash
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

// RequestHash fingerprints the inputs of an analysis run so a cached
// paragraph output can be matched against a new request.
type RequestHash Hash

func (h RequestHash) String() string { return Hash(h).String() }

// ComputeRequestHash hashes any JSON-serializable request. encoding/json
// writes map keys in sorted order, so equal maps hash equally.
func ComputeRequestHash(request interface{}) RequestHash {
	data, err := json.Marshal(request)
	if err != nil {
		return ""
	}
	return RequestHash(NewHash(data))
}
