package cryptoutil

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/binary"
	"encoding/hex"
)

// HashEqual performs constant-time comparison of two hex-encoded hashes
// to prevent timing attacks. It returns true if the hashes are equal.
func HashEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// SHA256Hex computes the SHA-256 hash of the input data and returns it as a hex string
func SHA256Hex(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// TokenEqual compares a caller-supplied token against the expected value in
// constant time. Both sides are hashed to fixed-length digests first so the
// comparison time does not depend on either input's length.
func TokenEqual(provided, expected string) bool {
	ph := sha256.Sum256([]byte(provided))
	eh := sha256.Sum256([]byte(expected))
	return subtle.ConstantTimeCompare(ph[:], eh[:]) == 1
}

// HMACSHA256Hex returns the hex-encoded HMAC-SHA256 of payload under key.
func HMACSHA256Hex(key, payload []byte) string {
	mac := hmac.New(sha256.New, key)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// LengthPrefixedWriter incrementally hashes length-prefixed byte sequences.
// Prefixing each chunk with its length removes boundary ambiguity: the pair
// ("ab", "c") always hashes differently from ("a", "bc").
type LengthPrefixedWriter struct {
	// h is the running SHA-256 state
	h interface {
		Write(p []byte) (int, error)
		Sum(b []byte) []byte
	}
}

func NewLengthPrefixedWriter() *LengthPrefixedWriter {
	return &LengthPrefixedWriter{h: sha256.New()}
}

// Add hashes one length-prefixed chunk.
func (w *LengthPrefixedWriter) Add(chunk []byte) {
	var lenbuf [8]byte
	binary.BigEndian.PutUint64(lenbuf[:], uint64(len(chunk)))
	w.h.Write(lenbuf[:])
	w.h.Write(chunk)
}

// SumHex finalizes and returns the hex digest.
func (w *LengthPrefixedWriter) SumHex() string {
	return hex.EncodeToString(w.h.Sum(nil))
}
