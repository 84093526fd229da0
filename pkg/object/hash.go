package object

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// HashBytes returns the hex-rendered SHA-256 digest of data.
func HashBytes(data []byte) Hash {
	sum := sha256.Sum256(data)
	return Hash(hex.EncodeToString(sum[:]))
}

// HashObject returns the digest of an object's canonical envelope: its kind
// and length, prefixed onto the body, so that a digest collision between
// two kinds sharing the same body bytes is impossible.
func HashObject(kind Kind, body []byte) Hash {
	envelope := fmt.Sprintf("%s %d\x00", kind, len(body))
	return HashBytes(append([]byte(envelope), body...))
}

// ValidateHash reports whether s is a syntactically valid checksum: fixed
// width, lowercase hex.
func ValidateHash(s Hash) bool {
	const width = sha256.Size * 2
	if len(s) != width {
		return false
	}
	for _, c := range []byte(s) {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')) {
			return false
		}
	}
	return true
}
