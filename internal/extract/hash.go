package extract

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashContent returns a content-addressed digest of a page's raw text,
// prefixed with the algorithm name. A content digest, not an mtime: cosmetic
// filesystem touches and mtime-resetting checkouts must not defeat the
// incrementality gate.
func HashContent(text []byte) string {
	sum := sha256.Sum256(text)
	return "sha256:" + hex.EncodeToString(sum[:])
}
