package auth

import (
	"crypto/sha256"
	"encoding/hex"
)

// hashToken derives the digest under which refresh tokens are stored. Raw
// bearer material never reaches the store.
func hashToken(token string) string {
	digest := sha256.Sum256([]byte(token))
	return hex.EncodeToString(digest[:])
}
