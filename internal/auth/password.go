package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"clipstream/internal/apperr"

	"golang.org/x/crypto/pbkdf2"
)

const (
	passwordHashSaltLength = 16
	passwordHashKeyLength  = 32
	passwordHashIterations = 120000
)

// HashPassword derives a salted one-way digest of the provided secret. The
// encoded form records the algorithm and iteration count so parameters can be
// raised without invalidating stored hashes.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", apperr.Validation("auth.HashPassword", "password is required")
	}
	salt := make([]byte, passwordHashSaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", apperr.Internal("auth.HashPassword", fmt.Errorf("generate salt: %w", err))
	}
	derived := pbkdf2.Key([]byte(password), salt, passwordHashIterations, passwordHashKeyLength, sha256.New)
	encodedSalt := base64.RawStdEncoding.EncodeToString(salt)
	encodedKey := base64.RawStdEncoding.EncodeToString(derived)
	return fmt.Sprintf("pbkdf2$sha256$%d$%s$%s", passwordHashIterations, encodedSalt, encodedKey), nil
}

// VerifyPassword reports whether the candidate secret matches the encoded
// digest. A wrong password is not an error; only an empty candidate or a
// malformed digest is.
func VerifyPassword(encodedHash, candidate string) (bool, error) {
	const op = "auth.VerifyPassword"
	if candidate == "" {
		return false, apperr.Validation(op, "password is required")
	}
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 5 {
		return false, apperr.Internal(op, fmt.Errorf("invalid hash format"))
	}
	if parts[0] != "pbkdf2" || parts[1] != "sha256" {
		return false, apperr.Internal(op, fmt.Errorf("unsupported hash identifier %q", parts[0]+"$"+parts[1]))
	}
	iterations, err := strconv.Atoi(parts[2])
	if err != nil || iterations <= 0 {
		return false, apperr.Internal(op, fmt.Errorf("invalid iteration count"))
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[3])
	if err != nil {
		return false, apperr.Internal(op, fmt.Errorf("decode salt: %w", err))
	}
	storedKey, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false, apperr.Internal(op, fmt.Errorf("decode hash: %w", err))
	}
	derived := pbkdf2.Key([]byte(candidate), salt, iterations, len(storedKey), sha256.New)
	if len(derived) != len(storedKey) || subtle.ConstantTimeCompare(derived, storedKey) != 1 {
		return false, nil
	}
	return true, nil
}
