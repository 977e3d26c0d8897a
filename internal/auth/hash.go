package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Argon2id cost parameters for reviewer API keys. Keys are verified
// once per token issuance, not per request, so the 64 MB memory cost
// is affordable.
const (
	keyHashTime    = 1
	keyHashMemory  = 64 * 1024
	keyHashThreads = 4
	keyHashLen     = 32
	keySaltLen     = 16
)

// HashAPIKey derives an Argon2id hash of a reviewer API key, encoded
// as base64(salt)$base64(hash).
func HashAPIKey(key string) (string, error) {
	salt := make([]byte, keySaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("auth: generate salt: %w", err)
	}
	sum := argon2.IDKey([]byte(key), salt, keyHashTime, keyHashMemory, keyHashThreads, keyHashLen)
	return base64.StdEncoding.EncodeToString(salt) + "$" + base64.StdEncoding.EncodeToString(sum), nil
}

// VerifyAPIKey reports whether key matches the encoded hash, comparing
// in constant time.
func VerifyAPIKey(key, encoded string) (bool, error) {
	saltPart, sumPart, ok := strings.Cut(encoded, "$")
	if !ok {
		return false, fmt.Errorf("auth: invalid hash format")
	}
	salt, err := base64.StdEncoding.DecodeString(saltPart)
	if err != nil {
		return false, fmt.Errorf("auth: decode salt: %w", err)
	}
	want, err := base64.StdEncoding.DecodeString(sumPart)
	if err != nil {
		return false, fmt.Errorf("auth: decode hash: %w", err)
	}
	got := argon2.IDKey([]byte(key), salt, keyHashTime, keyHashMemory, keyHashThreads, keyHashLen)
	return subtle.ConstantTimeCompare(want, got) == 1, nil
}

// DummyVerify burns the same Argon2id cost as a real verification.
// Token issuance calls it when no reviewer key is configured, so
// response timing does not reveal whether one exists.
func DummyVerify() {
	argon2.IDKey([]byte("dummy"), make([]byte, keySaltLen), keyHashTime, keyHashMemory, keyHashThreads, keyHashLen)
}
