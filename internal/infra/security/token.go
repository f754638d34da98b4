package security

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

// MinTokenBytes is the smallest accepted token entropy (128 bits).
const MinTokenBytes = 16

// OpaqueToken is a bearer secret and the digest stored in its place. Only the
// digest is persisted; the raw value goes to the client once.
type OpaqueToken struct {
	Raw    string
	Digest string
}

// NewOpaqueToken draws n random bytes and encodes them URL-safe without padding.
func NewOpaqueToken(n int) (OpaqueToken, error) {
	if n < MinTokenBytes {
		return OpaqueToken{}, fmt.Errorf("token needs at least %d random bytes, got %d", MinTokenBytes, n)
	}

	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return OpaqueToken{}, fmt.Errorf("read random bytes: %w", err)
	}
	raw := base64.RawURLEncoding.EncodeToString(buf)
	return OpaqueToken{Raw: raw, Digest: Digest(raw)}, nil
}

// Digest is the hex SHA-256 of a raw token, the form used for lookups.
func Digest(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// EqualTokens compares two secrets in constant time. Empty values never match.
func EqualTokens(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
