package signature

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

const (
	// SecretPrefix is the prefix of stored signing secrets
	SecretPrefix = "whsec_"

	// Scheme prefixes the hex digest in the signature header: sha256=<hex>
	Scheme = "sha256"

	// MinSecretBytes is the minimum recommended secret size (192 bits)
	MinSecretBytes = 24

	// MaxSecretBytes is the maximum recommended secret size (512 bits)
	MaxSecretBytes = 64

	// DefaultSecretBytes is the size used when registering webhooks
	DefaultSecretBytes = 32
)

// ErrEmptySecret means the webhook has no signing secret configured
var ErrEmptySecret = errors.New("signing secret is empty")

// Secret represents a webhook signing secret
type Secret struct {
	raw    []byte
	base64 string
}

// GenerateSecret creates a new cryptographically secure signing secret
// between MinSecretBytes and MaxSecretBytes in size.
func GenerateSecret(size int) (Secret, error) {
	if size < MinSecretBytes || size > MaxSecretBytes {
		return Secret{}, fmt.Errorf("secret size must be between %d and %d bytes", MinSecretBytes, MaxSecretBytes)
	}

	bytes := make([]byte, size)
	if _, err := rand.Read(bytes); err != nil {
		return Secret{}, fmt.Errorf("generating random bytes: %w", err)
	}

	return Secret{
		raw:    bytes,
		base64: SecretPrefix + base64.StdEncoding.EncodeToString(bytes),
	}, nil
}

// ParseSecret parses a base64-encoded secret with the whsec_ prefix
func ParseSecret(encoded string) (Secret, error) {
	if encoded == "" {
		return Secret{}, ErrEmptySecret
	}
	if !strings.HasPrefix(encoded, SecretPrefix) {
		return Secret{}, fmt.Errorf("secret must start with %s prefix", SecretPrefix)
	}

	b64 := strings.TrimPrefix(encoded, SecretPrefix)
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return Secret{}, fmt.Errorf("decoding base64 secret: %w", err)
	}

	if len(raw) < MinSecretBytes || len(raw) > MaxSecretBytes {
		return Secret{}, fmt.Errorf("secret size must be between %d and %d bytes", MinSecretBytes, MaxSecretBytes)
	}

	return Secret{
		raw:    raw,
		base64: encoded,
	}, nil
}

// String returns the base64-encoded secret with prefix
func (s Secret) String() string {
	return s.base64
}

// Bytes returns the raw secret bytes
func (s Secret) Bytes() []byte {
	return s.raw
}

/* Sign computes the signature header value over the exact body bytes
 * Format: sha256=<lowercase hex HMAC-SHA256(secret, body)>
 * The body must be the bytes put on the wire, not a re-serialization
 */
func Sign(secret Secret, body []byte) (string, error) {
	if len(secret.raw) == 0 {
		return "", ErrEmptySecret
	}

	mac := hmac.New(sha256.New, secret.raw)
	mac.Write(body)
	return Scheme + "=" + hex.EncodeToString(mac.Sum(nil)), nil
}

// Verify checks a signature header against the body using constant-time comparison
func Verify(secret Secret, body []byte, header string) bool {
	if strings.TrimSpace(header) == "" {
		return false
	}

	expected, err := Sign(secret, body)
	if err != nil {
		return false
	}

	return hmac.Equal([]byte(expected), []byte(strings.TrimSpace(header)))
}
