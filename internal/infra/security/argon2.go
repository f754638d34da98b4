package security

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"

	"github.com/komiwalnut/AuthentiCute/internal/core/port"
)

const (
	argon2Variant = "argon2id"
	argon2Version = "v=19"
)

var (
	// ErrInvalidHashFormat is returned when a stored digest cannot be parsed.
	ErrInvalidHashFormat = errors.New("argon2: invalid encoded hash format")
	// ErrEmptySecret is returned by Hash for an empty secret, which Verify never matches.
	ErrEmptySecret       = errors.New("argon2: empty secret")
	errInvalidConfig     = errors.New("argon2: invalid configuration")
)

var b64 = base64.RawStdEncoding

// Argon2Config defines tunable parameters for Argon2id password hashing.
type Argon2Config struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultArgon2Config returns 64 MiB, three passes and four lanes.
func DefaultArgon2Config() Argon2Config {
	return Argon2Config{
		Memory:      64 * 1024,
		Iterations:  3,
		Parallelism: 4,
		SaltLength:  16,
		KeyLength:   32,
	}
}

// Validate reports the first parameter that falls below its floor.
func (c Argon2Config) Validate() error {
	floors := []struct {
		name  string
		value uint32
		min   uint32
	}{
		{"memory", c.Memory, 8 * 1024},
		{"iterations", c.Iterations, 1},
		{"parallelism", uint32(c.Parallelism), 1},
		{"salt length", c.SaltLength, 8},
		{"key length", c.KeyLength, 16},
	}
	for _, f := range floors {
		if f.value < f.min {
			return fmt.Errorf("%w: %s must be at least %d, got %d", errInvalidConfig, f.name, f.min, f.value)
		}
	}
	return nil
}

func (c Argon2Config) sameCost(o Argon2Config) bool {
	return c.Memory == o.Memory &&
		c.Iterations == o.Iterations &&
		c.Parallelism == o.Parallelism &&
		c.KeyLength == o.KeyLength
}

// argon2Digest is the decoded form of a stored password hash.
type argon2Digest struct {
	params Argon2Config
	salt   []byte
	key    []byte
}

func (d argon2Digest) String() string {
	return fmt.Sprintf("%s$%s$m=%d,t=%d,p=%d$%s$%s",
		argon2Variant, argon2Version,
		d.params.Memory, d.params.Iterations, d.params.Parallelism,
		b64.EncodeToString(d.salt), b64.EncodeToString(d.key))
}

func (d argon2Digest) derive(secret string) []byte {
	return argon2.IDKey([]byte(secret), d.salt, d.params.Iterations, d.params.Memory, d.params.Parallelism, uint32(len(d.key)))
}

// parseArgon2Digest decodes argon2id$v=19$m=<m>,t=<t>,p=<p>$<salt>$<key>.
func parseArgon2Digest(encoded string) (argon2Digest, error) {
	fields := strings.Split(encoded, "$")
	if len(fields) != 5 {
		return argon2Digest{}, ErrInvalidHashFormat
	}
	variant, version, cost, salt, key := fields[0], fields[1], fields[2], fields[3], fields[4]

	if variant != argon2Variant {
		return argon2Digest{}, fmt.Errorf("argon2: unexpected variant %q", variant)
	}
	if version != argon2Version {
		return argon2Digest{}, fmt.Errorf("argon2: unsupported version %q", version)
	}

	var d argon2Digest
	if _, err := fmt.Sscanf(cost, "m=%d,t=%d,p=%d", &d.params.Memory, &d.params.Iterations, &d.params.Parallelism); err != nil {
		return argon2Digest{}, fmt.Errorf("%w: cost segment %q", ErrInvalidHashFormat, cost)
	}
	if fmt.Sprintf("m=%d,t=%d,p=%d", d.params.Memory, d.params.Iterations, d.params.Parallelism) != cost {
		return argon2Digest{}, fmt.Errorf("%w: cost segment %q", ErrInvalidHashFormat, cost)
	}

	var err error
	if d.salt, err = b64.DecodeString(salt); err != nil {
		return argon2Digest{}, fmt.Errorf("argon2: decode salt: %w", err)
	}
	if d.key, err = b64.DecodeString(key); err != nil {
		return argon2Digest{}, fmt.Errorf("argon2: decode hash: %w", err)
	}
	d.params.SaltLength = uint32(len(d.salt))
	d.params.KeyLength = uint32(len(d.key))

	if err := d.params.Validate(); err != nil {
		return argon2Digest{}, err
	}
	return d, nil
}

// Argon2Hasher hashes secrets with Argon2id and a fresh salt per call.
// Digests carry their own cost, so older hashes keep verifying after the
// configuration changes.
type Argon2Hasher struct {
	cfg Argon2Config
}

var _ port.PasswordHasher = (*Argon2Hasher)(nil)

func NewArgon2Hasher(cfg Argon2Config) (*Argon2Hasher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Argon2Hasher{cfg: cfg}, nil
}

// Parameters returns the configuration used for new digests.
func (h *Argon2Hasher) Parameters() Argon2Config {
	return h.cfg
}

// Hash refuses an empty secret so that every digest it returns verifies.
func (h *Argon2Hasher) Hash(secret string) (string, error) {
	if secret == "" {
		return "", ErrEmptySecret
	}
	d := argon2Digest{params: h.cfg, salt: make([]byte, h.cfg.SaltLength)}
	if _, err := rand.Read(d.salt); err != nil {
		return "", fmt.Errorf("argon2: generate salt: %w", err)
	}
	d.key = argon2.IDKey([]byte(secret), d.salt, h.cfg.Iterations, h.cfg.Memory, h.cfg.Parallelism, h.cfg.KeyLength)
	return d.String(), nil
}

// Verify recomputes the key under the digest's own cost and compares in
// constant time. An empty secret or digest never matches.
func (h *Argon2Hasher) Verify(secret, encoded string) (bool, error) {
	if secret == "" || encoded == "" {
		return false, nil
	}
	d, err := parseArgon2Digest(encoded)
	if err != nil {
		return false, err
	}
	return subtle.ConstantTimeCompare(d.derive(secret), d.key) == 1, nil
}

// NeedsRehash is true for unparsable digests and for those made under a
// different cost than the current one.
func (h *Argon2Hasher) NeedsRehash(encoded string) bool {
	d, err := parseArgon2Digest(encoded)
	return err != nil || !d.params.sameCost(h.cfg)
}
