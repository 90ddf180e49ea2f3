// AngelaMos | 2026
// security.go

package core

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

var ErrMalformedHash = errors.New("malformed password hash")

type argonParams struct {
	memory  uint32
	time    uint32
	threads uint8
	keyLen  uint32
}

var currentArgon = argonParams{
	memory:  64 * 1024,
	time:    1,
	threads: 4,
	keyLen:  32,
}

const saltLength = 16

func (p argonParams) derive(password string, salt []byte) []byte {
	return argon2.IDKey([]byte(password), salt, p.time, p.memory, p.threads, p.keyLen)
}

// encode renders the PHC string form used by the users table.
func (p argonParams) encode(salt, key []byte) string {
	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		p.memory,
		p.time,
		p.threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	)
}

type storedHash struct {
	params argonParams
	salt   []byte
	key    []byte
}

func parseHash(encoded string) (storedHash, error) {
	var h storedHash

	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return h, ErrMalformedHash
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil ||
		version != argon2.Version {
		return h, fmt.Errorf("%w: version %q", ErrMalformedHash, parts[2])
	}

	if _, err := fmt.Sscanf(
		parts[3],
		"m=%d,t=%d,p=%d",
		&h.params.memory,
		&h.params.time,
		&h.params.threads,
	); err != nil {
		return h, fmt.Errorf("%w: params: %w", ErrMalformedHash, err)
	}

	var err error
	if h.salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil {
		return h, fmt.Errorf("%w: salt: %w", ErrMalformedHash, err)
	}
	if h.key, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil {
		return h, fmt.Errorf("%w: key: %w", ErrMalformedHash, err)
	}

	//nolint:gosec // G115: argon2id keys are 32 bytes
	h.params.keyLen = uint32(len(h.key))

	return h, nil
}

func HashPassword(password string) (string, error) {
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	return currentArgon.encode(salt, currentArgon.derive(password, salt)), nil
}

// PasswordMatch is the outcome of ComparePassword. Rehash is set when the
// stored hash used older parameters and the password matched.
type PasswordMatch struct {
	OK     bool
	Rehash string
}

func ComparePassword(password, encoded string) (PasswordMatch, error) {
	stored, err := parseHash(encoded)
	if err != nil {
		return PasswordMatch{}, err
	}

	key := stored.params.derive(password, stored.salt)
	if subtle.ConstantTimeCompare(stored.key, key) != 1 {
		return PasswordMatch{}, nil
	}

	match := PasswordMatch{OK: true}
	if stored.params != currentArgon {
		// A failed upgrade leaves the old hash in place; the login still counts.
		if upgraded, err := HashPassword(password); err == nil {
			match.Rehash = upgraded
		}
	}
	return match, nil
}

var decoyHash = mustHash("decoy password for unknown accounts")

func mustHash(password string) string {
	h, err := HashPassword(password)
	if err != nil {
		panic(fmt.Sprintf("security: hash decoy password: %v", err))
	}
	return h
}

// BurnPasswordCheck spends the same work as a real comparison so unknown
// emails cannot be told apart by response time.
func BurnPasswordCheck(password string) {
	_, _ = ComparePassword(password, decoyHash) //nolint:errcheck // result is discarded
}

// NewOpaqueToken returns a random URL-safe token and the digest stored in
// its place.
func NewOpaqueToken() (token, digest string, err error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", "", fmt.Errorf("generate random bytes: %w", err)
	}
	token = base64.URLEncoding.EncodeToString(raw)
	return token, DigestToken(token), nil
}

func DigestToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
