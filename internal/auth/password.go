package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/crypto/argon2"
)

// MinPasswordLength is the shortest admin password HashPassword accepts.
const MinPasswordLength = 8

// Params are the Argon2id costs encoded into a hash. Verification always
// uses the costs stored in the hash, so raising DefaultParams does not
// invalidate existing password_hash values.
type Params struct {
	Memory  uint32 // KiB
	Time    uint32
	Threads uint8
	KeyLen  uint32
	SaltLen int
}

// DefaultParams follow the OWASP 2025 recommendation for Argon2id.
var DefaultParams = Params{Memory: 64 * 1024, Time: 3, Threads: 1, KeyLen: 32, SaltLen: 16}

// encodedHash is a decoded PHC string:
// $argon2id$v=19$m=65536,t=3,p=1$<salt>$<key>
type encodedHash struct {
	params Params
	salt   []byte
	key    []byte
}

func (h encodedHash) String() string {
	b64 := base64.RawStdEncoding
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, h.params.Memory, h.params.Time, h.params.Threads,
		b64.EncodeToString(h.salt), b64.EncodeToString(h.key))
}

// HashPassword returns the PHC-encoded Argon2id hash of password, suitable
// for security.admin.password_hash.
func HashPassword(password string) (string, error) {
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return "", fmt.Errorf("%w: need at least %d characters", ErrPasswordTooShort, MinPasswordLength)
	}

	p := DefaultParams
	salt := make([]byte, p.SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generating salt: %w", err)
	}

	h := encodedHash{params: p, salt: salt}
	h.key = deriveKey(password, h)
	return h.String(), nil
}

// deriveKey runs Argon2id with h's salt and params.
func deriveKey(password string, h encodedHash) []byte {
	p := h.params
	return argon2.IDKey([]byte(password), h.salt, p.Time, p.Memory, p.Threads, p.KeyLen)
}

// VerifyPassword reports whether password matches encoded. An error means
// encoded is not a usable Argon2id hash.
func VerifyPassword(password, encoded string) (bool, error) {
	h, err := decodeHash(encoded)
	if err != nil {
		return false, err
	}
	return subtle.ConstantTimeCompare(h.key, deriveKey(password, h)) == 1, nil
}

// ValidateHash checks that encoded would be accepted by VerifyPassword,
// so a mistyped password_hash fails at startup instead of at first login.
func ValidateHash(encoded string) error {
	_, err := decodeHash(encoded)
	return err
}

func decodeHash(encoded string) (encodedHash, error) {
	var h encodedHash

	// "" before the leading $, then algorithm, version, params, salt, key.
	fields := strings.Split(encoded, "$")
	if len(fields) != 6 || fields[0] != "" { //nolint:mnd // PHC field count
		return h, fmt.Errorf("%w: want $argon2id$v=..$m=..,t=..,p=..$salt$key", ErrMalformedHash)
	}
	if fields[1] != "argon2id" {
		return h, fmt.Errorf("%w: algorithm %q is not argon2id", ErrMalformedHash, fields[1])
	}

	v, ok := strings.CutPrefix(fields[2], "v=")
	version, err := strconv.Atoi(v)
	if !ok || err != nil || version != argon2.Version {
		return h, fmt.Errorf("%w: unsupported version %q", ErrMalformedHash, fields[2])
	}

	if _, err := fmt.Sscanf(fields[3], "m=%d,t=%d,p=%d", &h.params.Memory, &h.params.Time, &h.params.Threads); err != nil {
		return h, fmt.Errorf("%w: parameters %q: %w", ErrMalformedHash, fields[3], err)
	}
	if h.params.Memory == 0 || h.params.Time == 0 || h.params.Threads == 0 {
		return h, fmt.Errorf("%w: zero cost in %q", ErrMalformedHash, fields[3])
	}

	if h.salt, err = base64.RawStdEncoding.DecodeString(fields[4]); err != nil {
		return h, fmt.Errorf("%w: salt: %w", ErrMalformedHash, err)
	}
	if h.key, err = base64.RawStdEncoding.DecodeString(fields[5]); err != nil || len(h.key) == 0 {
		return h, fmt.Errorf("%w: key is not base64", ErrMalformedHash)
	}
	h.params.SaltLen = len(h.salt)
	h.params.KeyLen = uint32(len(h.key)) //nolint:gosec // G115: decoded length fits uint32
	return h, nil
}
