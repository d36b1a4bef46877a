// AngelaMos | 2026
// security.go

package core

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"golang.org/x/crypto/argon2"
)

// PasswordParams are the argon2id cost settings encoded into every hash.
type PasswordParams struct {
	Memory  uint32
	Time    uint32
	Threads uint8
	KeyLen  uint32
	SaltLen int
}

var DefaultPasswordParams = PasswordParams{
	Memory:  64 * 1024,
	Time:    1,
	Threads: 4,
	KeyLen:  32,
	SaltLen: 16,
}

type passwordHash struct {
	params PasswordParams
	salt   []byte
	key    []byte
}

func (h passwordHash) String() string {
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.params.Memory,
		h.params.Time,
		h.params.Threads,
		base64.RawStdEncoding.EncodeToString(h.salt),
		base64.RawStdEncoding.EncodeToString(h.key),
	)
}

func (h passwordHash) matches(password string) bool {
	other := argon2.IDKey([]byte(password), h.salt,
		h.params.Time, h.params.Memory, h.params.Threads, h.params.KeyLen)
	return subtle.ConstantTimeCompare(h.key, other) == 1
}

func (h passwordHash) stale() bool {
	p := DefaultPasswordParams
	return h.params.Memory != p.Memory ||
		h.params.Time != p.Time ||
		h.params.Threads != p.Threads ||
		h.params.KeyLen != p.KeyLen
}

func parsePasswordHash(encoded string) (passwordHash, error) {
	var h passwordHash

	fields := strings.Split(encoded, "$")
	if len(fields) != 6 || fields[1] != "argon2id" {
		return h, fmt.Errorf("parse password hash: %w", ErrInvalidInput)
	}

	var version int
	if _, err := fmt.Sscanf(fields[2], "v=%d", &version); err != nil {
		return h, fmt.Errorf("parse password hash version: %w", err)
	}
	if version != argon2.Version {
		return h, fmt.Errorf("password hash version %d unsupported", version)
	}

	if _, err := fmt.Sscanf(fields[3], "m=%d,t=%d,p=%d",
		&h.params.Memory, &h.params.Time, &h.params.Threads); err != nil {
		return h, fmt.Errorf("parse password hash params: %w", err)
	}

	var err error
	if h.salt, err = base64.RawStdEncoding.DecodeString(fields[4]); err != nil {
		return h, fmt.Errorf("decode salt: %w", err)
	}
	if h.key, err = base64.RawStdEncoding.DecodeString(fields[5]); err != nil {
		return h, fmt.Errorf("decode key: %w", err)
	}

	//nolint:gosec // argon2id keys are tens of bytes
	h.params.KeyLen = uint32(len(h.key))
	h.params.SaltLen = len(h.salt)
	return h, nil
}

func HashPassword(password string) (string, error) {
	p := DefaultPasswordParams

	salt := make([]byte, p.SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	h := passwordHash{
		params: p,
		salt:   salt,
		key:    argon2.IDKey([]byte(password), salt, p.Time, p.Memory, p.Threads, p.KeyLen),
	}
	return h.String(), nil
}

func VerifyPassword(password, encoded string) (bool, error) {
	h, err := parsePasswordHash(encoded)
	if err != nil {
		return false, err
	}
	return h.matches(password), nil
}

// VerifyPasswordWithRehash also returns a fresh hash when the stored one was
// made with older cost settings. The fresh hash is empty otherwise.
func VerifyPasswordWithRehash(password, encoded string) (bool, string, error) {
	h, err := parsePasswordHash(encoded)
	if err != nil {
		return false, "", err
	}
	if !h.matches(password) {
		return false, "", nil
	}
	if !h.stale() {
		return true, "", nil
	}

	fresh, err := HashPassword(password)
	if err != nil {
		//nolint:nilerr // the password matched; the upgrade can wait
		return true, "", nil
	}
	return true, fresh, nil
}

var placeholderHash = sync.OnceValue(func() string {
	h, err := HashPassword("harvest-table-placeholder")
	if err != nil {
		panic(fmt.Sprintf("placeholder password hash: %v", err))
	}
	return h
})

// VerifyPasswordTimingSafe runs a full argon2 comparison even when there is
// no stored hash, so unknown emails take as long as wrong passwords.
func VerifyPasswordTimingSafe(password string, encoded *string) (bool, string, error) {
	if encoded == nil || *encoded == "" {
		_, _ = VerifyPassword(password, placeholderHash())
		return false, "", nil
	}
	return VerifyPasswordWithRehash(password, *encoded)
}

func GenerateSecureToken(length int) (string, error) {
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate random bytes: %w", err)
	}
	return base64.URLEncoding.EncodeToString(buf), nil
}

// HashToken is the lookup key for opaque tokens and codes at rest.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func CompareTokenHash(token, hash string) bool {
	return subtle.ConstantTimeCompare([]byte(HashToken(token)), []byte(hash)) == 1
}

// GenerateNumericCode returns a zero-padded decimal code, used for the
// password reset codes customers type in by hand.
func GenerateNumericCode(digits int) (string, error) {
	if digits <= 0 || digits > 12 {
		return "", fmt.Errorf("generate code: %w", ErrInvalidInput)
	}

	limit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(digits)), nil)
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}

	return fmt.Sprintf("%0*d", digits, n), nil
}
