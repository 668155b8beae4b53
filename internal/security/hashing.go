package security

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Hasher hashes and verifies passwords using Argon2id. Callers must not log or
// persist plaintext passwords.
type Hasher struct {
	Time    uint32
	Memory  uint32
	Threads uint8
	SaltLen uint32
	KeyLen  uint32
}

// NewHasher returns a Hasher with Argon2id parameters suitable for interactive
// login (1 pass, 64 MiB, 4 lanes).
func NewHasher() *Hasher {
	return &Hasher{
		Time:    1,
		Memory:  64 * 1024,
		Threads: 4,
		SaltLen: 16,
		KeyLen:  32,
	}
}

// Hash derives an Argon2id digest of password with a fresh random salt and
// returns it in the standard encoded form
// $argon2id$v=19$m=...,t=...,p=...$<salt>$<key>. The salt is embedded in the
// output; no separate storage is needed.
func (h *Hasher) Hash(password []byte) (string, error) {
	salt := make([]byte, h.SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	key := argon2.IDKey(password, salt, h.Time, h.Memory, h.Threads, h.KeyLen)
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, h.Memory, h.Time, h.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify reports whether password matches the encoded digest. It returns false
// for both a wrong password and a malformed digest, and always performs one
// key derivation plus a constant-time comparison so the two cases are not
// distinguishable by timing.
func (h *Hasher) Verify(password []byte, encoded string) bool {
	salt, want, time, memory, threads, ok := decodeDigest(encoded)
	if !ok {
		// Burn an equivalent derivation before rejecting.
		salt = make([]byte, h.SaltLen)
		want = make([]byte, h.KeyLen)
		time, memory, threads = h.Time, h.Memory, h.Threads
		ok = false
	}
	got := argon2.IDKey(password, salt, time, memory, threads, uint32(len(want)))
	match := subtle.ConstantTimeCompare(got, want) == 1
	return ok && match
}

// decodeDigest parses the $argon2id$ encoded form produced by Hash.
func decodeDigest(encoded string) (salt, key []byte, time, memory uint32, threads uint8, ok bool) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return nil, nil, 0, 0, 0, false
	}
	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return nil, nil, 0, 0, 0, false
	}
	var p uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &time, &p); err != nil {
		return nil, nil, 0, 0, 0, false
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil || len(salt) == 0 {
		return nil, nil, 0, 0, 0, false
	}
	key, err = base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(key) == 0 {
		return nil, nil, 0, 0, 0, false
	}
	return salt, key, time, memory, p, true
}
