// Package security hashes and verifies account passwords with Argon2id using
// the PHC string format.
package security

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/crypto/argon2"

	"github.com/streetfoodconnect/marketplace-backend/pkg/config"
)

const MinPasswordLength = 6

var (
	ErrInvalidHash   = errors.New("invalid argon2id hash")
	ErrEmptyPassword = errors.New("password cannot be empty")
)

var b64 = base64.RawStdEncoding

// argonCost is the tunable half of a hash; salt and key lengths travel with
// the encoded bytes themselves.
type argonCost struct {
	memory  uint32
	time    uint32
	threads uint8
}

type phc struct {
	cost argonCost
	salt []byte
	key  []byte
}

func (p phc) String() string {
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, p.cost.memory, p.cost.time, p.cost.threads,
		b64.EncodeToString(p.salt), b64.EncodeToString(p.key))
}

func (c argonCost) derive(password string, salt []byte, keyLen uint32) []byte {
	return argon2.IDKey([]byte(password), salt, c.time, c.memory, c.threads, keyLen)
}

// HashPassword derives a fresh salted key under the configured cost.
func HashPassword(password string, cfg config.PasswordConfig) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}
	cost, saltLen, keyLen := costFromConfig(cfg)

	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	return phc{cost: cost, salt: salt, key: cost.derive(password, salt, keyLen)}.String(), nil
}

// VerifyPassword reports a mismatch as (false, nil); only a malformed hash
// is an error.
func VerifyPassword(password, encoded string) (bool, error) {
	h, err := parsePHC(encoded)
	if err != nil {
		return false, err
	}
	got := h.cost.derive(password, h.salt, uint32(len(h.key)))
	return subtle.ConstantTimeCompare(h.key, got) == 1, nil
}

func MeetsMinimumLength(password string) bool {
	return utf8.RuneCountInString(password) >= MinPasswordLength
}

// NeedsRehash is true when encoded was produced under a different cost or
// key length than cfg asks for, or cannot be parsed at all.
func NeedsRehash(encoded string, cfg config.PasswordConfig) bool {
	h, err := parsePHC(encoded)
	if err != nil {
		return true
	}
	cost, _, keyLen := costFromConfig(cfg)
	return h.cost != cost || uint32(len(h.key)) != keyLen
}

func costFromConfig(cfg config.PasswordConfig) (argonCost, uint32, uint32) {
	cost := argonCost{
		memory:  uint32(clamp(cfg.ArgonMemoryKB, 8, 512*1024)),
		time:    uint32(clamp(cfg.ArgonTime, 1, 10)),
		threads: uint8(clamp(cfg.ArgonParallelism, 1, 255)),
	}
	return cost, uint32(clamp(cfg.ArgonSaltLen, 8, 64)), uint32(clamp(cfg.ArgonKeyLen, 16, 64))
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}

// parsePHC accepts $argon2id$v=19$m=..,t=..,p=..$salt$key.
func parsePHC(encoded string) (phc, error) {
	fields := strings.Split(encoded, "$")
	if len(fields) != 6 || fields[0] != "" || fields[1] != "argon2id" {
		return phc{}, ErrInvalidHash
	}

	var version int
	if _, err := fmt.Sscanf(fields[2], "v=%d", &version); err != nil || version != argon2.Version {
		return phc{}, ErrInvalidHash
	}

	var (
		h                   phc
		memory, time, procs uint64
	)
	if _, err := fmt.Sscanf(fields[3], "m=%d,t=%d,p=%d", &memory, &time, &procs); err != nil {
		return phc{}, ErrInvalidHash
	}
	if memory == 0 || memory > 1<<32-1 || time == 0 || time > 1<<32-1 || procs == 0 || procs > 255 {
		return phc{}, ErrInvalidHash
	}
	h.cost = argonCost{memory: uint32(memory), time: uint32(time), threads: uint8(procs)}

	var err error
	if h.salt, err = b64.DecodeString(fields[4]); err != nil || len(h.salt) == 0 {
		return phc{}, ErrInvalidHash
	}
	if h.key, err = b64.DecodeString(fields[5]); err != nil || len(h.key) == 0 {
		return phc{}, ErrInvalidHash
	}
	return h, nil
}
