package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"interest-chat/errors"
	"strings"

	"golang.org/x/crypto/argon2"
)

// argonCost is the tuning encoded in every stored hash, so older hashes stay verifiable after a retune.
type argonCost struct {
	memory      uint32 // KiB
	iterations  uint32
	parallelism uint8
}

var (
	defaultCost = argonCost{memory: 64 * 1024, iterations: 3, parallelism: 2}
	// Anything above is refused on decode, a forged hash must not make a login allocate gigabytes.
	maxCost = argonCost{memory: 1024 * 1024, iterations: 16, parallelism: 16}
)

const (
	saltLength = 16
	keyLength  = 32
	hashScheme = "argon2id"
)

var b64 = base64.RawStdEncoding

// HashPassword derives an argon2id key with a fresh salt and returns it in PHC string form.
func HashPassword(password string) (string, error) {
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	key := defaultCost.derive(password, salt, keyLength)
	return defaultCost.encode(salt, key), nil
}

// ComparePassword reports whether password matches encoded. The error is only set when encoded cannot be read.
func ComparePassword(password, encoded string) (bool, error) {
	cost, salt, key, err := decodeHash(encoded)
	if err != nil {
		return false, err
	}
	candidate := cost.derive(password, salt, uint32(len(key)))
	return subtle.ConstantTimeCompare(key, candidate) == 1, nil
}

func (c argonCost) derive(password string, salt []byte, length uint32) []byte {
	return argon2.IDKey([]byte(password), salt, c.iterations, c.memory, c.parallelism, length)
}

func (c argonCost) encode(salt, key []byte) string {
	return fmt.Sprintf("$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		hashScheme, argon2.Version, c.memory, c.iterations, c.parallelism, b64.EncodeToString(salt), b64.EncodeToString(key))
}

func decodeHash(encoded string) (argonCost, []byte, []byte, error) {
	// "$argon2id$v=19$m=...,t=...,p=...$salt$key" splits into an empty head and five fields
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != hashScheme {
		return argonCost{}, nil, nil, errors.ErrInvalidHash
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return argonCost{}, nil, nil, errors.ErrInvalidHash
	}

	var cost argonCost
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &cost.memory, &cost.iterations, &cost.parallelism); err != nil {
		return argonCost{}, nil, nil, errors.ErrInvalidHash
	}
	if !cost.withinBounds() {
		return argonCost{}, nil, nil, errors.ErrInvalidHash
	}

	salt, err := b64.DecodeString(parts[4])
	if err != nil {
		return argonCost{}, nil, nil, fmt.Errorf("%w: salt: %v", errors.ErrInvalidHash, err)
	}
	key, err := b64.DecodeString(parts[5])
	if err != nil || len(key) == 0 {
		return argonCost{}, nil, nil, fmt.Errorf("%w: key: %v", errors.ErrInvalidHash, err)
	}
	return cost, salt, key, nil
}

// argon2 panics on a zero thread count.
func (c argonCost) withinBounds() bool {
	return c.memory > 0 && c.memory <= maxCost.memory &&
		c.iterations > 0 && c.iterations <= maxCost.iterations &&
		c.parallelism > 0 && c.parallelism <= maxCost.parallelism
}
