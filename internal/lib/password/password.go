// Package password derives and verifies salted argon2id password hashes.
//
// The salt is returned separately from the hash so that it can live in its
// own column next to the user record. The hash string carries the argon2
// parameters it was derived with, which lets the cost be raised later without
// breaking verification of older records.
package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	minMemoryKiB   uint32 = 8 * 1024
	minTime        uint32 = 1
	minParallelism uint8  = 1
	minKeyLength   uint32 = 16

	// SaltLength is the number of random bytes generated for every new hash.
	SaltLength = 32

	algorithmID = "argon2id"
)

var (
	ErrMalformedHash = errors.New("malformed password hash")
	ErrInvalidConfig = errors.New("invalid password hasher config")
)

var encoding = base64.RawStdEncoding

type Config struct {
	Memory      uint32 `yaml:"memory_kib" env:"PASSWORD_MEMORY_KIB" env-default:"65536"`
	Time        uint32 `yaml:"time" env:"PASSWORD_TIME" env-default:"3"`
	Parallelism uint8  `yaml:"parallelism" env:"PASSWORD_PARALLELISM" env-default:"2"`
	KeyLength   uint32 `yaml:"key_length" env:"PASSWORD_KEY_LENGTH" env-default:"32"`
}

// Hasher is safe for concurrent use.
type Hasher struct {
	cfg  Config
	rand io.Reader
}

type params struct {
	memory      uint32
	time        uint32
	parallelism uint8
}

func New(cfg Config) (*Hasher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Hasher{cfg: cfg, rand: rand.Reader}, nil
}

func (c Config) Validate() error {
	switch {
	case c.Memory < minMemoryKiB:
		return fmt.Errorf("%w: memory must be >= %d KiB", ErrInvalidConfig, minMemoryKiB)
	case c.Time < minTime:
		return fmt.Errorf("%w: time must be >= %d", ErrInvalidConfig, minTime)
	case c.Parallelism < minParallelism:
		return fmt.Errorf("%w: parallelism must be >= %d", ErrInvalidConfig, minParallelism)
	case c.KeyLength < minKeyLength:
		return fmt.Errorf("%w: key length must be >= %d", ErrInvalidConfig, minKeyLength)
	}
	return nil
}

// Hash generates a fresh salt and derives the argon2id hash of plaintext.
func (h *Hasher) Hash(plaintext string) (salt string, hash string, err error) {
	const op = "password.Hash"

	rawSalt := make([]byte, SaltLength)
	if _, err := io.ReadFull(h.rand, rawSalt); err != nil {
		return "", "", fmt.Errorf("%s: read salt: %w", op, err)
	}

	key := argon2.IDKey(
		[]byte(plaintext),
		rawSalt,
		h.cfg.Time,
		h.cfg.Memory,
		h.cfg.Parallelism,
		h.cfg.KeyLength,
	)

	p := params{memory: h.cfg.Memory, time: h.cfg.Time, parallelism: h.cfg.Parallelism}

	return encoding.EncodeToString(rawSalt), encode(p, key), nil
}

// Verify reports whether plaintext matches the stored salt and hash.
// A mismatch is not an error; ErrMalformedHash is returned only for corrupt
// stored values.
func (h *Hasher) Verify(plaintext, salt, hash string) (bool, error) {
	const op = "password.Verify"

	rawSalt, err := encoding.DecodeString(salt)
	if err != nil || len(rawSalt) == 0 {
		return false, fmt.Errorf("%s: salt: %w", op, ErrMalformedHash)
	}

	p, key, err := decode(hash)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	computed := argon2.IDKey(
		[]byte(plaintext),
		rawSalt,
		p.time,
		p.memory,
		p.parallelism,
		uint32(len(key)),
	)

	return subtle.ConstantTimeCompare(computed, key) == 1, nil
}

// NeedsRehash reports whether hash was derived with weaker parameters than
// the hasher is configured with.
func (h *Hasher) NeedsRehash(hash string) (bool, error) {
	p, key, err := decode(hash)
	if err != nil {
		return false, err
	}

	return p.memory < h.cfg.Memory ||
		p.time < h.cfg.Time ||
		p.parallelism < h.cfg.Parallelism ||
		uint32(len(key)) != h.cfg.KeyLength, nil
}

func encode(p params, key []byte) string {
	return fmt.Sprintf(
		"$%s$v=%d$m=%d,t=%d,p=%d$%s",
		algorithmID,
		argon2.Version,
		p.memory,
		p.time,
		p.parallelism,
		encoding.EncodeToString(key),
	)
}

func decode(hash string) (params, []byte, error) {
	// "", "argon2id", "v=19", "m=..,t=..,p=..", key
	parts := strings.Split(hash, "$")
	if len(parts) != 5 || parts[0] != "" || parts[1] != algorithmID {
		return params{}, nil, ErrMalformedHash
	}

	version, err := strconv.Atoi(strings.TrimPrefix(parts[2], "v="))
	if err != nil || version != argon2.Version {
		return params{}, nil, ErrMalformedHash
	}

	p, err := parseParams(parts[3])
	if err != nil {
		return params{}, nil, err
	}

	key, err := encoding.DecodeString(parts[4])
	if err != nil || uint32(len(key)) < minKeyLength {
		return params{}, nil, ErrMalformedHash
	}

	return p, key, nil
}

func parseParams(s string) (params, error) {
	var p params

	pairs := strings.Split(s, ",")
	if len(pairs) != 3 {
		return p, ErrMalformedHash
	}

	seen := 0
	for _, pair := range pairs {
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			return p, ErrMalformedHash
		}

		switch k {
		case "m":
			n, err := strconv.ParseUint(v, 10, 32)
			if err != nil || uint32(n) < minMemoryKiB {
				return p, ErrMalformedHash
			}
			p.memory = uint32(n)
		case "t":
			n, err := strconv.ParseUint(v, 10, 32)
			if err != nil || uint32(n) < minTime {
				return p, ErrMalformedHash
			}
			p.time = uint32(n)
		case "p":
			n, err := strconv.ParseUint(v, 10, 8)
			if err != nil || uint8(n) < minParallelism {
				return p, ErrMalformedHash
			}
			p.parallelism = uint8(n)
		default:
			return p, ErrMalformedHash
		}
		seen++
	}

	if seen != 3 || p.memory == 0 || p.time == 0 || p.parallelism == 0 {
		return p, ErrMalformedHash
	}

	return p, nil
}
