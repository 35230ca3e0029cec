package password

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
)

// Params controls Argon2id hashing cost.
// MemoryKiB is in KiB as required by argon2.IDKey.
type Params struct {
	MemoryKiB   uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultParams returns a strong baseline for interactive logins.
// Parallelism follows available CPUs, clamped to [1..4] so resource usage
// stays predictable in containers.
func DefaultParams() Params {
	threads := runtime.NumCPU()
	if threads <= 0 {
		threads = 1
	}
	if threads > 4 {
		threads = 4
	}

	return Params{
		MemoryKiB:   64 * 1024, // 64 MiB
		Iterations:  3,
		Parallelism: uint8(threads), // #nosec G115 -- clamped to [1..4] above; safe conversion.
		SaltLength:  16,
		KeyLength:   32,
	}
}

// ParamsFromEnv loads hashing cost from environment variables.
//
// Env surface:
// - SUBDASH_ARGON2_MEMORY_KIB
// - SUBDASH_ARGON2_ITERATIONS
// - SUBDASH_ARGON2_PARALLELISM
// - SUBDASH_ARGON2_SALT_LEN
// - SUBDASH_ARGON2_KEY_LEN
func ParamsFromEnv() (Params, error) {
	p := DefaultParams()

	if v, ok := os.LookupEnv("SUBDASH_ARGON2_MEMORY_KIB"); ok {
		u, err := atou32(v, 8*1024, 1024*1024) // 8 MiB .. 1 GiB
		if err != nil {
			return Params{}, fmt.Errorf("SUBDASH_ARGON2_MEMORY_KIB: %w", err)
		}
		p.MemoryKiB = u
	}

	if v, ok := os.LookupEnv("SUBDASH_ARGON2_ITERATIONS"); ok {
		u, err := atou32(v, 1, 20)
		if err != nil {
			return Params{}, fmt.Errorf("SUBDASH_ARGON2_ITERATIONS: %w", err)
		}
		p.Iterations = u
	}

	if v, ok := os.LookupEnv("SUBDASH_ARGON2_PARALLELISM"); ok {
		u, err := atou32(v, 1, 64)
		if err != nil {
			return Params{}, fmt.Errorf("SUBDASH_ARGON2_PARALLELISM: %w", err)
		}
		if u > 255 {
			return Params{}, fmt.Errorf("SUBDASH_ARGON2_PARALLELISM: out of range")
		}
		p.Parallelism = uint8(u)
	}

	if v, ok := os.LookupEnv("SUBDASH_ARGON2_SALT_LEN"); ok {
		u, err := atou32(v, 8, 64)
		if err != nil {
			return Params{}, fmt.Errorf("SUBDASH_ARGON2_SALT_LEN: %w", err)
		}
		p.SaltLength = u
	}

	if v, ok := os.LookupEnv("SUBDASH_ARGON2_KEY_LEN"); ok {
		u, err := atou32(v, 16, 64)
		if err != nil {
			return Params{}, fmt.Errorf("SUBDASH_ARGON2_KEY_LEN: %w", err)
		}
		p.KeyLength = u
	}

	return p, nil
}

func atou32(s string, minVal, maxVal uint32) (uint32, error) {
	s = strings.TrimSpace(s)
	u64, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("not an unsigned integer")
	}

	u := uint32(u64)
	if u < minVal || u > maxVal {
		return 0, fmt.Errorf("out of range [%d..%d]", minVal, maxVal)
	}
	return u, nil
}
