package store

import (
	"crypto/rand"
	"fmt"
	"time"
)

// maxIDAttempts bounds how many times CreateTask/CreateFeature retries ID
// generation after a unique-constraint collision (spec.md §4.2).
const maxIDAttempts = 5

// generateShortID derives a short, collision-retryable identifier from the
// current wall-clock time and a process-local source of randomness: prefix +
// 6 hex characters hashed from time + random bytes, e.g. "t-a3f9c1". This
// mirrors the teacher's generatePrefixedID but trims to the 6-hex-char form
// spec.md §3.1 names explicitly.
func generateShortID(prefix string) string {
	timestamp := time.Now().UnixNano()

	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		// crypto/rand failure: fall back to a timestamp-derived suffix. Still
		// unique within a process at nanosecond resolution.
		return fmt.Sprintf("%s-%06x", prefix, timestamp&0xFFFFFF)
	}

	h := (uint64(timestamp) ^ beUint64(b[:])) & 0xFFFFFF
	return fmt.Sprintf("%s-%06x", prefix, h)
}

func beUint64(b []byte) uint64 {
	var v uint64
	for _, c := range b {
		v = v<<8 | uint64(c)
	}
	return v
}

// withRetryableID calls insert(id) with freshly generated IDs until it
// succeeds, the error is not a collision, or maxIDAttempts is exhausted.
func withRetryableID(prefix string, insert func(id string) error) (string, error) {
	var lastErr error
	for i := 0; i < maxIDAttempts; i++ {
		id := generateShortID(prefix)
		err := insert(id)
		if err == nil {
			return id, nil
		}
		if !isUniqueConstraintError(err) {
			return "", err
		}
		lastErr = err
	}
	return "", fmt.Errorf("%w: %v", ErrIDCollisionExhausted, lastErr)
}
