package api

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"sync"

	"subdash/cmd/internal/auth/session"
)

// sessionEntry pairs one connection's session service with the lock that
// serializes its requests. The core session package does no locking of its
// own; this mutex is what upholds its single-caller contract.
type sessionEntry struct {
	mu  sync.Mutex
	svc *session.Service
}

// registry maps session-cookie token hashes to live sessions. Plain tokens
// exist only in the cookie; the registry never sees them unhashed except to
// derive the key.
type registry struct {
	mu      sync.Mutex
	entries map[string]*sessionEntry
}

func newRegistry() *registry {
	return &registry{entries: map[string]*sessionEntry{}}
}

// lookup returns the entry for a token hash, or nil.
func (r *registry) lookup(hash string) *sessionEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.entries[hash]
}

// add stores a freshly created session under its token hash.
func (r *registry) add(hash string, e *sessionEntry) {
	r.mu.Lock()
	r.entries[hash] = e
	n := len(r.entries)
	r.mu.Unlock()
	metricActiveSessions.Set(float64(n))
}

// remove drops a session. Safe to call for unknown hashes.
func (r *registry) remove(hash string) {
	r.mu.Lock()
	delete(r.entries, hash)
	n := len(r.entries)
	r.mu.Unlock()
	metricActiveSessions.Set(float64(n))
}

// size reports the number of live sessions.
func (r *registry) size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// newSessionToken returns a fresh opaque cookie token and its SHA-256 hex.
func newSessionToken() (plain, hash string, err error) {
	b := make([]byte, 32)
	if _, err = rand.Read(b); err != nil {
		return "", "", err
	}

	// URL-safe, no padding.
	plain = base64.RawURLEncoding.EncodeToString(b)
	return plain, hashToken(plain), nil
}

// hashToken derives the registry key from a cookie token.
func hashToken(plain string) string {
	sum := sha256.Sum256([]byte(plain))
	return hex.EncodeToString(sum[:])
}
