// Package remote defines the boundary to the hosted identity/row-storage
// backend that owns user accounts and profile rows.
//
// The backend is opaque to the rest of subdash: callers only see the Client
// interface and its typed error kinds. Two implementations ship here:
//
//   - HTTPClient talks to a hosted Postgres-as-a-service backend over its
//     REST surface (auth endpoints plus a PostgREST-style rows API).
//   - PostgresClient talks to a self-hosted Postgres directly, with Argon2id
//     credential verification.
//
// Transport selection happens at wiring time in cmd/internal/app; the auth
// lifecycle never knows which one it has.
package remote
