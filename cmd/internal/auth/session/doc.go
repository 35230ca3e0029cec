// Package session implements the subdash session core: per-connection session
// state, the signup/login/logout/password-reset lifecycle against the remote
// backend, touch-time idle expiry, and role-based page gating.
//
// One State belongs to exactly one logical user connection and is only ever
// touched by that connection's request cycle; the package itself does no
// locking and starts no goroutines.
package session
