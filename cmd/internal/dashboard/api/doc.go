// Package api exposes the session core to the dashboard's presentation layer
// over HTTP: signup/login/logout/password-reset endpoints, the current-user
// and activity views, page gating, and a websocket activity feed.
//
// Each browser connection is identified by an opaque session cookie; the
// registry maps cookie hashes to their session state so that every connection
// owns exactly one state instance. Requests for the same session are
// serialized, which keeps the core itself lock-free.
package api
