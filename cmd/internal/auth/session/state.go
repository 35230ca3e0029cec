package session

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"

	"subdash/cmd/internal/remote"
)

// Identity is the authenticated principal as observed by a session.
// The source of truth lives in the remote store; the session only holds a
// snapshot taken at login time.
type Identity struct {
	ID          string
	Email       string
	Role        remote.Role
	FullName    *string
	Company     *string
	CreatedAt   time.Time
	LastLoginAt *time.Time
	LoginCount  int
	Preferences map[string]string
}

// ActivityEntry is one appended record in the session's activity log.
// Entries are never mutated after creation.
type ActivityEntry struct {
	ID        string
	At        time.Time
	UserID    *string
	Action    string
	Details   string
	IP        string
	UserAgent string
}

// State is the mutable, connection-scoped session record.
//
// Invariants maintained by this type:
//   - authenticated implies user != nil and role mirrors user.Role
//   - unauthenticated implies user == nil, role == "" and activity logging
//     is a no-op
//   - the activity log never grows beyond its cap; oldest entries go first
//   - lastActivity >= sessionStart once a session has started
type State struct {
	authenticated bool
	user          *Identity
	role          remote.Role
	rememberMe    bool

	sessionStart time.Time
	lastActivity time.Time

	activity    []ActivityEntry
	activityCap int

	preferences map[string]string

	// Network origin of the owning connection, stamped onto every entry.
	originIP string
	originUA string
}

// NewState returns an unauthenticated session state with the given activity
// log capacity (values < 1 fall back to the default of 100).
func NewState(activityCap int) *State {
	if activityCap < 1 {
		activityCap = DefaultConfig().ActivityLogCap
	}
	return &State{
		activityCap: activityCap,
		preferences: map[string]string{},
	}
}

// SetOrigin records the connection's network origin for activity entries.
func (st *State) SetOrigin(ip, userAgent string) {
	st.originIP = ip
	st.originUA = userAgent
}

// Authenticated reports whether the session holds an authenticated principal.
func (st *State) Authenticated() bool { return st.authenticated }

// User returns the current principal, or nil when unauthenticated.
func (st *State) User() *Identity { return st.user }

// Role returns the cached role, or the empty string when unauthenticated.
func (st *State) Role() remote.Role { return st.role }

// RememberMe reports the persistence choice made at login.
func (st *State) RememberMe() bool { return st.rememberMe }

// SessionStart returns when the current authenticated session began.
func (st *State) SessionStart() time.Time { return st.sessionStart }

// LastActivity returns the last touch timestamp.
func (st *State) LastActivity() time.Time { return st.lastActivity }

// Preferences returns the live preference map loaded at login.
func (st *State) Preferences() map[string]string { return st.preferences }

// Activity returns a copy of the activity log, oldest first.
func (st *State) Activity() []ActivityEntry {
	out := make([]ActivityEntry, len(st.activity))
	copy(out, st.activity)
	return out
}

// beginAuthenticated transitions the state to Authenticated for user.
func (st *State) beginAuthenticated(user *Identity, rememberMe bool, now time.Time) {
	st.authenticated = true
	st.user = user
	st.role = user.Role
	st.rememberMe = rememberMe
	st.sessionStart = now
	st.lastActivity = now

	st.preferences = map[string]string{}
	for k, v := range user.Preferences {
		st.preferences[k] = v
	}
}

// reset returns the state to its unauthenticated defaults. The activity log
// is dropped with the session; it is never persisted.
func (st *State) reset() {
	st.authenticated = false
	st.user = nil
	st.role = ""
	st.rememberMe = false
	st.sessionStart = time.Time{}
	st.lastActivity = time.Time{}
	st.activity = nil
	st.preferences = map[string]string{}
}

// touch refreshes the last-activity timestamp.
func (st *State) touch(now time.Time) {
	if now.After(st.lastActivity) {
		st.lastActivity = now
	}
}

// appendActivity records one action. No-op while unauthenticated.
func (st *State) appendActivity(now time.Time, action, details string) {
	if !st.authenticated {
		return
	}

	var userID *string
	if st.user != nil {
		id := st.user.ID
		userID = &id
	}

	entry := ActivityEntry{
		ID:        newEntryID(now),
		At:        now,
		UserID:    userID,
		Action:    action,
		Details:   details,
		IP:        st.originIP,
		UserAgent: st.originUA,
	}

	st.activity = append(st.activity, entry)
	if len(st.activity) > st.activityCap {
		// FIFO eviction: shift off the oldest entry.
		st.activity = st.activity[len(st.activity)-st.activityCap:]
	}
}

// newEntryID mints a ULID for an activity entry. Entry IDs are advisory
// (feed cursors, debugging); on the improbable entropy failure a zero ULID
// string is still usable.
func newEntryID(now time.Time) string {
	id, err := ulid.New(ulid.Timestamp(now), rand.Reader)
	if err != nil {
		return ulid.ULID{}.String()
	}
	return id.String()
}
