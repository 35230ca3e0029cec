package remote

import (
	"context"
	"time"
)

// Role is the application role stored on a profile row.
type Role string

const (
	// RoleUser is the default role assigned at signup.
	RoleUser Role = "user"
	// RoleAdmin unlocks the admin-only dashboard pages.
	RoleAdmin Role = "admin"
	// RoleSuspended marks a blocked account; it never passes admin gating.
	RoleSuspended Role = "suspended"
)

// ParseRole canonicalizes a stored role string, defaulting unknown values to
// RoleUser so a malformed row can never grant elevated access.
func ParseRole(s string) Role {
	switch Role(s) {
	case RoleAdmin:
		return RoleAdmin
	case RoleSuspended:
		return RoleSuspended
	default:
		return RoleUser
	}
}

// UserRecord is the identity record owned by the backend's auth service.
type UserRecord struct {
	ID        string
	Email     string
	CreatedAt time.Time
}

// ProfileRow is the application-level record associated with an identity.
// It is distinct from the identity itself: the auth service knows emails and
// passwords, the profiles table knows roles, names and preferences.
type ProfileRow struct {
	UserID            string
	Email             string
	Role              Role
	FullName          *string
	Company           *string
	ProfileCompletion int
	LoginCount        int
	LastLoginAt       *time.Time
	Preferences       map[string]string
	CreatedAt         time.Time
}

// NewProfileRow builds a profile row with all defaults applied in one place.
// Completion scoring: 60 when a full name was supplied at signup, 30 otherwise.
func NewProfileRow(user UserRecord, fullName, company string, now time.Time) ProfileRow {
	row := ProfileRow{
		UserID:      user.ID,
		Email:       user.Email,
		Role:        RoleUser,
		LoginCount:  0,
		Preferences: DefaultPreferences(),
		CreatedAt:   now,
	}

	if fullName != "" {
		row.FullName = &fullName
		row.ProfileCompletion = 60
	} else {
		row.ProfileCompletion = 30
	}
	if company != "" {
		row.Company = &company
	}
	return row
}

// DefaultPreferences returns the preference blob every new profile starts with.
func DefaultPreferences() map[string]string {
	return map[string]string{
		"theme":         "light",
		"notifications": "on",
	}
}

// ProfileUpdate carries the mutable profile fields; nil fields are untouched.
type ProfileUpdate struct {
	LoginCount  *int
	LastLoginAt *time.Time
	Preferences map[string]string
}

// SignUpMetadata is the optional profile context captured at signup.
type SignUpMetadata struct {
	FullName string
	Company  string
}

// Client is the opaque backend boundary. All methods are blocking and none
// retry; callers map the sentinel error kinds to user-facing copy.
type Client interface {
	// SignUp registers a new identity. The account still requires email
	// confirmation per provider policy; it is not signed in afterwards.
	SignUp(ctx context.Context, email, password string, meta SignUpMetadata) (UserRecord, error)

	// SignIn authenticates credentials and returns the identity record.
	SignIn(ctx context.Context, email, password string) (UserRecord, error)

	// SignOut invalidates the backend-side session, best-effort.
	SignOut(ctx context.Context) error

	// SendRecoveryEmail asks the backend to send a password-recovery email
	// that redirects back to redirectTo after the reset.
	SendRecoveryEmail(ctx context.Context, email, redirectTo string) error

	// FetchProfile loads the profile row for a user id. Returns ErrNotFound
	// when no row exists.
	FetchProfile(ctx context.Context, userID string) (ProfileRow, error)

	// UpdateProfile applies the non-nil fields of upd to the profile row.
	UpdateProfile(ctx context.Context, userID string, upd ProfileUpdate) error

	// InsertProfile creates the profile row for a freshly signed-up identity.
	InsertProfile(ctx context.Context, row ProfileRow) error
}
