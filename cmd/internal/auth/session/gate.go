package session

import (
	"strings"

	"subdash/cmd/internal/remote"
)

// PageClass is the access tier of a dashboard page.
type PageClass string

const (
	// PagePublic pages render for everyone.
	PagePublic PageClass = "public"
	// PageAuthenticated pages require a signed-in session.
	PageAuthenticated PageClass = "authenticated"
	// PageAdmin pages additionally require the admin role.
	PageAdmin PageClass = "admin"
)

// Denial reasons returned by CanAccess.
const (
	DenyNotSignedIn      = "not signed in"
	DenyInsufficientRole = "insufficient role"
)

// ParsePageClass canonicalizes a page-class string.
// Unknown values parse as PageAdmin so a typo can never widen access.
func ParsePageClass(s string) PageClass {
	switch PageClass(strings.ToLower(strings.TrimSpace(s))) {
	case PagePublic:
		return PagePublic
	case PageAuthenticated:
		return PageAuthenticated
	default:
		return PageAdmin
	}
}

// CanAccess reports whether the session may view a page of the given class.
// On denial the second return value carries the reason; the caller decides
// how to refuse rendering.
func (st *State) CanAccess(page PageClass) (bool, string) {
	switch page {
	case PagePublic:
		return true, ""
	case PageAuthenticated:
		if !st.authenticated {
			return false, DenyNotSignedIn
		}
		return true, ""
	default:
		if !st.authenticated {
			return false, DenyNotSignedIn
		}
		if st.role != remote.RoleAdmin {
			return false, DenyInsufficientRole
		}
		return true, ""
	}
}
