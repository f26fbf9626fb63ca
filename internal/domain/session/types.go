// Package session contains domain-level types for the upstream-held session.
// It is pure and free of transport/adapter concerns.
package session

// Role represents the authorization role reported by the upstream authority.
// Keep string form so unrecognized upstream values survive intact and can be
// rejected by the gate instead of being coerced to a default capability.
type Role string

const (
	RoleUser    Role = "user"
	RoleManager Role = "manager"
)

// Known reports whether the role is one the client recognizes.
// Unrecognized roles are treated as forbidden by the gate (fail closed).
func (r Role) Known() bool {
	return r == RoleUser || r == RoleManager
}

// Credential is the opaque ambient session credential: the value of the
// upstream session cookie carried by the browser. The client never inspects
// or persists it; it is attached transparently to upstream requests.
type Credential string

// Session is the resolved authentication state at a point in time. It is
// reconstructed from the upstream authority on every consultation and is
// never cached across navigations.
//
// A Session is either fully resolved or does not exist yet; there is no
// partially resolved value. Role is meaningful only when Authenticated.
type Session struct {
	Authenticated bool
	Role          Role
}

// Anonymous is the fully resolved "not authenticated" session. Every failure
// mode of resolution (transport error, timeout, non-success status) folds
// into this value.
var Anonymous = Session{}

// Allows reports whether the session grants access for the given role
// allowlist. An empty allowlist admits any authenticated session. An
// unrecognized role never passes a non-empty allowlist.
func (s Session) Allows(allowed ...Role) bool {
	if !s.Authenticated {
		return false
	}
	if len(allowed) == 0 {
		return true
	}
	for _, r := range allowed {
		if s.Role == r {
			return true
		}
	}
	return false
}

// LandingPath returns the default landing view for the session: managers land
// on the admin dashboard, everyone else on the home view.
func (s Session) LandingPath() string {
	if s.Authenticated && s.Role == RoleManager {
		return "/admin"
	}
	return "/"
}
