package session

import "testing"

func TestRole_Known(t *testing.T) {
	if !RoleUser.Known() || !RoleManager.Known() {
		t.Fatalf("expected user and manager to be known roles")
	}
	if Role("superadmin").Known() {
		t.Fatalf("unrecognized role must not be known")
	}
}

func TestSession_Allows(t *testing.T) {
	manager := Session{Authenticated: true, Role: RoleManager}
	user := Session{Authenticated: true, Role: RoleUser}

	if !manager.Allows() || !user.Allows() {
		t.Fatalf("empty allowlist must admit any authenticated session")
	}
	if !manager.Allows(RoleManager) {
		t.Fatalf("manager must pass a manager allowlist")
	}
	if user.Allows(RoleManager) {
		t.Fatalf("user must not pass a manager allowlist")
	}
	if Anonymous.Allows() {
		t.Fatalf("anonymous must never be allowed")
	}
	// Fail closed: a role the client does not recognize passes no allowlist.
	odd := Session{Authenticated: true, Role: Role("auditor")}
	if odd.Allows(RoleUser, RoleManager) {
		t.Fatalf("unrecognized role must not pass an allowlist")
	}
}

func TestSession_LandingPath(t *testing.T) {
	if got := (Session{Authenticated: true, Role: RoleManager}).LandingPath(); got != "/admin" {
		t.Fatalf("manager landing = %q, want /admin", got)
	}
	if got := (Session{Authenticated: true, Role: RoleUser}).LandingPath(); got != "/" {
		t.Fatalf("user landing = %q, want /", got)
	}
	if got := Anonymous.LandingPath(); got != "/" {
		t.Fatalf("anonymous landing = %q, want /", got)
	}
}
