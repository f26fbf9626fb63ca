// Package ports defines interfaces (hexagonal ports) for the upstream
// messaging service and client-side coordination. Implementations live in
// internal/adapters; orchestration in internal/service.
package ports

import (
	"context"

	"github.com/faqdesk/faqdesk/internal/domain/model"
	domainsession "github.com/faqdesk/faqdesk/internal/domain/session"
)

// SessionOracle resolves the current session against the external authority.
//
// Resolve performs a single fresh round-trip per call: no retry, no caching,
// since session state can change between navigations (e.g. logout elsewhere).
// It never returns an error; transport failures and non-success responses all
// fold into the unauthenticated session.
type SessionOracle interface {
	Resolve(ctx context.Context, cred domainsession.Credential) domainsession.Session
}

// MessageService performs CRUD against the external message store. Every call
// attaches the ambient credential transparently; no operation accepts explicit
// authentication parameters beyond the opaque credential itself.
//
// Errors follow the internal/errors taxonomy: Unauthorized for an invalid
// session, Service for non-success responses carrying an upstream message,
// Connectivity for transport failures.
type MessageService interface {
	// ListMine returns the calling user's received messages.
	ListMine(ctx context.Context, cred domainsession.Credential) ([]model.Message, error)
	// ListAll returns every user's messages grouped by owner (manager scope).
	ListAll(ctx context.Context, cred domainsession.Credential) ([]model.MessageGroup, error)
	// Update replaces the body of the identified message.
	Update(ctx context.Context, cred domainsession.Credential, id, body string) error
	// Remove deletes the identified message.
	Remove(ctx context.Context, cred domainsession.Credential, id string) error
	// Send delivers a new message to the recipient. Identity and timestamp are
	// assigned server-side.
	Send(ctx context.Context, cred domainsession.Credential, recipientEmail, body string) error
}

// SignupInput carries the signup form fields, forwarded to the upstream
// service after local confirm-password validation.
type SignupInput struct {
	Name            string
	Email           string
	Password        string
	ConfirmPassword string
}

// LoginGrant is the outcome of a successful login: the upstream Set-Cookie
// header values that establish the ambient credential in the browser. The
// client relays them untouched and never parses or stores their contents.
type LoginGrant struct {
	SetCookies []string
}

// AccountService proxies authentication lifecycle operations to the upstream
// service. The session verdict itself is always re-derived via SessionOracle,
// never inferred from these calls.
type AccountService interface {
	Login(ctx context.Context, email, password string) (LoginGrant, error)
	// Signup returns the upstream confirmation message on success.
	Signup(ctx context.Context, in SignupInput) (string, error)
	Logout(ctx context.Context, cred domainsession.Credential) error
}

// MutationGuard enforces at most one outstanding mutating operation per view
// and action: repeated triggers while a request is pending are ignored rather
// than duplicated.
type MutationGuard interface {
	// Begin marks the action pending for the view. It returns false when the
	// same action is already outstanding, in which case the trigger must be
	// dropped.
	Begin(ctx context.Context, viewID, action string) (bool, error)
	// End clears the pending mark. Safe to call for a mark that was never set.
	End(ctx context.Context, viewID, action string) error
}
