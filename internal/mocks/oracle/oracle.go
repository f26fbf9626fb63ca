// Package oracle contains a hand-written test double for the session oracle.
// Deterministic canned verdicts are simpler here than gomock expectations,
// since gate tests care about the verdict, not the call shape.
package oracle

import (
	"context"
	"sync/atomic"

	domainsession "github.com/faqdesk/faqdesk/internal/domain/session"
	"github.com/faqdesk/faqdesk/internal/ports"
)

var _ ports.SessionOracle = (*Static)(nil)

// Static resolves credentials against a fixed table. Unknown credentials
// resolve to the unauthenticated session, matching the real oracle's
// fold-to-anonymous behavior.
type Static struct {
	// Sessions maps credential values to verdicts.
	Sessions map[domainsession.Credential]domainsession.Session

	// ResolveFunc overrides table lookup when set.
	ResolveFunc func(ctx context.Context, cred domainsession.Credential) domainsession.Session

	calls atomic.Int64
}

// NewStatic builds a Static oracle from credential/verdict pairs.
func NewStatic(sessions map[domainsession.Credential]domainsession.Session) *Static {
	if sessions == nil {
		sessions = make(map[domainsession.Credential]domainsession.Session)
	}
	return &Static{Sessions: sessions}
}

func (s *Static) Resolve(ctx context.Context, cred domainsession.Credential) domainsession.Session {
	s.calls.Add(1)
	if s.ResolveFunc != nil {
		return s.ResolveFunc(ctx, cred)
	}
	if sess, ok := s.Sessions[cred]; ok {
		return sess
	}
	return domainsession.Anonymous
}

// Calls reports how many times Resolve ran. Gates must consult the oracle on
// every navigation, so tests assert the count.
func (s *Static) Calls() int {
	return int(s.calls.Load())
}
