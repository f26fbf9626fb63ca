// Package guard provides MutationGuard adapters. The guard enforces the
// single-outstanding-mutation rule per view: a second trigger of the same
// action while its request is pending is dropped instead of duplicated.
package guard

import (
	"context"
	"sync"
	"time"

	"github.com/faqdesk/faqdesk/internal/ports"
)

// DefaultPendingTTL bounds how long a pending mark can live. A crashed request
// that never reaches End must not wedge its action forever.
const DefaultPendingTTL = 30 * time.Second

// MemoryGuard is an in-process MutationGuard, suitable for single-replica
// deployments and tests.
type MemoryGuard struct {
	mu      sync.Mutex
	pending map[string]time.Time
	ttl     time.Duration
	now     func() time.Time
}

var _ ports.MutationGuard = (*MemoryGuard)(nil)

// NewMemoryGuard creates an in-memory guard with the default pending TTL.
func NewMemoryGuard() *MemoryGuard {
	return NewMemoryGuardWithTTL(DefaultPendingTTL)
}

// NewMemoryGuardWithTTL creates an in-memory guard with a custom pending TTL.
func NewMemoryGuardWithTTL(ttl time.Duration) *MemoryGuard {
	if ttl <= 0 {
		ttl = DefaultPendingTTL
	}
	return &MemoryGuard{
		pending: make(map[string]time.Time),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (g *MemoryGuard) Begin(_ context.Context, viewID, action string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	key := pendingKey(viewID, action)
	if deadline, ok := g.pending[key]; ok && g.now().Before(deadline) {
		return false, nil
	}
	g.pending[key] = g.now().Add(g.ttl)
	return true, nil
}

func (g *MemoryGuard) End(_ context.Context, viewID, action string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.pending, pendingKey(viewID, action))
	return nil
}

func pendingKey(viewID, action string) string {
	return viewID + ":" + action
}
