package ratelimit

import (
	"context"
	"sort"
	"sync"

	"github.com/komiwalnut/AuthentiCute/internal/core/port"
)

// Unlimited admits every attempt. It stands in for scopes that have no limiter configured.
type Unlimited struct{}

// Admit always allows and reports no limit.
func (Unlimited) Admit(context.Context, string) (port.RateLimitDecision, error) {
	return port.RateLimitDecision{Allowed: true}, nil
}

// Registry holds one limiter per scope so that each scope has its own identifier space.
type Registry struct {
	mu       sync.RWMutex
	limiters map[string]port.RateLimiter
}

func NewRegistry() *Registry {
	return &Registry{limiters: make(map[string]port.RateLimiter)}
}

// Register installs limiter under scope, replacing any previous one.
func (r *Registry) Register(scope string, limiter port.RateLimiter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.limiters[scope] = limiter
}

// Limiter returns the limiter for scope, or Unlimited when none is registered.
func (r *Registry) Limiter(scope string) port.RateLimiter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if limiter, ok := r.limiters[scope]; ok && limiter != nil {
		return limiter
	}
	return Unlimited{}
}

// Scopes lists the registered scopes in sorted order.
func (r *Registry) Scopes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	scopes := make([]string, 0, len(r.limiters))
	for scope := range r.limiters {
		scopes = append(scopes, scope)
	}
	sort.Strings(scopes)
	return scopes
}

type sweeper interface {
	Sweep() int
}

// Sweep reclaims idle identifiers from every in-process limiter and returns the total removed.
func (r *Registry) Sweep() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	removed := 0
	for _, limiter := range r.limiters {
		if s, ok := limiter.(sweeper); ok {
			removed += s.Sweep()
		}
	}
	return removed
}
