// Package localstore is the single-replica rate-limit store: an in-process
// map guarded by a reader-writer lock, for deployments that don't share a
// Redis instance across crawler replicas. It implements the same decision
// semantics as redisstore but never leaves the process.
package localstore

import (
	"context"
	"sync"

	"github.com/mattsre/poeledger/internal/ratelimit"
)

// Store is a reader-writer-locked in-memory rate-limit store.
type Store struct {
	mu        sync.RWMutex
	endpoints map[string]ratelimit.Policy
}

// New creates an empty Store.
func New() *Store {
	return &Store{endpoints: make(map[string]ratelimit.Policy)}
}

// Get returns the stored policy for endpoint, if any. Prefers a
// non-blocking try-acquire; under contention it falls back to a normal
// blocking read rather than surfacing an error.
func (s *Store) Get(ctx context.Context, endpoint string) (ratelimit.Policy, bool, error) {
	if !s.mu.TryRLock() {
		s.mu.RLock()
	}
	defer s.mu.RUnlock()

	p, ok := s.endpoints[endpoint]
	return p, ok, nil
}

// Put overwrites the policy for endpoint, replacing the full rule set
// atomically.
func (s *Store) Put(ctx context.Context, endpoint string, policy ratelimit.Policy) error {
	if !s.mu.TryLock() {
		s.mu.Lock()
	}
	defer s.mu.Unlock()

	s.endpoints[endpoint] = policy
	return nil
}
