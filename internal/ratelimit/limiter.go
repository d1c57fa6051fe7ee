package ratelimit

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// defaultRetryAfter is the backoff applied when the Store itself fails on
// Check, to avoid stampeding a degraded backend.
const defaultRetryAfter = 5 * time.Second

// Limiter is the façade the API client consults before and updates after
// every outbound request. It owns no state itself beyond the Store it
// wraps — the Store is what's actually shared across crawler replicas.
type Limiter struct {
	store Store
}

// New wraps a Store (redisstore.Store or localstore.Store) in a Limiter.
func New(store Store) *Limiter {
	return &Limiter{store: store}
}

// Check returns the Proceed/Retry decision for endpoint. A Store transport
// error degrades to Retry{5s} rather than propagating — an unreachable
// shared backend should slow callers down, not error them out.
func (l *Limiter) Check(ctx context.Context, endpoint string) Outcome {
	policy, found, err := l.store.Get(ctx, endpoint)
	if err != nil {
		log.Warn().Err(err).Str("endpoint", endpoint).
			Msg("ratelimit: store unavailable on check, degrading to retry")
		return Outcome{Proceed: false, After: defaultRetryAfter}
	}
	if !found {
		return Outcome{Proceed: true}
	}

	return Decide(policy)
}

// Update persists the policy a response just reported for endpoint. Store
// errors are logged, not returned — an update failure should not fail the
// request, since the next response re-establishes ground truth regardless.
func (l *Limiter) Update(ctx context.Context, endpoint string, policy Policy) error {
	if err := l.store.Put(ctx, endpoint, policy); err != nil {
		log.Error().Err(err).Str("endpoint", endpoint).Msg("ratelimit: failed persisting policy")
	}
	return nil
}
