package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/mattsre/poeledger/internal/ratelimit/localstore"
)

func TestLimiterProceedsWithNoStoredPolicy(t *testing.T) {
	l := New(localstore.New())
	out := l.Check(context.Background(), "public-stash-tabs")
	assert.True(t, out.Proceed)
}

// End to end through the Limiter + localstore: an update that reports a
// rule at its boundary should turn the next Check into a Retry.
func TestLimiterRetryThenProceedAfterUpdate(t *testing.T) {
	store := localstore.New()
	l := New(store)
	ctx := context.Background()
	endpoint := "public-stash-tabs"

	err := l.Update(ctx, endpoint, Policy{Rules: []Rule{
		{Type: RuleTypeIP, RuleSet: RuleSet{MaximumHits: 5, WindowSeconds: 10}, State: RuleState{CurrentHits: 4}},
	}})
	assert.NoError(t, err)

	out := l.Check(ctx, endpoint)
	assert.False(t, out.Proceed)
	assert.Equal(t, 10*time.Second, out.After)

	err = l.Update(ctx, endpoint, Policy{Rules: []Rule{
		{Type: RuleTypeIP, RuleSet: RuleSet{MaximumHits: 5, WindowSeconds: 10}, State: RuleState{CurrentHits: 0}},
	}})
	assert.NoError(t, err)

	out = l.Check(ctx, endpoint)
	assert.True(t, out.Proceed)
}

type erroringStore struct{}

func (erroringStore) Get(ctx context.Context, endpoint string) (Policy, bool, error) {
	return Policy{}, false, errors.New("connection refused")
}

func (erroringStore) Put(ctx context.Context, endpoint string, policy Policy) error {
	return errors.New("connection refused")
}

func TestLimiterDegradesToRetryOnStoreError(t *testing.T) {
	l := New(erroringStore{})
	out := l.Check(context.Background(), "public-stash-tabs")
	assert.False(t, out.Proceed)
	assert.Equal(t, defaultRetryAfter, out.After)
}
