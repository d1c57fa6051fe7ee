// Package redisstore is the distributed rate-limit store shared across
// crawler replicas: a Redis-backed key-value bucket keyed by identity and
// endpoint, with last-writer-wins semantics per key.
package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/mattsre/poeledger/internal/ratelimit"
)

// Store is a Redis-backed ratelimit.Store.
type Store struct {
	client *redis.Client
	ip     string
}

// New creates a Store connected to addr, discovering this process's public
// IP once via ipify and caching it for the process lifetime.
func New(ctx context.Context, addr, password string, db int) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,

		PoolSize:     10,
		MinIdleConns: 2,

		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,

		MaxRetries:      3,
		MinRetryBackoff: 100 * time.Millisecond,
		MaxRetryBackoff: 500 * time.Millisecond,
	})

	ip, err := discoverIP(ctx)
	if err != nil {
		return nil, fmt.Errorf("redisstore: discovering public IP: %w", err)
	}

	return &Store{client: client, ip: ip}, nil
}

// NewWithIP is New with an externally-supplied IP, for tests that can't
// reach the public ipify endpoint.
func NewWithIP(client *redis.Client, ip string) *Store {
	return &Store{client: client, ip: ip}
}

func discoverIP(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "https://api.ipify.org?format=text", nil)
	if err != nil {
		return "", err
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	return string(body), nil
}

func (s *Store) policyKey(endpoint string) string {
	return fmt.Sprintf("%s_%s_policy", s.ip, endpoint)
}

func (s *Store) ruleKey(rtype ratelimit.RuleType, endpoint string) string {
	switch rtype {
	case ratelimit.RuleTypeIP:
		return fmt.Sprintf("%s_ip_%s", s.ip, endpoint)
	default:
		return fmt.Sprintf("%s_%s", rtype, endpoint)
	}
}

// Get reassembles the Policy for endpoint from its stored rule-type list
// and each identity-scoped rule key. A transport error is returned as-is;
// callers that want a degraded Retry on failure handle it themselves.
func (s *Store) Get(ctx context.Context, endpoint string) (ratelimit.Policy, bool, error) {
	rtypesRaw, err := s.client.Get(ctx, s.policyKey(endpoint)).Result()
	if err == redis.Nil {
		return ratelimit.Policy{}, false, nil
	}
	if err != nil {
		return ratelimit.Policy{}, false, fmt.Errorf("redisstore: get policy: %w", err)
	}

	var rtypes []ratelimit.RuleType
	if err := json.Unmarshal([]byte(rtypesRaw), &rtypes); err != nil {
		return ratelimit.Policy{}, false, fmt.Errorf("redisstore: decode policy rtypes: %w", err)
	}

	policy := ratelimit.Policy{Rules: make([]ratelimit.Rule, 0, len(rtypes))}
	for _, rtype := range rtypes {
		raw, err := s.client.Get(ctx, s.ruleKey(rtype, endpoint)).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return ratelimit.Policy{}, false, fmt.Errorf("redisstore: get rule %s: %w", rtype, err)
		}

		var rule ratelimit.Rule
		if err := json.Unmarshal([]byte(raw), &rule); err != nil {
			return ratelimit.Policy{}, false, fmt.Errorf("redisstore: decode rule %s: %w", rtype, err)
		}
		policy.Rules = append(policy.Rules, rule)
	}

	return policy, true, nil
}

// Put overwrites every rule in policy and rebuilds the endpoint's active
// rule-type list, replacing the full set atomically from the caller's
// point of view even though each key is written with a separate
// round-trip. Errors on individual rule writes are logged, not returned —
// an update failure should not fail the caller's request.
func (s *Store) Put(ctx context.Context, endpoint string, policy ratelimit.Policy) error {
	rtypes := make([]ratelimit.RuleType, 0, len(policy.Rules))

	for _, rule := range policy.Rules {
		rtypes = append(rtypes, rule.Type)

		raw, err := json.Marshal(rule)
		if err != nil {
			log.Error().Err(err).Str("endpoint", endpoint).Msg("ratelimit: failed encoding rule")
			continue
		}

		if err := s.client.Set(ctx, s.ruleKey(rule.Type, endpoint), raw, 0).Err(); err != nil {
			log.Error().Err(err).Str("endpoint", endpoint).Str("rule_type", string(rule.Type)).
				Msg("ratelimit: failed writing rule to redis")
		}
	}

	raw, err := json.Marshal(rtypes)
	if err != nil {
		log.Error().Err(err).Str("endpoint", endpoint).Msg("ratelimit: failed encoding policy rtypes")
		return nil
	}

	if err := s.client.Set(ctx, s.policyKey(endpoint), raw, 0).Err(); err != nil {
		log.Error().Err(err).Str("endpoint", endpoint).Msg("ratelimit: failed writing policy rtypes to redis")
	}

	return nil
}

// Close releases the underlying Redis connection pool.
func (s *Store) Close() error {
	return s.client.Close()
}
