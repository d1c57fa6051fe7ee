// Package poeapi is the PoE trading API client: authorize + fetch public
// stash changes, gated by a rate limiter and wrapped in a circuit breaker.
package poeapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"

	"github.com/mattsre/poeledger/internal/metrics"
	"github.com/mattsre/poeledger/internal/ratelimit"
)

const (
	defaultOAuthTokenURL    = "https://www.pathofexile.com/oauth/token"
	defaultPublicStashesURL = "https://api.pathofexile.com/public-stash-tabs"

	endpointOAuthToken    = "oauth/token"
	endpointPublicStashes = "public-stash-tabs"
)

// Client wraps the upstream PoE HTTP API. Not safe for concurrent
// Authorize + GetPublicStashes calls against the same token mutation —
// each crawler replica owns its own Client instance.
type Client struct {
	httpClient       *http.Client
	limiter          *ratelimit.Limiter
	breaker          *gobreaker.CircuitBreaker
	userAgent        string
	accessToken      string
	metrics          *metrics.Registry
	oauthTokenURL    string
	publicStashesURL string
}

// New builds a Client. userAgent is required by the upstream API, so
// construction fails fast on a blank one rather than surfacing as a
// rejected request later. reg may be nil, in which case no metrics are
// recorded.
func New(userAgent string, limiter *ratelimit.Limiter, reg *metrics.Registry) (*Client, error) {
	if strings.TrimSpace(userAgent) == "" {
		return nil, fmt.Errorf("poeapi: user agent must not be empty")
	}

	breakerSettings := gobreaker.Settings{
		Name:        "poe-api",
		Interval:    60 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	}

	return &Client{
		httpClient:       &http.Client{Timeout: 30 * time.Second},
		limiter:          limiter,
		breaker:          gobreaker.NewCircuitBreaker(breakerSettings),
		userAgent:        userAgent,
		metrics:          reg,
		oauthTokenURL:    defaultOAuthTokenURL,
		publicStashesURL: defaultPublicStashesURL,
	}, nil
}

// newWithURLs is New with the upstream URLs overridden, for tests that
// point the client at an httptest server instead of the real API.
func newWithURLs(userAgent, oauthURL, stashesURL string, limiter *ratelimit.Limiter) *Client {
	return &Client{
		httpClient:       &http.Client{Timeout: 5 * time.Second},
		limiter:          limiter,
		breaker:          gobreaker.NewCircuitBreaker(gobreaker.Settings{Name: "poe-api-test"}),
		userAgent:        userAgent,
		oauthTokenURL:    oauthURL,
		publicStashesURL: stashesURL,
	}
}

// Authorize exchanges client credentials for a bearer token via the
// client-credentials OAuth2 grant.
func (c *Client) Authorize(ctx context.Context, clientID, clientSecret string) error {
	form := url.Values{
		"client_id":     {clientID},
		"client_secret": {clientSecret},
		"grant_type":    {"client_credentials"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.oauthTokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("poeapi: building authorize request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.fetch(ctx, endpointOAuthToken, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var body struct {
			AccessToken string `json:"access_token"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return fmt.Errorf("%w: %v", ErrDeserialize, err)
		}
		c.accessToken = body.AccessToken
		return nil
	case http.StatusUnauthorized:
		return ErrAuthRequired
	default:
		return httpStatusError(resp.StatusCode)
	}
}

// GetPublicStashes fetches one page of the public stash stream, optionally
// resuming from nextChangeID. Requires a prior successful Authorize call.
func (c *Client) GetPublicStashes(ctx context.Context, nextChangeID string) (*PublicStashesResponse, error) {
	if c.accessToken == "" {
		return nil, ErrAuthRequired
	}

	reqURL := c.publicStashesURL
	if nextChangeID != "" {
		reqURL = fmt.Sprintf("%s?id=%s", c.publicStashesURL, url.QueryEscape(nextChangeID))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("poeapi: building stashes request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)

	resp, err := c.fetch(ctx, endpointPublicStashes, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var body PublicStashesResponse
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDeserialize, err)
		}
		return &body, nil
	case http.StatusUnauthorized:
		log.Warn().Msg("poeapi: unauthorized fetching public stashes")
		return nil, ErrAuthRequired
	default:
		return nil, httpStatusError(resp.StatusCode)
	}
}

// fetch is the operation every public call routes through: consult the
// limiter, send, update the limiter from response headers. The upstream
// round-trip is wrapped in a circuit breaker so a sustained outage stops
// hammering the API between scheduled retries.
func (c *Client) fetch(ctx context.Context, endpoint string, req *http.Request) (*http.Response, error) {
	outcome := c.limiter.Check(ctx, endpoint)
	if !outcome.Proceed {
		log.Debug().Str("endpoint", endpoint).Dur("after", outcome.After).
			Msg("poeapi: rate limiter decided to wait")
		if c.metrics != nil {
			c.metrics.RateLimitRetries.WithLabelValues(endpoint).Inc()
		}
		select {
		case <-time.After(outcome.After):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.httpClient.Do(req)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSendFailed, err)
	}
	resp := result.(*http.Response)

	if err := c.updateLimiterFromHeaders(ctx, endpoint, resp); err != nil {
		return resp, err
	}

	return resp, nil
}

// updateLimiterFromHeaders parses the x-rate-limit-* headers and pushes
// the resulting Policy into the limiter. The absence of x-rate-limit-policy
// means "no update" and is not an error.
func (c *Client) updateLimiterFromHeaders(ctx context.Context, endpoint string, resp *http.Response) error {
	if resp.Header.Get("x-rate-limit-policy") == "" {
		return nil
	}

	rulesCSV := resp.Header.Get("x-rate-limit-rules")
	var rules []ratelimit.Rule

	for _, token := range strings.Split(rulesCSV, ",") {
		if token == "" {
			continue
		}
		rtype := ratelimit.RuleTypeFromHeaderToken(token)

		rawSet := resp.Header.Get("x-rate-limit-" + string(rtype))
		rawState := resp.Header.Get("x-rate-limit-" + string(rtype) + "-state")
		if rawSet == "" || rawState == "" {
			continue
		}

		ruleSet, err := ratelimit.ParseRuleSet(rawSet)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrRateLimiterRule, err)
		}
		ruleState, err := ratelimit.ParseRuleState(rawState)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrRateLimiterRule, err)
		}

		rules = append(rules, ratelimit.Rule{Type: rtype, RuleSet: ruleSet, State: ruleState})
	}

	return c.limiter.Update(ctx, endpoint, ratelimit.Policy{Rules: rules})
}
