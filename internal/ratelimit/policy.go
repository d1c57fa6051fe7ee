// Package ratelimit models the PoE API's rate-limit policy headers and the
// Proceed/Retry decision built from them. It is the shared contract between
// the API client (which parses headers and consults the decision function)
// and the two Store backends (redisstore, localstore) that persist rules
// across crawler replicas.
package ratelimit

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

var (
	ErrInvalidHeaderFormat = errors.New("ratelimit: invalid header format")
	ErrHeaderIntParse      = errors.New("ratelimit: header contained a non-integer part")
	ErrUnknownEndpoint     = errors.New("ratelimit: no policy stored for endpoint")
	ErrInternal            = errors.New("ratelimit: internal error")
)

// RuleType is the closed set of identity kinds a rule can be scoped to.
type RuleType string

const (
	RuleTypeIP      RuleType = "ip"
	RuleTypeClient  RuleType = "client"
	RuleTypeAccount RuleType = "account"
)

// RuleTypeFromHeaderToken parses one entry of the x-rate-limit-rules CSV.
// An unrecognized token parses to the default identity, RuleTypeIP.
func RuleTypeFromHeaderToken(token string) RuleType {
	switch strings.ToLower(strings.TrimSpace(token)) {
	case string(RuleTypeIP):
		return RuleTypeIP
	case string(RuleTypeClient):
		return RuleTypeClient
	case string(RuleTypeAccount):
		return RuleTypeAccount
	default:
		return RuleTypeIP
	}
}

// RuleSet is the "hits:window:timeout" triple from x-rate-limit-<kind>.
type RuleSet struct {
	MaximumHits    int
	WindowSeconds  int
	TimeoutSeconds int
}

// RuleState is the "hits:window:active-timeout" triple from
// x-rate-limit-<kind>-state.
type RuleState struct {
	CurrentHits          int
	WindowSeconds        int
	ActiveTimeoutSeconds int
}

// Rule is one identity-scoped rule: its limit and its current state.
type Rule struct {
	Type    RuleType
	RuleSet RuleSet
	State   RuleState
}

// Policy is the full set of rules a single endpoint reported in its last
// response. The identity set is replaced atomically — a Policy always
// represents exactly the rules of the most recent update.
type Policy struct {
	Rules []Rule
}

// parseTriple parses a colon-delimited "a:b:c" integer triple.
func parseTriple(raw string) (a, b, c int, err error) {
	parts := strings.Split(raw, ":")
	if len(parts) != 3 {
		return 0, 0, 0, ErrInvalidHeaderFormat
	}

	vals := make([]int, 3)
	for i, p := range parts {
		n, convErr := strconv.Atoi(strings.TrimSpace(p))
		if convErr != nil {
			return 0, 0, 0, ErrHeaderIntParse
		}
		vals[i] = n
	}

	return vals[0], vals[1], vals[2], nil
}

// ParseRuleSet parses an x-rate-limit-<kind> header value.
func ParseRuleSet(raw string) (RuleSet, error) {
	a, b, c, err := parseTriple(raw)
	if err != nil {
		return RuleSet{}, err
	}
	return RuleSet{MaximumHits: a, WindowSeconds: b, TimeoutSeconds: c}, nil
}

// ParseRuleState parses an x-rate-limit-<kind>-state header value.
func ParseRuleState(raw string) (RuleState, error) {
	a, b, c, err := parseTriple(raw)
	if err != nil {
		return RuleState{}, err
	}
	return RuleState{CurrentHits: a, WindowSeconds: b, ActiveTimeoutSeconds: c}, nil
}

// Outcome is the limiter's Proceed/Retry decision.
type Outcome struct {
	Proceed bool
	After   time.Duration
}

// Decide implements the limiter's decision function: Proceed only when
// every rule in the policy has headroom for one more hit; otherwise Retry,
// with After set to the largest window among the violating rules (the
// safe upper bound when more than one rule is in violation).
//
// A Policy with no rules always proceeds. The first-call case (no policy
// stored for the endpoint) never reaches Decide: Limiter.Check returns
// Proceed itself when the Store reports nothing stored.
func Decide(p Policy) Outcome {
	longestViolation := time.Duration(-1)

	for _, rule := range p.Rules {
		if rule.State.CurrentHits+1 >= rule.RuleSet.MaximumHits {
			window := time.Duration(rule.RuleSet.WindowSeconds) * time.Second
			if window > longestViolation {
				longestViolation = window
			}
		}
	}

	if longestViolation < 0 {
		return Outcome{Proceed: true}
	}

	return Outcome{Proceed: false, After: longestViolation}
}
