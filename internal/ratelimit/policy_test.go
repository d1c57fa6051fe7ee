package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRuleSet(t *testing.T) {
	rs, err := ParseRuleSet("5:10:60")
	require.NoError(t, err)
	assert.Equal(t, RuleSet{MaximumHits: 5, WindowSeconds: 10, TimeoutSeconds: 60}, rs)
}

func TestParseRuleSetMalformed(t *testing.T) {
	_, err := ParseRuleSet("5:10")
	assert.ErrorIs(t, err, ErrInvalidHeaderFormat)
}

func TestParseRuleSetNonInteger(t *testing.T) {
	_, err := ParseRuleSet("five:10:60")
	assert.ErrorIs(t, err, ErrHeaderIntParse)
}

func TestRuleTypeFromHeaderTokenUnknownDefaultsToIP(t *testing.T) {
	assert.Equal(t, RuleTypeIP, RuleTypeFromHeaderToken("something-else"))
	assert.Equal(t, RuleTypeClient, RuleTypeFromHeaderToken("Client"))
}

func TestDecideProceedWhenNoRules(t *testing.T) {
	out := Decide(Policy{})
	assert.True(t, out.Proceed)
}

func TestDecideProceedWhenHeadroom(t *testing.T) {
	p := Policy{Rules: []Rule{
		{Type: RuleTypeIP, RuleSet: RuleSet{MaximumHits: 5, WindowSeconds: 10}, State: RuleState{CurrentHits: 2}},
	}}
	assert.True(t, Decide(p).Proceed)
}

// A rule at hits=4/max=5 is at the boundary (4+1 == 5, not < 5) and must
// retry for the rule's window.
func TestDecideRetryAtBoundary(t *testing.T) {
	p := Policy{Rules: []Rule{
		{Type: RuleTypeIP, RuleSet: RuleSet{MaximumHits: 5, WindowSeconds: 10}, State: RuleState{CurrentHits: 4}},
	}}

	out := Decide(p)
	assert.False(t, out.Proceed)
	assert.Equal(t, 10*time.Second, out.After)
}

func TestDecideLargestWindowWins(t *testing.T) {
	p := Policy{Rules: []Rule{
		{Type: RuleTypeIP, RuleSet: RuleSet{MaximumHits: 5, WindowSeconds: 10}, State: RuleState{CurrentHits: 4}},
		{Type: RuleTypeClient, RuleSet: RuleSet{MaximumHits: 2, WindowSeconds: 60}, State: RuleState{CurrentHits: 1}},
	}}

	out := Decide(p)
	assert.False(t, out.Proceed)
	assert.Equal(t, 60*time.Second, out.After)
}
