package history

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func fixedNow() time.Time {
	return time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)
}

func TestBuildQueryDefaults(t *testing.T) {
	q, err := BuildQuery(RawQuery{Item: "Mageblood"}, fixedNow())
	require.NoError(t, err)

	assert.Equal(t, Interval{Amount: 1, Unit: IntervalHour}, q.Interval)
	assert.Equal(t, []float64{0.1}, q.Quantiles)
	assert.Equal(t, DefaultLeague, q.League)
	assert.Equal(t, fixedNow(), q.EndTime)
	assert.Equal(t, fixedNow().Add(-defaultTimeframe), q.StartTime)
}

func TestBuildQueryMissingItemRejected(t *testing.T) {
	_, err := BuildQuery(RawQuery{}, fixedNow())
	require.Error(t, err)
	assert.IsType(t, &ValidationError{}, err)
}

func TestBuildQueryPartialIntervalFallsBackToDefault(t *testing.T) {
	q, err := BuildQuery(RawQuery{Item: "Mageblood", IntervalUnit: ptr("hour")}, fixedNow())
	require.NoError(t, err)
	assert.Equal(t, Interval{Amount: 1, Unit: IntervalHour}, q.Interval)

	q2, err := BuildQuery(RawQuery{Item: "Mageblood", IntervalAmount: ptr(5)}, fixedNow())
	require.NoError(t, err)
	assert.Equal(t, Interval{Amount: 1, Unit: IntervalHour}, q2.Interval)
}

func TestBuildQueryMalformedIntervalUnitRejected(t *testing.T) {
	_, err := BuildQuery(RawQuery{
		Item:           "Mageblood",
		IntervalAmount: ptr(1),
		IntervalUnit:   ptr("fortnight"),
	}, fixedNow())
	require.Error(t, err)
}

func TestBuildQueryQuantileOutOfRangeRejected(t *testing.T) {
	for _, q := range []float64{0, 1, -0.1, 1.5} {
		_, err := BuildQuery(RawQuery{Item: "Mageblood", Quantiles: []float64{q}}, fixedNow())
		require.Error(t, err, "quantile %v should be rejected", q)
	}
}

func TestBuildQueryExplicitLeagueOverridesDefault(t *testing.T) {
	q, err := BuildQuery(RawQuery{Item: "Mageblood", League: ptr("Hardcore")}, fixedNow())
	require.NoError(t, err)
	assert.Equal(t, "Hardcore", q.League)
}

func TestBuildQueryPartialTimeframeFillsOtherSideFromDefault(t *testing.T) {
	start := fixedNow().Add(-48 * time.Hour).Unix()
	q, err := BuildQuery(RawQuery{Item: "Mageblood", StartTime: &start}, fixedNow())
	require.NoError(t, err)

	assert.Equal(t, fixedNow(), q.EndTime)
	assert.WithinDuration(t, time.Unix(start, 0).UTC(), q.StartTime, time.Second)
}

func TestBuildSQLEmbedsIntervalAndQuantileLevels(t *testing.T) {
	q, err := BuildQuery(RawQuery{Item: "Mageblood", Quantiles: []float64{0.1, 0.5, 0.9}}, fixedNow())
	require.NoError(t, err)

	sql := buildSQL(q)
	assert.True(t, strings.Contains(sql, "INTERVAL 1 hour"))
	assert.True(t, strings.Contains(sql, "quantiles(0.1, 0.5, 0.9)"))
	assert.True(t, strings.Contains(sql, "name ILIKE ?"))
	assert.True(t, strings.Contains(sql, "league = ?"))
}
