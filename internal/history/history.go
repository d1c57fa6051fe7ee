// Package history implements the price-history query engine: validate
// and default a query, build the single quantile-aggregation SQL
// statement, and scan results into buckets.
package history

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/mattsre/poeledger/internal/metrics"
)

// IntervalUnit is the closed set of bucket-width units.
type IntervalUnit string

const (
	IntervalMinute IntervalUnit = "minute"
	IntervalHour   IntervalUnit = "hour"
	IntervalWeek   IntervalUnit = "week"
	IntervalMonth  IntervalUnit = "month"
	IntervalYear   IntervalUnit = "year"
)

func (u IntervalUnit) valid() bool {
	switch u {
	case IntervalMinute, IntervalHour, IntervalWeek, IntervalMonth, IntervalYear:
		return true
	default:
		return false
	}
}

// DefaultLeague is the compile-time fallback league when a query omits one.
const DefaultLeague = "Standard"

const defaultTimeframe = 7 * 24 * time.Hour

// Interval is a bucket width: "amount unit", e.g. (1, hour).
type Interval struct {
	Amount int
	Unit   IntervalUnit
}

// Query is the validated, defaulted shape of a history request.
type Query struct {
	Item      string
	League    string
	Interval  Interval
	Quantiles []float64
	StartTime time.Time
	EndTime   time.Time
}

// RawQuery is the unvalidated shape as parsed off the wire: pointer
// fields distinguish "not supplied" from the zero value.
type RawQuery struct {
	Item           string
	League         *string
	IntervalAmount *int
	IntervalUnit   *string
	Quantiles      []float64
	StartTime      *int64
	EndTime        *int64
}

// ValidationError is a 400-mapped error: malformed interval, out-of-range
// quantile, or missing required field.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// BuildQuery validates raw and fills in every default, or returns a
// ValidationError. now is injected so callers control the "last 7 days"
// anchor deterministically in tests.
func BuildQuery(raw RawQuery, now time.Time) (Query, error) {
	if raw.Item == "" {
		return Query{}, &ValidationError{Message: "item is required"}
	}

	interval, err := resolveInterval(raw.IntervalAmount, raw.IntervalUnit)
	if err != nil {
		return Query{}, err
	}

	quantiles := raw.Quantiles
	if len(quantiles) == 0 {
		quantiles = []float64{0.1}
	}
	for _, q := range quantiles {
		if q <= 0 || q >= 1 {
			return Query{}, &ValidationError{Message: fmt.Sprintf("quantile %v must lie strictly between 0 and 1", q)}
		}
	}

	league := DefaultLeague
	if raw.League != nil && *raw.League != "" {
		league = *raw.League
	}

	start, end := resolveTimeframe(raw.StartTime, raw.EndTime, now)

	return Query{
		Item:      raw.Item,
		League:    league,
		Interval:  interval,
		Quantiles: quantiles,
		StartTime: start,
		EndTime:   end,
	}, nil
}

// resolveInterval applies the "missing → default, partial → default,
// malformed unit → error" rule: a partially-specified interval (amount
// without unit, or vice versa) is not an error, it falls back entirely
// to the default rather than mixing the supplied half with a default
// for the other.
func resolveInterval(amount *int, unit *string) (Interval, error) {
	def := Interval{Amount: 1, Unit: IntervalHour}

	if amount == nil && unit == nil {
		return def, nil
	}
	if amount == nil || unit == nil {
		return def, nil
	}

	u := IntervalUnit(*unit)
	if !u.valid() {
		return Interval{}, &ValidationError{Message: fmt.Sprintf("invalid interval unit %q", *unit)}
	}
	if *amount <= 0 {
		return Interval{}, &ValidationError{Message: "interval amount must be positive"}
	}

	return Interval{Amount: *amount, Unit: u}, nil
}

func resolveTimeframe(start, end *int64, now time.Time) (time.Time, time.Time) {
	e := now
	if end != nil {
		e = time.Unix(*end, 0).UTC()
	}

	s := e.Add(-defaultTimeframe)
	if start != nil {
		s = time.Unix(*start, 0).UTC()
	}

	return s, e
}

// Bucket is one row of the aggregated result.
type Bucket struct {
	BucketStart    time.Time `json:"bucketStart"`
	Name           string    `json:"name"`
	ListedCurrency string    `json:"listedCurrency"`
	Quantiles      []float64 `json:"quantiles"`
}

// Engine runs validated Query values against the column store.
type Engine struct {
	db      *sqlx.DB
	metrics *metrics.Registry
}

func New(db *sqlx.DB, reg *metrics.Registry) *Engine {
	return &Engine{db: db, metrics: reg}
}

// Query builds and runs the single toStartOfInterval/quantiles
// aggregation. name and league are parameter-bound; interval, the
// quantile list, and the timeframe boundaries are trusted-interpolated
// because BuildQuery has already validated them — ClickHouse's
// quantiles(...) function takes its quantile levels as SQL literals,
// not bind parameters, so there is no safe way to parameter-bind them
// even if it were desirable.
func (e *Engine) Query(ctx context.Context, q Query) ([]Bucket, error) {
	start := time.Now()
	buckets, err := e.query(ctx, q)
	if e.metrics != nil {
		e.metrics.QueryDuration.Observe(time.Since(start).Seconds())
		if err != nil {
			e.metrics.QueryErrors.Inc()
		}
	}
	return buckets, err
}

func (e *Engine) query(ctx context.Context, q Query) ([]Bucket, error) {
	sql := buildSQL(q)

	rows, err := e.db.QueryxContext(ctx, sql, q.Item, q.League)
	if err != nil {
		return nil, fmt.Errorf("history: query: %w", err)
	}
	defer rows.Close()

	buckets := make([]Bucket, 0)
	for rows.Next() {
		var b Bucket
		var quantiles quantileArrayScan
		if err := rows.Scan(&b.BucketStart, &b.Name, &b.ListedCurrency, &quantiles); err != nil {
			return nil, fmt.Errorf("history: scan: %w", err)
		}
		b.Quantiles = quantiles
		buckets = append(buckets, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: rows: %w", err)
	}

	return buckets, nil
}

// quantileArrayScan adapts ClickHouse's Array(Float64) quantile result
// to database/sql.Scanner without pulling in the native driver's typed
// array support.
type quantileArrayScan []float64

func (q *quantileArrayScan) Scan(src interface{}) error {
	values, ok := src.([]float64)
	if !ok {
		return fmt.Errorf("history: unexpected quantile column type %T", src)
	}
	*q = values
	return nil
}

func buildSQL(q Query) string {
	return fmt.Sprintf(`
SELECT
	toStartOfInterval(created_at, INTERVAL %d %s) AS bucket_start,
	name,
	listed_currency,
	quantiles(%s)(listed_price) AS quantile_values
FROM listings
WHERE name ILIKE ?
	AND league = ?
	AND created_at BETWEEN '%s' AND '%s'
GROUP BY bucket_start, name, listed_currency
ORDER BY bucket_start ASC`,
		q.Interval.Amount, q.Interval.Unit,
		quantileLevelsSQL(q.Quantiles),
		q.StartTime.UTC().Format("2006-01-02 15:04:05"),
		q.EndTime.UTC().Format("2006-01-02 15:04:05"),
	)
}

func quantileLevelsSQL(levels []float64) string {
	out := ""
	for i, l := range levels {
		if i > 0 {
			out += ", "
		}
		out += fmt.Sprintf("%g", l)
	}
	return out
}
