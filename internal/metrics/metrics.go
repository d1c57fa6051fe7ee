// Package metrics is the process-wide prometheus registry for the river
// pipeline: stashes processed, listings inserted, rate-limit retries,
// quarantined messages, and history query latency.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Registry holds every metric this pipeline exports.
type Registry struct {
	StashesProcessed   *prometheus.CounterVec
	ListingsInserted   prometheus.Counter
	ItemsSkipped       *prometheus.CounterVec
	RateLimitRetries   *prometheus.CounterVec
	QuarantinedStashes prometheus.Counter
	QueryDuration      prometheus.Histogram
	QueryErrors        prometheus.Counter
}

// New creates a Registry and registers every metric against reg.
func New(reg prometheus.Registerer) *Registry {
	r := &Registry{
		StashesProcessed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "poeledger_stashes_processed_total",
				Help: "Total stash changes consumed from river.stashes, by outcome",
			},
			[]string{"outcome"}, // "inserted", "empty", "quarantined"
		),
		ListingsInserted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "poeledger_listings_inserted_total",
				Help: "Total listings written to the column store",
			},
		),
		ItemsSkipped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "poeledger_items_skipped_total",
				Help: "Total qualifying items skipped, by reason",
			},
			[]string{"reason"}, // "parse_error", "no_price_note"
		),
		RateLimitRetries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "poeledger_rate_limit_retries_total",
				Help: "Total times the rate limiter decided Retry, by endpoint",
			},
			[]string{"endpoint"},
		),
		QuarantinedStashes: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "poeledger_quarantined_stashes_total",
				Help: "Total stash messages republished to river.failed_stashes",
			},
		),
		QueryDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "poeledger_history_query_duration_seconds",
				Help:    "Duration of history API query-engine calls",
				Buckets: prometheus.DefBuckets,
			},
		),
		QueryErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "poeledger_history_query_errors_total",
				Help: "Total history API queries that returned a store error",
			},
		),
	}

	reg.MustRegister(
		r.StashesProcessed,
		r.ListingsInserted,
		r.ItemsSkipped,
		r.RateLimitRetries,
		r.QuarantinedStashes,
		r.QueryDuration,
		r.QueryErrors,
	)

	return r
}
