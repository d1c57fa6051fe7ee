// Package processor consumes stash changes, filters and prices their
// items, and batch-inserts the resulting listings into the column store.
package processor

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mattsre/poeledger/internal/audit"
	"github.com/mattsre/poeledger/internal/bus"
	"github.com/mattsre/poeledger/internal/listing"
	"github.com/mattsre/poeledger/internal/metrics"
	"github.com/mattsre/poeledger/internal/poeapi"
	"github.com/mattsre/poeledger/internal/pricenote"
)

const (
	SubjectStashes       = "river.stashes"
	SubjectFailedStashes = "river.failed_stashes"

	durableName = "stash-processor"
)

// BatchInserter is the subset of internal/store.Store the processor
// needs. Accepting the interface keeps this package free of a direct
// ClickHouse dependency.
type BatchInserter interface {
	CreateBatch(ctx context.Context, listings []listing.Listing) error
}

// Processor drives stash consumption over a durable pull consumer bound
// to SubjectStashes.
type Processor struct {
	store   BatchInserter
	bus     bus.Bus
	now     func() time.Time
	metrics *metrics.Registry
	audit   *audit.Sink
}

func New(store BatchInserter, b bus.Bus, reg *metrics.Registry, auditSink *audit.Sink) *Processor {
	return &Processor{store: store, bus: b, now: time.Now, metrics: reg, audit: auditSink}
}

func (p *Processor) Run(ctx context.Context) error {
	return p.bus.PullSubscribe(ctx, SubjectStashes, durableName, p.handle)
}

// handle implements the per-message steps: decode-or-quarantine, filter
// and price items into one batch, insert the batch, ack. An insert
// failure leaves the message un-acked so the batch is retried in full —
// the store's append-only writes make a retried insert a safe duplicate,
// not a double-count (deduplicated downstream by item_id, out of scope
// here).
func (p *Processor) handle(ctx context.Context, msg *bus.Message) error {
	var stash poeapi.StashChange
	if err := json.Unmarshal(msg.Data, &stash); err != nil {
		log.Error().Err(err).Msg("processor: undecodable stash change, quarantining")
		if pubErr := p.bus.Publish(ctx, SubjectFailedStashes, msg.Data); pubErr != nil {
			log.Error().Err(pubErr).Msg("processor: failed publishing to failed-stashes subject")
			return nil
		}
		if p.metrics != nil {
			p.metrics.QuarantinedStashes.Inc()
			p.metrics.StashesProcessed.WithLabelValues("quarantined").Inc()
		}
		if p.audit != nil {
			p.audit.Record(ctx, audit.Event{
				Type:    audit.EventQuarantine,
				Source:  "stash-processor",
				Message: "undecodable stash change",
			}, p.now())
		}
		return msg.Term()
	}

	listings := make([]listing.Listing, 0, len(stash.Items))
	for _, item := range stash.Items {
		if !item.Qualifies() {
			continue
		}

		price, matched, err := pricenote.Parse(item.Note)
		if err != nil {
			log.Warn().Err(err).Str("item_id", item.ID).Msg("processor: price note parse failed, skipping item")
			if p.metrics != nil {
				p.metrics.ItemsSkipped.WithLabelValues("parse_error").Inc()
			}
			continue
		}
		if !matched {
			if p.metrics != nil {
				p.metrics.ItemsSkipped.WithLabelValues("no_price_note").Inc()
			}
			continue
		}

		listings = append(listings, listing.Listing{
			ItemID: item.ID,
			Name:   item.Name,
			League: stash.League,
			Price: listing.Price{
				ListedPrice:    price.ListedPrice,
				ListedCurrency: price.ListedCurrency,
			},
			ImplicitMods: item.ImplicitMods,
			ExplicitMods: item.ExplicitMods,
			CreatedAt:    p.now(),
		})
	}

	if len(listings) == 0 {
		if p.metrics != nil {
			p.metrics.StashesProcessed.WithLabelValues("empty").Inc()
		}
		return msg.Ack()
	}

	if err := p.store.CreateBatch(ctx, listings); err != nil {
		log.Warn().Err(err).Str("stash_id", stash.ID).Msg("processor: batch insert failed, leaving un-acked")
		return nil
	}

	if p.metrics != nil {
		p.metrics.StashesProcessed.WithLabelValues("inserted").Inc()
		p.metrics.ListingsInserted.Add(float64(len(listings)))
	}

	return msg.Ack()
}
