// Package crawler pumps the public stash change-id chain: fetch one page,
// publish its successor id to keep the chain moving, fan the page's
// qualifying stash changes out to the processor.
package crawler

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"github.com/mattsre/poeledger/internal/audit"
	"github.com/mattsre/poeledger/internal/bus"
	"github.com/mattsre/poeledger/internal/poeapi"
)

const (
	SubjectChangeIDs = "river.changeids"
	SubjectStashes   = "river.stashes"

	durableName = "change-id-pump"
)

// StashFetcher is the subset of *poeapi.Client the pump needs. Accepting
// the interface rather than the concrete client lets tests substitute a
// fake without standing up HTTP.
type StashFetcher interface {
	GetPublicStashes(ctx context.Context, nextChangeID string) (*poeapi.PublicStashesResponse, error)
}

// Pump drives the change-id chain over a durable pull consumer bound to
// SubjectChangeIDs.
type Pump struct {
	client StashFetcher
	bus    bus.Bus
	audit  *audit.Sink
	now    func() time.Time
}

func New(client StashFetcher, b bus.Bus, auditSink *audit.Sink) *Pump {
	return &Pump{client: client, bus: b, audit: auditSink, now: time.Now}
}

// Seed publishes the initial change id that starts the chain. Call once,
// at first startup, before Run — a running Pump otherwise has no input
// to consume.
func (p *Pump) Seed(ctx context.Context, changeID string) error {
	return p.bus.Publish(ctx, SubjectChangeIDs, []byte(changeID))
}

// Run blocks consuming SubjectChangeIDs until ctx is canceled.
func (p *Pump) Run(ctx context.Context) error {
	return p.bus.PullSubscribe(ctx, SubjectChangeIDs, durableName, p.handle)
}

// handle implements the pump's per-message steps: decode, fetch, publish
// the successor id, fan out qualifying stash changes, and only then ack.
// Any failure after decode leaves the message un-acked for redelivery; a
// decode failure is unrecoverable and is terminally acked instead so a
// single corrupt id doesn't wedge the stream.
func (p *Pump) handle(ctx context.Context, msg *bus.Message) error {
	changeID := string(msg.Data)
	if !utf8.Valid(msg.Data) {
		log.Error().Str("raw", fmt.Sprintf("%x", msg.Data)).Msg("crawler: change id is not valid UTF-8, terminating")
		if p.audit != nil {
			p.audit.Record(ctx, audit.Event{
				Type:    audit.EventPoison,
				Source:  "river-crawler",
				Message: "change id is not valid UTF-8",
				Detail:  map[string]interface{}{"raw_hex": fmt.Sprintf("%x", msg.Data)},
			}, p.now())
		}
		return msg.Term()
	}

	resp, err := p.client.GetPublicStashes(ctx, changeID)
	if err != nil {
		log.Warn().Err(err).Str("change_id", changeID).Msg("crawler: fetch failed, leaving un-acked")
		return nil
	}

	if err := p.bus.Publish(ctx, SubjectChangeIDs, []byte(resp.NextChangeID)); err != nil {
		log.Warn().Err(err).Str("next_change_id", resp.NextChangeID).
			Msg("crawler: failed publishing next change id, leaving input un-acked")
		return nil
	}

	for _, stash := range resp.Stashes {
		if !stash.Qualifies() {
			continue
		}

		payload, err := json.Marshal(stash)
		if err != nil {
			log.Error().Err(err).Str("stash_id", stash.ID).Msg("crawler: failed encoding stash change")
			return nil
		}

		if err := p.bus.Publish(ctx, SubjectStashes, payload); err != nil {
			log.Warn().Err(err).Str("stash_id", stash.ID).
				Msg("crawler: failed publishing stash change, leaving input un-acked")
			return nil
		}
	}

	return msg.Ack()
}
