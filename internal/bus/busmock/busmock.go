// Package busmock is an in-memory bus.Bus double for tests: Publish
// delivers synchronously to any durable pull consumer registered on the
// same subject, so a published message is visible before Publish
// returns.
package busmock

import (
	"context"
	"fmt"
	"sync"

	"github.com/mattsre/poeledger/internal/bus"
)

// Bus is a single-process, in-memory stand-in for natsbus.Bus. It
// supports exactly one PullSubscribe per subject — enough to exercise
// the crawler/processor pipelines end to end without a broker.
type Bus struct {
	mu          sync.Mutex
	connected   bool
	subscribers map[string]bus.Handler

	// Published records every message ever published, keyed by subject,
	// for assertions in tests.
	Published map[string][][]byte

	// acked/nacked/termed record terminal outcomes per subject, for
	// assertions in tests.
	Acked  map[string]int
	Nacked map[string]int
	Termed map[string]int
}

func New() *Bus {
	return &Bus{
		subscribers: make(map[string]bus.Handler),
		Published:   make(map[string][][]byte),
		Acked:       make(map[string]int),
		Nacked:      make(map[string]int),
		Termed:      make(map[string]int),
	}
}

func (b *Bus) Connect(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.connected = true
	return nil
}

func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.connected = false
	return nil
}

func (b *Bus) Health(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.connected {
		return bus.ErrNotConnected
	}
	return nil
}

// Publish records the message and, if a handler is subscribed to
// subject, invokes it synchronously. This mirrors at-least-once
// delivery closely enough for pipeline tests: a publish made from
// inside a handler (the crawler's chaining step) recurses back into
// Publish before the outer handler returns, just as a NATS republish
// can be picked up by a concurrent consumer before the publisher acks.
func (b *Bus) Publish(ctx context.Context, subject string, data []byte) error {
	b.mu.Lock()
	if !b.connected {
		b.mu.Unlock()
		return bus.ErrNotConnected
	}
	b.Published[subject] = append(b.Published[subject], append([]byte(nil), data...))
	handler := b.subscribers[subject]
	b.mu.Unlock()

	if handler == nil {
		return nil
	}

	msg := bus.NewMessage(subject, data,
		func() error { b.mu.Lock(); b.Acked[subject]++; b.mu.Unlock(); return nil },
		func() error { b.mu.Lock(); b.Nacked[subject]++; b.mu.Unlock(); return nil },
		func() error { b.mu.Lock(); b.Termed[subject]++; b.mu.Unlock(); return nil },
	)
	return handler(ctx, msg)
}

// PullSubscribe registers handler as the subject's sole consumer and
// blocks until ctx is canceled. Messages arrive via Publish, not via a
// fetch loop — there is nothing to poll in-memory.
func (b *Bus) PullSubscribe(ctx context.Context, subject, durable string, handler bus.Handler) error {
	b.mu.Lock()
	if _, exists := b.subscribers[subject]; exists {
		b.mu.Unlock()
		return fmt.Errorf("busmock: subject %s already has a subscriber", subject)
	}
	b.subscribers[subject] = handler
	b.mu.Unlock()

	<-ctx.Done()

	b.mu.Lock()
	delete(b.subscribers, subject)
	b.mu.Unlock()

	return ctx.Err()
}
