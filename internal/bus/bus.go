// Package bus defines the publish/consume contract the crawler and
// processor are built against. The real implementation (natsbus) sits on
// a NATS JetStream durable stream; busmock is an in-memory double for
// tests.
package bus

import (
	"context"
	"errors"
	"time"
)

// ErrNotConnected is returned by any operation attempted before Connect
// or after Close.
var ErrNotConnected = errors.New("bus: not connected")

// Message is one delivered item. Ack/Nak/Term control redelivery: Ack
// marks the message permanently handled, Nak asks for immediate
// redelivery, Term marks it permanently handled but logs it as a
// terminal failure (used for poison messages).
type Message struct {
	Subject string
	Data    []byte

	ackFn  func() error
	nakFn  func() error
	termFn func() error
}

func NewMessage(subject string, data []byte, ackFn, nakFn, termFn func() error) *Message {
	return &Message{Subject: subject, Data: data, ackFn: ackFn, nakFn: nakFn, termFn: termFn}
}

func (m *Message) Ack() error {
	if m.ackFn == nil {
		return nil
	}
	return m.ackFn()
}

func (m *Message) Nak() error {
	if m.nakFn == nil {
		return nil
	}
	return m.nakFn()
}

func (m *Message) Term() error {
	if m.termFn == nil {
		return nil
	}
	return m.termFn()
}

// Handler processes one delivered message and owns its ack decision: it
// calls Ack, Nak or Term on msg itself (see internal/crawler and
// internal/processor). The caller driving the pull loop never acks on the
// handler's behalf, so a handler that returns without acking leaves the
// message un-acked for redelivery.
type Handler func(ctx context.Context, msg *Message) error

// Bus is the minimal durable pub/sub surface the pipeline needs: publish
// a payload to a subject, and pull-consume a durable, explicitly-acked
// subscription against one.
type Bus interface {
	Connect(ctx context.Context) error
	Close() error

	Publish(ctx context.Context, subject string, data []byte) error

	// PullSubscribe binds a durable pull consumer to subject and fetches
	// messages in batches, invoking handler for each. It blocks until ctx
	// is canceled.
	PullSubscribe(ctx context.Context, subject, durable string, handler Handler) error

	Health(ctx context.Context) error
}

// FetchConfig tunes the pull-consumer batching behavior.
type FetchConfig struct {
	BatchSize   int
	FetchWait   time.Duration
	AckWait     time.Duration
	MaxDeliver  int
}

// DefaultFetchConfig matches the single-message-at-a-time processing the
// crawler and processor loops are written against.
func DefaultFetchConfig() FetchConfig {
	return FetchConfig{
		BatchSize:  1,
		FetchWait:  5 * time.Second,
		AckWait:    30 * time.Second,
		MaxDeliver: -1,
	}
}
