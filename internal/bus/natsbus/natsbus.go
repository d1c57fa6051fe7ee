// Package natsbus implements bus.Bus over a NATS JetStream connection:
// a durable stream per subject, a durable pull consumer per subscriber,
// explicit ack/nak/terminate.
package natsbus

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"

	"github.com/mattsre/poeledger/internal/bus"
)

// Bus is a JetStream-backed bus.Bus. One Bus is shared by every
// publisher/subscriber in a process; JetStream contexts are safe for
// concurrent use.
type Bus struct {
	url    string
	opts   []nats.Option
	fetch  bus.FetchConfig

	mu   sync.RWMutex
	conn *nats.Conn
	js   jetstream.JetStream
}

// New builds a Bus that will dial url on Connect. streamName/subjects
// are declared lazily: PullSubscribe creates the backing stream if it
// doesn't already exist, scoped to the subject it's asked to bind.
func New(url string, fetch bus.FetchConfig) *Bus {
	return &Bus{
		url: url,
		opts: []nats.Option{
			nats.MaxReconnects(-1),
			nats.ReconnectWait(2 * time.Second),
			nats.Timeout(10 * time.Second),
		},
		fetch: fetch,
	}
}

func (b *Bus) Connect(ctx context.Context) error {
	conn, err := nats.Connect(b.url, b.opts...)
	if err != nil {
		return fmt.Errorf("natsbus: connect: %w", err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return fmt.Errorf("natsbus: jetstream context: %w", err)
	}

	b.mu.Lock()
	b.conn = conn
	b.js = js
	b.mu.Unlock()

	return nil
}

func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.conn == nil {
		return nil
	}
	b.conn.Close()
	b.conn = nil
	b.js = nil
	return nil
}

func (b *Bus) jetstreamCtx() (jetstream.JetStream, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.js == nil {
		return nil, bus.ErrNotConnected
	}
	return b.js, nil
}

func (b *Bus) Publish(ctx context.Context, subject string, data []byte) error {
	js, err := b.jetstreamCtx()
	if err != nil {
		return err
	}

	if _, err := b.ensureStream(ctx, js, subject); err != nil {
		return err
	}

	if _, err := js.Publish(ctx, subject, data); err != nil {
		return fmt.Errorf("natsbus: publish %s: %w", subject, err)
	}
	return nil
}

// PullSubscribe binds (creating if needed) a durable pull consumer on
// subject and loops fetching batches until ctx is canceled. handler
// controls ack/nak/term via the Message it's given; PullSubscribe never
// acks on the handler's behalf.
func (b *Bus) PullSubscribe(ctx context.Context, subject, durable string, handler bus.Handler) error {
	js, err := b.jetstreamCtx()
	if err != nil {
		return err
	}

	stream, err := b.ensureStream(ctx, js, subject)
	if err != nil {
		return err
	}

	consumer, err := stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		Durable:       durable,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       b.fetch.AckWait,
		MaxDeliver:    b.fetch.MaxDeliver,
		FilterSubject: subject,
	})
	if err != nil {
		return fmt.Errorf("natsbus: create consumer %s/%s: %w", subject, durable, err)
	}

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		msgBatch, err := consumer.Fetch(b.fetch.BatchSize, jetstream.FetchMaxWait(b.fetch.FetchWait))
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Warn().Err(err).Str("subject", subject).Msg("natsbus: fetch failed, retrying")
			continue
		}

		for msg := range msgBatch.Messages() {
			wrapped := bus.NewMessage(subject, msg.Data(),
				func() error { return msg.Ack() },
				func() error { return msg.Nak() },
				func() error { return msg.Term() },
			)
			if err := handler(ctx, wrapped); err != nil {
				log.Error().Err(err).Str("subject", subject).Msg("natsbus: handler returned error")
			}
		}

		if err := msgBatch.Error(); err != nil && ctx.Err() == nil {
			log.Warn().Err(err).Str("subject", subject).Msg("natsbus: batch delivery error")
		}
	}
}

func (b *Bus) Health(ctx context.Context) error {
	b.mu.RLock()
	conn := b.conn
	b.mu.RUnlock()

	if conn == nil || !conn.IsConnected() {
		return bus.ErrNotConnected
	}
	return nil
}

// ensureStream creates a one-subject-per-stream JetStream stream named
// after the subject if it doesn't already exist, matching the river
// pipeline's subject layout (river.changeids, river.stashes,
// river.failed_stashes each own a stream).
func (b *Bus) ensureStream(ctx context.Context, js jetstream.JetStream, subject string) (jetstream.Stream, error) {
	name := streamNameFor(subject)

	stream, err := js.Stream(ctx, name)
	if err == nil {
		return stream, nil
	}

	return js.CreateStream(ctx, jetstream.StreamConfig{
		Name:      name,
		Subjects:  []string{subject},
		Retention: jetstream.LimitsPolicy,
		Storage:   jetstream.FileStorage,
	})
}

func streamNameFor(subject string) string {
	out := make([]byte, 0, len(subject))
	for i := 0; i < len(subject); i++ {
		c := subject[i]
		if c == '.' {
			out = append(out, '_')
			continue
		}
		out = append(out, c)
	}
	return string(out)
}
