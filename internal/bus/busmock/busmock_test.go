package busmock

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattsre/poeledger/internal/bus"
)

func waitForSubscriber(b *Bus, subject string) {
	for {
		b.mu.Lock()
		_, ok := b.subscribers[subject]
		b.mu.Unlock()
		if ok {
			return
		}
		time.Sleep(time.Millisecond)
	}
}

func TestPublishDeliversToSubscriber(t *testing.T) {
	b := New()
	require.NoError(t, b.Connect(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var received []byte
	var wg sync.WaitGroup
	wg.Add(1)

	go func() {
		_ = b.PullSubscribe(ctx, "river.changeids", "pump", func(ctx context.Context, msg *bus.Message) error {
			received = msg.Data
			wg.Done()
			return msg.Ack()
		})
	}()

	waitForSubscriber(b, "river.changeids")

	require.NoError(t, b.Publish(ctx, "river.changeids", []byte("abc-123")))
	wg.Wait()

	assert.Equal(t, []byte("abc-123"), received)
	assert.Equal(t, 1, b.Acked["river.changeids"])
}

func TestPublishWithNoSubscriberStillRecords(t *testing.T) {
	b := New()
	require.NoError(t, b.Connect(context.Background()))

	require.NoError(t, b.Publish(context.Background(), "river.failed_stashes", []byte("bad-payload")))

	assert.Equal(t, [][]byte{[]byte("bad-payload")}, b.Published["river.failed_stashes"])
}

func TestPublishBeforeConnectFails(t *testing.T) {
	b := New()
	err := b.Publish(context.Background(), "river.stashes", []byte("x"))
	assert.ErrorIs(t, err, bus.ErrNotConnected)
}

func TestDoubleSubscribeOnSameSubjectFails(t *testing.T) {
	b := New()
	require.NoError(t, b.Connect(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		_ = b.PullSubscribe(ctx, "river.stashes", "proc-1", func(context.Context, *bus.Message) error { return nil })
	}()

	waitForSubscriber(b, "river.stashes")

	err := b.PullSubscribe(context.Background(), "river.stashes", "proc-2", func(context.Context, *bus.Message) error { return nil })
	assert.Error(t, err)
}
