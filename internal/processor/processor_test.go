package processor

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattsre/poeledger/internal/bus/busmock"
	"github.com/mattsre/poeledger/internal/listing"
	"github.com/mattsre/poeledger/internal/poeapi"
)

type fakeStore struct {
	mu      sync.Mutex
	batches [][]listing.Listing
	err     error
}

func (f *fakeStore) CreateBatch(ctx context.Context, listings []listing.Listing) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.batches = append(f.batches, listings)
	return nil
}

func unique(frame poeapi.FrameType) *poeapi.FrameType {
	return &frame
}

func TestProcessorInsertsQualifyingListingsAndAcks(t *testing.T) {
	b := busmock.New()
	require.NoError(t, b.Connect(context.Background()))
	store := &fakeStore{}
	proc := New(store, b, nil, nil)

	stash := poeapi.StashChange{
		ID:     "s1",
		Public: true,
		League: "Standard",
		Items: []poeapi.Item{
			{ID: "i1", Name: "Headhunter", Note: "~price 50 exa", FrameType: unique(poeapi.FrameUnique)},
			{ID: "i2", Name: "Rare Boots", Note: "~price 1 chaos", FrameType: unique(poeapi.FrameRare)},
		},
	}
	payload, err := json.Marshal(stash)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- proc.Run(ctx) }()
	time.Sleep(10 * time.Millisecond)

	require.NoError(t, b.Publish(ctx, SubjectStashes, payload))
	<-done

	require.Len(t, store.batches, 1)
	require.Len(t, store.batches[0], 1)
	assert.Equal(t, "i1", store.batches[0][0].ItemID)
	assert.Equal(t, listing.CurrencyExalted, store.batches[0][0].Price.ListedCurrency)
	assert.Equal(t, 1, b.Acked[SubjectStashes])
}

func TestProcessorQuarantinesUndecodablePayload(t *testing.T) {
	b := busmock.New()
	require.NoError(t, b.Connect(context.Background()))
	store := &fakeStore{}
	proc := New(store, b, nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- proc.Run(ctx) }()
	time.Sleep(10 * time.Millisecond)

	require.NoError(t, b.Publish(ctx, SubjectStashes, []byte("not json")))
	<-done

	assert.Equal(t, 1, b.Termed[SubjectStashes])
	require.Len(t, b.Published[SubjectFailedStashes], 1)
	assert.Equal(t, "not json", string(b.Published[SubjectFailedStashes][0]))
	assert.Empty(t, store.batches)
}

func TestProcessorLeavesMessageUnackedOnInsertFailure(t *testing.T) {
	b := busmock.New()
	require.NoError(t, b.Connect(context.Background()))
	store := &fakeStore{err: assertErr}
	proc := New(store, b, nil, nil)

	stash := poeapi.StashChange{
		ID: "s1", Public: true, League: "Standard",
		Items: []poeapi.Item{{ID: "i1", Name: "Headhunter", Note: "~price 50 exa", FrameType: unique(poeapi.FrameUnique)}},
	}
	payload, err := json.Marshal(stash)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- proc.Run(ctx) }()
	time.Sleep(10 * time.Millisecond)

	require.NoError(t, b.Publish(ctx, SubjectStashes, payload))
	<-done

	assert.Zero(t, b.Acked[SubjectStashes])
}

func TestProcessorSkipsNonQualifyingItemsAcksWithNoInsert(t *testing.T) {
	b := busmock.New()
	require.NoError(t, b.Connect(context.Background()))
	store := &fakeStore{}
	proc := New(store, b, nil, nil)

	stash := poeapi.StashChange{
		ID: "s1", Public: true, League: "Standard",
		Items: []poeapi.Item{{ID: "i1", Name: "Chaos Orb", Note: "~price 1 chaos", FrameType: unique(poeapi.FrameCurrency)}},
	}
	payload, err := json.Marshal(stash)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- proc.Run(ctx) }()
	time.Sleep(10 * time.Millisecond)

	require.NoError(t, b.Publish(ctx, SubjectStashes, payload))
	<-done

	assert.Empty(t, store.batches)
	assert.Equal(t, 1, b.Acked[SubjectStashes])
}

var assertErr = &insertError{"insert failed"}

type insertError struct{ msg string }

func (e *insertError) Error() string { return e.msg }
