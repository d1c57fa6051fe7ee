package crawler

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattsre/poeledger/internal/bus/busmock"
	"github.com/mattsre/poeledger/internal/poeapi"
)

type fakeFetcher struct {
	responses map[string]*poeapi.PublicStashesResponse
	err       error
}

func (f *fakeFetcher) GetPublicStashes(ctx context.Context, changeID string) (*poeapi.PublicStashesResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	resp, ok := f.responses[changeID]
	if !ok {
		return nil, poeapi.ErrUnknown
	}
	return resp, nil
}

func unique(frame poeapi.FrameType) *poeapi.FrameType {
	return &frame
}

func TestPumpPublishesNextIDAndQualifyingStashes(t *testing.T) {
	b := busmock.New()
	require.NoError(t, b.Connect(context.Background()))

	fetcher := &fakeFetcher{responses: map[string]*poeapi.PublicStashesResponse{
		"seed-1": {
			NextChangeID: "seed-2",
			Stashes: []poeapi.StashChange{
				{ID: "s1", Public: true, League: "Standard", Items: []poeapi.Item{
					{ID: "i1", Name: "Headhunter", Note: "~price 50 exa", FrameType: unique(poeapi.FrameUnique)},
				}},
				{ID: "s2", Public: false, League: "Standard"},
			},
		},
	}}

	pump := New(fetcher, b, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- pump.Run(ctx) }()
	time.Sleep(10 * time.Millisecond)

	require.NoError(t, b.Publish(ctx, SubjectChangeIDs, []byte("seed-1")))
	<-done

	assert.Contains(t, b.Published[SubjectChangeIDs], []byte("seed-2"))
	require.Len(t, b.Published[SubjectStashes], 1)

	var published poeapi.StashChange
	require.NoError(t, json.Unmarshal(b.Published[SubjectStashes][0], &published))
	assert.Equal(t, "s1", published.ID)

	assert.Equal(t, 1, b.Acked[SubjectChangeIDs])
}

func TestPumpLeavesMessageUnackedOnFetchFailure(t *testing.T) {
	b := busmock.New()
	require.NoError(t, b.Connect(context.Background()))

	fetcher := &fakeFetcher{err: poeapi.ErrSendFailed}
	pump := New(fetcher, b, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- pump.Run(ctx) }()
	time.Sleep(10 * time.Millisecond)

	require.NoError(t, b.Publish(ctx, SubjectChangeIDs, []byte("seed-1")))
	<-done

	assert.Zero(t, b.Acked[SubjectChangeIDs])
	assert.Empty(t, b.Published[SubjectStashes])
}

func TestPumpTerminatesInvalidUTF8ChangeID(t *testing.T) {
	b := busmock.New()
	require.NoError(t, b.Connect(context.Background()))

	pump := New(&fakeFetcher{}, b, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- pump.Run(ctx) }()
	time.Sleep(10 * time.Millisecond)

	require.NoError(t, b.Publish(ctx, SubjectChangeIDs, []byte{0xff, 0xfe}))
	<-done

	assert.Equal(t, 1, b.Termed[SubjectChangeIDs])
}
