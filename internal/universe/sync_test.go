package universe

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"poke-platform/internal/storage"
)

type fakeFeed struct {
	sets       []Set
	setsErr    error
	cardsBySet map[string][]Card
	cardsErr   map[string]error
}

func (f *fakeFeed) ListSets(context.Context) ([]Set, error) {
	if f.setsErr != nil {
		return nil, f.setsErr
	}
	return f.sets, nil
}

func (f *fakeFeed) ListSetCards(_ context.Context, setID string) ([]Card, error) {
	if err := f.cardsErr[setID]; err != nil {
		return nil, err
	}
	return f.cardsBySet[setID], nil
}

type fakeCardStore struct {
	upserted []storage.CardMetadata
	err      error
}

func (f *fakeCardStore) UpsertCards(_ context.Context, cards []storage.CardMetadata) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.upserted = append(f.upserted, cards...)
	return len(cards), nil
}

func (f *fakeCardStore) ActiveCardDocs(context.Context) ([]storage.CardDoc, error) {
	return nil, nil
}

func TestSyncUpsertsSelectedSets(t *testing.T) {
	snapshot := time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC)
	feed := &fakeFeed{
		sets: []Set{
			{ID: "sv1", Name: "Scarlet & Violet", ReleaseDate: "2023/03/31"},
			{ID: "base1", Name: "Base", ReleaseDate: "1999/01/09"},
		},
		cardsBySet: map[string][]Card{
			"sv1": {
				{ID: "sv1-1", Name: "Sprigatito", SetID: "sv1", SetName: "Scarlet & Violet", Raw: []byte(`{"id":"sv1-1"}`)},
				{ID: "sv1-2", Name: "Floragato", SetID: "sv1", SetName: "Scarlet & Violet", Raw: []byte(`{"id":"sv1-2"}`)},
			},
		},
	}
	store := &fakeCardStore{}

	summary, err := NewSyncer(feed, store, 10, zerolog.Nop()).Sync(context.Background(), snapshot)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.SetsSeen)
	assert.Equal(t, 1, summary.SetsSelected, "1999 set falls outside the 10y cutoff")
	assert.Equal(t, 0, summary.SetsFailed)
	assert.Equal(t, 2, summary.CardsUpserted)

	require.Len(t, store.upserted, 2)
	first := store.upserted[0]
	assert.Equal(t, "ptcg:sv1-1", first.AssetID)
	assert.Equal(t, "sv1-1", first.PTCGCardID)
	assert.True(t, storage.SameDate(first.SnapshotDate, snapshot))
	require.NotNil(t, first.SetReleaseDate)
	assert.Equal(t, time.Date(2023, 3, 31, 0, 0, 0, 0, time.UTC), *first.SetReleaseDate)
}

func TestSyncKeepsSetsWithoutReleaseDate(t *testing.T) {
	snapshot := time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC)
	feed := &fakeFeed{
		sets: []Set{{ID: "promo", Name: "Promos"}},
		cardsBySet: map[string][]Card{
			"promo": {{ID: "promo-1", Name: "Pikachu", Raw: []byte(`{"id":"promo-1"}`)}},
		},
	}
	store := &fakeCardStore{}

	summary, err := NewSyncer(feed, store, 10, zerolog.Nop()).Sync(context.Background(), snapshot)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.SetsSelected)
	require.Len(t, store.upserted, 1)
	assert.Nil(t, store.upserted[0].SetReleaseDate)
	// Set identity falls back to the listing when the doc omits it.
	assert.Equal(t, "promo", store.upserted[0].SetID)
	assert.Equal(t, "Promos", store.upserted[0].SetName)
}

func TestSyncZeroCutoffDisablesFilter(t *testing.T) {
	snapshot := time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC)
	feed := &fakeFeed{
		sets: []Set{{ID: "base1", Name: "Base", ReleaseDate: "1999/01/09"}},
		cardsBySet: map[string][]Card{
			"base1": {{ID: "base1-4", Name: "Charizard", Raw: []byte(`{"id":"base1-4"}`)}},
		},
	}
	store := &fakeCardStore{}

	summary, err := NewSyncer(feed, store, 0, zerolog.Nop()).Sync(context.Background(), snapshot)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.SetsSelected)
	assert.Equal(t, 1, summary.CardsUpserted)
}

func TestSyncIsolatesFailingSet(t *testing.T) {
	snapshot := time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC)
	feed := &fakeFeed{
		sets: []Set{
			{ID: "sv1", Name: "Scarlet & Violet", ReleaseDate: "2023/03/31"},
			{ID: "sv2", Name: "Paldea Evolved", ReleaseDate: "2023/06/09"},
		},
		cardsBySet: map[string][]Card{
			"sv2": {{ID: "sv2-1", Name: "Tarountula", Raw: []byte(`{"id":"sv2-1"}`)}},
		},
		cardsErr: map[string]error{"sv1": errors.New("upstream timeout")},
	}
	store := &fakeCardStore{}

	summary, err := NewSyncer(feed, store, 10, zerolog.Nop()).Sync(context.Background(), snapshot)
	require.NoError(t, err, "one failing set does not abort the sync")
	assert.Equal(t, 2, summary.SetsSelected)
	assert.Equal(t, 1, summary.SetsFailed)
	assert.Equal(t, 1, summary.CardsUpserted)
	require.Len(t, store.upserted, 1)
	assert.Equal(t, "ptcg:sv2-1", store.upserted[0].AssetID)
}

func TestSyncListSetsFailureAborts(t *testing.T) {
	feed := &fakeFeed{setsErr: errors.New("connection refused")}
	store := &fakeCardStore{}

	_, err := NewSyncer(feed, store, 10, zerolog.Nop()).Sync(context.Background(), time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "list sets")
	assert.Empty(t, store.upserted)
}

func TestSyncStoreFailureCountsAsFailedSet(t *testing.T) {
	snapshot := time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC)
	feed := &fakeFeed{
		sets: []Set{{ID: "sv1", Name: "Scarlet & Violet", ReleaseDate: "2023/03/31"}},
		cardsBySet: map[string][]Card{
			"sv1": {{ID: "sv1-1", Name: "Sprigatito", Raw: []byte(`{"id":"sv1-1"}`)}},
		},
	}
	store := &fakeCardStore{err: errors.New("deadlock detected")}

	summary, err := NewSyncer(feed, store, 10, zerolog.Nop()).Sync(context.Background(), snapshot)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.SetsFailed)
	assert.Equal(t, 0, summary.CardsUpserted)
}
