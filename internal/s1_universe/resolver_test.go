package s1_universe

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/radar/backend/internal/contracts"
	"github.com/wonny/radar/backend/internal/testutil"
	"github.com/wonny/radar/backend/pkg/logger"
)

func newResolver(store *testutil.MemoryStore, feed *testutil.FakeFeed) *Resolver {
	r := NewResolver(store, store, feed, "000906.SH", logger.Nop())
	r.now = func() time.Time { return time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC) }
	return r
}

func TestResolve_UnionOfIndexAndWatchlist(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewMemoryStore()
	require.NoError(t, store.UpsertInstruments(ctx, []contracts.Instrument{{TSCode: "X"}, {TSCode: "Y"}, {TSCode: "Z"}}))
	require.NoError(t, store.SetIndexMembers(ctx, []string{"X"}))
	require.NoError(t, store.AddWatchlist(ctx, contracts.WatchlistEntry{TSCode: "Y"}))

	universe, err := newResolver(store, testutil.NewFakeFeed()).Resolve(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, universe.Len())
	assert.Equal(t, []string{"X", "Y"}, universe.Codes())
	assert.False(t, universe.Contains("Z"))
}

func TestResolve_OverlapIsCountedOnce(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewMemoryStore()
	require.NoError(t, store.UpsertInstruments(ctx, []contracts.Instrument{{TSCode: "X"}}))
	require.NoError(t, store.SetIndexMembers(ctx, []string{"X"}))
	require.NoError(t, store.AddWatchlist(ctx, contracts.WatchlistEntry{TSCode: "X"}))

	universe, err := newResolver(store, testutil.NewFakeFeed()).Resolve(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, universe.Len())
}

func TestResolve_EmptyIsNotAnError(t *testing.T) {
	universe, err := newResolver(testutil.NewMemoryStore(), testutil.NewFakeFeed()).Resolve(context.Background())
	require.NoError(t, err)
	assert.True(t, universe.IsEmpty())
}

func TestSyncStockList_MarksLatestMembers(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewMemoryStore()
	require.NoError(t, store.UpsertInstruments(ctx, []contracts.Instrument{{TSCode: "OLD"}}))
	require.NoError(t, store.SetIndexMembers(ctx, []string{"OLD"}))

	feed := testutil.NewFakeFeed()
	feed.Instruments = []contracts.Instrument{{TSCode: "OLD"}, {TSCode: "A", Industry: "银行"}, {TSCode: "B"}}
	feed.Members = []string{"A", "B"}

	result, err := newResolver(store, feed).SyncStockList(ctx)
	require.NoError(t, err)

	assert.Equal(t, 3, result.Instruments)
	assert.Equal(t, 2, result.IndexMembers)
	assert.True(t, result.MembersUpdated)

	members, _ := store.IndexMemberCodes(ctx)
	assert.Equal(t, []string{"A", "B"}, members)

	in, err := store.GetInstrument(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, "银行", in.Industry)
}

func TestSyncStockList_ConstituentsUnavailable(t *testing.T) {
	tests := []struct {
		name    string
		members []string
		err     error
	}{
		{"vendor error", nil, errors.New("retries exhausted")},
		{"empty window", nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			store := testutil.NewMemoryStore()
			require.NoError(t, store.UpsertInstruments(ctx, []contracts.Instrument{{TSCode: "OLD"}}))
			require.NoError(t, store.SetIndexMembers(ctx, []string{"OLD"}))

			feed := testutil.NewFakeFeed()
			feed.Instruments = []contracts.Instrument{{TSCode: "OLD"}, {TSCode: "NEW"}}
			feed.Members = tt.members
			feed.MembersErr = tt.err

			result, err := newResolver(store, feed).SyncStockList(ctx)
			require.NoError(t, err)
			assert.False(t, result.MembersUpdated)
			assert.Equal(t, 2, result.Instruments)

			members, _ := store.IndexMemberCodes(ctx)
			assert.Equal(t, []string{"OLD"}, members, "flags are untouched")
		})
	}
}

func TestSyncStockList_StockBasicErrorIsFatal(t *testing.T) {
	feed := testutil.NewFakeFeed()
	feed.Errors[""] = errors.New("down")

	_, err := newResolver(testutil.NewMemoryStore(), feed).SyncStockList(context.Background())
	assert.Error(t, err)
}
