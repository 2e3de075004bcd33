package flywheel

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/elys-network/flywheel/internal/eventlog"
	"github.com/elys-network/flywheel/internal/state"
	"github.com/elys-network/flywheel/internal/types"
	"github.com/elys-network/flywheel/internal/vault"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openSQLiteEngine(t *testing.T, path string, clock clockwork.Clock) (*Engine, state.Store, *eventlog.Log) {
	t.Helper()

	db, err := state.InitSQLite(path)
	require.NoError(t, err)
	store, err := state.NewSQLStore(db, state.DialectSQLite, 100)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	events := eventlog.New(100)
	recent, err := store.RecentEvents(context.Background(), events.Retention())
	require.NoError(t, err)
	events.Hydrate(recent)

	engine, err := NewEngine(Config{
		Store:       store,
		Distributor: vault.NewSimulated(vault.DefaultInitialSupply),
		Events:      events,
		Clock:       clock,
	})
	require.NoError(t, err)
	return engine, store, events
}

func TestSharedStore_EventsFromOtherProcessReachCache(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "flywheel.db")
	clock := clockwork.NewFakeClockAt(time.Unix(epochStart+3600, 0))

	server, serverStore, serverLog := openSQLiteEngine(t, path, clock)
	cli, _, _ := openSQLiteEngine(t, path, clock)

	cache := eventlog.NewCache(serverLog, clock, 5*time.Second).WithSource(serverStore, 0)
	events, _ := cache.List(20)
	assert.Empty(t, events)

	_, err := cli.Initialize(ctx, types.InitParams{
		Admin: testPK(1), TokenMint: testPK(2), FeeVault: testPK(3),
		BuybackBps: 5000, BurnBps: 5000, EpochStart: epochStart, EpochEnd: epochEnd,
	})
	require.NoError(t, err)
	_, err = cli.Deposit(ctx, testPK(9), 1_000)
	require.NoError(t, err)

	_, balance, err := server.Config(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1_000), balance)

	events, cached := cache.List(20)
	assert.True(t, cached)
	assert.Empty(t, events, "snapshot is served until it expires")

	clock.Advance(10 * time.Second)
	events, cached = cache.List(20)
	assert.False(t, cached)
	require.Len(t, events, 2)
	assert.Equal(t, types.EventDeposit, events[0].Type)
	assert.Equal(t, types.EventConfigInitialized, events[1].Type)

	// The server engine keeps appending on top of the reloaded history.
	_, err = server.Execute(ctx, testPK(10))
	require.NoError(t, err)
	cache.Invalidate()
	events, _ = cache.List(20)
	require.Len(t, events, 4)
	assert.Equal(t, types.EventExecute, events[0].Type)
	assert.Equal(t, types.EventBurn, events[1].Type)
}
