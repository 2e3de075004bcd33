package state

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/elys-network/flywheel/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
)

func newSQLiteStore(t *testing.T, retention int) Store {
	t.Helper()

	db, err := InitSQLite(filepath.Join(t.TempDir(), "flywheel.db"))
	require.NoError(t, err)
	s, err := NewSQLStore(db, DialectSQLite, retention)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLStore_SQLite(t *testing.T) {
	t.Parallel()
	runStoreSuite(t, newSQLiteStore)
}

func TestSQLStore_SQLiteSurvivesReopen(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "flywheel.db")
	ctx := context.Background()

	db, err := InitSQLite(path)
	require.NoError(t, err)
	s, err := NewSQLStore(db, DialectSQLite, 10)
	require.NoError(t, err)
	_, err = s.Update(ctx, func(l *Ledger) ([]types.Event, error) {
		l.Config = testConfig()
		l.VaultBalance = 77
		return []types.Event{depositEvent(77, 77)}, nil
	})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	db, err = InitSQLite(path)
	require.NoError(t, err)
	reopened, err := NewSQLStore(db, DialectSQLite, 10)
	require.NoError(t, err)
	defer reopened.Close()

	ledger, err := reopened.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, ledger.Config)
	assert.Equal(t, uint64(77), ledger.VaultBalance)
	assert.Equal(t, uint16(5000), ledger.Config.BurnBps)

	events, err := reopened.RecentEvents(ctx, 5)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestSQLStore_ResetSchema(t *testing.T) {
	t.Parallel()

	db, err := InitSQLite(filepath.Join(t.TempDir(), "flywheel.db"))
	require.NoError(t, err)
	s, err := NewSQLStore(db, DialectSQLite, 10)
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	_, err = s.Update(ctx, func(l *Ledger) ([]types.Event, error) {
		l.Config = testConfig()
		return nil, nil
	})
	require.NoError(t, err)

	require.NoError(t, ResetSchema(s.DB(), DialectSQLite))

	ledger, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, ledger.Config)
}

func TestRebind(t *testing.T) {
	t.Parallel()

	q := `SELECT a FROM t WHERE b = $1 AND c = $12`
	assert.Equal(t, q, rebind(DialectPostgres, q))
	assert.Equal(t, `SELECT a FROM t WHERE b = ?1 AND c = ?12`, rebind(DialectSQLite, q))
}

func TestSQLStore_Postgres(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container-backed test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("flywheel"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		tcpostgres.BasicWaitStrategies(),
	)
	t.Cleanup(func() {
		if container != nil {
			_ = container.Terminate(context.Background())
		}
	})
	if err != nil {
		t.Skipf("postgres container unavailable: %v", err)
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	runStoreSuite(t, func(t *testing.T, retention int) Store {
		db, err := OpenPostgres(connStr)
		require.NoError(t, err)
		require.NoError(t, ResetSchema(db, DialectPostgres))
		s, err := NewSQLStore(db, DialectPostgres, retention)
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })
		return s
	})
}
