package persistence

import (
	"context"
	"os"
	"testing"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"midas/pkg/errors"
)

// integrationStore connects to the database named by TEST_POSTGRES_DSN and
// migrates the schema. Tests using it are skipped when the variable is
// unset.
func integrationStore(t *testing.T) *PostgresStore {
	t.Helper()
	if os.Getenv("INTEGRATION_TEST") != "1" {
		t.Skip("Skipping integration test. Set INTEGRATION_TEST=1 to run")
	}
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set")
	}

	db, err := sqlx.Connect("postgres", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	store := NewPostgresStore(db, DefaultSchema())
	require.NoError(t, Migrate(context.Background(), store))
	return store
}

func TestPostgresStoreRoundTrip(t *testing.T) {
	store := integrationStore(t)
	ctx := context.Background()
	runID := "pgtest-roundtrip"

	t.Cleanup(func() {
		_ = store.Delete(ctx, TableRunMetadata, Filters{"run_id": runID})
	})

	require.NoError(t, store.Set(ctx, TableRunMetadata, []Row{
		{"run_id": runID, "description": "first"},
		{"run_id": runID, "description": "second"},
	}))

	rows, err := store.Get(ctx, TableRunMetadata, Filters{"run_id": runID})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "first", rows[0].String("description"), "rows come back in insertion order")
	assert.Equal(t, "second", rows[1].String("description"))
	assert.Less(t, rows[0].Int("id"), rows[1].Int("id"))
}

func TestPostgresStoreUpdateAndDelete(t *testing.T) {
	store := integrationStore(t)
	ctx := context.Background()
	runID := "pgtest-update"

	t.Cleanup(func() {
		_ = store.Delete(ctx, TableRunMetadata, Filters{"run_id": runID})
	})

	require.NoError(t, store.Set(ctx, TableRunMetadata, []Row{{"run_id": runID, "description": "before"}}))
	require.NoError(t, store.Update(ctx, TableRunMetadata, Filters{"run_id": runID}, Row{"description": "after"}))

	rows, err := store.Get(ctx, TableRunMetadata, Filters{"run_id": runID})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "after", rows[0].String("description"))

	require.NoError(t, store.Delete(ctx, TableRunMetadata, Filters{"run_id": runID}))
	rows, err = store.Get(ctx, TableRunMetadata, Filters{"run_id": runID})
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestPostgresStoreRawSQL(t *testing.T) {
	store := integrationStore(t)
	ctx := context.Background()
	runID := "pgtest-raw"

	t.Cleanup(func() {
		_ = store.Delete(ctx, TableRunMetadata, Filters{"run_id": runID})
	})

	require.NoError(t, store.Write(ctx,
		"INSERT INTO run_metadata (run_id, description) VALUES ($1, $2)", runID, "raw"))

	rows, err := store.Query(ctx,
		"SELECT description FROM run_metadata WHERE run_id = $1", runID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "raw", rows[0].String("description"))
}

func TestPostgresStoreUnknownTable(t *testing.T) {
	store := integrationStore(t)

	_, err := store.Get(context.Background(), "ghost", nil)
	assert.ErrorIs(t, err, errors.ErrUnknownTable)
}
