package persistence

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"midas/pkg/errors"
)

func TestMemoryStoreSetAndGet(t *testing.T) {
	store := NewMemoryStore(DefaultSchema())
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, TableRunMetadata, []Row{
		{"run_id": "run-1"},
		{"run_id": "run-2"},
		{"run_id": "run-1", "description": "second"},
	}))

	rows, err := store.Get(ctx, TableRunMetadata, Filters{"run_id": "run-1"})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "", rows[0].String("description"))
	assert.Equal(t, "second", rows[1].String("description"))

	all, err := store.Get(ctx, TableRunMetadata, nil)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestMemoryStoreAssignsSequentialIDs(t *testing.T) {
	store := NewMemoryStore(DefaultSchema())
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, TablePortfolios, []Row{
		{"name": "a", "cash_balance": 1.0, "total_value": 1.0, "initial_capital": 1.0, "last_update_run_id": "r"},
		{"name": "b", "cash_balance": 1.0, "total_value": 1.0, "initial_capital": 1.0, "last_update_run_id": "r"},
	}))

	rows, err := store.Get(ctx, TablePortfolios, nil)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, int64(1), rows[0].Int("id"))
	assert.Equal(t, int64(2), rows[1].Int("id"))
	assert.False(t, rows[0].Time("created_at").IsZero())
}

func TestMemoryStoreGetReturnsCopies(t *testing.T) {
	store := NewMemoryStore(DefaultSchema())
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, TableRunMetadata, []Row{{"run_id": "run-1"}}))

	rows, err := store.Get(ctx, TableRunMetadata, nil)
	require.NoError(t, err)
	rows[0]["run_id"] = "mutated"

	again, err := store.Get(ctx, TableRunMetadata, nil)
	require.NoError(t, err)
	assert.Equal(t, "run-1", again[0].String("run_id"))
}

func TestMemoryStoreRejectsUnknownTableAndColumn(t *testing.T) {
	store := NewMemoryStore(DefaultSchema())
	ctx := context.Background()

	err := store.Set(ctx, "nope", []Row{{"run_id": "x"}})
	assert.ErrorIs(t, err, errors.ErrUnknownTable)

	err = store.Set(ctx, TableRunMetadata, []Row{{"run_id": "x", "bogus": 1}})
	assert.ErrorIs(t, err, errors.ErrUnknownColumn)

	_, err = store.Get(ctx, TableRunMetadata, Filters{"bogus": 1})
	assert.ErrorIs(t, err, errors.ErrUnknownColumn)
}

func TestMemoryStoreRejectsWritingSystemColumns(t *testing.T) {
	store := NewMemoryStore(DefaultSchema())
	ctx := context.Background()

	err := store.Set(ctx, TableRunMetadata, []Row{{"run_id": "x", "id": int64(99)}})
	assert.ErrorIs(t, err, errors.ErrUnknownColumn)

	// Filtering on system columns is allowed.
	require.NoError(t, store.Set(ctx, TableRunMetadata, []Row{{"run_id": "x"}}))
	rows, err := store.Get(ctx, TableRunMetadata, Filters{"id": int64(1)})
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestMemoryStoreBadRowRejectsWholeBatch(t *testing.T) {
	store := NewMemoryStore(DefaultSchema())
	ctx := context.Background()

	err := store.Set(ctx, TableRunMetadata, []Row{
		{"run_id": "ok"},
		{"run_id": "bad", "bogus": 1},
	})
	require.ErrorIs(t, err, errors.ErrUnknownColumn)

	rows, err := store.Get(ctx, TableRunMetadata, nil)
	require.NoError(t, err)
	assert.Empty(t, rows, "no row of a rejected batch may be stored")
}

func TestMemoryStoreUpdate(t *testing.T) {
	store := NewMemoryStore(DefaultSchema())
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, TablePortfolios, []Row{
		{"name": "bot", "cash_balance": 100.0, "total_value": 100.0, "initial_capital": 100.0, "last_update_run_id": "r1"},
	}))

	require.NoError(t, store.Update(ctx, TablePortfolios,
		Filters{"name": "bot"},
		Row{"cash_balance": 50.0, "last_update_run_id": "r2"}))

	rows, err := store.Get(ctx, TablePortfolios, Filters{"name": "bot"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 50.0, rows[0].Float("cash_balance"))
	assert.Equal(t, "r2", rows[0].String("last_update_run_id"))
	assert.Equal(t, 100.0, rows[0].Float("initial_capital"), "untouched columns survive")
}

func TestMemoryStoreDelete(t *testing.T) {
	store := NewMemoryStore(DefaultSchema())
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, TablePositions, []Row{
		{"portfolio_id": int64(1), "ticker": "AAA", "quantity": int64(5), "avg_entry_price": 1.0, "current_price": 1.0, "unrealized_pnl": 0.0},
		{"portfolio_id": int64(1), "ticker": "BBB", "quantity": int64(5), "avg_entry_price": 1.0, "current_price": 1.0, "unrealized_pnl": 0.0},
		{"portfolio_id": int64(2), "ticker": "CCC", "quantity": int64(5), "avg_entry_price": 1.0, "current_price": 1.0, "unrealized_pnl": 0.0},
	}))

	require.NoError(t, store.Delete(ctx, TablePositions, Filters{"portfolio_id": int64(1)}))

	rows, err := store.Get(ctx, TablePositions, nil)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "CCC", rows[0].String("ticker"))
}

func TestMemoryStoreLooseNumericFilters(t *testing.T) {
	store := NewMemoryStore(DefaultSchema())
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, TablePositions, []Row{
		{"portfolio_id": int64(7), "ticker": "AAA", "quantity": int64(5), "avg_entry_price": 1.0, "current_price": 1.0, "unrealized_pnl": 0.0},
	}))

	// An int filter must match the stored int64 value.
	rows, err := store.Get(ctx, TablePositions, Filters{"portfolio_id": 7})
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestMemoryStoreRawSQLUnsupported(t *testing.T) {
	store := NewMemoryStore(DefaultSchema())
	ctx := context.Background()

	_, err := store.Query(ctx, "SELECT 1")
	assert.ErrorIs(t, err, errors.ErrUnsupported)

	err = store.Write(ctx, "DELETE FROM positions")
	assert.ErrorIs(t, err, errors.ErrUnsupported)
}

func TestSchemaCheckColumns(t *testing.T) {
	schema := DefaultSchema()

	assert.NoError(t, schema.CheckColumns(TableTrades, []string{"run_id", "ticker"}, false))
	assert.ErrorIs(t, schema.CheckColumns(TableTrades, []string{"id"}, false), errors.ErrUnknownColumn)
	assert.NoError(t, schema.CheckColumns(TableTrades, []string{"id"}, true))
	assert.ErrorIs(t, schema.CheckColumns("ghost", nil, false), errors.ErrUnknownTable)
}
