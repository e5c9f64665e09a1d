package workflow

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"midas/internal/persistence"
	"midas/pkg/errors"
)

func testStore(t *testing.T) *persistence.MemoryStore {
	t.Helper()
	return persistence.NewMemoryStore(persistence.DefaultSchema())
}

func TestRunExecutesStepsInOrder(t *testing.T) {
	store := testStore(t)

	var mu sync.Mutex
	var order []string
	record := func(name string) StepFn {
		return func(ctx context.Context, s persistence.Store, runID string) error {
			mu.Lock()
			defer mu.Unlock()
			order = append(order, name)
			return nil
		}
	}

	wf := New("run-1", store,
		NewStep("first", record("first")),
		NewStep("second", record("second")),
		NewStep("third", record("third")),
	)
	require.NoError(t, wf.Run(context.Background()))
	assert.Equal(t, []string{"first", "second", "third"}, order)
}

func TestRunFansOutSiblingUnits(t *testing.T) {
	store := testStore(t)

	const n = 8
	var mu sync.Mutex
	seen := make(map[int]bool)
	fns := make([]StepFn, 0, n)
	for i := 0; i < n; i++ {
		i := i
		fns = append(fns, func(ctx context.Context, s persistence.Store, runID string) error {
			mu.Lock()
			defer mu.Unlock()
			seen[i] = true
			return nil
		})
	}

	wf := New("run-1", store, NewStep("fan out", fns...))
	require.NoError(t, wf.Run(context.Background()))
	assert.Len(t, seen, n)
}

func TestRunStopsAtFirstFailingStep(t *testing.T) {
	store := testStore(t)
	boom := errors.New("boom")
	reached := false

	wf := New("run-1", store,
		NewStep("fails", func(ctx context.Context, s persistence.Store, runID string) error {
			return boom
		}),
		NewStep("never runs", func(ctx context.Context, s persistence.Store, runID string) error {
			reached = true
			return nil
		}),
	)

	err := wf.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), `step "fails"`)
	assert.False(t, reached)
}

func TestRunSiblingFailureDoesNotCancelOthers(t *testing.T) {
	store := testStore(t)
	boom := errors.New("boom")

	var mu sync.Mutex
	completed := 0
	fns := []StepFn{
		func(ctx context.Context, s persistence.Store, runID string) error {
			return boom
		},
		func(ctx context.Context, s persistence.Store, runID string) error {
			time.Sleep(20 * time.Millisecond)
			mu.Lock()
			defer mu.Unlock()
			completed++
			return nil
		},
	}

	wf := New("run-1", store, NewStep("mixed", fns...))
	err := wf.Run(context.Background())
	require.ErrorIs(t, err, boom)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, completed, "surviving sibling should have run to completion")
}

func TestFactoryStepWithNoWorkIsSkipped(t *testing.T) {
	store := testStore(t)

	wf := New("run-1", store,
		NewFactoryStep("empty", func(ctx context.Context, s persistence.Store, runID string) ([]StepFn, error) {
			return nil, nil
		}),
		NewStep("after", func(ctx context.Context, s persistence.Store, runID string) error {
			return s.Set(ctx, persistence.TableRunMetadata, []persistence.Row{{"run_id": runID}})
		}),
	)
	require.NoError(t, wf.Run(context.Background()))

	rows, err := store.Get(context.Background(), persistence.TableRunMetadata, persistence.Filters{"run_id": "run-1"})
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestFactoryResolvesUnitsLazily(t *testing.T) {
	store := testStore(t)

	// The factory sees rows written by an earlier step of the same run.
	wf := New("run-1", store,
		NewStep("seed", func(ctx context.Context, s persistence.Store, runID string) error {
			return s.Set(ctx, persistence.TableRedditFilteredPosts, []persistence.Row{
				{"run_id": runID, "flair": "DD", "title": "a", "selftext": "x", "score": int64(1), "comments": int64(0), "upvote_ratio": 0.9, "created": time.Now(), "url": "u1"},
				{"run_id": runID, "flair": "DD", "title": "b", "selftext": "y", "score": int64(2), "comments": int64(0), "upvote_ratio": 0.8, "created": time.Now(), "url": "u2"},
			})
		}),
		NewFactoryStep("per row", func(ctx context.Context, s persistence.Store, runID string) ([]StepFn, error) {
			rows, err := s.Get(ctx, persistence.TableRedditFilteredPosts, persistence.Filters{"run_id": runID})
			if err != nil {
				return nil, err
			}
			fns := make([]StepFn, 0, len(rows))
			for range rows {
				fns = append(fns, func(ctx context.Context, s persistence.Store, runID string) error {
					return s.Set(ctx, persistence.TableRunMetadata, []persistence.Row{{"run_id": runID}})
				})
			}
			return fns, nil
		}),
	)
	require.NoError(t, wf.Run(context.Background()))

	rows, err := store.Get(context.Background(), persistence.TableRunMetadata, persistence.Filters{"run_id": "run-1"})
	require.NoError(t, err)
	assert.Len(t, rows, 2, "one unit per seeded row")
}

func TestDone(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	done, err := Done(ctx, store, "run-1", persistence.TableRunMetadata)
	require.NoError(t, err)
	assert.False(t, done)

	require.NoError(t, store.Set(ctx, persistence.TableRunMetadata, []persistence.Row{{"run_id": "run-1"}}))

	done, err = Done(ctx, store, "run-1", persistence.TableRunMetadata)
	require.NoError(t, err)
	assert.True(t, done)

	// A different run id is unaffected.
	done, err = Done(ctx, store, "run-2", persistence.TableRunMetadata)
	require.NoError(t, err)
	assert.False(t, done)
}

func TestDoneBypassPrefix(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	runID := BypassPrefix + "run-1"

	require.NoError(t, store.Set(ctx, persistence.TableRunMetadata, []persistence.Row{{"run_id": runID}}))

	done, err := Done(ctx, store, runID, persistence.TableRunMetadata)
	require.NoError(t, err)
	assert.False(t, done, "bypass prefix must disable the guard even with rows present")
}

func TestDoneSurfacesUnknownTable(t *testing.T) {
	store := testStore(t)

	_, err := Done(context.Background(), store, "run-1", "no_such_table")
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrUnknownTable)
}

func TestRunID(t *testing.T) {
	ts := time.Date(2026, 1, 5, 14, 30, 0, 0, time.UTC)
	assert.Equal(t, "reddit_stock_recommendation_20260105", RunID(RunKindResearch, ts))
	assert.Equal(t, "reddit_stock_trade_20260105", RunID(RunKindTrade, ts))
	assert.Equal(t, "daily_perf_20260105", RunID(RunKindPerformance, ts))
}

func TestAdhocRunIDBypassesGuard(t *testing.T) {
	id := AdhocRunID(RunKindTrade)
	assert.Contains(t, id, string(RunKindTrade))
	assert.True(t, len(id) > len(BypassPrefix))
	assert.Equal(t, BypassPrefix, id[:len(BypassPrefix)])

	other := AdhocRunID(RunKindTrade)
	assert.NotEqual(t, id, other)
}
