package pipeline

import (
	"context"
	"math"

	"midas/internal/domain/trading"
	"midas/internal/persistence"
	"midas/internal/workflow"
	"midas/pkg/errors"
	"midas/pkg/logger"
)

// PerformanceWorkflow builds the daily tracking run: refresh position
// prices, snapshot portfolio performance against the benchmark, notify.
func PerformanceWorkflow(runID string, store persistence.Store, deps Deps) *workflow.Workflow {
	return workflow.New(runID, store,
		runMetadataStep(),
		updatePositionPricesStep(deps),
		dailySnapshotStep(deps),
		notifyPerformanceStep(deps),
	)
}

// updatePositionPricesStep refreshes every held position with the latest
// market price. No idempotency guard: prices legitimately change between
// same-day re-runs.
func updatePositionPricesStep(deps Deps) workflow.Step {
	return workflow.NewStep("update position prices", func(ctx context.Context, store persistence.Store, runID string) error {
		portfolio, err := deps.Executor.PortfolioByName(ctx, deps.Trading.PortfolioName, deps.Trading.InitialCapital, runID)
		if err != nil {
			return err
		}
		positions, err := deps.Executor.Positions(ctx, portfolio.ID)
		if err != nil {
			return err
		}
		if len(positions) == 0 {
			logger.Infow("No positions to update", "run_id", runID)
			return nil
		}

		tickers := make([]string, 0, len(positions))
		for _, pos := range positions {
			tickers = append(tickers, pos.Ticker)
		}
		prices := deps.Market.GetCurrentPrices(ctx, tickers)
		logger.Infow("Fetched position prices", "run_id", runID, "priced", len(prices), "positions", len(positions))

		for _, pos := range positions {
			price, ok := prices[pos.Ticker]
			if !ok || math.IsNaN(price) {
				logger.Warnw("No valid price, keeping previous", "ticker", pos.Ticker)
				continue
			}
			if err := deps.Executor.UpdatePositionPrice(ctx, pos, price); err != nil {
				return err
			}
		}
		return nil
	})
}

// dailySnapshotStep values the portfolio at current prices and appends a
// performance snapshot. The daily P&L basis is realized plus unrealized.
func dailySnapshotStep(deps Deps) workflow.Step {
	return workflow.NewStep("create performance snapshot", func(ctx context.Context, store persistence.Store, runID string) error {
		done, err := workflow.Done(ctx, store, runID, persistence.TablePerformanceSnapshots)
		if err != nil {
			return err
		}
		if done {
			logger.Infow("Snapshot already recorded, skipping", "run_id", runID)
			return nil
		}

		portfolio, err := deps.Executor.PortfolioByName(ctx, deps.Trading.PortfolioName, deps.Trading.InitialCapital, runID)
		if err != nil {
			return err
		}
		positions, err := deps.Executor.Positions(ctx, portfolio.ID)
		if err != nil {
			return err
		}

		positionsValue := 0.0
		unrealized := 0.0
		for _, pos := range positions {
			positionsValue += pos.CurrentPrice * float64(pos.Quantity)
			unrealized += pos.UnrealizedPnL
		}
		realized, err := deps.Executor.RealizedPnL(ctx, portfolio.ID)
		if err != nil {
			return err
		}

		benchmark, err := deps.Market.GetSnapshot(ctx, deps.Trading.BenchmarkTicker)
		if err != nil {
			return errors.Wrap(err, "fetch benchmark snapshot")
		}

		totalValue := portfolio.CashBalance + positionsValue
		if _, err := deps.Executor.RecordSnapshot(ctx, runID, portfolio.ID,
			totalValue, portfolio.CashBalance, realized+unrealized, benchmark.Price); err != nil {
			return err
		}

		// Carry the marked-to-market valuation onto the portfolio so the
		// next trade run reasons over current numbers.
		return store.Update(ctx, persistence.TablePortfolios,
			persistence.Filters{"id": portfolio.ID},
			persistence.Row{"total_value": totalValue})
	})
}

func notifyPerformanceStep(deps Deps) workflow.Step {
	return workflow.NewStep("notify performance", func(ctx context.Context, store persistence.Store, runID string) error {
		rows, err := store.Get(ctx, persistence.TablePerformanceSnapshots, persistence.Filters{"run_id": runID})
		if err != nil {
			return errors.Wrap(err, "load performance snapshot")
		}
		if len(rows) == 0 {
			logger.Warnw("No snapshot to report", "run_id", runID)
			return nil
		}

		snap := trading.PerformanceSnapshotFromRow(rows[len(rows)-1])
		if err := deps.Notify.NotifyPerformance(ctx, snap); err != nil {
			logger.Warnw("Performance notification failed", "run_id", runID, "error", err)
		}
		return nil
	})
}
