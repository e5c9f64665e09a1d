package pipeline

import (
	"context"
	"math"

	"midas/internal/domain/recommendation"
	"midas/internal/domain/trading"
	"midas/internal/persistence"
	"midas/internal/services/execution"
	"midas/internal/workflow"
	"midas/pkg/errors"
	"midas/pkg/logger"
)

// TradeWorkflow builds the weekly trade run. researchRunID names the
// research run whose final recommendations feed the decision agent;
// normally both ids share the same date.
func TradeWorkflow(runID, researchRunID string, store persistence.Store, deps Deps) *workflow.Workflow {
	return workflow.New(runID, store,
		runMetadataStep(),
		prepareTradeInputsStep(deps, researchRunID),
		decideAndExecuteStep(deps),
		notifyTradesStep(deps),
	)
}

// prepareTradeInputsStep freezes everything the decision agent will see:
// the research run's final recommendations, live prices for recommended and
// held tickers, and the refreshed portfolio state.
func prepareTradeInputsStep(deps Deps, researchRunID string) workflow.Step {
	return workflow.NewStep("prepare trade inputs", func(ctx context.Context, store persistence.Store, runID string) error {
		done, err := workflow.Done(ctx, store, runID, persistence.TableTradeInputs)
		if err != nil {
			return err
		}
		if done {
			logger.Infow("Trade inputs already prepared, skipping", "run_id", runID)
			return nil
		}

		recRows, err := store.Get(ctx, persistence.TableFinalRecommendations, persistence.Filters{"run_id": researchRunID})
		if err != nil {
			return errors.Wrap(err, "load final recommendations")
		}
		if len(recRows) == 0 {
			logger.Warnw("No final recommendations found, trade run will be a no-op",
				"run_id", runID, "research_run_id", researchRunID)
			return nil
		}

		finals := make([]recommendation.FinalRecommendation, 0, len(recRows))
		tickers := make([]string, 0, len(recRows))
		for _, row := range recRows {
			final := recommendation.FinalFromRow(row)
			finals = append(finals, final)
			tickers = append(tickers, final.Ticker)
		}
		logger.Infow("Preparing trade inputs", "run_id", runID, "tickers", tickers)

		portfolio, err := deps.Executor.PortfolioByName(ctx, deps.Trading.PortfolioName, deps.Trading.InitialCapital, runID)
		if err != nil {
			return err
		}
		positions, err := deps.Executor.Positions(ctx, portfolio.ID)
		if err != nil {
			return err
		}

		prices := deps.Market.GetCurrentPrices(ctx, tickers)
		for _, pos := range positions {
			if _, ok := prices[pos.Ticker]; ok {
				continue
			}
			prices[pos.Ticker] = deps.Market.GetCurrentPrice(ctx, pos.Ticker)
		}
		for ticker, price := range prices {
			if math.IsNaN(price) {
				logger.Warnw("Could not price ticker", "ticker", ticker)
				delete(prices, ticker)
			}
		}

		// Refresh held positions with the prices the agent will reason over.
		for i, pos := range positions {
			price, ok := prices[pos.Ticker]
			if !ok {
				continue
			}
			if err := deps.Executor.UpdatePositionPrice(ctx, pos, price); err != nil {
				return err
			}
			positions[i].CurrentPrice = price
			positions[i].UnrealizedPnL = (price - pos.AvgEntryPrice) * float64(pos.Quantity)
		}

		refs := make([]trading.RecommendationRef, 0, len(finals))
		for _, final := range finals {
			refs = append(refs, trading.RecommendationRef{
				Ticker:           final.Ticker,
				Reason:           final.Reason,
				Confidence:       string(final.Confidence),
				RedditPostURL:    final.RedditPostURL,
				RecommendationID: final.ID,
			})
		}

		input := trading.TradeInput{
			RunID:           runID,
			HasData:         true,
			PortfolioID:     portfolio.ID,
			PortfolioCash:   portfolio.CashBalance,
			Recommendations: refs,
			Prices:          prices,
			Positions:       positions,
		}
		row, err := input.ToRow()
		if err != nil {
			return err
		}
		if err := store.Set(ctx, persistence.TableTradeInputs, []persistence.Row{row}); err != nil {
			return errors.Wrap(err, "persist trade inputs")
		}
		logger.Infow("Trade inputs prepared",
			"run_id", runID, "recommendations", len(refs), "prices", len(prices), "positions", len(positions))
		return nil
	})
}

// decideAndExecuteStep asks the decision agent for the week's trades and
// commits them in one step, then records the post-trade performance
// snapshot.
func decideAndExecuteStep(deps Deps) workflow.Step {
	return workflow.NewStep("trade decision and execute", func(ctx context.Context, store persistence.Store, runID string) error {
		done, err := workflow.Done(ctx, store, runID, persistence.TableTrades)
		if err != nil {
			return err
		}
		if done {
			logger.Infow("Trades already executed, skipping", "run_id", runID)
			return nil
		}

		inputRows, err := store.Get(ctx, persistence.TableTradeInputs, persistence.Filters{"run_id": runID})
		if err != nil {
			return errors.Wrap(err, "load trade inputs")
		}
		if len(inputRows) == 0 {
			logger.Warnw("No trade inputs found, skipping execution", "run_id", runID)
			return nil
		}
		input, err := trading.TradeInputFromRow(inputRows[0])
		if err != nil {
			return err
		}
		if !input.HasData {
			logger.Infow("Trade inputs carry no data, skipping execution", "run_id", runID)
			return nil
		}

		decisions, err := deps.Trader.Decide(ctx, input)
		if err != nil {
			return err
		}
		if !deps.Trader.Evaluate(decisions) {
			return errors.Wrap(errors.ErrAgentResponse, "trade decisions failed validation")
		}

		result := execution.Apply(input, decisions)
		if err := deps.Executor.Commit(ctx, runID, input.PortfolioID, result); err != nil {
			return err
		}

		benchmark, err := deps.Market.GetSnapshot(ctx, deps.Trading.BenchmarkTicker)
		if err != nil {
			return errors.Wrap(err, "fetch benchmark snapshot")
		}
		portfolio, err := deps.Executor.Portfolio(ctx, input.PortfolioID)
		if err != nil {
			return err
		}
		_, err = deps.Executor.RecordSnapshot(ctx, runID, input.PortfolioID,
			result.TotalValue, result.CashBalance, result.TotalValue-portfolio.InitialCapital, benchmark.Price)
		return err
	})
}

func notifyTradesStep(deps Deps) workflow.Step {
	return workflow.NewStep("notify trades", func(ctx context.Context, store persistence.Store, runID string) error {
		tradeRows, err := store.Get(ctx, persistence.TableTrades, persistence.Filters{"run_id": runID})
		if err != nil {
			return errors.Wrap(err, "load trades")
		}
		trades := make([]trading.Trade, 0, len(tradeRows))
		for _, row := range tradeRows {
			trades = append(trades, trading.TradeFromRow(row))
		}

		portfolio, err := deps.Executor.PortfolioByName(ctx, deps.Trading.PortfolioName, deps.Trading.InitialCapital, runID)
		if err != nil {
			return err
		}
		if err := deps.Notify.NotifyTrades(ctx, runID, trades, portfolio); err != nil {
			logger.Warnw("Trade notification failed", "run_id", runID, "error", err)
		}
		return nil
	})
}
