// Package execution applies agent trade decisions to the simulated
// portfolio. Decision application is pure; persistence happens in a single
// commit so a failed run leaves no partial state behind the next
// idempotency check.
package execution

import (
	"context"

	"midas/internal/domain/trading"
	"midas/internal/persistence"
	"midas/pkg/errors"
	"midas/pkg/logger"
)

// Result is the portfolio state after applying a batch of decisions.
type Result struct {
	Trades      []trading.Trade
	Positions   []trading.Position
	CashBalance float64
	TotalValue  float64
}

// Executor persists applied decisions and performance snapshots.
type Executor struct {
	store persistence.Store
	log   *logger.Logger
}

func NewExecutor(store persistence.Store) *Executor {
	return &Executor{
		store: store,
		log:   logger.Get().With("component", "trade_executor"),
	}
}

// Apply runs the decision batch against the captured portfolio state and
// returns the resulting trades and final positions. It never touches
// storage.
//
// Rules, in decision order:
//   - a ticker without a captured price is skipped
//   - BUY whose total cost exceeds remaining cash is rejected
//   - BUY into an existing position merges at the weighted average entry
//   - SELL clamps to the held quantity and realizes P&L; selling out
//     removes the position
//   - SELL with no position is skipped
//   - HOLD writes an audit trade only when a position exists
//   - DO_NOTHING writes nothing
func Apply(input trading.TradeInput, decisions []trading.Decision) Result {
	log := logger.Get().With("component", "trade_executor")

	byTicker := make(map[string]*trading.Position, len(input.Positions))
	order := make([]string, 0, len(input.Positions))
	for i := range input.Positions {
		pos := input.Positions[i]
		byTicker[pos.Ticker] = &pos
		order = append(order, pos.Ticker)
	}

	recIDs := make(map[string]int64, len(input.Recommendations))
	for _, rec := range input.Recommendations {
		recIDs[rec.Ticker] = rec.RecommendationID
	}

	cash := input.PortfolioCash
	var trades []trading.Trade

	for _, d := range decisions {
		price, ok := input.Prices[d.Ticker]
		if !ok || price <= 0 {
			log.Warnw("No price available, skipping decision", "ticker", d.Ticker, "action", d.Action)
			continue
		}

		switch d.Action {
		case trading.ActionBuy:
			totalCost := float64(d.Quantity) * price
			if totalCost > cash {
				log.Warnw("Insufficient cash for BUY, skipping",
					"ticker", d.Ticker, "quantity", d.Quantity, "need", totalCost, "have", cash)
				continue
			}

			trade := trading.Trade{
				PortfolioID: input.PortfolioID,
				RunID:       input.RunID,
				Ticker:      d.Ticker,
				Action:      trading.ActionBuy,
				Quantity:    d.Quantity,
				Price:       price,
				TotalCost:   totalCost,
				Reason:      d.Reason,
			}
			if id, ok := recIDs[d.Ticker]; ok {
				trade.RecommendationID = &id
			}
			trades = append(trades, trade)
			cash -= totalCost

			if pos, exists := byTicker[d.Ticker]; exists {
				newQuantity := pos.Quantity + d.Quantity
				newAvgEntry := (pos.AvgEntryPrice*float64(pos.Quantity) + price*float64(d.Quantity)) / float64(newQuantity)
				pos.Quantity = newQuantity
				pos.AvgEntryPrice = newAvgEntry
				pos.CurrentPrice = price
				pos.UnrealizedPnL = (price - newAvgEntry) * float64(newQuantity)
			} else {
				byTicker[d.Ticker] = &trading.Position{
					PortfolioID:   input.PortfolioID,
					Ticker:        d.Ticker,
					Quantity:      d.Quantity,
					AvgEntryPrice: price,
					CurrentPrice:  price,
					UnrealizedPnL: 0,
				}
				order = append(order, d.Ticker)
			}
			log.Infow("BUY executed", "ticker", d.Ticker, "quantity", d.Quantity, "price", price, "cost", totalCost)

		case trading.ActionSell:
			pos, exists := byTicker[d.Ticker]
			if !exists {
				log.Warnw("Cannot SELL without a position, skipping", "ticker", d.Ticker)
				continue
			}

			sellQuantity := d.Quantity
			if sellQuantity > pos.Quantity {
				sellQuantity = pos.Quantity
			}
			proceeds := float64(sellQuantity) * price
			realized := (price - pos.AvgEntryPrice) * float64(sellQuantity)

			trades = append(trades, trading.Trade{
				PortfolioID: input.PortfolioID,
				RunID:       input.RunID,
				Ticker:      d.Ticker,
				Action:      trading.ActionSell,
				Quantity:    sellQuantity,
				Price:       price,
				TotalCost:   proceeds,
				Reason:      d.Reason,
				RealizedPnL: &realized,
			})
			cash += proceeds

			if sellQuantity >= pos.Quantity {
				delete(byTicker, d.Ticker)
			} else {
				pos.Quantity -= sellQuantity
				pos.CurrentPrice = price
				pos.UnrealizedPnL = (price - pos.AvgEntryPrice) * float64(pos.Quantity)
			}
			log.Infow("SELL executed", "ticker", d.Ticker, "quantity", sellQuantity, "price", price, "realized_pnl", realized)

		case trading.ActionHold:
			if _, exists := byTicker[d.Ticker]; !exists {
				continue
			}
			trades = append(trades, trading.Trade{
				PortfolioID: input.PortfolioID,
				RunID:       input.RunID,
				Ticker:      d.Ticker,
				Action:      trading.ActionHold,
				Quantity:    0,
				Price:       price,
				TotalCost:   0,
				Reason:      d.Reason,
			})

		case trading.ActionDoNothing:
			// No audit row.
		}
	}

	positions := make([]trading.Position, 0, len(byTicker))
	positionsValue := 0.0
	for _, ticker := range order {
		pos, exists := byTicker[ticker]
		if !exists {
			continue
		}
		positions = append(positions, *pos)
		positionsValue += pos.CurrentPrice * float64(pos.Quantity)
	}

	return Result{
		Trades:      trades,
		Positions:   positions,
		CashBalance: cash,
		TotalValue:  cash + positionsValue,
	}
}

// Commit persists an applied result: appends the trade log, replaces the
// portfolio's positions wholesale, and updates the portfolio totals.
func (e *Executor) Commit(ctx context.Context, runID string, portfolioID int64, result Result) error {
	if len(result.Trades) > 0 {
		rows := make([]persistence.Row, 0, len(result.Trades))
		for _, t := range result.Trades {
			rows = append(rows, t.ToRow())
		}
		if err := e.store.Set(ctx, persistence.TableTrades, rows); err != nil {
			return errors.Wrap(err, "persist trades")
		}
		e.log.Infow("Trades persisted", "count", len(rows))
	}

	if err := e.store.Delete(ctx, persistence.TablePositions, persistence.Filters{"portfolio_id": portfolioID}); err != nil {
		return errors.Wrap(err, "clear positions")
	}
	if len(result.Positions) > 0 {
		rows := make([]persistence.Row, 0, len(result.Positions))
		for _, pos := range result.Positions {
			rows = append(rows, pos.ToRow())
		}
		if err := e.store.Set(ctx, persistence.TablePositions, rows); err != nil {
			return errors.Wrap(err, "recreate positions")
		}
	}

	err := e.store.Update(ctx, persistence.TablePortfolios,
		persistence.Filters{"id": portfolioID},
		persistence.Row{
			"cash_balance":       result.CashBalance,
			"total_value":        result.TotalValue,
			"last_update_run_id": runID,
		})
	if err != nil {
		return errors.Wrap(err, "update portfolio")
	}

	e.log.Infow("Portfolio updated",
		"portfolio_id", portfolioID, "cash", result.CashBalance, "total_value", result.TotalValue)
	return nil
}

// RecordSnapshot appends a performance snapshot for the portfolio. The
// benchmark's initial value is seeded from the portfolio's earliest
// snapshot, or from benchmarkPrice when this is the first one. totalPnL
// carries the caller's P&L basis: the weekly run uses value over initial
// capital, the daily run uses realized plus unrealized.
func (e *Executor) RecordSnapshot(ctx context.Context, runID string, portfolioID int64, totalValue, cashBalance, totalPnL, benchmarkPrice float64) (trading.PerformanceSnapshot, error) {
	portfolio, err := e.Portfolio(ctx, portfolioID)
	if err != nil {
		return trading.PerformanceSnapshot{}, err
	}

	roiPercent := 0.0
	if portfolio.InitialCapital > 0 {
		roiPercent = totalPnL / portfolio.InitialCapital * 100
	}

	benchmarkInitial := benchmarkPrice
	existing, err := e.store.Get(ctx, persistence.TablePerformanceSnapshots, persistence.Filters{"portfolio_id": portfolioID})
	if err != nil {
		return trading.PerformanceSnapshot{}, errors.Wrap(err, "load performance snapshots")
	}
	if len(existing) > 0 {
		benchmarkInitial = existing[0].Float("sp500_initial_value")
	}

	benchmarkReturn := 0.0
	if benchmarkInitial > 0 {
		benchmarkReturn = (benchmarkPrice - benchmarkInitial) / benchmarkInitial * 100
	}

	snapshot := trading.PerformanceSnapshot{
		PortfolioID:            portfolioID,
		RunID:                  runID,
		TotalValue:             totalValue,
		CashBalance:            cashBalance,
		TotalPnL:               totalPnL,
		ROIPercent:             roiPercent,
		BenchmarkInitialValue:  benchmarkInitial,
		BenchmarkCurrentValue:  benchmarkPrice,
		BenchmarkReturnPercent: benchmarkReturn,
		Alpha:                  roiPercent - benchmarkReturn,
	}
	if err := e.store.Set(ctx, persistence.TablePerformanceSnapshots, []persistence.Row{snapshot.ToRow()}); err != nil {
		return trading.PerformanceSnapshot{}, errors.Wrap(err, "persist performance snapshot")
	}

	e.log.Infow("Performance snapshot recorded",
		"roi_percent", roiPercent, "benchmark_return_percent", benchmarkReturn, "alpha", snapshot.Alpha)
	return snapshot, nil
}

// Portfolio loads a portfolio by id.
func (e *Executor) Portfolio(ctx context.Context, portfolioID int64) (trading.Portfolio, error) {
	rows, err := e.store.Get(ctx, persistence.TablePortfolios, persistence.Filters{"id": portfolioID})
	if err != nil {
		return trading.Portfolio{}, errors.Wrap(err, "load portfolio")
	}
	if len(rows) == 0 {
		return trading.Portfolio{}, errors.Wrapf(errors.ErrNotFound, "portfolio %d", portfolioID)
	}
	return trading.PortfolioFromRow(rows[0]), nil
}

// PortfolioByName loads a portfolio by name, creating it with the given
// initial capital when it does not exist yet.
func (e *Executor) PortfolioByName(ctx context.Context, name string, initialCapital float64, runID string) (trading.Portfolio, error) {
	rows, err := e.store.Get(ctx, persistence.TablePortfolios, persistence.Filters{"name": name})
	if err != nil {
		return trading.Portfolio{}, errors.Wrap(err, "load portfolio by name")
	}
	if len(rows) > 0 {
		return trading.PortfolioFromRow(rows[0]), nil
	}

	e.log.Infow("Creating portfolio", "name", name, "initial_capital", initialCapital)
	row := persistence.Row{
		"name":               name,
		"cash_balance":       initialCapital,
		"total_value":        initialCapital,
		"initial_capital":    initialCapital,
		"last_update_run_id": runID,
	}
	if err := e.store.Set(ctx, persistence.TablePortfolios, []persistence.Row{row}); err != nil {
		return trading.Portfolio{}, errors.Wrap(err, "create portfolio")
	}

	rows, err = e.store.Get(ctx, persistence.TablePortfolios, persistence.Filters{"name": name})
	if err != nil {
		return trading.Portfolio{}, errors.Wrap(err, "reload portfolio")
	}
	if len(rows) == 0 {
		return trading.Portfolio{}, errors.Wrapf(errors.ErrInternal, "portfolio %q missing after create", name)
	}
	return trading.PortfolioFromRow(rows[0]), nil
}

// Positions loads the portfolio's open positions.
func (e *Executor) Positions(ctx context.Context, portfolioID int64) ([]trading.Position, error) {
	rows, err := e.store.Get(ctx, persistence.TablePositions, persistence.Filters{"portfolio_id": portfolioID})
	if err != nil {
		return nil, errors.Wrap(err, "load positions")
	}
	positions := make([]trading.Position, 0, len(rows))
	for _, row := range rows {
		positions = append(positions, trading.PositionFromRow(row))
	}
	return positions, nil
}

// UpdatePositionPrice refreshes one position's market price and unrealized
// P&L.
func (e *Executor) UpdatePositionPrice(ctx context.Context, pos trading.Position, price float64) error {
	unrealized := (price - pos.AvgEntryPrice) * float64(pos.Quantity)
	err := e.store.Update(ctx, persistence.TablePositions,
		persistence.Filters{"id": pos.ID},
		persistence.Row{
			"current_price":  price,
			"unrealized_pnl": unrealized,
		})
	if err != nil {
		return errors.Wrapf(err, "update position %s", pos.Ticker)
	}
	return nil
}

// RealizedPnL sums realized P&L across the portfolio's trade log.
func (e *Executor) RealizedPnL(ctx context.Context, portfolioID int64) (float64, error) {
	rows, err := e.store.Get(ctx, persistence.TableTrades, persistence.Filters{"portfolio_id": portfolioID})
	if err != nil {
		return 0, errors.Wrap(err, "load trades")
	}
	total := 0.0
	for _, row := range rows {
		if pnl, ok := row.NullFloat("realized_pnl"); ok {
			total += pnl
		}
	}
	return total, nil
}
