package execution

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"midas/internal/domain/trading"
	"midas/internal/persistence"
)

func baseInput() trading.TradeInput {
	return trading.TradeInput{
		RunID:         "trade-run",
		HasData:       true,
		PortfolioID:   1,
		PortfolioCash: 1000,
		Prices:        map[string]float64{},
	}
}

func TestApplyBuyOpensPosition(t *testing.T) {
	input := baseInput()
	input.Prices["AAA"] = 100

	result := Apply(input, []trading.Decision{
		{Ticker: "AAA", Action: trading.ActionBuy, Quantity: 5, Reason: "strong catalyst"},
	})

	require.Len(t, result.Trades, 1)
	assert.Equal(t, trading.ActionBuy, result.Trades[0].Action)
	assert.Equal(t, 500.0, result.Trades[0].TotalCost)

	require.Len(t, result.Positions, 1)
	assert.Equal(t, int64(5), result.Positions[0].Quantity)
	assert.Equal(t, 100.0, result.Positions[0].AvgEntryPrice)
	assert.Equal(t, 0.0, result.Positions[0].UnrealizedPnL)

	assert.Equal(t, 500.0, result.CashBalance)
	assert.Equal(t, 1000.0, result.TotalValue, "cash plus position value is conserved")
}

func TestApplyBuyInsufficientCashIsRejected(t *testing.T) {
	input := baseInput()
	input.PortfolioCash = 100
	input.Prices["AAA"] = 50

	result := Apply(input, []trading.Decision{
		{Ticker: "AAA", Action: trading.ActionBuy, Quantity: 3, Reason: "too big"},
	})

	assert.Empty(t, result.Trades, "unaffordable BUY leaves no audit row")
	assert.Empty(t, result.Positions)
	assert.Equal(t, 100.0, result.CashBalance)
}

func TestApplyBuyMergesAtWeightedAverage(t *testing.T) {
	input := baseInput()
	input.PortfolioCash = 5000
	input.Prices["AAA"] = 120
	input.Positions = []trading.Position{
		{PortfolioID: 1, Ticker: "AAA", Quantity: 10, AvgEntryPrice: 100, CurrentPrice: 100},
	}

	result := Apply(input, []trading.Decision{
		{Ticker: "AAA", Action: trading.ActionBuy, Quantity: 10, Reason: "add"},
	})

	require.Len(t, result.Positions, 1)
	pos := result.Positions[0]
	assert.Equal(t, int64(20), pos.Quantity)
	assert.Equal(t, 110.0, pos.AvgEntryPrice)
	assert.Equal(t, 120.0, pos.CurrentPrice)
	assert.Equal(t, 200.0, pos.UnrealizedPnL)
}

func TestApplySellClampsToHeldQuantity(t *testing.T) {
	input := baseInput()
	input.PortfolioCash = 0
	input.Prices["AAA"] = 120
	input.Positions = []trading.Position{
		{PortfolioID: 1, Ticker: "AAA", Quantity: 5, AvgEntryPrice: 100, CurrentPrice: 120},
	}

	result := Apply(input, []trading.Decision{
		{Ticker: "AAA", Action: trading.ActionSell, Quantity: 50, Reason: "take profit"},
	})

	require.Len(t, result.Trades, 1)
	trade := result.Trades[0]
	assert.Equal(t, int64(5), trade.Quantity, "sell clamps to the held quantity")
	require.NotNil(t, trade.RealizedPnL)
	assert.Equal(t, 100.0, *trade.RealizedPnL)

	assert.Empty(t, result.Positions, "selling out removes the position")
	assert.Equal(t, 600.0, result.CashBalance)
}

func TestApplyPartialSellKeepsPosition(t *testing.T) {
	input := baseInput()
	input.PortfolioCash = 0
	input.Prices["AAA"] = 110
	input.Positions = []trading.Position{
		{PortfolioID: 1, Ticker: "AAA", Quantity: 10, AvgEntryPrice: 100, CurrentPrice: 110},
	}

	result := Apply(input, []trading.Decision{
		{Ticker: "AAA", Action: trading.ActionSell, Quantity: 4, Reason: "trim"},
	})

	require.Len(t, result.Positions, 1)
	pos := result.Positions[0]
	assert.Equal(t, int64(6), pos.Quantity)
	assert.Equal(t, 100.0, pos.AvgEntryPrice, "entry price is untouched by sells")
	assert.Equal(t, 60.0, pos.UnrealizedPnL)
	assert.Equal(t, 440.0, result.CashBalance)
}

func TestApplySellWithoutPositionIsSkipped(t *testing.T) {
	input := baseInput()
	input.Prices["AAA"] = 100

	result := Apply(input, []trading.Decision{
		{Ticker: "AAA", Action: trading.ActionSell, Quantity: 5, Reason: "phantom"},
	})

	assert.Empty(t, result.Trades)
	assert.Equal(t, 1000.0, result.CashBalance)
}

func TestApplyHoldWritesAuditRowOnlyWithPosition(t *testing.T) {
	input := baseInput()
	input.Prices["AAA"] = 100
	input.Prices["BBB"] = 50
	input.Positions = []trading.Position{
		{PortfolioID: 1, Ticker: "AAA", Quantity: 3, AvgEntryPrice: 90, CurrentPrice: 100},
	}

	result := Apply(input, []trading.Decision{
		{Ticker: "AAA", Action: trading.ActionHold, Reason: "still good"},
		{Ticker: "BBB", Action: trading.ActionHold, Reason: "no position"},
	})

	require.Len(t, result.Trades, 1)
	assert.Equal(t, "AAA", result.Trades[0].Ticker)
	assert.Equal(t, trading.ActionHold, result.Trades[0].Action)
	assert.Equal(t, int64(0), result.Trades[0].Quantity)
}

func TestApplyDoNothingWritesNothing(t *testing.T) {
	input := baseInput()
	input.Prices["AAA"] = 100

	result := Apply(input, []trading.Decision{
		{Ticker: "AAA", Action: trading.ActionDoNothing, Reason: "unclear"},
	})
	assert.Empty(t, result.Trades)
}

func TestApplyMissingPriceSkipsDecision(t *testing.T) {
	input := baseInput()

	result := Apply(input, []trading.Decision{
		{Ticker: "GHOST", Action: trading.ActionBuy, Quantity: 1, Reason: "no price"},
	})
	assert.Empty(t, result.Trades)
	assert.Equal(t, 1000.0, result.CashBalance)
}

func TestApplyBuyLinksRecommendation(t *testing.T) {
	input := baseInput()
	input.Prices["AAA"] = 10
	input.Recommendations = []trading.RecommendationRef{
		{Ticker: "AAA", RecommendationID: 42},
	}

	result := Apply(input, []trading.Decision{
		{Ticker: "AAA", Action: trading.ActionBuy, Quantity: 2, Reason: "picked"},
	})

	require.Len(t, result.Trades, 1)
	require.NotNil(t, result.Trades[0].RecommendationID)
	assert.Equal(t, int64(42), *result.Trades[0].RecommendationID)
}

func TestCommitReplacesPositionsWholesale(t *testing.T) {
	store := persistence.NewMemoryStore(persistence.DefaultSchema())
	exec := NewExecutor(store)
	ctx := context.Background()

	portfolio, err := exec.PortfolioByName(ctx, "bot", 1000, "run-0")
	require.NoError(t, err)

	require.NoError(t, store.Set(ctx, persistence.TablePositions, []persistence.Row{
		trading.Position{PortfolioID: portfolio.ID, Ticker: "OLD", Quantity: 1, AvgEntryPrice: 5, CurrentPrice: 5}.ToRow(),
	}))

	result := Result{
		Trades: []trading.Trade{
			{PortfolioID: portfolio.ID, RunID: "run-1", Ticker: "NEW", Action: trading.ActionBuy, Quantity: 2, Price: 10, TotalCost: 20, Reason: "r"},
		},
		Positions: []trading.Position{
			{PortfolioID: portfolio.ID, Ticker: "NEW", Quantity: 2, AvgEntryPrice: 10, CurrentPrice: 10},
		},
		CashBalance: 980,
		TotalValue:  1000,
	}
	require.NoError(t, exec.Commit(ctx, "run-1", portfolio.ID, result))

	positions, err := exec.Positions(ctx, portfolio.ID)
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.Equal(t, "NEW", positions[0].Ticker)

	updated, err := exec.Portfolio(ctx, portfolio.ID)
	require.NoError(t, err)
	assert.Equal(t, 980.0, updated.CashBalance)
	assert.Equal(t, 1000.0, updated.TotalValue)
	assert.Equal(t, "run-1", updated.LastUpdateRunID)
	assert.Equal(t, 1000.0, updated.InitialCapital, "initial capital never changes")
}

func TestRecordSnapshotSeedsBenchmarkFromFirstObservation(t *testing.T) {
	store := persistence.NewMemoryStore(persistence.DefaultSchema())
	exec := NewExecutor(store)
	ctx := context.Background()

	portfolio, err := exec.PortfolioByName(ctx, "bot", 10000, "run-0")
	require.NoError(t, err)

	// First snapshot: the benchmark initial value is today's price, so the
	// benchmark return is zero.
	first, err := exec.RecordSnapshot(ctx, "run-1", portfolio.ID, 10000, 10000, 0, 5000)
	require.NoError(t, err)
	assert.Equal(t, 5000.0, first.BenchmarkInitialValue)
	assert.Equal(t, 0.0, first.BenchmarkReturnPercent)
	assert.Equal(t, 0.0, first.Alpha)

	// Later: portfolio up 8%, benchmark up 5%, alpha is the difference.
	second, err := exec.RecordSnapshot(ctx, "run-2", portfolio.ID, 10800, 10800, 800, 5250)
	require.NoError(t, err)
	assert.Equal(t, 5000.0, second.BenchmarkInitialValue, "initial value sticks to the first observation")
	assert.InDelta(t, 8.0, second.ROIPercent, 1e-9)
	assert.InDelta(t, 5.0, second.BenchmarkReturnPercent, 1e-9)
	assert.InDelta(t, 3.0, second.Alpha, 1e-9)
}

func TestRealizedPnLSumsSellTrades(t *testing.T) {
	store := persistence.NewMemoryStore(persistence.DefaultSchema())
	exec := NewExecutor(store)
	ctx := context.Background()

	pnl1, pnl2 := 50.0, -20.0
	require.NoError(t, store.Set(ctx, persistence.TableTrades, []persistence.Row{
		trading.Trade{PortfolioID: 1, RunID: "r", Ticker: "A", Action: trading.ActionSell, Quantity: 1, Price: 1, RealizedPnL: &pnl1}.ToRow(),
		trading.Trade{PortfolioID: 1, RunID: "r", Ticker: "B", Action: trading.ActionSell, Quantity: 1, Price: 1, RealizedPnL: &pnl2}.ToRow(),
		trading.Trade{PortfolioID: 1, RunID: "r", Ticker: "C", Action: trading.ActionBuy, Quantity: 1, Price: 1}.ToRow(),
		trading.Trade{PortfolioID: 2, RunID: "r", Ticker: "D", Action: trading.ActionSell, Quantity: 1, Price: 1, RealizedPnL: &pnl1}.ToRow(),
	}))

	total, err := exec.RealizedPnL(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 30.0, total, "only this portfolio's SELL trades count")
}

func TestUpdatePositionPrice(t *testing.T) {
	store := persistence.NewMemoryStore(persistence.DefaultSchema())
	exec := NewExecutor(store)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, persistence.TablePositions, []persistence.Row{
		trading.Position{PortfolioID: 1, Ticker: "AAA", Quantity: 10, AvgEntryPrice: 100, CurrentPrice: 100}.ToRow(),
	}))
	positions, err := exec.Positions(ctx, 1)
	require.NoError(t, err)
	require.Len(t, positions, 1)

	require.NoError(t, exec.UpdatePositionPrice(ctx, positions[0], 110))

	positions, err = exec.Positions(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 110.0, positions[0].CurrentPrice)
	assert.Equal(t, 100.0, positions[0].UnrealizedPnL)
}
