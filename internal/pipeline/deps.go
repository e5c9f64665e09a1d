// Package pipeline assembles the workflow definitions: weekly research,
// weekly trading and daily performance tracking. Steps receive their
// dependencies through Deps so tests can swap in fakes.
package pipeline

import (
	"context"

	"midas/internal/adapters/config"
	"midas/internal/domain/market"
	"midas/internal/domain/plan"
	"midas/internal/domain/post"
	"midas/internal/domain/recommendation"
	"midas/internal/domain/trading"
	"midas/internal/services/execution"
)

// PostSource scrapes subreddit submissions grouped by flair.
type PostSource interface {
	Scrape(ctx context.Context, flairsWant map[string]bool, skipEmptySelftext bool) (map[string][]post.Post, error)
}

// MarketData provides technical snapshots and live prices.
type MarketData interface {
	GetSnapshot(ctx context.Context, ticker string) (market.Snapshot, error)
	GetCurrentPrice(ctx context.Context, ticker string) float64
	GetCurrentPrices(ctx context.Context, tickers []string) map[string]float64
}

// Notifier delivers run summaries to the outside world.
type Notifier interface {
	NotifyRecommendations(ctx context.Context, runID string, recs []recommendation.FinalRecommendation) error
	NotifyTrades(ctx context.Context, runID string, trades []trading.Trade, portfolio trading.Portfolio) error
	NotifyPerformance(ctx context.Context, snap trading.PerformanceSnapshot) error
}

// RecommendAgent extracts BUY ideas from one flair's posts.
type RecommendAgent interface {
	Recommend(ctx context.Context, flair string, posts []post.Post) ([]recommendation.StockRecommendation, error)
}

// PlanAgent produces trade plans from market snapshots.
type PlanAgent interface {
	Plan(ctx context.Context, snapshots []market.Snapshot) ([]plan.TradePlan, error)
}

// PickAgent selects the final tickers from the aggregated recommendations.
type PickAgent interface {
	Pick(ctx context.Context, recs []recommendation.StockRecommendation) (recommendation.TickerPick, error)
	Evaluate(pick recommendation.TickerPick, candidates []recommendation.StockRecommendation) bool
}

// TradeAgent decides the week's trades.
type TradeAgent interface {
	Decide(ctx context.Context, input trading.TradeInput) ([]trading.Decision, error)
	Evaluate(decisions []trading.Decision) bool
}

// Deps carries everything the workflow steps need beyond the store and run
// id they are handed by the engine.
type Deps struct {
	Posts       PostSource
	Market      MarketData
	Notify      Notifier
	Recommender RecommendAgent
	Planner     PlanAgent
	Picker      PickAgent
	Trader      TradeAgent
	Executor    *execution.Executor
	Trading     config.TradingConfig
}
