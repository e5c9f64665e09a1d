package persistence

// Table names used across the workflows.
const (
	TableRunMetadata          = "run_metadata"
	TableRedditPosts          = "reddit_posts"
	TableRedditFilteredPosts  = "reddit_filtered_posts"
	TableNewsRecommendations  = "news_recommendations"
	TableDDRecommendations    = "dd_recommendations"
	TableYoloRecommendations  = "yolo_recommendations"
	TableFinancialSnapshots   = "financial_snapshots"
	TablePortfolioPlans       = "portfolio_plans"
	TableFinalRecommendations = "final_recommendations"
	TablePortfolios           = "portfolios"
	TablePositions            = "positions"
	TableTrades               = "trades"
	TablePerformanceSnapshots = "performance_snapshots"
	TableTradeInputs          = "trade_inputs"
)

var postColumns = []string{
	"run_id", "flair", "title", "selftext", "score", "comments", "upvote_ratio", "created", "url",
}

var recommendationColumns = []string{
	"run_id", "ticker", "reason", "confidence", "reddit_post_url",
}

// DefaultSchema declares every table the pipelines persist to.
func DefaultSchema() Schema {
	return Schema{
		TableRunMetadata:         {"run_id", "description"},
		TableRedditPosts:         postColumns,
		TableRedditFilteredPosts: postColumns,

		TableNewsRecommendations: recommendationColumns,
		TableDDRecommendations:   recommendationColumns,
		TableYoloRecommendations: recommendationColumns,

		TableFinancialSnapshots: {
			"run_id", "ticker", "price", "sma20", "sma50", "sma200",
			"atr14", "high_52w", "low_52w", "rsi14", "asof",
		},
		TablePortfolioPlans: {
			"run_id", "ticker", "entry_price", "stop_loss", "take_profits",
			"time_horizon_days", "risk_reward", "rationale",
		},
		TableFinalRecommendations: recommendationColumns,

		TablePortfolios: {
			"name", "cash_balance", "total_value", "initial_capital", "last_update_run_id",
		},
		TablePositions: {
			"portfolio_id", "ticker", "quantity", "avg_entry_price", "current_price", "unrealized_pnl",
		},
		TableTrades: {
			"portfolio_id", "run_id", "ticker", "action", "quantity", "price",
			"total_cost", "reason", "realized_pnl", "final_recommendation_id",
		},
		TablePerformanceSnapshots: {
			"portfolio_id", "run_id", "total_value", "cash_balance", "total_pnl", "roi_percent",
			"sp500_initial_value", "sp500_current_value", "sp500_cumulative_return_percent", "alpha",
		},
		TableTradeInputs: {
			"run_id", "has_data", "portfolio_id", "portfolio_cash",
			"recommendations_json", "prices_json", "positions_json",
		},
	}
}

// RecommendationTables lists the per-flair recommendation tables in the order
// the research workflow runs their agents.
func RecommendationTables() []string {
	return []string{TableNewsRecommendations, TableDDRecommendations, TableYoloRecommendations}
}
