package persistence

import (
	"context"

	"midas/pkg/errors"
)

// tableDDL holds the CREATE TABLE statements for every pipeline table,
// keyed so they apply in a stable order.
var tableDDL = []struct {
	table string
	stmt  string
}{
	{TableRunMetadata, `CREATE TABLE IF NOT EXISTS run_metadata (
		id BIGSERIAL PRIMARY KEY,
		run_id TEXT NOT NULL,
		description TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`},
	{TableRedditPosts, `CREATE TABLE IF NOT EXISTS reddit_posts (
		id BIGSERIAL PRIMARY KEY,
		run_id TEXT NOT NULL,
		flair TEXT NOT NULL,
		title TEXT NOT NULL,
		selftext TEXT,
		score BIGINT NOT NULL DEFAULT 0,
		comments BIGINT NOT NULL DEFAULT 0,
		upvote_ratio DOUBLE PRECISION NOT NULL DEFAULT 0,
		created TIMESTAMPTZ,
		url TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`},
	{TableRedditFilteredPosts, `CREATE TABLE IF NOT EXISTS reddit_filtered_posts (
		id BIGSERIAL PRIMARY KEY,
		run_id TEXT NOT NULL,
		flair TEXT NOT NULL,
		title TEXT NOT NULL,
		selftext TEXT,
		score BIGINT NOT NULL DEFAULT 0,
		comments BIGINT NOT NULL DEFAULT 0,
		upvote_ratio DOUBLE PRECISION NOT NULL DEFAULT 0,
		created TIMESTAMPTZ,
		url TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`},
	{TableNewsRecommendations, `CREATE TABLE IF NOT EXISTS news_recommendations (
		id BIGSERIAL PRIMARY KEY,
		run_id TEXT NOT NULL,
		ticker TEXT NOT NULL,
		reason TEXT NOT NULL,
		confidence TEXT NOT NULL,
		reddit_post_url TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`},
	{TableDDRecommendations, `CREATE TABLE IF NOT EXISTS dd_recommendations (
		id BIGSERIAL PRIMARY KEY,
		run_id TEXT NOT NULL,
		ticker TEXT NOT NULL,
		reason TEXT NOT NULL,
		confidence TEXT NOT NULL,
		reddit_post_url TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`},
	{TableYoloRecommendations, `CREATE TABLE IF NOT EXISTS yolo_recommendations (
		id BIGSERIAL PRIMARY KEY,
		run_id TEXT NOT NULL,
		ticker TEXT NOT NULL,
		reason TEXT NOT NULL,
		confidence TEXT NOT NULL,
		reddit_post_url TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`},
	{TableFinancialSnapshots, `CREATE TABLE IF NOT EXISTS financial_snapshots (
		id BIGSERIAL PRIMARY KEY,
		run_id TEXT NOT NULL,
		ticker TEXT NOT NULL,
		price DOUBLE PRECISION,
		sma20 DOUBLE PRECISION,
		sma50 DOUBLE PRECISION,
		sma200 DOUBLE PRECISION,
		atr14 DOUBLE PRECISION,
		high_52w DOUBLE PRECISION,
		low_52w DOUBLE PRECISION,
		rsi14 DOUBLE PRECISION,
		asof TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`},
	{TablePortfolioPlans, `CREATE TABLE IF NOT EXISTS portfolio_plans (
		id BIGSERIAL PRIMARY KEY,
		run_id TEXT NOT NULL,
		ticker TEXT NOT NULL,
		entry_price DOUBLE PRECISION NOT NULL,
		stop_loss DOUBLE PRECISION NOT NULL,
		take_profits TEXT NOT NULL,
		time_horizon_days BIGINT NOT NULL,
		risk_reward DOUBLE PRECISION NOT NULL,
		rationale TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`},
	{TableFinalRecommendations, `CREATE TABLE IF NOT EXISTS final_recommendations (
		id BIGSERIAL PRIMARY KEY,
		run_id TEXT NOT NULL,
		ticker TEXT NOT NULL,
		reason TEXT NOT NULL,
		confidence TEXT NOT NULL,
		reddit_post_url TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`},
	{TablePortfolios, `CREATE TABLE IF NOT EXISTS portfolios (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		cash_balance DOUBLE PRECISION NOT NULL,
		total_value DOUBLE PRECISION NOT NULL,
		initial_capital DOUBLE PRECISION NOT NULL,
		last_update_run_id TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`},
	{TablePositions, `CREATE TABLE IF NOT EXISTS positions (
		id BIGSERIAL PRIMARY KEY,
		portfolio_id BIGINT NOT NULL REFERENCES portfolios(id),
		ticker TEXT NOT NULL,
		quantity BIGINT NOT NULL,
		avg_entry_price DOUBLE PRECISION NOT NULL,
		current_price DOUBLE PRECISION NOT NULL,
		unrealized_pnl DOUBLE PRECISION NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`},
	{TableTrades, `CREATE TABLE IF NOT EXISTS trades (
		id BIGSERIAL PRIMARY KEY,
		portfolio_id BIGINT NOT NULL REFERENCES portfolios(id),
		run_id TEXT NOT NULL,
		ticker TEXT NOT NULL,
		action TEXT NOT NULL,
		quantity BIGINT NOT NULL,
		price DOUBLE PRECISION NOT NULL,
		total_cost DOUBLE PRECISION NOT NULL,
		reason TEXT,
		realized_pnl DOUBLE PRECISION,
		final_recommendation_id BIGINT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`},
	{TablePerformanceSnapshots, `CREATE TABLE IF NOT EXISTS performance_snapshots (
		id BIGSERIAL PRIMARY KEY,
		portfolio_id BIGINT NOT NULL REFERENCES portfolios(id),
		run_id TEXT NOT NULL,
		total_value DOUBLE PRECISION NOT NULL,
		cash_balance DOUBLE PRECISION NOT NULL,
		total_pnl DOUBLE PRECISION NOT NULL,
		roi_percent DOUBLE PRECISION NOT NULL,
		sp500_initial_value DOUBLE PRECISION NOT NULL,
		sp500_current_value DOUBLE PRECISION NOT NULL,
		sp500_cumulative_return_percent DOUBLE PRECISION NOT NULL,
		alpha DOUBLE PRECISION NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`},
	{TableTradeInputs, `CREATE TABLE IF NOT EXISTS trade_inputs (
		id BIGSERIAL PRIMARY KEY,
		run_id TEXT NOT NULL,
		has_data BOOLEAN NOT NULL DEFAULT FALSE,
		portfolio_id BIGINT,
		portfolio_cash DOUBLE PRECISION,
		recommendations_json TEXT,
		prices_json TEXT,
		positions_json TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`},
}

// Migrate creates any missing pipeline tables through the store's raw Write
// hook. Stores without raw SQL support (the in-memory one) cannot be
// migrated.
func Migrate(ctx context.Context, store Store) error {
	for _, ddl := range tableDDL {
		if err := store.Write(ctx, ddl.stmt); err != nil {
			return errors.Wrapf(err, "create table %s", ddl.table)
		}
	}
	return nil
}
