package pipeline

import (
	"context"

	"midas/internal/adapters/reddit"
	"midas/internal/domain/market"
	"midas/internal/domain/post"
	"midas/internal/domain/recommendation"
	"midas/internal/persistence"
	"midas/internal/workflow"
	"midas/pkg/errors"
	"midas/pkg/logger"
)

const pickRetries = 2

// recommendationTableFor maps a flair to its recommendation table.
func recommendationTableFor(flair string) string {
	switch flair {
	case post.FlairNews:
		return persistence.TableNewsRecommendations
	case post.FlairDD:
		return persistence.TableDDRecommendations
	case post.FlairYolo:
		return persistence.TableYoloRecommendations
	}
	return ""
}

// ResearchWorkflow builds the weekly research run: scrape, filter, per-post
// recommendation agents, market snapshots, per-ticker planning, final pick
// and notification.
func ResearchWorkflow(runID string, store persistence.Store, deps Deps) *workflow.Workflow {
	return workflow.New(runID, store,
		runMetadataStep(),
		scrapeStep(deps),
		filterStep(),
		recommendStep(deps, post.FlairNews),
		recommendStep(deps, post.FlairDD),
		recommendStep(deps, post.FlairYolo),
		snapshotsStep(deps),
		planStep(deps),
		pickStep(deps),
		notifyRecommendationsStep(deps),
	)
}

func scrapeStep(deps Deps) workflow.Step {
	return workflow.NewStep("scrape reddit", func(ctx context.Context, store persistence.Store, runID string) error {
		done, err := workflow.Done(ctx, store, runID, persistence.TableRedditPosts)
		if err != nil {
			return err
		}
		if done {
			logger.Infow("Posts already scraped, skipping", "run_id", runID)
			return nil
		}

		flairsWant := make(map[string]bool)
		for _, flair := range post.Flairs() {
			flairsWant[flair] = true
		}
		scraped, err := deps.Posts.Scrape(ctx, flairsWant, true)
		if err != nil {
			return errors.Wrap(err, "scrape posts")
		}

		var rows []persistence.Row
		for _, list := range scraped {
			for _, p := range list {
				rows = append(rows, p.ToRow(runID))
			}
		}
		if len(rows) == 0 {
			logger.Warnw("Scrape returned no posts", "run_id", runID)
			return nil
		}
		return store.Set(ctx, persistence.TableRedditPosts, rows)
	})
}

func filterStep() workflow.Step {
	return workflow.NewStep("filter posts", func(ctx context.Context, store persistence.Store, runID string) error {
		done, err := workflow.Done(ctx, store, runID, persistence.TableRedditFilteredPosts)
		if err != nil {
			return err
		}
		if done {
			logger.Infow("Posts already filtered, skipping", "run_id", runID)
			return nil
		}

		raw, err := store.Get(ctx, persistence.TableRedditPosts, persistence.Filters{"run_id": runID})
		if err != nil {
			return errors.Wrap(err, "load scraped posts")
		}
		byFlair := make(map[string][]post.Post)
		for _, row := range raw {
			p := post.FromRow(row)
			byFlair[p.Flair] = append(byFlair[p.Flair], p)
		}

		filtered := reddit.FilterPosts(byFlair)
		var rows []persistence.Row
		for _, list := range filtered {
			for _, p := range list {
				rows = append(rows, p.ToRow(runID))
			}
		}
		if len(rows) == 0 {
			logger.Warnw("No posts survived filtering", "run_id", runID)
			return nil
		}
		return store.Set(ctx, persistence.TableRedditFilteredPosts, rows)
	})
}

// recommendPostFn builds the per-post step function. A named builder keeps
// each closure bound to its own post.
func recommendPostFn(deps Deps, flair, table string, p post.Post) workflow.StepFn {
	return func(ctx context.Context, store persistence.Store, runID string) error {
		recs, err := deps.Recommender.Recommend(ctx, flair, []post.Post{p})
		if err != nil {
			return err
		}
		if len(recs) == 0 {
			return nil
		}
		rows := make([]persistence.Row, 0, len(recs))
		for _, rec := range recs {
			rows = append(rows, rec.ToRow(runID))
		}
		return store.Set(ctx, table, rows)
	}
}

// recommendStep fans out one model call per filtered post of the flair.
func recommendStep(deps Deps, flair string) workflow.Step {
	table := recommendationTableFor(flair)
	return workflow.NewFactoryStep("run "+flair+" agent", func(ctx context.Context, store persistence.Store, runID string) ([]workflow.StepFn, error) {
		done, err := workflow.Done(ctx, store, runID, table)
		if err != nil {
			return nil, err
		}
		if done {
			logger.Infow("Recommendations already generated, skipping", "run_id", runID, "flair", flair)
			return nil, nil
		}

		rows, err := store.Get(ctx, persistence.TableRedditFilteredPosts,
			persistence.Filters{"run_id": runID, "flair": flair})
		if err != nil {
			return nil, errors.Wrap(err, "load filtered posts")
		}

		fns := make([]workflow.StepFn, 0, len(rows))
		for _, row := range rows {
			fns = append(fns, recommendPostFn(deps, flair, table, post.FromRow(row)))
		}
		return fns, nil
	})
}

// loadRecommendations gathers every flair's recommendations for the run.
func loadRecommendations(ctx context.Context, store persistence.Store, runID string) ([]recommendation.StockRecommendation, error) {
	var recs []recommendation.StockRecommendation
	for _, table := range persistence.RecommendationTables() {
		rows, err := store.Get(ctx, table, persistence.Filters{"run_id": runID})
		if err != nil {
			return nil, errors.Wrapf(err, "load %s", table)
		}
		for _, row := range rows {
			recs = append(recs, recommendation.FromRow(row))
		}
	}
	return recs, nil
}

func snapshotsStep(deps Deps) workflow.Step {
	return workflow.NewStep("fetch market snapshots", func(ctx context.Context, store persistence.Store, runID string) error {
		done, err := workflow.Done(ctx, store, runID, persistence.TableFinancialSnapshots)
		if err != nil {
			return err
		}
		if done {
			logger.Infow("Snapshots already fetched, skipping", "run_id", runID)
			return nil
		}

		recs, err := loadRecommendations(ctx, store, runID)
		if err != nil {
			return err
		}
		seen := make(map[string]bool)
		var tickers []string
		for _, rec := range recs {
			if !seen[rec.Ticker] {
				seen[rec.Ticker] = true
				tickers = append(tickers, rec.Ticker)
			}
		}
		if len(tickers) == 0 {
			logger.Warnw("No recommended tickers to snapshot", "run_id", runID)
			return nil
		}
		logger.Infow("Fetching market snapshots", "run_id", runID, "tickers", tickers)

		rows := make([]persistence.Row, 0, len(tickers))
		for _, ticker := range tickers {
			snap, err := deps.Market.GetSnapshot(ctx, ticker)
			if err != nil {
				return errors.Wrapf(err, "snapshot %s", ticker)
			}
			rows = append(rows, snap.ToRow(runID))
		}
		return store.Set(ctx, persistence.TableFinancialSnapshots, rows)
	})
}

// planTickerFn builds the per-snapshot planning step function.
func planTickerFn(deps Deps, snap market.Snapshot) workflow.StepFn {
	return func(ctx context.Context, store persistence.Store, runID string) error {
		plans, err := deps.Planner.Plan(ctx, []market.Snapshot{snap})
		if err != nil {
			return err
		}
		if len(plans) == 0 {
			return nil
		}
		rows := make([]persistence.Row, 0, len(plans))
		for _, tp := range plans {
			row, err := tp.ToRow(runID)
			if err != nil {
				return err
			}
			rows = append(rows, row)
		}
		return store.Set(ctx, persistence.TablePortfolioPlans, rows)
	}
}

// planStep fans out one planner call per persisted snapshot.
func planStep(deps Deps) workflow.Step {
	return workflow.NewFactoryStep("run planner agent", func(ctx context.Context, store persistence.Store, runID string) ([]workflow.StepFn, error) {
		done, err := workflow.Done(ctx, store, runID, persistence.TablePortfolioPlans)
		if err != nil {
			return nil, err
		}
		if done {
			logger.Infow("Plans already generated, skipping", "run_id", runID)
			return nil, nil
		}

		rows, err := store.Get(ctx, persistence.TableFinancialSnapshots, persistence.Filters{"run_id": runID})
		if err != nil {
			return nil, errors.Wrap(err, "load snapshots")
		}
		fns := make([]workflow.StepFn, 0, len(rows))
		for _, row := range rows {
			fns = append(fns, planTickerFn(deps, market.FromRow(row)))
		}
		return fns, nil
	})
}

// pickStep runs the picker over every recommendation of the run and
// persists the final selection. A pick that fails membership validation is
// retried up to pickRetries times.
func pickStep(deps Deps) workflow.Step {
	return workflow.NewStep("pick final recommendations", func(ctx context.Context, store persistence.Store, runID string) error {
		done, err := workflow.Done(ctx, store, runID, persistence.TableFinalRecommendations)
		if err != nil {
			return err
		}
		if done {
			logger.Infow("Final recommendations already picked, skipping", "run_id", runID)
			return nil
		}

		candidates, err := loadRecommendations(ctx, store, runID)
		if err != nil {
			return err
		}
		if len(candidates) == 0 {
			logger.Warnw("No candidates for final pick", "run_id", runID)
			return nil
		}

		var pick recommendation.TickerPick
		for attempt := 0; attempt <= pickRetries; attempt++ {
			pick, err = deps.Picker.Pick(ctx, candidates)
			if err != nil {
				return err
			}
			if deps.Picker.Evaluate(pick, candidates) {
				break
			}
			logger.Warnw("Pick failed validation", "run_id", runID, "attempt", attempt+1, "tickers", pick.Tickers)
		}

		byTicker := make(map[string]recommendation.StockRecommendation, len(candidates))
		for _, rec := range candidates {
			if _, exists := byTicker[rec.Ticker]; !exists {
				byTicker[rec.Ticker] = rec
			}
		}
		// Retries exhausted means we keep the last attempt, minus any
		// tickers that are not actual candidates.
		rows := make([]persistence.Row, 0, len(pick.Tickers))
		for _, ticker := range pick.Tickers {
			rec, ok := byTicker[ticker]
			if !ok {
				logger.Warnw("Dropping picked ticker not among candidates", "run_id", runID, "ticker", ticker)
				continue
			}
			rows = append(rows, rec.ToRow(runID))
		}
		if len(rows) == 0 {
			logger.Warnw("Final pick left no persistable tickers", "run_id", runID)
			return nil
		}
		return store.Set(ctx, persistence.TableFinalRecommendations, rows)
	})
}

func notifyRecommendationsStep(deps Deps) workflow.Step {
	return workflow.NewStep("notify recommendations", func(ctx context.Context, store persistence.Store, runID string) error {
		rows, err := store.Get(ctx, persistence.TableFinalRecommendations, persistence.Filters{"run_id": runID})
		if err != nil {
			return errors.Wrap(err, "load final recommendations")
		}
		finals := make([]recommendation.FinalRecommendation, 0, len(rows))
		for _, row := range rows {
			finals = append(finals, recommendation.FinalFromRow(row))
		}
		if err := deps.Notify.NotifyRecommendations(ctx, runID, finals); err != nil {
			logger.Warnw("Recommendation notification failed", "run_id", runID, "error", err)
		}
		return nil
	})
}
