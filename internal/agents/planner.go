package agents

import (
	"context"
	"encoding/json"
	"math"

	"midas/internal/domain/market"
	"midas/internal/domain/plan"
	"midas/pkg/errors"
	"midas/pkg/logger"
)

const plannerSystemPrompt = `# Role & Objective
- You are a cautious, compliance-friendly trading planner.
- You will be given one or more BUY candidates with market snapshots (price, SMAs, ATR, 52w levels, RSI). Produce one practical trade plan per candidate with entry, stop, take-profits, a time horizon in days to hold, and a brief rationale.

# Guidelines
- Aim for risk:reward >= 2.0 on the first take-profit when feasible.
- Reasonable entries: pullbacks to SMA20/50, breakouts above recent resistance, or near-range re-tests.
- Stops: below recent swing low or 1.5-2.5x ATR below entry, whichever is more protective.
- Take profits: logical resistance zones (recent highs, 52w levels) or multiples of ATR (2x-3x).
- If data is thin or volatile, widen stops or lower confidence.
- Time horizon: 20-90 days by default, stretching to 120-180 for slower names.
- If a name looks overextended (RSI above 70) and far above its SMAs, suggest a pullback entry or skip it.
- Keep each rationale under 400 characters.`

// Planner produces validated trade plans from market snapshots.
type Planner struct {
	client StructuredClient
	log    *logger.Logger
}

func NewPlanner(client StructuredClient) *Planner {
	return &Planner{
		client: client,
		log:    logger.Get().With("component", "planner_agent"),
	}
}

// Plan generates one trade plan per usable snapshot. Snapshots that carry a
// fetch error are skipped; duplicate plans for the same ticker keep the
// first occurrence; every surviving plan is contract-validated.
func (p *Planner) Plan(ctx context.Context, snapshots []market.Snapshot) ([]plan.TradePlan, error) {
	items := make([]map[string]interface{}, 0, len(snapshots))
	for _, s := range snapshots {
		if s.Error != "" {
			p.log.Warnw("Skipping snapshot", "ticker", s.Ticker, "error", s.Error)
			continue
		}
		items = append(items, snapshotPromptItem(s))
	}
	if len(items) == 0 {
		return nil, nil
	}

	encoded, err := json.Marshal(items)
	if err != nil {
		return nil, errors.Wrap(err, "marshal snapshots for prompt")
	}
	user := "Market snapshots of stock tickers:\n" + string(encoded)

	var out struct {
		Plans []plan.TradePlan `json:"plans"`
	}
	if err := p.client.Parse(ctx, plannerSystemPrompt+"\n\n"+agenticBalancePrompt, user, tradePlansSchema, &out); err != nil {
		return nil, errors.Wrap(err, "planner agent")
	}

	seen := make(map[string]bool, len(out.Plans))
	plans := make([]plan.TradePlan, 0, len(out.Plans))
	for _, tp := range out.Plans {
		if seen[tp.Ticker] {
			p.log.Warnw("Dropping duplicate plan", "ticker", tp.Ticker)
			continue
		}
		if err := tp.Validate(); err != nil {
			return nil, err
		}
		seen[tp.Ticker] = true
		plans = append(plans, tp)
	}
	p.log.Infow("Trade plans generated", "candidates", len(items), "plans", len(plans))
	return plans, nil
}

// snapshotPromptItem renders a snapshot for the prompt with NaN indicators
// as nulls, since warm-up gaps are real and JSON has no NaN.
func snapshotPromptItem(s market.Snapshot) map[string]interface{} {
	return map[string]interface{}{
		"ticker":   s.Ticker,
		"price":    nanToNil(s.Price),
		"sma20":    nanToNil(s.SMA20),
		"sma50":    nanToNil(s.SMA50),
		"sma200":   nanToNil(s.SMA200),
		"atr14":    nanToNil(s.ATR14),
		"high_52w": nanToNil(s.High52W),
		"low_52w":  nanToNil(s.Low52W),
		"rsi14":    nanToNil(s.RSI14),
		"asof":     s.AsOf,
	}
}

func nanToNil(v float64) interface{} {
	if math.IsNaN(v) {
		return nil
	}
	return v
}
