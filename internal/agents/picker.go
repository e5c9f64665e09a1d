package agents

import (
	"context"
	"encoding/json"
	"fmt"

	"midas/internal/domain/recommendation"
	"midas/pkg/errors"
	"midas/pkg/logger"
)

const pickerSystemPrompt = `# Role & Objective
You are a seasoned institutional investor with 20+ years of experience in equity markets. You have weathered multiple market cycles, bull runs, crashes, and everything in between. Your edge is pattern recognition: you can quickly identify which opportunities have real conviction behind them versus mere hype.

You will receive a curated list of BUY recommendations from junior analysts who have researched stocks trending in retail investor communities. Each recommendation includes a ticker, the analyst's thesis, their confidence level, and the source discussion URL.

Your task: select the top 1-3 stocks you would actually put capital behind, and provide a single rationale explaining the overall selection, grounded strictly in the provided research.

# Your Investment Philosophy
- Quality over quantity: you would rather own 2 exceptional positions than 3 mediocre ones.
- Conviction matters: high confidence backed by solid fundamentals beats low-confidence speculation.
- Risk-adjusted thinking: consider downside protection, not just upside potential.
- Catalysts drive returns: look for near-term catalysts (earnings, product launches, regulatory approvals).

# Evaluation Criteria
1. Strength of the investment thesis: is the rationale comprehensive, with specific catalysts or competitive advantages? Are the growth drivers sustainable?
2. Risk profile: is this a high-conviction play or a speculative bet? Does the confidence level match the research quality?
3. Market timing: is there a clear near-term catalyst in the next 3-6 months?
4. Relative attractiveness: which candidates offer the best risk-reward balance? Avoid redundant picks in the same sector or theme.

# Selection Guidelines
- Choose 1 to 3 stocks maximum, only the most compelling opportunities.
- Every ticker you return must come from the candidate list, exactly as written.
- Do not pick stocks just to reach 3 if the conviction is not there.
- Consider diversification: avoid picking 3 highly correlated stocks.`

// Picker selects the final 1-3 tickers from the aggregated recommendations.
type Picker struct {
	client StructuredClient
	log    *logger.Logger
}

func NewPicker(client StructuredClient) *Picker {
	return &Picker{
		client: client,
		log:    logger.Get().With("component", "picker_agent"),
	}
}

// Pick asks the model for a final selection. Membership and size are
// checked by Evaluate; orchestration retries on failure.
func (p *Picker) Pick(ctx context.Context, recs []recommendation.StockRecommendation) (recommendation.TickerPick, error) {
	if len(recs) == 0 {
		return recommendation.TickerPick{}, errors.Wrap(errors.ErrInvalidInput, "no candidate recommendations to pick from")
	}

	encoded, err := json.MarshalIndent(recs, "", "  ")
	if err != nil {
		return recommendation.TickerPick{}, errors.Wrap(err, "marshal candidates for prompt")
	}
	user := fmt.Sprintf(
		"# Stock Recommendations to Review\n\nYou have %d stock recommendations from your research team.\n\n## Candidates:\n%s\n\n"+
			"## Your Decision\nBased on your experience and the evaluation criteria, select the top 1-3 stocks you would invest in. "+
			"Remember: quality over quantity. Only pick stocks where you have genuine conviction.",
		len(recs), encoded)

	var pick recommendation.TickerPick
	if err := p.client.Parse(ctx, pickerSystemPrompt+"\n\n"+agenticBalancePrompt, user, tickerPickSchema, &pick); err != nil {
		return recommendation.TickerPick{}, errors.Wrap(err, "picker agent")
	}
	p.log.Infow("Tickers picked", "candidates", len(recs), "picked", pick.Tickers)
	return pick, nil
}

// Evaluate checks that a pick is 1-3 tickers and that every ticker appears
// among the candidates.
func (p *Picker) Evaluate(pick recommendation.TickerPick, candidates []recommendation.StockRecommendation) bool {
	if len(pick.Tickers) < 1 || len(pick.Tickers) > 3 {
		return false
	}
	valid := make(map[string]bool, len(candidates))
	for _, rec := range candidates {
		valid[rec.Ticker] = true
	}
	for _, ticker := range pick.Tickers {
		if !valid[ticker] {
			p.log.Warnw("Picker returned unknown ticker", "ticker", ticker)
			return false
		}
	}
	return true
}
