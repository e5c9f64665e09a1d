package agents

import (
	"context"
	"encoding/json"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"midas/internal/adapters/ai"
	"midas/internal/domain/market"
	"midas/internal/domain/post"
	"midas/internal/domain/recommendation"
	"midas/internal/domain/trading"
	"midas/pkg/errors"
)

// fakeClient replays canned JSON responses per schema name, recording the
// prompts it was handed.
type fakeClient struct {
	responses map[string][]string
	calls     map[string]int
	lastUser  string
	err       error
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		responses: make(map[string][]string),
		calls:     make(map[string]int),
	}
}

func (f *fakeClient) respond(schema string, payloads ...string) {
	f.responses[schema] = append(f.responses[schema], payloads...)
}

func (f *fakeClient) Parse(ctx context.Context, system, user string, schema ai.Schema, out interface{}) error {
	f.lastUser = user
	if f.err != nil {
		return f.err
	}
	queued := f.responses[schema.Name]
	idx := f.calls[schema.Name]
	f.calls[schema.Name]++
	if idx >= len(queued) {
		idx = len(queued) - 1
	}
	if idx < 0 {
		return errors.Wrapf(errors.ErrAgentResponse, "no canned response for %s", schema.Name)
	}
	return json.Unmarshal([]byte(queued[idx]), out)
}

func TestRecommenderDropsMalformedEntries(t *testing.T) {
	client := newFakeClient()
	client.respond("stock_recommendations", `{
		"recommendations": [
			{"ticker": "AAA", "reason": "earnings beat", "confidence": "high", "reddit_post_url": "u1"},
			{"ticker": "", "reason": "missing ticker", "confidence": "high", "reddit_post_url": "u2"},
			{"ticker": "BBB", "reason": "weird confidence", "confidence": "certain", "reddit_post_url": "u3"}
		]
	}`)

	recs, err := NewRecommender(client).Recommend(context.Background(), post.FlairDD, []post.Post{{Title: "t"}})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "AAA", recs[0].Ticker)
	assert.Equal(t, recommendation.ConfidenceHigh, recs[0].Confidence)
}

func TestRecommenderUnknownFlair(t *testing.T) {
	_, err := NewRecommender(newFakeClient()).Recommend(context.Background(), "Meme", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrInvalidInput)
}

func TestRecommenderIncludesPostsInPrompt(t *testing.T) {
	client := newFakeClient()
	client.respond("stock_recommendations", `{"recommendations": []}`)

	_, err := NewRecommender(client).Recommend(context.Background(), post.FlairNews, []post.Post{
		{Title: "Acme wins contract", Selftext: "details", URL: "https://reddit.com/p/1"},
	})
	require.NoError(t, err)
	assert.Contains(t, client.lastUser, "Acme wins contract")
	assert.Contains(t, client.lastUser, "https://reddit.com/p/1")
}

func TestPlannerSkipsErroredSnapshots(t *testing.T) {
	client := newFakeClient()
	client.respond("trade_plans", `{"plans": []}`)

	snaps := []market.Snapshot{
		market.Empty("DEAD", "2026-01-05", "no historical data found"),
	}
	plans, err := NewPlanner(client).Plan(context.Background(), snaps)
	require.NoError(t, err)
	assert.Nil(t, plans)
	assert.Equal(t, 0, client.calls["trade_plans"], "nothing usable, the model is never called")
}

func TestPlannerValidatesAndDeduplicates(t *testing.T) {
	client := newFakeClient()
	client.respond("trade_plans", `{
		"plans": [
			{"ticker": "AAA", "entry_price": 100, "stop_loss": 90, "take_profits": [120, 130], "time_horizon_days": 45, "risk_reward": 2.0, "rationale": "pullback entry"},
			{"ticker": "AAA", "entry_price": 101, "stop_loss": 91, "take_profits": [121], "time_horizon_days": 45, "risk_reward": 2.0, "rationale": "dup"}
		]
	}`)

	plans, err := NewPlanner(client).Plan(context.Background(), []market.Snapshot{{Ticker: "AAA", Price: 100}})
	require.NoError(t, err)
	require.Len(t, plans, 1)
	assert.Equal(t, 100.0, plans[0].EntryPrice)
}

func TestPlannerRejectsContractViolations(t *testing.T) {
	client := newFakeClient()
	client.respond("trade_plans", `{
		"plans": [
			{"ticker": "AAA", "entry_price": 100, "stop_loss": 90, "take_profits": [], "time_horizon_days": 45, "risk_reward": 2.0, "rationale": "no take profits"}
		]
	}`)

	_, err := NewPlanner(client).Plan(context.Background(), []market.Snapshot{{Ticker: "AAA", Price: 100}})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrAgentResponse)
}

func TestPlannerRendersNaNIndicatorsAsNull(t *testing.T) {
	client := newFakeClient()
	client.respond("trade_plans", `{"plans": []}`)

	snap := market.Snapshot{Ticker: "AAA", Price: 10, SMA200: math.NaN(), AsOf: "2026-01-05"}
	_, err := NewPlanner(client).Plan(context.Background(), []market.Snapshot{snap})
	require.NoError(t, err)
	assert.Contains(t, client.lastUser, `"sma200":null`)
}

func TestPickerEvaluate(t *testing.T) {
	picker := NewPicker(newFakeClient())
	candidates := []recommendation.StockRecommendation{
		{Ticker: "AAA"}, {Ticker: "BBB"}, {Ticker: "CCC"}, {Ticker: "DDD"},
	}

	assert.True(t, picker.Evaluate(recommendation.TickerPick{Tickers: []string{"AAA"}}, candidates))
	assert.True(t, picker.Evaluate(recommendation.TickerPick{Tickers: []string{"AAA", "BBB", "CCC"}}, candidates))
	assert.False(t, picker.Evaluate(recommendation.TickerPick{Tickers: nil}, candidates), "empty pick is invalid")
	assert.False(t, picker.Evaluate(recommendation.TickerPick{Tickers: []string{"AAA", "BBB", "CCC", "DDD"}}, candidates), "more than three is invalid")
	assert.False(t, picker.Evaluate(recommendation.TickerPick{Tickers: []string{"ZZZ"}}, candidates), "unknown ticker is invalid")
}

func TestPickerRequiresCandidates(t *testing.T) {
	_, err := NewPicker(newFakeClient()).Pick(context.Background(), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrInvalidInput)
}

func TestTraderDecide(t *testing.T) {
	client := newFakeClient()
	client.respond("trade_decisions", `{
		"decisions": [
			{"ticker": "AAA", "action": "BUY", "quantity": 5, "reason": "high conviction"},
			{"ticker": "BBB", "action": "HOLD", "quantity": 0, "reason": "keep"}
		]
	}`)

	trader := NewTrader(client)
	decisions, err := trader.Decide(context.Background(), trading.TradeInput{
		PortfolioCash: 1000,
		Prices:        map[string]float64{"AAA": 10},
	})
	require.NoError(t, err)
	require.Len(t, decisions, 2)
	assert.Equal(t, trading.ActionBuy, decisions[0].Action)
	assert.True(t, trader.Evaluate(decisions))
}

func TestTraderEvaluateRejectsZeroQuantityBuy(t *testing.T) {
	trader := NewTrader(newFakeClient())
	assert.False(t, trader.Evaluate([]trading.Decision{
		{Ticker: "AAA", Action: trading.ActionBuy, Quantity: 0},
	}))
	assert.True(t, trader.Evaluate([]trading.Decision{
		{Ticker: "AAA", Action: trading.ActionHold, Quantity: 0},
		{Ticker: "BBB", Action: trading.ActionDoNothing, Quantity: 0},
	}))
}

func TestTraderRejectsUnknownAction(t *testing.T) {
	client := newFakeClient()
	client.respond("trade_decisions", `{
		"decisions": [{"ticker": "AAA", "action": "SHORT", "quantity": 5, "reason": "nope"}]
	}`)

	_, err := NewTrader(client).Decide(context.Background(), trading.TradeInput{})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrAgentResponse)
}

func TestTraderPromptCarriesPortfolioState(t *testing.T) {
	client := newFakeClient()
	client.respond("trade_decisions", `{"decisions": []}`)

	_, err := NewTrader(client).Decide(context.Background(), trading.TradeInput{
		PortfolioCash: 2500,
		Recommendations: []trading.RecommendationRef{
			{Ticker: "AAA", Reason: "thesis", Confidence: "high"},
		},
		Prices: map[string]float64{"AAA": 10},
		Positions: []trading.Position{
			{Ticker: "BBB", Quantity: 4, AvgEntryPrice: 50, CurrentPrice: 60, UnrealizedPnL: 40},
		},
	})
	require.NoError(t, err)
	assert.Contains(t, client.lastUser, "Cash Balance: $2500.00")
	assert.Contains(t, client.lastUser, `"ticker": "BBB"`)
	assert.True(t, strings.Contains(client.lastUser, "AAA"))
}
