package agents

import (
	"context"
	"encoding/json"
	"fmt"

	"midas/internal/domain/trading"
	"midas/pkg/errors"
	"midas/pkg/logger"
)

const traderSystemPrompt = `# Role & Objective
You are a seasoned, pragmatic trading agent managing a retail stock portfolio.

Your job is to review stock recommendations from analysis experts, the current portfolio state (cash balance and existing positions), and current market prices, then decide BUY, SELL, HOLD, or DO_NOTHING for each ticker.

# Trading Guidelines

## Position Sizing
- Allocate approximately 15-25% of available cash per new BUY position.
- Do not over-concentrate in a single stock (max 30% of total portfolio value).
- Calculate exact share quantities based on current market price.

## BUY Decisions
- BUY recommended stocks with strong upside potential based on the experts' reasons and confidence levels.
- Only BUY if you have sufficient cash available.
- Consider recommendation confidence ("high" is more favorable than "low").
- Consider diversification; do not buy too many positions at once.

## SELL Decisions
- SELL existing positions if you need to free up cash for better opportunities, the position has significant unrealized gains (take profits), or significant unrealized losses (cut losses).

## HOLD Decisions
- HOLD existing positions that still have a positive outlook.
- HOLD if the stock appears in current recommendations and is performing reasonably.

## DO_NOTHING Decisions
- DO_NOTHING if there is insufficient data or unclear market conditions, or if no action is warranted.

## Risk Management
- Be conservative with cash; do not deploy all cash at once.
- Maintain at least a 20-30% cash buffer for flexibility.
- Do not trade if market conditions are unclear or data is missing.

# Output Format
Return a structured list of trade decisions with ticker, action, quantity (0 for HOLD and DO_NOTHING), and a brief 1-2 sentence reason.`

// Trader decides the week's trades from the frozen trade inputs.
type Trader struct {
	client StructuredClient
	log    *logger.Logger
}

func NewTrader(client StructuredClient) *Trader {
	return &Trader{
		client: client,
		log:    logger.Get().With("component", "trader_agent"),
	}
}

// Decide generates BUY/SELL/HOLD/DO_NOTHING decisions from a trade input
// capture.
func (t *Trader) Decide(ctx context.Context, input trading.TradeInput) ([]trading.Decision, error) {
	user, err := traderUserPrompt(input)
	if err != nil {
		return nil, err
	}

	var out struct {
		Decisions []trading.Decision `json:"decisions"`
	}
	if err := t.client.Parse(ctx, traderSystemPrompt+"\n\n"+agenticBalancePrompt, user, tradeDecisionsSchema, &out); err != nil {
		return nil, errors.Wrap(err, "trade agent")
	}
	for _, d := range out.Decisions {
		if !d.Action.Valid() {
			return nil, errors.Wrapf(errors.ErrAgentResponse, "trade decision for %s has unknown action %q", d.Ticker, d.Action)
		}
	}
	t.log.Infow("Trade decisions generated", "decisions", len(out.Decisions))
	return out.Decisions, nil
}

// Evaluate sanity-checks decisions before execution: BUY needs a positive
// quantity. Exact affordability is enforced by the executor with real
// prices.
func (t *Trader) Evaluate(decisions []trading.Decision) bool {
	for _, d := range decisions {
		if d.Action == trading.ActionBuy && d.Quantity <= 0 {
			t.log.Warnw("BUY decision has invalid quantity", "ticker", d.Ticker, "quantity", d.Quantity)
			return false
		}
	}
	return true
}

func traderUserPrompt(input trading.TradeInput) (string, error) {
	type positionItem struct {
		Ticker        string  `json:"ticker"`
		Quantity      int64   `json:"quantity"`
		AvgEntryPrice float64 `json:"avg_entry_price"`
		CurrentPrice  float64 `json:"current_price"`
		MarketValue   float64 `json:"market_value"`
		UnrealizedPnL float64 `json:"unrealized_pnl"`
	}

	positions := make([]positionItem, 0, len(input.Positions))
	totalPositionValue := 0.0
	for _, pos := range input.Positions {
		marketValue := float64(pos.Quantity) * pos.CurrentPrice
		totalPositionValue += marketValue
		positions = append(positions, positionItem{
			Ticker:        pos.Ticker,
			Quantity:      pos.Quantity,
			AvgEntryPrice: pos.AvgEntryPrice,
			CurrentPrice:  pos.CurrentPrice,
			MarketValue:   marketValue,
			UnrealizedPnL: pos.UnrealizedPnL,
		})
	}

	type recItem struct {
		Ticker     string `json:"ticker"`
		Reason     string `json:"reason"`
		Confidence string `json:"confidence"`
	}
	recs := make([]recItem, 0, len(input.Recommendations))
	for _, rec := range input.Recommendations {
		recs = append(recs, recItem{Ticker: rec.Ticker, Reason: rec.Reason, Confidence: rec.Confidence})
	}

	positionsJSON := "No existing positions"
	if len(positions) > 0 {
		b, err := json.MarshalIndent(positions, "", "  ")
		if err != nil {
			return "", errors.Wrap(err, "marshal positions for prompt")
		}
		positionsJSON = string(b)
	}
	recsJSON, err := json.MarshalIndent(recs, "", "  ")
	if err != nil {
		return "", errors.Wrap(err, "marshal recommendations for prompt")
	}
	pricesJSON, err := json.MarshalIndent(input.Prices, "", "  ")
	if err != nil {
		return "", errors.Wrap(err, "marshal prices for prompt")
	}

	return fmt.Sprintf(`# Portfolio State
- Cash Balance: $%.2f
- Total Position Value: $%.2f
- Total Portfolio Value: $%.2f

# Existing Positions (%d positions)
%s

# New Recommendations (%d recommendations)
%s

# Current Market Prices
%s

---

Based on the above data, make your BUY/SELL/HOLD/DO_NOTHING decisions for this week.
Consider both new recommendations and existing positions.
`,
		input.PortfolioCash, totalPositionValue, input.PortfolioCash+totalPositionValue,
		len(positions), positionsJSON,
		len(recs), recsJSON,
		pricesJSON), nil
}
