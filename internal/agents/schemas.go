package agents

import (
	"encoding/json"

	"midas/internal/adapters/ai"
)

var recommendationsSchema = ai.Schema{
	Name: "stock_recommendations",
	Raw: json.RawMessage(`{
		"type": "object",
		"properties": {
			"recommendations": {
				"type": "array",
				"items": {
					"type": "object",
					"properties": {
						"ticker": {"type": "string"},
						"reason": {"type": "string"},
						"confidence": {"type": "string", "enum": ["high", "medium", "low"]},
						"reddit_post_url": {"type": "string"}
					},
					"required": ["ticker", "reason", "confidence", "reddit_post_url"],
					"additionalProperties": false
				}
			}
		},
		"required": ["recommendations"],
		"additionalProperties": false
	}`),
}

var tickerPickSchema = ai.Schema{
	Name: "ticker_pick",
	Raw: json.RawMessage(`{
		"type": "object",
		"properties": {
			"tickers": {
				"type": "array",
				"items": {"type": "string"},
				"minItems": 1,
				"maxItems": 3
			},
			"reason": {"type": "string"}
		},
		"required": ["tickers", "reason"],
		"additionalProperties": false
	}`),
}

var tradePlansSchema = ai.Schema{
	Name: "trade_plans",
	Raw: json.RawMessage(`{
		"type": "object",
		"properties": {
			"plans": {
				"type": "array",
				"items": {
					"type": "object",
					"properties": {
						"ticker": {"type": "string"},
						"entry_price": {"type": "number"},
						"stop_loss": {"type": "number"},
						"take_profits": {"type": "array", "items": {"type": "number"}},
						"time_horizon_days": {"type": "integer"},
						"risk_reward": {"type": "number"},
						"rationale": {"type": "string"}
					},
					"required": ["ticker", "entry_price", "stop_loss", "take_profits", "time_horizon_days", "risk_reward", "rationale"],
					"additionalProperties": false
				}
			}
		},
		"required": ["plans"],
		"additionalProperties": false
	}`),
}

var tradeDecisionsSchema = ai.Schema{
	Name: "trade_decisions",
	Raw: json.RawMessage(`{
		"type": "object",
		"properties": {
			"decisions": {
				"type": "array",
				"items": {
					"type": "object",
					"properties": {
						"ticker": {"type": "string"},
						"action": {"type": "string", "enum": ["BUY", "SELL", "HOLD", "DO_NOTHING"]},
						"quantity": {"type": "integer", "minimum": 0},
						"reason": {"type": "string"}
					},
					"required": ["ticker", "action", "quantity", "reason"],
					"additionalProperties": false
				}
			}
		},
		"required": ["decisions"],
		"additionalProperties": false
	}`),
}
