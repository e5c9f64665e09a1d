package plan

import (
	"encoding/json"

	"midas/internal/persistence"
	"midas/pkg/errors"
)

// TradePlan is the planner agent's trade setup for one ticker.
type TradePlan struct {
	Ticker          string    `json:"ticker"`
	EntryPrice      float64   `json:"entry_price"`
	StopLoss        float64   `json:"stop_loss"`
	TakeProfits     []float64 `json:"take_profits"`
	TimeHorizonDays int64     `json:"time_horizon_days"`
	RiskReward      float64   `json:"risk_reward"`
	Rationale       string    `json:"rationale"`
}

const (
	minHorizonDays  = 7
	maxHorizonDays  = 180
	maxRationaleLen = 400
)

// Validate enforces the structured-output contract on an agent-produced
// plan. A violation means the model response cannot be trusted downstream.
func (p TradePlan) Validate() error {
	switch {
	case p.Ticker == "":
		return errors.Wrap(errors.ErrAgentResponse, "plan has empty ticker")
	case p.EntryPrice <= 0:
		return errors.Wrapf(errors.ErrAgentResponse, "plan for %s has non-positive entry price", p.Ticker)
	case p.StopLoss <= 0:
		return errors.Wrapf(errors.ErrAgentResponse, "plan for %s has non-positive stop loss", p.Ticker)
	case len(p.TakeProfits) == 0:
		return errors.Wrapf(errors.ErrAgentResponse, "plan for %s has no take profits", p.Ticker)
	case p.TimeHorizonDays < minHorizonDays || p.TimeHorizonDays > maxHorizonDays:
		return errors.Wrapf(errors.ErrAgentResponse, "plan for %s has horizon %d days outside [%d,%d]",
			p.Ticker, p.TimeHorizonDays, minHorizonDays, maxHorizonDays)
	case p.RiskReward <= 0:
		return errors.Wrapf(errors.ErrAgentResponse, "plan for %s has non-positive risk/reward", p.Ticker)
	case p.Rationale == "" || len(p.Rationale) > maxRationaleLen:
		return errors.Wrapf(errors.ErrAgentResponse, "plan for %s has rationale outside 1..%d chars",
			p.Ticker, maxRationaleLen)
	}
	return nil
}

// ToRow flattens the plan for persistence. Take profits serialize as JSON
// text since both stores treat them as an opaque scalar.
func (p TradePlan) ToRow(runID string) (persistence.Row, error) {
	tps, err := json.Marshal(p.TakeProfits)
	if err != nil {
		return nil, errors.Wrap(err, "marshal take profits")
	}
	return persistence.Row{
		"run_id":            runID,
		"ticker":            p.Ticker,
		"entry_price":       p.EntryPrice,
		"stop_loss":         p.StopLoss,
		"take_profits":      string(tps),
		"time_horizon_days": p.TimeHorizonDays,
		"risk_reward":       p.RiskReward,
		"rationale":         p.Rationale,
	}, nil
}

// FromRow rebuilds a plan from a persisted row.
func FromRow(row persistence.Row) (TradePlan, error) {
	p := TradePlan{
		Ticker:          row.String("ticker"),
		EntryPrice:      row.Float("entry_price"),
		StopLoss:        row.Float("stop_loss"),
		TimeHorizonDays: row.Int("time_horizon_days"),
		RiskReward:      row.Float("risk_reward"),
		Rationale:       row.String("rationale"),
	}
	if raw := row.String("take_profits"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &p.TakeProfits); err != nil {
			return TradePlan{}, errors.Wrapf(err, "unmarshal take profits for %s", p.Ticker)
		}
	}
	return p, nil
}
