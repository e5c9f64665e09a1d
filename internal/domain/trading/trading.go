package trading

import (
	"midas/internal/persistence"
)

// Action is the decision agent's verdict for one ticker.
type Action string

const (
	ActionBuy       Action = "BUY"
	ActionSell      Action = "SELL"
	ActionHold      Action = "HOLD"
	ActionDoNothing Action = "DO_NOTHING"
)

// Valid checks if the action is one the decision agent may emit.
func (a Action) Valid() bool {
	switch a {
	case ActionBuy, ActionSell, ActionHold, ActionDoNothing:
		return true
	}
	return false
}

// Decision is one agent-produced trade decision. Quantity is zero for HOLD
// and DO_NOTHING.
type Decision struct {
	Ticker   string `json:"ticker"`
	Action   Action `json:"action"`
	Quantity int64  `json:"quantity"`
	Reason   string `json:"reason"`
}

// Portfolio is a simulated trading account. InitialCapital never changes
// after creation.
type Portfolio struct {
	ID              int64
	Name            string
	CashBalance     float64
	TotalValue      float64
	InitialCapital  float64
	LastUpdateRunID string
}

// PortfolioFromRow rebuilds a portfolio from a persisted row.
func PortfolioFromRow(row persistence.Row) Portfolio {
	return Portfolio{
		ID:              row.Int("id"),
		Name:            row.String("name"),
		CashBalance:     row.Float("cash_balance"),
		TotalValue:      row.Float("total_value"),
		InitialCapital:  row.Float("initial_capital"),
		LastUpdateRunID: row.String("last_update_run_id"),
	}
}

// Position is an open holding of a ticker within a portfolio. The row is
// deleted once quantity reaches zero; a ticker has at most one open
// position per portfolio.
type Position struct {
	ID            int64   `json:"-"`
	PortfolioID   int64   `json:"-"`
	Ticker        string  `json:"ticker"`
	Quantity      int64   `json:"quantity"`
	AvgEntryPrice float64 `json:"avg_entry_price"`
	CurrentPrice  float64 `json:"current_price"`
	UnrealizedPnL float64 `json:"unrealized_pnl"`
}

// ToRow flattens the position for persistence.
func (p Position) ToRow() persistence.Row {
	return persistence.Row{
		"portfolio_id":    p.PortfolioID,
		"ticker":          p.Ticker,
		"quantity":        p.Quantity,
		"avg_entry_price": p.AvgEntryPrice,
		"current_price":   p.CurrentPrice,
		"unrealized_pnl":  p.UnrealizedPnL,
	}
}

// PositionFromRow rebuilds a position from a persisted row.
func PositionFromRow(row persistence.Row) Position {
	return Position{
		ID:            row.Int("id"),
		PortfolioID:   row.Int("portfolio_id"),
		Ticker:        row.String("ticker"),
		Quantity:      row.Int("quantity"),
		AvgEntryPrice: row.Float("avg_entry_price"),
		CurrentPrice:  row.Float("current_price"),
		UnrealizedPnL: row.Float("unrealized_pnl"),
	}
}

// Trade is one immutable audit log row per executed action. RealizedPnL is
// set only for SELL trades; RecommendationID links a BUY back to the final
// recommendation that motivated it.
type Trade struct {
	PortfolioID      int64
	RunID            string
	Ticker           string
	Action           Action
	Quantity         int64
	Price            float64
	TotalCost        float64
	Reason           string
	RealizedPnL      *float64
	RecommendationID *int64
}

// ToRow flattens the trade for persistence.
func (t Trade) ToRow() persistence.Row {
	row := persistence.Row{
		"portfolio_id":            t.PortfolioID,
		"run_id":                  t.RunID,
		"ticker":                  t.Ticker,
		"action":                  string(t.Action),
		"quantity":                t.Quantity,
		"price":                   t.Price,
		"total_cost":              t.TotalCost,
		"reason":                  t.Reason,
		"realized_pnl":            nil,
		"final_recommendation_id": nil,
	}
	if t.RealizedPnL != nil {
		row["realized_pnl"] = *t.RealizedPnL
	}
	if t.RecommendationID != nil {
		row["final_recommendation_id"] = *t.RecommendationID
	}
	return row
}

// TradeFromRow rebuilds a trade from a persisted row.
func TradeFromRow(row persistence.Row) Trade {
	t := Trade{
		PortfolioID: row.Int("portfolio_id"),
		RunID:       row.String("run_id"),
		Ticker:      row.String("ticker"),
		Action:      Action(row.String("action")),
		Quantity:    row.Int("quantity"),
		Price:       row.Float("price"),
		TotalCost:   row.Float("total_cost"),
		Reason:      row.String("reason"),
	}
	if pnl, ok := row.NullFloat("realized_pnl"); ok {
		t.RealizedPnL = &pnl
	}
	if row["final_recommendation_id"] != nil {
		id := row.Int("final_recommendation_id")
		t.RecommendationID = &id
	}
	return t
}

// PerformanceSnapshot is an append-only point-in-time portfolio valuation
// with benchmark comparison.
type PerformanceSnapshot struct {
	PortfolioID            int64
	RunID                  string
	TotalValue             float64
	CashBalance            float64
	TotalPnL               float64
	ROIPercent             float64
	BenchmarkInitialValue  float64
	BenchmarkCurrentValue  float64
	BenchmarkReturnPercent float64
	Alpha                  float64
}

// ToRow flattens the snapshot for persistence. Benchmark columns keep their
// historical sp500_* names.
func (s PerformanceSnapshot) ToRow() persistence.Row {
	return persistence.Row{
		"portfolio_id":                    s.PortfolioID,
		"run_id":                          s.RunID,
		"total_value":                     s.TotalValue,
		"cash_balance":                    s.CashBalance,
		"total_pnl":                       s.TotalPnL,
		"roi_percent":                     s.ROIPercent,
		"sp500_initial_value":             s.BenchmarkInitialValue,
		"sp500_current_value":             s.BenchmarkCurrentValue,
		"sp500_cumulative_return_percent": s.BenchmarkReturnPercent,
		"alpha":                           s.Alpha,
	}
}

// PerformanceSnapshotFromRow rebuilds a snapshot from a persisted row.
func PerformanceSnapshotFromRow(row persistence.Row) PerformanceSnapshot {
	return PerformanceSnapshot{
		PortfolioID:            row.Int("portfolio_id"),
		RunID:                  row.String("run_id"),
		TotalValue:             row.Float("total_value"),
		CashBalance:            row.Float("cash_balance"),
		TotalPnL:               row.Float("total_pnl"),
		ROIPercent:             row.Float("roi_percent"),
		BenchmarkInitialValue:  row.Float("sp500_initial_value"),
		BenchmarkCurrentValue:  row.Float("sp500_current_value"),
		BenchmarkReturnPercent: row.Float("sp500_cumulative_return_percent"),
		Alpha:                  row.Float("alpha"),
	}
}

// RecommendationRef is a final recommendation as captured into the trade
// inputs, carrying the originating row id for trade linking.
type RecommendationRef struct {
	Ticker           string `json:"ticker"`
	Reason           string `json:"reason"`
	Confidence       string `json:"confidence"`
	RedditPostURL    string `json:"reddit_post_url"`
	RecommendationID int64  `json:"final_recommendation_id"`
}

// TradeInput is the frozen capture of everything the decision agent saw for
// one run, so the decision step stays reproducible after market state
// drifts.
type TradeInput struct {
	RunID           string
	HasData         bool
	PortfolioID     int64
	PortfolioCash   float64
	Recommendations []RecommendationRef
	Prices          map[string]float64
	Positions       []Position
}
