package trading

import (
	"encoding/json"

	"midas/internal/persistence"
	"midas/pkg/errors"
)

// ToRow serializes the captured inputs as JSON text columns.
func (in TradeInput) ToRow() (persistence.Row, error) {
	recs, err := json.Marshal(in.Recommendations)
	if err != nil {
		return nil, errors.Wrap(err, "marshal recommendations")
	}
	prices, err := json.Marshal(in.Prices)
	if err != nil {
		return nil, errors.Wrap(err, "marshal prices")
	}
	positions, err := json.Marshal(in.Positions)
	if err != nil {
		return nil, errors.Wrap(err, "marshal positions")
	}
	return persistence.Row{
		"run_id":               in.RunID,
		"has_data":             in.HasData,
		"portfolio_id":         in.PortfolioID,
		"portfolio_cash":       in.PortfolioCash,
		"recommendations_json": string(recs),
		"prices_json":          string(prices),
		"positions_json":       string(positions),
	}, nil
}

// TradeInputFromRow rebuilds the captured inputs from a persisted row.
func TradeInputFromRow(row persistence.Row) (TradeInput, error) {
	in := TradeInput{
		RunID:         row.String("run_id"),
		HasData:       row.Bool("has_data"),
		PortfolioID:   row.Int("portfolio_id"),
		PortfolioCash: row.Float("portfolio_cash"),
	}
	if raw := row.String("recommendations_json"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &in.Recommendations); err != nil {
			return TradeInput{}, errors.Wrap(err, "unmarshal recommendations")
		}
	}
	if raw := row.String("prices_json"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &in.Prices); err != nil {
			return TradeInput{}, errors.Wrap(err, "unmarshal prices")
		}
	}
	if raw := row.String("positions_json"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &in.Positions); err != nil {
			return TradeInput{}, errors.Wrap(err, "unmarshal positions")
		}
	}
	return in, nil
}
