package market

import (
	"math"

	"midas/internal/persistence"
)

// Snapshot is a point-in-time technical picture of a ticker. When no
// historical data exists, Error is set and every numeric field is NaN.
type Snapshot struct {
	Ticker  string  `json:"ticker"`
	Price   float64 `json:"price"`
	SMA20   float64 `json:"sma20"`
	SMA50   float64 `json:"sma50"`
	SMA200  float64 `json:"sma200"`
	ATR14   float64 `json:"atr14"`
	High52W float64 `json:"high_52w"`
	Low52W  float64 `json:"low_52w"`
	RSI14   float64 `json:"rsi14"`
	AsOf    string  `json:"asof"`
	Error   string  `json:"error,omitempty"`
}

// Empty builds the no-data snapshot for a ticker.
func Empty(ticker, asOf, reason string) Snapshot {
	nan := math.NaN()
	return Snapshot{
		Ticker:  ticker,
		Price:   nan,
		SMA20:   nan,
		SMA50:   nan,
		SMA200:  nan,
		ATR14:   nan,
		High52W: nan,
		Low52W:  nan,
		RSI14:   nan,
		AsOf:    asOf,
		Error:   reason,
	}
}

// ToRow flattens the snapshot for persistence. The transient Error field is
// dropped; it only matters to the fetching step.
func (s Snapshot) ToRow(runID string) persistence.Row {
	return persistence.Row{
		"run_id":   runID,
		"ticker":   s.Ticker,
		"price":    s.Price,
		"sma20":    s.SMA20,
		"sma50":    s.SMA50,
		"sma200":   s.SMA200,
		"atr14":    s.ATR14,
		"high_52w": s.High52W,
		"low_52w":  s.Low52W,
		"rsi14":    s.RSI14,
		"asof":     s.AsOf,
	}
}

// FromRow rebuilds a snapshot from a persisted row.
func FromRow(row persistence.Row) Snapshot {
	return Snapshot{
		Ticker:  row.String("ticker"),
		Price:   row.Float("price"),
		SMA20:   row.Float("sma20"),
		SMA50:   row.Float("sma50"),
		SMA200:  row.Float("sma200"),
		ATR14:   row.Float("atr14"),
		High52W: row.Float("high_52w"),
		Low52W:  row.Float("low_52w"),
		RSI14:   row.Float("rsi14"),
		AsOf:    row.String("asof"),
	}
}
