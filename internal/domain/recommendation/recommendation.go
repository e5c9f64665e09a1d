package recommendation

import (
	"midas/internal/persistence"
)

// Confidence is the analyst agent's conviction level.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Valid checks if the confidence level is one the agents may emit.
func (c Confidence) Valid() bool {
	switch c {
	case ConfidenceHigh, ConfidenceMedium, ConfidenceLow:
		return true
	}
	return false
}

// StockRecommendation is one BUY idea extracted from a scraped post.
type StockRecommendation struct {
	Ticker        string     `json:"ticker"`
	Reason        string     `json:"reason"`
	Confidence    Confidence `json:"confidence"`
	RedditPostURL string     `json:"reddit_post_url"`
}

// ToRow flattens the recommendation for persistence under a run id.
func (r StockRecommendation) ToRow(runID string) persistence.Row {
	return persistence.Row{
		"run_id":          runID,
		"ticker":          r.Ticker,
		"reason":          r.Reason,
		"confidence":      string(r.Confidence),
		"reddit_post_url": r.RedditPostURL,
	}
}

// FromRow rebuilds a recommendation from a persisted row.
func FromRow(row persistence.Row) StockRecommendation {
	return StockRecommendation{
		Ticker:        row.String("ticker"),
		Reason:        row.String("reason"),
		Confidence:    Confidence(row.String("confidence")),
		RedditPostURL: row.String("reddit_post_url"),
	}
}

// TickerPick is the picker agent's final selection.
type TickerPick struct {
	Tickers []string `json:"tickers"`
	Reason  string   `json:"reason"`
}

// FinalRecommendation is a picked recommendation persisted for the trade
// workflow, carrying its row id so trades can link back to it.
type FinalRecommendation struct {
	ID int64
	StockRecommendation
}

// FinalFromRow rebuilds a final recommendation from a persisted row.
func FinalFromRow(row persistence.Row) FinalRecommendation {
	return FinalRecommendation{
		ID:                  row.Int("id"),
		StockRecommendation: FromRow(row),
	}
}
