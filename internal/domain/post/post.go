package post

import (
	"time"

	"midas/internal/persistence"
)

// Flairs the research pipeline cares about. Each flair gets its own
// recommendation agent downstream.
const (
	FlairNews = "News"
	FlairDD   = "DD"
	FlairYolo = "YOLO"
)

// Flairs returns the scraped flairs in pipeline order.
func Flairs() []string {
	return []string{FlairNews, FlairDD, FlairYolo}
}

// Post is a scraped subreddit submission.
type Post struct {
	Flair       string
	Title       string
	Selftext    string
	Score       int64
	Comments    int64
	UpvoteRatio float64
	Created     time.Time
	URL         string
}

// ToRow flattens the post for persistence under a run id.
func (p Post) ToRow(runID string) persistence.Row {
	return persistence.Row{
		"run_id":       runID,
		"flair":        p.Flair,
		"title":        p.Title,
		"selftext":     p.Selftext,
		"score":        p.Score,
		"comments":     p.Comments,
		"upvote_ratio": p.UpvoteRatio,
		"created":      p.Created,
		"url":          p.URL,
	}
}

// FromRow rebuilds a post from a persisted row.
func FromRow(row persistence.Row) Post {
	return Post{
		Flair:       row.String("flair"),
		Title:       row.String("title"),
		Selftext:    row.String("selftext"),
		Score:       row.Int("score"),
		Comments:    row.Int("comments"),
		UpvoteRatio: row.Float("upvote_ratio"),
		Created:     row.Time("created"),
		URL:         row.String("url"),
	}
}
