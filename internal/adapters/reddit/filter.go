package reddit

import (
	"sort"

	"gonum.org/v1/gonum/stat"

	"midas/internal/domain/post"
	"midas/pkg/logger"
)

// FilterPosts applies flair-specific quality cuts after a scrape:
// News posts all pass, DD posts must sit at or above the first quartile of
// their flair's score and upvote ratio, YOLO posts at or above the third
// quartile of theirs.
func FilterPosts(posts map[string][]post.Post) map[string][]post.Post {
	log := logger.Get().With("component", "post_filter")

	filtered := make(map[string][]post.Post, len(posts))
	for flair, list := range posts {
		filtered[flair] = nil

		scores := make([]float64, len(list))
		ratios := make([]float64, len(list))
		for i, p := range list {
			scores[i] = float64(p.Score)
			ratios[i] = p.UpvoteRatio
		}

		q1Score, q3Score := quartiles(scores)
		q1Ratio, q3Ratio := quartiles(ratios)
		log.Debugw("Flair quartiles",
			"flair", flair,
			"q1_score", q1Score, "q3_score", q3Score,
			"q1_upvote_ratio", q1Ratio, "q3_upvote_ratio", q3Ratio,
		)

		for _, p := range list {
			switch flair {
			case post.FlairNews:
				filtered[flair] = append(filtered[flair], p)
			case post.FlairDD:
				if float64(p.Score) >= q1Score && p.UpvoteRatio >= q1Ratio {
					filtered[flair] = append(filtered[flair], p)
				}
			case post.FlairYolo:
				if float64(p.Score) >= q3Score && p.UpvoteRatio >= q3Ratio {
					filtered[flair] = append(filtered[flair], p)
				}
			}
		}
		log.Infow("Filtered flair", "flair", flair, "in", len(list), "out", len(filtered[flair]))
	}
	return filtered
}

// quartiles returns the first and third quartile of the data. Degenerate
// inputs collapse to a single value so single-post flairs always pass.
func quartiles(data []float64) (q1, q3 float64) {
	switch len(data) {
	case 0:
		return 0, 0
	case 1:
		return data[0], data[0]
	}
	sorted := append([]float64(nil), data...)
	sort.Float64s(sorted)
	q1 = stat.Quantile(0.25, stat.Empirical, sorted, nil)
	q3 = stat.Quantile(0.75, stat.Empirical, sorted, nil)
	return q1, q3
}
