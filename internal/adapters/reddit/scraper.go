package reddit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"midas/internal/adapters/config"
	"midas/internal/domain/post"
	"midas/pkg/errors"
	"midas/pkg/logger"
)

const baseURL = "https://www.reddit.com"

// pageSize is the listing API's maximum page size.
const pageSize = 100

// Scraper reads subreddit listings through Reddit's public JSON API.
type Scraper struct {
	cfg     config.RedditConfig
	httpc   *http.Client
	limiter *rate.Limiter
	log     *logger.Logger
}

// NewScraper creates a scraper throttled to the public API's unauthenticated
// request budget.
func NewScraper(cfg config.RedditConfig) *Scraper {
	return &Scraper{
		cfg:     cfg,
		httpc:   &http.Client{Timeout: cfg.HTTPTimeout},
		limiter: rate.NewLimiter(rate.Every(time.Second), 1),
		log:     logger.Get().With("component", "reddit_scraper"),
	}
}

type listing struct {
	Data struct {
		After    string `json:"after"`
		Children []struct {
			Data struct {
				Title       string  `json:"title"`
				Selftext    string  `json:"selftext"`
				Score       int64   `json:"score"`
				NumComments int64   `json:"num_comments"`
				UpvoteRatio float64 `json:"upvote_ratio"`
				CreatedUTC  float64 `json:"created_utc"`
				URL         string  `json:"url"`
				Flair       string  `json:"link_flair_text"`
			} `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

// Scrape fetches new posts grouped by flair. Posts older than the cutoff
// stop the walk (listings are newest-first); posts with unwanted flairs or
// empty selftext are dropped.
func (s *Scraper) Scrape(ctx context.Context, flairsWant map[string]bool, skipEmptySelftext bool) (map[string][]post.Post, error) {
	s.log.Infow("Scraping subreddit",
		"subreddit", s.cfg.Subreddit,
		"cutoff_days", s.cfg.CutoffDays,
		"limit", s.cfg.PostLimit,
	)

	cutoff := time.Now().UTC().AddDate(0, 0, -s.cfg.CutoffDays)
	collect := make(map[string][]post.Post)

	after := ""
	fetched := 0
	for fetched < s.cfg.PostLimit {
		page, err := s.fetchPage(ctx, after)
		if err != nil {
			return nil, err
		}
		if len(page.Data.Children) == 0 {
			break
		}

		for _, child := range page.Data.Children {
			fetched++
			created := time.Unix(int64(child.Data.CreatedUTC), 0).UTC()
			if created.Before(cutoff) {
				return collect, nil
			}

			flair := child.Data.Flair
			if len(flairsWant) > 0 && !flairsWant[flair] {
				continue
			}
			if skipEmptySelftext && child.Data.Selftext == "" {
				continue
			}

			collect[flair] = append(collect[flair], post.Post{
				Flair:       flair,
				Title:       child.Data.Title,
				Selftext:    child.Data.Selftext,
				Score:       child.Data.Score,
				Comments:    child.Data.NumComments,
				UpvoteRatio: child.Data.UpvoteRatio,
				Created:     created,
				URL:         child.Data.URL,
			})
		}

		after = page.Data.After
		if after == "" {
			break
		}
	}

	total := 0
	for _, posts := range collect {
		total += len(posts)
	}
	s.log.Infow("Scrape complete", "subreddit", s.cfg.Subreddit, "posts", total)

	return collect, nil
}

func (s *Scraper) fetchPage(ctx context.Context, after string) (*listing, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, errors.Wrap(err, "scraper rate limit wait")
	}

	url := fmt.Sprintf("%s/r/%s/new.json?limit=%d&raw_json=1", baseURL, s.cfg.Subreddit, pageSize)
	if after != "" {
		url += "&after=" + after
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "build listing request")
	}
	req.Header.Set("User-Agent", s.cfg.UserAgent)

	resp, err := s.httpc.Do(req)
	if err != nil {
		return nil, errors.Wrap(errors.ErrExternal, err.Error())
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Wrapf(errors.ErrExternal, "reddit listing returned %d", resp.StatusCode)
	}

	var page listing
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, errors.Wrap(err, "decode reddit listing")
	}
	return &page, nil
}
