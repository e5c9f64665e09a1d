package agents

import (
	"context"
	"encoding/json"
	"time"

	"midas/internal/domain/post"
	"midas/internal/domain/recommendation"
	"midas/pkg/errors"
	"midas/pkg/logger"
)

const newsSystemPrompt = `# Role & Objective
- Act as a disciplined equity recommender that analyzes News posts gathered from Reddit.
- For each ticker mentioned or closely related to the news, decide whether to include it as a BUY idea based on factual, catalyst-driven evidence.
- Focus on near-term (1-3 month) implications of the news.

# Information Gathering
- Parse the provided news articles and posts for relevant stock information.
- Identify both directly mentioned and first-order related tickers (competitors, suppliers, customers, or partners).
- Extract concrete catalysts such as earnings releases, guidance updates, product launches, M&A activity, regulatory actions, litigation, or significant macroeconomic developments.
- When evidence conflicts, rely on the most recent and credible sources.

# Analysis & Decision Rules
- Include a ticker only if the catalyst is credible, recent, and likely to drive positive price movement in the next 1-3 months.
- Exclude tickers where evidence is hype-based, speculative, outdated, or lacks a clear link between the news and potential price movement.
- When signals conflict or remain uncertain, omit the name rather than include it with low confidence.
- Describe the primary catalyst in 5 sentences or fewer, explaining why it supports an upside thesis.

# Output Expectations
- Provide a short, high-conviction list instead of a long one.
- Ensure each reason is factual, specific, and logically tied to a catalyst.
- Always attach the reddit_post_url of the post the idea came from.`

const ddSystemPrompt = `# Role & Objective
- Serve as a disciplined equity recommender by analyzing Reddit "Due Diligence" (DD) posts.
- Transform DD content into a concise list of high-conviction BUY ideas for the next 1-3 months, each supported by clear, testable reasons.

# Checklist (Before Analysis)
- Focus exclusively on tickers explicitly mentioned in the DD posts.
- Extract concrete evidence: earnings results, guidance updates, unit economics, margins, total addressable market, valuation metrics (P/E, EV/EBITDA, FCF), balance sheet items, management commentary, and regulatory or legal developments.
- Prioritize evidence from the last 7-10 days when dates are provided.
- Weigh sources by credibility: filings and transcripts over reputable news over blog claims.

# Decision Rules
- Exclude any ticker reliant on hype, vague sentiment, or unsubstantiated assertions.
- When evidence is conflicting or weak, omit the name rather than include it with low confidence.
- For included tickers, provide reasons that are factual, concise (no more than five sentences), explicitly state the primary catalyst, and clarify why it should affect the share price in the next 1-3 months.
- Always attach the reddit_post_url of the post the idea came from.`

const yoloSystemPrompt = `# Role & Objective
- Analyze r/wallstreetbets "YOLO" posts to identify legitimate, high-conviction BUY ideas for the next 1-3 months.
- Separate signal from hype; include only names with clear, verifiable catalysts and a medium-term thesis.

# Checklist (Before Analysis)
- Focus on tickers explicitly mentioned in posts; consider first-order peers only if the catalyst clearly propagates.
- Extract concrete evidence: earnings results and guidance, product updates, unit economics and margins, valuation, balance sheet quality, management commentary, regulatory items, major customer wins.
- Disregard memes, screenshots without sources, and vague sentiment.

# Decision Rules
- Require an explicit, traceable catalyst or durable thesis (guide raise, product cycle inflection, valuation re-rating, regulatory milestone).
- Ignore purely short-term option-flow chatter unless tied to a fundamental or scheduled catalyst within the 1-3 month window.
- Prefer fewer, stronger ideas over longer lists; omit weak or conflicting names.
- Limit each reason to no more than five sentences and always specify the catalyst explicitly.
- Always attach the reddit_post_url of the post the idea came from.`

// Recommender turns filtered posts of one flair into stock recommendations.
type Recommender struct {
	client StructuredClient
	log    *logger.Logger
}

func NewRecommender(client StructuredClient) *Recommender {
	return &Recommender{
		client: client,
		log:    logger.Get().With("component", "recommender_agent"),
	}
}

func systemPromptFor(flair string) (string, error) {
	switch flair {
	case post.FlairNews:
		return newsSystemPrompt + "\n\n" + agenticBalancePrompt, nil
	case post.FlairDD:
		return ddSystemPrompt + "\n\n" + agenticBalancePrompt, nil
	case post.FlairYolo:
		return yoloSystemPrompt + "\n\n" + agenticBalancePrompt, nil
	default:
		return "", errors.Wrapf(errors.ErrInvalidInput, "no recommender for flair %q", flair)
	}
}

type promptPost struct {
	Title     string `json:"title"`
	Content   string `json:"content"`
	CreatedAt string `json:"created_at"`
	PostURL   string `json:"post_url"`
}

// Recommend analyzes one flair's posts and returns BUY ideas. An empty
// result is valid: no post may survive the agent's bar.
func (r *Recommender) Recommend(ctx context.Context, flair string, posts []post.Post) ([]recommendation.StockRecommendation, error) {
	system, err := systemPromptFor(flair)
	if err != nil {
		return nil, err
	}

	items := make([]promptPost, 0, len(posts))
	for _, p := range posts {
		items = append(items, promptPost{
			Title:     p.Title,
			Content:   p.Selftext,
			CreatedAt: p.Created.Format(time.RFC3339),
			PostURL:   p.URL,
		})
	}
	encoded, err := json.Marshal(items)
	if err != nil {
		return nil, errors.Wrap(err, "marshal posts for prompt")
	}
	user := "Below are recent Reddit posts. Analyze them and provide a list of high-conviction stock recommendations with clear reasons.\n\nITEMS:\n" + string(encoded)

	var out struct {
		Recommendations []recommendation.StockRecommendation `json:"recommendations"`
	}
	if err := r.client.Parse(ctx, system, user, recommendationsSchema, &out); err != nil {
		return nil, errors.Wrapf(err, "%s recommendation agent", flair)
	}

	valid := out.Recommendations[:0]
	for _, rec := range out.Recommendations {
		if rec.Ticker == "" || !rec.Confidence.Valid() {
			r.log.Warnw("Dropping malformed recommendation", "flair", flair, "ticker", rec.Ticker, "confidence", rec.Confidence)
			continue
		}
		valid = append(valid, rec)
	}
	r.log.Infow("Recommendations generated", "flair", flair, "posts", len(posts), "recommendations", len(valid))
	return valid, nil
}
