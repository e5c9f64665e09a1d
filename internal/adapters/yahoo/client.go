package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"time"

	talib "github.com/markcheno/go-talib"
	"golang.org/x/time/rate"

	"midas/internal/domain/market"
	"midas/pkg/errors"
	"midas/pkg/logger"
)

const chartURL = "https://query1.finance.yahoo.com/v8/finance/chart/%s?range=1y&interval=1d"

// Client fetches daily history from the Yahoo Finance chart API and derives
// the technical indicators the planner agent consumes.
type Client struct {
	httpc   *http.Client
	limiter *rate.Limiter
	log     *logger.Logger
}

// NewClient creates a throttled Yahoo Finance client.
func NewClient(timeout time.Duration) *Client {
	return &Client{
		httpc:   &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Every(500*time.Millisecond), 1),
		log:     logger.Get().With("component", "yahoo_client"),
	}
}

type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

type chartResult struct {
	Meta struct {
		RegularMarketPrice float64 `json:"regularMarketPrice"`
	} `json:"meta"`
	Indicators struct {
		Quote []chartQuote `json:"quote"`
	} `json:"indicators"`
}

type chartQuote struct {
	Close []*float64 `json:"close"`
	High  []*float64 `json:"high"`
	Low   []*float64 `json:"low"`
}

// GetSnapshot builds the technical snapshot for a ticker from one year of
// daily bars. When no usable history exists the snapshot carries an error
// and NaN fields instead of failing the call.
func (c *Client) GetSnapshot(ctx context.Context, ticker string) (market.Snapshot, error) {
	asOf := time.Now().UTC().Format(time.RFC3339)

	closes, highs, lows, err := c.history(ctx, ticker)
	if err != nil {
		return market.Snapshot{}, err
	}
	if len(closes) == 0 {
		c.log.Warnw("No historical data", "ticker", ticker)
		return market.Empty(ticker, asOf, "no historical data found"), nil
	}

	snap := market.Snapshot{
		Ticker:  ticker,
		Price:   closes[len(closes)-1],
		SMA20:   lastIndicator(talib.Sma(closes, 20), 20, len(closes)),
		SMA50:   lastIndicator(talib.Sma(closes, 50), 50, len(closes)),
		SMA200:  lastIndicator(talib.Sma(closes, 200), 200, len(closes)),
		ATR14:   lastIndicator(talib.Atr(highs, lows, closes, 14), 15, len(closes)),
		RSI14:   lastIndicator(talib.Rsi(closes, 14), 15, len(closes)),
		High52W: maxOf(highs),
		Low52W:  minOf(lows),
		AsOf:    asOf,
	}
	return snap, nil
}

// GetCurrentPrice returns the latest market price, or NaN when the ticker
// cannot be priced.
func (c *Client) GetCurrentPrice(ctx context.Context, ticker string) float64 {
	result, err := c.fetchChart(ctx, ticker)
	if err != nil {
		c.log.Warnw("Price fetch failed", "ticker", ticker, "error", err)
		return math.NaN()
	}
	if result.Meta.RegularMarketPrice > 0 {
		return result.Meta.RegularMarketPrice
	}
	return math.NaN()
}

// GetCurrentPrices fetches prices for a batch of tickers, dropping any that
// cannot be priced.
func (c *Client) GetCurrentPrices(ctx context.Context, tickers []string) map[string]float64 {
	prices := make(map[string]float64, len(tickers))
	for _, ticker := range tickers {
		if price := c.GetCurrentPrice(ctx, ticker); !math.IsNaN(price) {
			prices[ticker] = price
		}
	}
	return prices
}

func (c *Client) fetchChart(ctx context.Context, ticker string) (*chartResult, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, errors.Wrap(err, "yahoo rate limit wait")
	}

	url := fmt.Sprintf(chartURL, ticker)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "build chart request")
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; midas/1.0)")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, errors.Wrap(errors.ErrExternal, err.Error())
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Wrapf(errors.ErrExternal, "yahoo chart for %s returned %d", ticker, resp.StatusCode)
	}

	var parsed chartResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, errors.Wrapf(err, "decode chart for %s", ticker)
	}
	if parsed.Chart.Error != nil {
		return nil, errors.Wrapf(errors.ErrExternal, "yahoo chart for %s: %s", ticker, parsed.Chart.Error.Description)
	}
	if len(parsed.Chart.Result) == 0 {
		return nil, errors.Wrapf(errors.ErrExternal, "yahoo chart for %s: empty result", ticker)
	}
	return &parsed.Chart.Result[0], nil
}

// history returns aligned close/high/low series with null bars dropped.
func (c *Client) history(ctx context.Context, ticker string) (closes, highs, lows []float64, err error) {
	result, err := c.fetchChart(ctx, ticker)
	if err != nil {
		return nil, nil, nil, err
	}
	if len(result.Indicators.Quote) == 0 {
		return nil, nil, nil, nil
	}

	quote := result.Indicators.Quote[0]
	for i := range quote.Close {
		if quote.Close[i] == nil || quote.High[i] == nil || quote.Low[i] == nil {
			continue
		}
		closes = append(closes, *quote.Close[i])
		highs = append(highs, *quote.High[i])
		lows = append(lows, *quote.Low[i])
	}
	return closes, highs, lows, nil
}

// lastIndicator returns the final value of an indicator series, or NaN when
// the history is shorter than the indicator's warm-up window.
func lastIndicator(series []float64, minBars, bars int) float64 {
	if bars < minBars || len(series) == 0 {
		return math.NaN()
	}
	return series[len(series)-1]
}

func maxOf(data []float64) float64 {
	if len(data) == 0 {
		return math.NaN()
	}
	out := data[0]
	for _, v := range data[1:] {
		if v > out {
			out = v
		}
	}
	return out
}

func minOf(data []float64) float64 {
	if len(data) == 0 {
		return math.NaN()
	}
	out := data[0]
	for _, v := range data[1:] {
		if v < out {
			out = v
		}
	}
	return out
}
