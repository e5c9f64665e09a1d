package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"midas/internal/domain/recommendation"
	"midas/internal/domain/trading"
	"midas/pkg/errors"
	"midas/pkg/logger"
)

const (
	colorGreen = 0x2ecc71
	colorRed   = 0xe74c3c
	colorBlue  = 0x3498db
)

// Notifier posts run summaries to a Discord webhook. Delivery failures are
// logged by callers rather than failing a run.
type Notifier struct {
	webhookURL string
	httpc      *http.Client
	log        *logger.Logger
}

// NewNotifier creates a webhook notifier. An empty URL disables delivery.
func NewNotifier(webhookURL string, timeout time.Duration) *Notifier {
	return &Notifier{
		webhookURL: webhookURL,
		httpc:      &http.Client{Timeout: timeout},
		log:        logger.Get().With("component", "discord_notifier"),
	}
}

type webhookPayload struct {
	Content string  `json:"content,omitempty"`
	Embeds  []embed `json:"embeds,omitempty"`
}

type embed struct {
	Title       string       `json:"title,omitempty"`
	Description string       `json:"description,omitempty"`
	Color       int          `json:"color,omitempty"`
	Fields      []embedField `json:"fields,omitempty"`
	Timestamp   string       `json:"timestamp,omitempty"`
}

type embedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

// NotifyRecommendations announces the final stock picks for a run.
func (n *Notifier) NotifyRecommendations(ctx context.Context, runID string, recs []recommendation.FinalRecommendation) error {
	fields := make([]embedField, 0, len(recs))
	for _, rec := range recs {
		fields = append(fields, embedField{
			Name:  fmt.Sprintf("%s (%s confidence)", rec.Ticker, rec.Confidence),
			Value: truncate(rec.Reason, 1024),
		})
	}
	return n.send(ctx, webhookPayload{
		Embeds: []embed{{
			Title:     fmt.Sprintf("Stock picks - %s", runID),
			Color:     colorBlue,
			Fields:    fields,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		}},
	})
}

// NotifyTrades announces executed trade decisions and the resulting
// portfolio state.
func (n *Notifier) NotifyTrades(ctx context.Context, runID string, trades []trading.Trade, portfolio trading.Portfolio) error {
	var lines []string
	for _, t := range trades {
		switch t.Action {
		case trading.ActionBuy:
			lines = append(lines, fmt.Sprintf("**BUY** %s ×%s @ %s", t.Ticker, humanize.Comma(t.Quantity), money(t.Price)))
		case trading.ActionSell:
			pnl := ""
			if t.RealizedPnL != nil {
				pnl = fmt.Sprintf(" (P&L %s)", money(*t.RealizedPnL))
			}
			lines = append(lines, fmt.Sprintf("**SELL** %s ×%s @ %s%s", t.Ticker, humanize.Comma(t.Quantity), money(t.Price), pnl))
		case trading.ActionHold:
			lines = append(lines, fmt.Sprintf("HOLD %s", t.Ticker))
		}
	}
	if len(lines) == 0 {
		lines = append(lines, "No trades executed")
	}

	return n.send(ctx, webhookPayload{
		Embeds: []embed{{
			Title:       fmt.Sprintf("Trades - %s", runID),
			Description: strings.Join(lines, "\n"),
			Color:       colorGreen,
			Fields: []embedField{
				{Name: "Cash", Value: money(portfolio.CashBalance), Inline: true},
				{Name: "Total value", Value: money(portfolio.TotalValue), Inline: true},
			},
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		}},
	})
}

// NotifyPerformance posts the daily performance snapshot.
func (n *Notifier) NotifyPerformance(ctx context.Context, snap trading.PerformanceSnapshot) error {
	color := colorGreen
	if snap.ROIPercent < 0 {
		color = colorRed
	}
	return n.send(ctx, webhookPayload{
		Embeds: []embed{{
			Title: fmt.Sprintf("Daily performance - %s", snap.RunID),
			Color: color,
			Fields: []embedField{
				{Name: "Total value", Value: money(snap.TotalValue), Inline: true},
				{Name: "Cash", Value: money(snap.CashBalance), Inline: true},
				{Name: "Total P&L", Value: money(snap.TotalPnL), Inline: true},
				{Name: "ROI", Value: fmt.Sprintf("%.2f%%", snap.ROIPercent), Inline: true},
				{Name: "S&P 500 return", Value: fmt.Sprintf("%.2f%%", snap.BenchmarkReturnPercent), Inline: true},
				{Name: "Alpha", Value: fmt.Sprintf("%.2f%%", snap.Alpha), Inline: true},
			},
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		}},
	})
}

func (n *Notifier) send(ctx context.Context, payload webhookPayload) error {
	if n.webhookURL == "" {
		n.log.Debug("Discord webhook not configured, skipping notification")
		return nil
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "marshal discord payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "create discord request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpc.Do(req)
	if err != nil {
		return errors.Wrap(errors.ErrExternal, err.Error())
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errors.Wrapf(errors.ErrExternal, "discord webhook returned %d", resp.StatusCode)
	}
	return nil
}

func money(v float64) string {
	return "$" + humanize.CommafWithDigits(v, 2)
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit-1] + "…"
}
