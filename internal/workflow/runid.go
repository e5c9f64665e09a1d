package workflow

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RunKind namespaces run ids per workflow so concurrent pipelines never
// collide on the same tables.
type RunKind string

const (
	RunKindResearch    RunKind = "reddit_stock_recommendation"
	RunKindTrade       RunKind = "reddit_stock_trade"
	RunKindPerformance RunKind = "daily_perf"
)

// RunID builds the canonical run id for a kind and timestamp, e.g.
// "reddit_stock_trade_20260105".
func RunID(kind RunKind, ts time.Time) string {
	return fmt.Sprintf("%s_%s", kind, ts.Format("20060102"))
}

// AdhocRunID builds a unique, guard-bypassing run id for forced re-runs and
// test isolation.
func AdhocRunID(kind RunKind) string {
	return fmt.Sprintf("%s%s_%s", BypassPrefix, kind, uuid.NewString())
}
