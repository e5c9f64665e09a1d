// The trade binary runs the weekly trade pipeline: capture inputs from the
// latest research run, let the decision agent trade and record the result.
package main

import (
	"context"
	"flag"
	"time"

	"midas/internal/bootstrap"
	"midas/internal/pipeline"
	"midas/internal/workflow"
	"midas/pkg/logger"
)

func main() {
	runID := flag.String("run-id", "", "Override the run id (prefix "+workflow.BypassPrefix+" skips idempotency guards)")
	researchRunID := flag.String("research-run-id", "", "Research run whose picks to trade (defaults to today's)")
	flag.Parse()

	ctx := context.Background()
	app, err := bootstrap.New(ctx)
	if err != nil {
		panic("bootstrap failed: " + err.Error())
	}
	defer app.Close()

	now := time.Now().UTC()
	id := *runID
	if id == "" {
		id = workflow.RunID(workflow.RunKindTrade, now)
	}
	researchID := *researchRunID
	if researchID == "" {
		researchID = workflow.RunID(workflow.RunKindResearch, now)
	}

	log := logger.Get()
	log.Infow("Starting trade run", "run_id", id, "research_run_id", researchID)

	start := time.Now()
	if err := pipeline.TradeWorkflow(id, researchID, app.Store, app.Deps).Run(ctx); err != nil {
		log.Fatalf("Trade run failed: %v", err)
	}
	log.Infow("Trade run completed", "run_id", id, "elapsed", time.Since(start).Round(time.Second))
}
