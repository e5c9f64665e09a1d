// The recommend binary runs the weekly research pipeline: scrape Reddit,
// filter posts, run the analyst agents and persist the final stock picks.
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
	flag.Parse()

	ctx := context.Background()
	app, err := bootstrap.New(ctx)
	if err != nil {
		panic("bootstrap failed: " + err.Error())
	}
	defer app.Close()

	id := *runID
	if id == "" {
		id = workflow.RunID(workflow.RunKindResearch, time.Now().UTC())
	}

	log := logger.Get()
	log.Infow("Starting research run", "run_id", id)

	start := time.Now()
	if err := pipeline.ResearchWorkflow(id, app.Store, app.Deps).Run(ctx); err != nil {
		log.Fatalf("Research run failed: %v", err)
	}
	log.Infow("Research run completed", "run_id", id, "elapsed", time.Since(start).Round(time.Second))
}
