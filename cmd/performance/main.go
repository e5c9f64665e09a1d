// The performance binary runs the daily tracking pipeline: refresh position
// prices and append a benchmark-compared performance snapshot.
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
		id = workflow.RunID(workflow.RunKindPerformance, time.Now().UTC())
	}

	log := logger.Get()
	log.Infow("Starting performance run", "run_id", id)

	start := time.Now()
	if err := pipeline.PerformanceWorkflow(id, app.Store, app.Deps).Run(ctx); err != nil {
		log.Fatalf("Performance run failed: %v", err)
	}
	log.Infow("Performance run completed", "run_id", id, "elapsed", time.Since(start).Round(time.Second))
}
