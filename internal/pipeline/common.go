package pipeline

import (
	"context"

	"midas/internal/persistence"
	"midas/internal/workflow"
	"midas/pkg/errors"
	"midas/pkg/logger"
)

// runMetadataStep records that a run started. Always the first step of
// every workflow.
func runMetadataStep() workflow.Step {
	return workflow.NewStep("insert run metadata", func(ctx context.Context, store persistence.Store, runID string) error {
		done, err := workflow.Done(ctx, store, runID, persistence.TableRunMetadata)
		if err != nil {
			return err
		}
		if done {
			logger.Infow("Run metadata already recorded, skipping", "run_id", runID)
			return nil
		}
		err = store.Set(ctx, persistence.TableRunMetadata, []persistence.Row{{"run_id": runID}})
		if err != nil {
			return errors.Wrap(err, "insert run metadata")
		}
		return nil
	})
}
