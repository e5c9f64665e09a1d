package workflow

import (
	"context"
	"sync"

	"midas/internal/persistence"
	"midas/pkg/errors"
	"midas/pkg/logger"
)

// StepFn is one unit of side-effecting work over persistence for a run.
// Sibling units in the same step run concurrently and must not depend on
// each other's side effects.
type StepFn func(ctx context.Context, store persistence.Store, runID string) error

// Factory produces a step's unit list at execution time, once upstream
// steps have written their output. A factory typically performs its own
// idempotency check and returns an empty list when the step's table is
// already populated.
type Factory func(ctx context.Context, store persistence.Store, runID string) ([]StepFn, error)

// Step is a named workflow stage holding either a fixed unit list or
// factories resolved lazily at run time.
type Step struct {
	Name      string
	fns       []StepFn
	factories []Factory
}

// NewStep declares a stage with a fixed list of units.
func NewStep(name string, fns ...StepFn) Step {
	return Step{Name: name, fns: fns}
}

// NewFactoryStep declares a stage whose units are produced by factories
// when the stage is reached.
func NewFactoryStep(name string, factories ...Factory) Step {
	return Step{Name: name, factories: factories}
}

func (s Step) resolve(ctx context.Context, store persistence.Store, runID string) ([]StepFn, error) {
	if len(s.factories) == 0 {
		return s.fns, nil
	}
	var fns []StepFn
	for _, factory := range s.factories {
		produced, err := factory(ctx, store, runID)
		if err != nil {
			return nil, err
		}
		fns = append(fns, produced...)
	}
	return fns, nil
}

// Workflow is an ordered list of steps bound to one run id and one
// persistence backend. Steps run strictly in order; units within a step
// fan out concurrently.
type Workflow struct {
	runID string
	store persistence.Store
	steps []Step
	log   *logger.Logger
}

// New constructs a workflow for the run.
func New(runID string, store persistence.Store, steps ...Step) *Workflow {
	return &Workflow{
		runID: runID,
		store: store,
		steps: steps,
		log:   logger.Get().With("run_id", runID),
	}
}

// RunID returns the run identifier the workflow is bound to.
func (w *Workflow) RunID() string {
	return w.runID
}

// Run executes the steps in order. The first unit or factory error aborts
// the workflow; units already dispatched in the failing step run to
// completion, and their persisted side effects survive for the next
// re-invocation to resume from.
func (w *Workflow) Run(ctx context.Context) error {
	for _, step := range w.steps {
		w.log.Infow("Running step", "step", step.Name)

		fns, err := step.resolve(ctx, w.store, w.runID)
		if err != nil {
			return errors.Wrapf(err, "step %q (run %s)", step.Name, w.runID)
		}

		switch len(fns) {
		case 0:
			w.log.Infow("Step has no work, skipping", "step", step.Name)
			continue
		case 1:
			err = fns[0](ctx, w.store, w.runID)
		default:
			err = w.fanOut(ctx, fns)
		}
		if err != nil {
			return errors.Wrapf(err, "step %q (run %s)", step.Name, w.runID)
		}
	}
	return nil
}

// fanOut dispatches every unit at once and waits for all of them. The first
// error is kept and returned; siblings are not cancelled.
func (w *Workflow) fanOut(ctx context.Context, fns []StepFn) error {
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)

	wg.Add(len(fns))
	for _, fn := range fns {
		fn := fn
		go func() {
			defer wg.Done()
			err := fn(ctx, w.store, w.runID)
			mu.Lock()
			defer mu.Unlock()
			if err != nil && firstErr == nil {
				firstErr = err
			}
		}()
	}

	wg.Wait()
	return firstErr
}
