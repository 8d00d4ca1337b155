package pipeline

import (
	"context"
	"sync"

	"github.com/organregistry/etl/internal/domain"

	"golang.org/x/sync/errgroup"
)

// Orchestrator fans independent entity batches out as concurrent pipeline
// runs while enforcing the single ordering dependency: the centers batch must
// finish before donor or recipient records are checked and loaded against the
// facility dimension.
type Orchestrator struct {
	pipeline *Pipeline
}

// NewOrchestrator wraps a pipeline.
func NewOrchestrator(p *Pipeline) *Orchestrator {
	return &Orchestrator{pipeline: p}
}

// RunAll executes every batch, one run each. Donor and recipient runs stage
// concurrently with the centers run but hold before validation until the
// center dimension is in place. Returns all summaries in input order along
// with the first error, if any; failed runs are already sealed.
func (o *Orchestrator) RunAll(ctx context.Context, batches []Batch) ([]RunSummary, error) {
	centersGate := make(chan struct{})
	openGate := sync.OnceFunc(func() { close(centersGate) })
	hasCenters := false
	for _, batch := range batches {
		if batch.Entity == domain.EntityCenter {
			hasCenters = true
		}
	}
	if !hasCenters {
		// No center batch this invocation; the dimension loaded by earlier
		// runs is already in place.
		openGate()
	}

	summaries := make([]RunSummary, len(batches))
	g, gctx := errgroup.WithContext(ctx)

	for i, batch := range batches {
		g.Go(func() error {
			var summary RunSummary
			var err error
			switch batch.Entity {
			case domain.EntityCenter:
				summary, err = o.pipeline.Run(gctx, batch)
				if err == nil {
					openGate()
				}
			default:
				summary, err = o.pipeline.run(gctx, batch, func(waitCtx context.Context) error {
					select {
					case <-centersGate:
						return nil
					case <-waitCtx.Done():
						return waitCtx.Err()
					}
				})
			}
			summaries[i] = summary
			return err
		})
	}

	err := g.Wait()
	return summaries, err
}
