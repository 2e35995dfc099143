package timeline

import (
	"context"
	"sync"

	"github.com/airlinked/commtime/pkg/logger"
)

// DefaultWorkers bounds concurrent leg computations when the caller does
// not specify a pool size
const DefaultWorkers = 4

// Result is the outcome of one leg's computation. Exactly one of
// Timeline and Err is set; a failed leg never hides the others.
type Result struct {
	LegID    string
	Timeline *MissionTimeline
	Err      error
}

// BuildAll computes timelines for a batch of legs on a bounded worker
// pool. Results come back in input order. Cancelling the context stops
// unstarted legs, which report ctx.Err(); legs already in flight run to
// completion.
func (b *Builder) BuildAll(ctx context.Context, configs []TransportConfig, workers int) []Result {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if workers > len(configs) {
		workers = len(configs)
	}

	results := make([]Result, len(configs))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				tl, err := b.Build(configs[i])
				results[i] = Result{LegID: configs[i].LegID, Timeline: tl, Err: err}
				if err != nil {
					b.logger.Error("Leg computation failed",
						logger.String("leg_id", configs[i].LegID),
						logger.Error(err))
				}
			}
		}()
	}

	i := 0
dispatch:
	for ; i < len(configs); i++ {
		select {
		case jobs <- i:
		case <-ctx.Done():
			break dispatch
		}
	}
	close(jobs)

	for ; i < len(configs); i++ {
		results[i] = Result{LegID: configs[i].LegID, Err: ctx.Err()}
	}

	wg.Wait()
	return results
}
