package synth

import (
	"context"
	"fmt"
	"sync"
)

// RunBatch fans a bounded batch of independent requests across the limiter
// and collects one result per request, in input order, regardless of
// completion order. A failing item never aborts its siblings.
//
// Rejection happens entirely up front: an empty or oversized batch, or any
// item failing static validation, returns an error before a single engine
// call is made. Item validation errors carry the 1-based batch position.
func (g *Gateway) RunBatch(ctx context.Context, reqs []Request) (BatchResult, error) {
	if len(reqs) == 0 {
		return BatchResult{}, ErrEmptyBatch
	}
	if len(reqs) > g.cfg.MaxBatch {
		return BatchResult{}, fmt.Errorf("%w: maximum is %d items", ErrBatchTooLarge, g.cfg.MaxBatch)
	}
	for i, req := range reqs {
		if err := g.Validate(req); err != nil {
			return BatchResult{}, fmt.Errorf("request %d: %w", i+1, err)
		}
	}

	results := make([]Result, len(reqs))
	var wg sync.WaitGroup
	for i, req := range reqs {
		wg.Add(1)
		go func(i int, req Request) {
			defer wg.Done()
			results[i] = g.Synthesize(ctx, req)
		}(i, req)
	}
	wg.Wait()

	batch := BatchResult{Results: results}
	for _, res := range results {
		if res.OK() {
			batch.Completed++
		} else {
			batch.Failed++
		}
	}
	return batch, nil
}
