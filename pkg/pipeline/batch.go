package pipeline

import (
	"context"
	stderrors "errors"

	"golang.org/x/sync/errgroup"
)

// BatchResult pairs a job with its outcome.
type BatchResult struct {
	Options Options
	Result  *Result
	Err     error
}

// RunBatch executes independent jobs with at most parallel running at once
// (parallel <= 0 means one at a time). A failed job does not stop the others;
// the returned error joins every job error. Results are in input order.
func (r *Runner) RunBatch(ctx context.Context, jobs []Options, parallel int) ([]BatchResult, error) {
	if parallel <= 0 {
		parallel = 1
	}
	results := make([]BatchResult, len(jobs))

	var g errgroup.Group
	g.SetLimit(parallel)
	for i, opts := range jobs {
		results[i].Options = opts
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i].Err = err
				return nil
			}
			res, err := r.Execute(ctx, opts)
			results[i].Result = res
			results[i].Err = err
			return nil
		})
	}
	_ = g.Wait()

	var errs []error
	for _, res := range results {
		if res.Err != nil {
			errs = append(errs, res.Err)
		}
	}
	return results, stderrors.Join(errs...)
}
