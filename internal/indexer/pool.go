package indexer

import (
	"context"
	"sync"
)

// analyzeJob is one file queued for a worker
type analyzeJob struct {
	index int // Position in walk order
	path  string
}

type analyzeResult struct {
	index  int
	result FileResult
}

// analyzePool runs fn over paths with a fixed number of workers and returns
// the results in the order of paths. Once ctx is done, queued paths are not
// handed to fn and are reported with the context error instead.
func analyzePool(ctx context.Context, paths []string, workers int, fn func(string) FileResult) []FileResult {
	results := make([]FileResult, len(paths))
	if len(paths) == 0 {
		return results
	}
	if workers < 1 {
		workers = 1
	}
	if workers > len(paths) {
		workers = len(paths)
	}

	workCh := make(chan analyzeJob, len(paths))
	resultCh := make(chan analyzeResult, len(paths))

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range workCh {
				select {
				case <-ctx.Done():
					resultCh <- analyzeResult{
						index:  job.index,
						result: FileResult{Path: job.path, Error: ctx.Err().Error()},
					}
					continue
				default:
				}
				resultCh <- analyzeResult{index: job.index, result: fn(job.path)}
			}
		}()
	}

	for i, p := range paths {
		workCh <- analyzeJob{index: i, path: p}
	}
	close(workCh)

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	for r := range resultCh {
		results[r.index] = r.result
	}
	return results
}
