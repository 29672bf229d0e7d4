package pool

import (
	"context"
	"sync"
)

// Map runs fn over every item on a fixed-size pool of worker goroutines
// and returns the results in input order. It always calls fn for every
// item: cancellation is fn's job to observe through ctx, so a canceled
// round drains quickly with per-item failure values instead of leaving
// workers running.
func Map[T, R any](ctx context.Context, workers int, items []T, fn func(context.Context, T) R) []R {
	if len(items) == 0 {
		return nil
	}
	if workers < 1 {
		workers = 1
	}
	if workers > len(items) {
		workers = len(items)
	}

	out := make([]R, len(items))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				out[idx] = fn(ctx, items[idx])
			}
		}()
	}

	for i := range items {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return out
}
