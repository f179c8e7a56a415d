package common

import (
	"context"
	"sync"
	"sync/atomic"
)

// RunIndexed processes indices [0,total) with a fixed number of workers.
// Workers claim the next index from a shared counter rather than pulling
// from a queue, so there is no enqueue/dequeue overhead and the pool drains
// as soon as the index space is exhausted. Each worker checks ctx at every
// claim boundary.
func RunIndexed(ctx context.Context, total, workers int, fn func(ctx context.Context, i int)) {
	if total <= 0 {
		return
	}
	if workers <= 0 {
		workers = 1
	}
	if workers > total {
		workers = total
	}

	var next atomic.Int64
	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for {
				if ctx.Err() != nil {
					return
				}
				i := int(next.Add(1)) - 1
				if i >= total {
					return
				}
				fn(ctx, i)
			}
		}()
	}
	wg.Wait()
}
