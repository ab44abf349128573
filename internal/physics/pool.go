package physics

import "sync"

// Below this many items the goroutine hand-off costs more than it saves.
const minParallelBatch = 64

// workerPool fans index ranges out over a fixed number of goroutines and
// waits for all of them.
type workerPool struct {
	workers int
}

func (p workerPool) run(n int, fn func(i int)) {
	if n == 0 {
		return
	}
	if p.workers <= 1 || n < minParallelBatch {
		for i := 0; i < n; i++ {
			fn(i)
		}
		return
	}

	chunk := max(1, (n+p.workers-1)/p.workers)
	var wg sync.WaitGroup
	for start := 0; start < n; start += chunk {
		end := min(start+chunk, n)
		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			for i := start; i < end; i++ {
				fn(i)
			}
		}(start, end)
	}
	wg.Wait()
}
