package parallel

import (
	"runtime"
	"sync"
)

// Chunks splits [0, items) into at most workers contiguous ranges of equal
// size (the last one may be shorter). workers <= 0 means runtime.NumCPU().
func Chunks(items, workers int) [][2]int {
	if items <= 0 {
		return nil
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > items {
		workers = items
	}

	chunkSize := (items + workers - 1) / workers
	chunks := make([][2]int, 0, workers)
	for start := 0; start < items; start += chunkSize {
		end := start + chunkSize
		if end > items {
			end = items
		}
		chunks = append(chunks, [2]int{start, end})
	}
	return chunks
}

// Parallelize divides items by the number of CPU cores and runs fn on each
// range (start, end) in its own goroutine.
func Parallelize(items int, fn func(start, end int)) {
	chunks := Chunks(items, 0)

	var wg sync.WaitGroup
	for _, c := range chunks {
		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			fn(s, e)
		}(c[0], c[1])
	}
	wg.Wait()
}

// ParallelizeWithThreshold runs fn sequentially over the whole range when
// items <= threshold, and through Parallelize otherwise.
func ParallelizeWithThreshold(items int, threshold int, fn func(start, end int)) {
	if items <= threshold {
		fn(0, items)
		return
	}
	Parallelize(items, fn)
}

// Reduce computes one partial result per chunk with mapFn and folds them into
// the first partial with mergeFn, in chunk order. The fold order is fixed, so
// the result only depends on the chunking, not on goroutine scheduling.
// Sequential evaluation is used when items <= threshold.
func Reduce[T any](items, threshold int, mapFn func(start, end int) T, mergeFn func(dst, src T)) T {
	if items <= threshold {
		return mapFn(0, items)
	}

	chunks := Chunks(items, 0)
	partials := make([]T, len(chunks))

	var wg sync.WaitGroup
	for i, c := range chunks {
		wg.Add(1)
		go func(i, s, e int) {
			defer wg.Done()
			partials[i] = mapFn(s, e)
		}(i, c[0], c[1])
	}
	wg.Wait()

	for _, p := range partials[1:] {
		mergeFn(partials[0], p)
	}
	return partials[0]
}
