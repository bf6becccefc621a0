package tokenizer

import (
	"context"
	"runtime"
	"strings"

	"github.com/sourcegraph/conc/pool"
)

// CountWords tallies the words split produces for every segment. Segments
// are partitioned into chunks counted concurrently with no shared state;
// partial counts are summed, so the result does not depend on scheduling.
// workers <= 0 uses GOMAXPROCS.
func CountWords(ctx context.Context, segments []string, split func(string) []string, workers int) (map[string]int, error) {
	if split == nil {
		split = strings.Fields
	}
	return parallelCount(ctx, segments, workers, func(chunk []string) map[string]int {
		counts := make(map[string]int)
		for _, seg := range chunk {
			for _, w := range split(seg) {
				counts[w]++
			}
		}
		return counts
	})
}

// countRunes tallies every rune of every word weighted by its count.
func countRunes(ctx context.Context, words []wordCount, workers int) (map[string]int, error) {
	return parallelCount(ctx, words, workers, func(chunk []wordCount) map[string]int {
		counts := make(map[string]int)
		for _, w := range chunk {
			for _, r := range w.word {
				counts[string(r)] += w.count
			}
		}
		return counts
	})
}

// parallelCount maps count over chunks of items and reduces the partial
// maps by summation. The context is checked before each chunk starts.
func parallelCount[T any, K comparable](ctx context.Context, items []T, workers int, count func([]T) map[K]int) (map[K]int, error) {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	p := pool.NewWithResults[map[K]int]().WithContext(ctx).WithMaxGoroutines(workers)
	for _, chunk := range chunkSlice(items, workers) {
		p.Go(func(ctx context.Context) (map[K]int, error) {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			return count(chunk), nil
		})
	}

	parts, err := p.Wait()
	if err != nil {
		return nil, err
	}

	total := make(map[K]int)
	for _, part := range parts {
		for k, n := range part {
			total[k] += n
		}
	}
	return total, nil
}

// chunkSlice splits items into at most n contiguous chunks of near-equal size.
func chunkSlice[T any](items []T, n int) [][]T {
	if len(items) == 0 {
		return nil
	}
	n = max(1, min(n, len(items)))
	size := (len(items) + n - 1) / n

	chunks := make([][]T, 0, n)
	for start := 0; start < len(items); start += size {
		chunks = append(chunks, items[start:min(start+size, len(items))])
	}
	return chunks
}
