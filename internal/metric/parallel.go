package metric

import (
	"sync"
	"sync/atomic"

	"gonum.org/v1/gonum/mat"
)

// minRowsPerWorker keeps tiny maps on the calling goroutine.
const minRowsPerWorker = 64

// Parallel splits node rows into contiguous chunks and computes each chunk on
// its own goroutine. Results are identical to Base; only wall-clock changes.
// When Base returns the wrong number of distances for any chunk, Distances
// returns nil so the caller's length check fails.
type Parallel struct {
	Base    Metric
	Workers int
}

func (p Parallel) Distances(weights *mat.Dense, x []float64) []float64 {
	base := p.Base
	if base == nil {
		base = SquaredEuclidean{}
	}
	rows, cols := weights.Dims()
	workers := p.Workers
	if maxWorkers := rows / minRowsPerWorker; workers > maxWorkers {
		workers = maxWorkers
	}
	if workers <= 1 {
		return base.Distances(weights, x)
	}

	out := make([]float64, rows)
	chunk := (rows + workers - 1) / workers

	var (
		wg       sync.WaitGroup
		mismatch atomic.Bool
	)
	for from := 0; from < rows; from += chunk {
		to := from + chunk
		if to > rows {
			to = rows
		}
		wg.Add(1)
		go func(from, to int) {
			defer wg.Done()
			if _, ok := base.(SquaredEuclidean); ok {
				squaredEuclideanRows(weights, x, from, to, out)
				return
			}
			view := weights.Slice(from, to, 0, cols).(*mat.Dense)
			got := base.Distances(view, x)
			if len(got) != to-from {
				mismatch.Store(true)
				return
			}
			copy(out[from:to], got)
		}(from, to)
	}
	wg.Wait()
	if mismatch.Load() {
		return nil
	}
	return out
}
