// Package metric provides the distance strategies used to rank map nodes
// against an input vector.
package metric

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Metric maps every node weight row and one input vector to one non-negative
// distance per row. Implementations must not retain or mutate weights.
type Metric interface {
	Distances(weights *mat.Dense, x []float64) []float64
}

// SquaredEuclidean is the default metric. The square root is omitted because
// only the relative order of distances matters for matching.
type SquaredEuclidean struct{}

func (SquaredEuclidean) Distances(weights *mat.Dense, x []float64) []float64 {
	rows, _ := weights.Dims()
	out := make([]float64, rows)
	squaredEuclideanRows(weights, x, 0, rows, out)
	return out
}

func squaredEuclideanRows(weights *mat.Dense, x []float64, from, to int, out []float64) {
	diff := make([]float64, len(x))
	for i := from; i < to; i++ {
		floats.SubTo(diff, weights.RawRowView(i), x)
		out[i] = floats.Dot(diff, diff)
	}
}

type Euclidean struct{}

func (Euclidean) Distances(weights *mat.Dense, x []float64) []float64 {
	rows, _ := weights.Dims()
	out := make([]float64, rows)
	for i := 0; i < rows; i++ {
		out[i] = floats.Distance(weights.RawRowView(i), x, 2)
	}
	return out
}

type Manhattan struct{}

func (Manhattan) Distances(weights *mat.Dense, x []float64) []float64 {
	rows, _ := weights.Dims()
	out := make([]float64, rows)
	for i := 0; i < rows; i++ {
		out[i] = floats.Distance(weights.RawRowView(i), x, 1)
	}
	return out
}

// Cosine returns 1 - cos(w, x). A zero-norm row or input is treated as
// orthogonal to everything (distance 1).
type Cosine struct{}

func (Cosine) Distances(weights *mat.Dense, x []float64) []float64 {
	rows, _ := weights.Dims()
	out := make([]float64, rows)
	xNorm := floats.Norm(x, 2)
	for i := 0; i < rows; i++ {
		row := weights.RawRowView(i)
		rowNorm := floats.Norm(row, 2)
		if xNorm == 0 || rowNorm == 0 {
			out[i] = 1
			continue
		}
		similarity := floats.Dot(row, x) / (rowNorm * xNorm)
		out[i] = math.Max(0, 1-similarity)
	}
	return out
}
