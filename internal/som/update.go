package som

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// BMU returns the index of the node whose weight vector minimises the
// configured metric to x. Exact ties resolve to the lowest index.
func (m *Map) BMU(x []float64) (int, error) {
	if err := m.checkInput(x); err != nil {
		return 0, err
	}
	bmu, _, err := m.bmu(x)
	return bmu, err
}

func (m *Map) bmu(x []float64) (int, float64, error) {
	distances := m.metric.Distances(m.weights, x)
	if len(distances) != m.nodes {
		return 0, 0, fmt.Errorf("%w: metric returned %d distances for %d nodes", ErrDimensionMismatch, len(distances), m.nodes)
	}
	if floats.HasNaN(distances) {
		return 0, 0, fmt.Errorf("%w: metric returned NaN distance", ErrNonFinite)
	}
	// floats.MinIdx keeps the first index on ties.
	idx := floats.MinIdx(distances)
	return idx, distances[idx], nil
}

// FlattenInput accepts a 1×D or D×1 matrix and returns its values as a
// vector, so callers holding singleton-shaped inputs can feed BMU directly.
func FlattenInput(x mat.Matrix) ([]float64, error) {
	rows, cols := x.Dims()
	switch {
	case rows == 1:
		return mat.Row(nil, 0, x), nil
	case cols == 1:
		return mat.Col(nil, 0, x), nil
	default:
		return nil, fmt.Errorf("%w: input shape %dx%d is not a vector", ErrDimensionMismatch, rows, cols)
	}
}

// UpdateWeights moves only the BMU's weight vector a fraction lr toward x.
func (m *Map) UpdateWeights(bmu int, x []float64, lr float64) error {
	if err := m.checkIndex(bmu); err != nil {
		return err
	}
	if err := m.checkInput(x); err != nil {
		return err
	}
	if err := checkRate(lr); err != nil {
		return err
	}
	interpolate(m.weights.RawRowView(bmu), x, lr)
	return nil
}

// Neighbors returns, in ascending order, every node whose coordinate lies
// within radius of the BMU's coordinate (squared distance <= radius^2). The
// BMU itself is always included.
func (m *Map) Neighbors(bmu int, radius float64) ([]int, error) {
	if err := m.checkIndex(bmu); err != nil {
		return nil, err
	}
	if !(radius >= 0) {
		return nil, fmt.Errorf("%w: radius must be >= 0, got %v", ErrInvalidConfig, radius)
	}
	center := m.coordinates.RawRowView(bmu)
	limit := radius * radius
	diff := make([]float64, CoordinateDim)
	neighbors := make([]int, 0, 8)
	for i := 0; i < m.nodes; i++ {
		if i == bmu {
			neighbors = append(neighbors, i)
			continue
		}
		floats.SubTo(diff, m.coordinates.RawRowView(i), center)
		if floats.Dot(diff, diff) <= limit {
			neighbors = append(neighbors, i)
		}
	}
	return neighbors, nil
}

// UpdateCoordinates pulls each listed node a fraction lr toward the BMU's
// coordinate as it was before the call. Updates are independent of order.
func (m *Map) UpdateCoordinates(bmu int, neighbors []int, lr float64) error {
	if err := m.checkIndex(bmu); err != nil {
		return err
	}
	if err := checkRate(lr); err != nil {
		return err
	}
	for _, ni := range neighbors {
		if err := m.checkIndex(ni); err != nil {
			return err
		}
	}
	target := append([]float64(nil), m.coordinates.RawRowView(bmu)...)
	for _, ni := range neighbors {
		if ni == bmu {
			continue
		}
		interpolate(m.coordinates.RawRowView(ni), target, lr)
	}
	return nil
}

// interpolate sets dst to (1-lr)*dst + lr*target, which equals
// dst + lr*(target-dst) while keeping lr=0 and lr=1 exact.
func interpolate(dst, target []float64, lr float64) {
	floats.Scale(1-lr, dst)
	floats.AddScaled(dst, lr, target)
}

func checkRate(lr float64) error {
	if !(lr >= 0) || math.IsInf(lr, 1) {
		return fmt.Errorf("%w: got %v", ErrInvalidRate, lr)
	}
	return nil
}
