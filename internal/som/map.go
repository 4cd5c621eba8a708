// Package som implements the Self-Organizing Orrery: a self-organizing map
// whose nodes carry a feature-space weight vector and an independent 3-D
// coordinate that is pulled toward best-matching units during training.
//
// A Map is not safe for concurrent mutation. Readers that run alongside
// training should consume EpochSnapshot values delivered to observers.
package som

import (
	"fmt"
	"log/slog"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"orrery/internal/metric"
)

type Map struct {
	nodes int
	dim   int

	weights     *mat.Dense
	coordinates *mat.Dense

	learningRate          float64
	initialLearningRate   float64
	neighborRadius        float64
	initialNeighborRadius float64
	lastConvergence       float64

	metric metric.Metric
	rng    *rand.Rand
	log    *slog.Logger
}

// NewMap validates cfg and initialises weights with zero-mean normal noise of
// standard deviation cfg.WeightScale and coordinates uniformly in
// [0, cfg.CoordinateRange)^3.
func NewMap(cfg Config) (*Map, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	m := &Map{
		nodes:                 cfg.Nodes,
		dim:                   cfg.Dim,
		learningRate:          cfg.LearningRate,
		initialLearningRate:   cfg.LearningRate,
		neighborRadius:        cfg.NeighborRadius,
		initialNeighborRadius: cfg.NeighborRadius,
		metric:                cfg.Metric,
		rng:                   rand.New(rand.NewSource(cfg.Seed)),
		log:                   cfg.Logger,
	}
	if m.metric == nil {
		m.metric = metric.SquaredEuclidean{}
	}
	if m.log == nil {
		m.log = slog.New(slog.DiscardHandler)
	}

	weights := make([]float64, cfg.Nodes*cfg.Dim)
	for i := range weights {
		weights[i] = m.rng.NormFloat64() * cfg.WeightScale
	}
	coordinates := make([]float64, cfg.Nodes*CoordinateDim)
	for i := range coordinates {
		coordinates[i] = m.rng.Float64() * cfg.CoordinateRange
	}
	m.weights = mat.NewDense(cfg.Nodes, cfg.Dim, weights)
	m.coordinates = mat.NewDense(cfg.Nodes, CoordinateDim, coordinates)
	return m, nil
}

func (m *Map) Nodes() int { return m.nodes }
func (m *Map) Dim() int   { return m.dim }

// Weights returns a copy of the N×D weight matrix.
func (m *Map) Weights() *mat.Dense { return mat.DenseCopyOf(m.weights) }

// Coordinates returns a copy of the N×3 coordinate matrix.
func (m *Map) Coordinates() *mat.Dense { return mat.DenseCopyOf(m.coordinates) }

// WeightRow returns a copy of node i's weight vector.
func (m *Map) WeightRow(i int) ([]float64, error) {
	if err := m.checkIndex(i); err != nil {
		return nil, err
	}
	return append([]float64(nil), m.weights.RawRowView(i)...), nil
}

// CoordinateRow returns a copy of node i's coordinate.
func (m *Map) CoordinateRow(i int) ([]float64, error) {
	if err := m.checkIndex(i); err != nil {
		return nil, err
	}
	return append([]float64(nil), m.coordinates.RawRowView(i)...), nil
}

func (m *Map) LearningRate() float64          { return m.learningRate }
func (m *Map) InitialLearningRate() float64   { return m.initialLearningRate }
func (m *Map) NeighborRadius() float64        { return m.neighborRadius }
func (m *Map) InitialNeighborRadius() float64 { return m.initialNeighborRadius }
func (m *Map) LastConvergence() float64       { return m.lastConvergence }
func (m *Map) Metric() metric.Metric          { return m.metric }

// SetWeights replaces the weight matrix with a copy of w, which must be N×D.
func (m *Map) SetWeights(w mat.Matrix) error {
	rows, cols := w.Dims()
	if rows != m.nodes || cols != m.dim {
		return fmt.Errorf("%w: weights %dx%d, want %dx%d", ErrDimensionMismatch, rows, cols, m.nodes, m.dim)
	}
	m.weights = mat.DenseCopyOf(w)
	return nil
}

// SetCoordinates replaces the coordinate matrix with a copy of c, which must be N×3.
func (m *Map) SetCoordinates(c mat.Matrix) error {
	rows, cols := c.Dims()
	if rows != m.nodes || cols != CoordinateDim {
		return fmt.Errorf("%w: coordinates %dx%d, want %dx%d", ErrDimensionMismatch, rows, cols, m.nodes, CoordinateDim)
	}
	m.coordinates = mat.DenseCopyOf(c)
	return nil
}

func (m *Map) checkIndex(i int) error {
	if i < 0 || i >= m.nodes {
		return fmt.Errorf("%w: %d not in [0, %d)", ErrIndexOutOfRange, i, m.nodes)
	}
	return nil
}

func (m *Map) checkInput(x []float64) error {
	if len(x) != m.dim {
		return fmt.Errorf("%w: input length %d, want %d", ErrDimensionMismatch, len(x), m.dim)
	}
	return nil
}
