package som

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"orrery/internal/metric"
)

func newTestMap(t *testing.T, nodes, dim int) *Map {
	t.Helper()
	m, err := NewMap(DefaultConfig(nodes, dim))
	require.NoError(t, err)
	return m
}

func TestNewMapShapesAndBounds(t *testing.T) {
	cfg := DefaultConfig(50, 4)
	cfg.CoordinateRange = 5
	cfg.WeightScale = 0.1
	m, err := NewMap(cfg)
	require.NoError(t, err)

	rows, cols := m.Weights().Dims()
	require.Equal(t, 50, rows)
	require.Equal(t, 4, cols)
	rows, cols = m.Coordinates().Dims()
	require.Equal(t, 50, rows)
	require.Equal(t, CoordinateDim, cols)

	coords := m.Coordinates().RawMatrix().Data
	for _, v := range coords {
		require.GreaterOrEqual(t, v, 0.0)
		require.Less(t, v, 5.0)
	}
	for _, v := range m.Weights().RawMatrix().Data {
		require.Less(t, math.Abs(v), 1.0, "weight noise should be small")
	}
	require.Equal(t, cfg.LearningRate, m.LearningRate())
	require.Equal(t, cfg.LearningRate, m.InitialLearningRate())
	require.Equal(t, cfg.NeighborRadius, m.NeighborRadius())
	require.Equal(t, cfg.NeighborRadius, m.InitialNeighborRadius())
	require.IsType(t, metric.SquaredEuclidean{}, m.Metric())
}

func TestNewMapDeterministicForSeed(t *testing.T) {
	a := newTestMap(t, 10, 3)
	b := newTestMap(t, 10, 3)
	require.True(t, mat.Equal(a.Weights(), b.Weights()))
	require.True(t, mat.Equal(a.Coordinates(), b.Coordinates()))
}

func TestNewMapRejectsInvalidConfig(t *testing.T) {
	cases := map[string]func(*Config){
		"zero nodes":       func(c *Config) { c.Nodes = 0 },
		"negative dim":     func(c *Config) { c.Dim = -1 },
		"negative lr":      func(c *Config) { c.LearningRate = -0.1 },
		"nan lr":           func(c *Config) { c.LearningRate = math.NaN() },
		"negative radius":  func(c *Config) { c.NeighborRadius = -1 },
		"zero coord range": func(c *Config) { c.CoordinateRange = 0 },
		"negative noise":   func(c *Config) { c.WeightScale = -1 },
		"infinite radius":  func(c *Config) { c.NeighborRadius = math.Inf(1) },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig(4, 2)
			mutate(&cfg)
			_, err := NewMap(cfg)
			require.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestSnapshotsAreCopies(t *testing.T) {
	m := newTestMap(t, 3, 2)
	before := m.Weights()
	snapshot := m.Weights()
	snapshot.Set(0, 0, 1234)
	require.True(t, mat.Equal(before, m.Weights()))

	coords := m.Coordinates()
	coords.Set(1, 1, -99)
	row, err := m.CoordinateRow(1)
	require.NoError(t, err)
	require.NotEqual(t, -99.0, row[1])
}

func TestSetWeightsValidatesShape(t *testing.T) {
	m := newTestMap(t, 3, 2)
	require.ErrorIs(t, m.SetWeights(mat.NewDense(2, 2, nil)), ErrDimensionMismatch)
	require.ErrorIs(t, m.SetCoordinates(mat.NewDense(3, 2, nil)), ErrDimensionMismatch)
	require.NoError(t, m.SetWeights(mat.NewDense(3, 2, []float64{1, 2, 3, 4, 5, 6})))

	row, err := m.WeightRow(2)
	require.NoError(t, err)
	require.Equal(t, []float64{5, 6}, row)

	_, err = m.WeightRow(3)
	require.ErrorIs(t, err, ErrIndexOutOfRange)
}
