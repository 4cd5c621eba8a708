package som

import (
	"context"
	"errors"
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func gaussianData(seed int64, rows, cols int, mean float64) *mat.Dense {
	rng := rand.New(rand.NewSource(seed))
	data := make([]float64, rows*cols)
	for i := range data {
		data[i] = mean + rng.NormFloat64()
	}
	return mat.NewDense(rows, cols, data)
}

func TestTrainDecayScheduleRespectsFloors(t *testing.T) {
	cfg := DefaultConfig(40, 3)
	cfg.LearningRate = 0.6
	cfg.NeighborRadius = 3
	m, err := NewMap(cfg)
	require.NoError(t, err)

	tc := DefaultTrainConfig(8)
	tc.BatchSize = 16
	tc.ReferenceSize = 100
	tc.MinLearningRate = 0.05
	tc.MinNeighborRadius = 0.5

	result, err := m.Train(context.Background(), gaussianData(11, 300, 3, 0), tc)
	require.NoError(t, err)
	require.Len(t, result.Epochs, 8)
	require.Len(t, result.ConvergenceHistory, 8)
	require.Len(t, result.ReferenceRows, 100)

	for i, diag := range result.Epochs {
		require.Equal(t, i+1, diag.Epoch)
		require.GreaterOrEqual(t, diag.Convergence, 0.0)
		require.LessOrEqual(t, diag.Convergence, 1.0)
		require.GreaterOrEqual(t, diag.LearningRate, tc.MinLearningRate)
		require.GreaterOrEqual(t, diag.NeighborRadius, tc.MinNeighborRadius)
		assert.Equal(t, maxFloat(tc.MinLearningRate, 0.6*(1-diag.Convergence)), diag.LearningRate)
		assert.Equal(t, maxFloat(tc.MinNeighborRadius, 3*(1-diag.Convergence)), diag.NeighborRadius)
		assert.GreaterOrEqual(t, diag.MeanNeighbors, 1.0)
	}
	last := result.Epochs[len(result.Epochs)-1]
	require.Equal(t, last.Convergence, result.FinalConvergence)
	require.Equal(t, m.LearningRate(), result.FinalLearningRate)
	require.Equal(t, m.NeighborRadius(), result.FinalRadius)
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func TestTrainMovesWeightsTowardData(t *testing.T) {
	cfg := DefaultConfig(20, 2)
	cfg.LearningRate = 0.5
	m, err := NewMap(cfg)
	require.NoError(t, err)

	data := gaussianData(5, 400, 2, 5)
	tc := DefaultTrainConfig(5)
	tc.ReferenceSize = 0
	result, err := m.Train(context.Background(), data, tc)
	require.NoError(t, err)
	require.Len(t, result.ReferenceRows, 400)

	moved := 0

	for i := 0; i < m.Nodes(); i++ {
		row, _ := m.WeightRow(i)
		for _, v := range row {
			// Nodes that never won keep their ~0 initial noise.
			if v > 1 {
				moved++
				assert.InDelta(t, 5, v, 4)
			}
		}
	}
	require.Positive(t, moved)
	require.Positive(t, result.Epochs[0].MeanBMUDistance)
}

func TestTrainDeterministicForSeed(t *testing.T) {
	run := func() (*Map, TrainResult) {
		m := newTestMap(t, 16, 2)
		result, err := m.Train(context.Background(), gaussianData(9, 120, 2, 1), DefaultTrainConfig(3))
		require.NoError(t, err)
		return m, result
	}
	a, ra := run()
	b, rb := run()
	require.Equal(t, ra, rb)
	require.True(t, mat.Equal(a.Weights(), b.Weights()))
	require.True(t, mat.Equal(a.Coordinates(), b.Coordinates()))
}

func TestTrainDimensionMismatchLeavesStateUntouched(t *testing.T) {
	m := newTestMap(t, 8, 3)
	weights, coords := m.Weights(), m.Coordinates()

	_, err := m.Train(context.Background(), gaussianData(1, 20, 2, 0), DefaultTrainConfig(2))
	require.ErrorIs(t, err, ErrDimensionMismatch)
	require.True(t, mat.Equal(weights, m.Weights()))
	require.True(t, mat.Equal(coords, m.Coordinates()))
}

func TestTrainRejectsInvalidConfig(t *testing.T) {
	m := newTestMap(t, 8, 2)
	data := gaussianData(1, 20, 2, 0)

	cases := map[string]func(*TrainConfig){
		"zero epochs":       func(c *TrainConfig) { c.Epochs = 0 },
		"zero batch":        func(c *TrainConfig) { c.BatchSize = 0 },
		"negative lr floor": func(c *TrainConfig) { c.MinLearningRate = -1 },
		"lr floor too high": func(c *TrainConfig) { c.MinLearningRate = DefaultLearningRate + 1 },
		"radius floor high": func(c *TrainConfig) { c.MinNeighborRadius = DefaultNeighborRadius + 1 },
		"nil observer":      func(c *TrainConfig) { c.Observers = []EpochObserver{nil} },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			tc := DefaultTrainConfig(2)
			mutate(&tc)
			_, err := m.Train(context.Background(), data, tc)
			require.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestTrainDegenerateInputs(t *testing.T) {
	m := newTestMap(t, 8, 2)
	_, err := m.Train(context.Background(), mat.NewDense(1, 2, []float64{1, 2}), DefaultTrainConfig(1))
	require.ErrorIs(t, err, ErrDegenerateSample)

	tc := DefaultTrainConfig(1)
	tc.ReferenceSize = 1
	_, err = m.Train(context.Background(), gaussianData(2, 10, 2, 0), tc)
	require.ErrorIs(t, err, ErrDegenerateSample)

	single := newTestMap(t, 1, 2)
	_, err = single.Train(context.Background(), gaussianData(2, 10, 2, 0), DefaultTrainConfig(1))
	require.ErrorIs(t, err, ErrDegenerateSample)
}

func TestTrainObserversReceiveSnapshots(t *testing.T) {
	m := newTestMap(t, 10, 2)
	var snapshots []EpochSnapshot
	observer := EpochObserverFunc(func(_ context.Context, s EpochSnapshot) error {
		snapshots = append(snapshots, s)
		s.Coordinates.Set(0, 0, -1e9)
		return nil
	})
	tc := DefaultTrainConfig(3)
	tc.Observers = []EpochObserver{observer}

	result, err := m.Train(context.Background(), gaussianData(4, 50, 2, 0), tc)
	require.NoError(t, err)
	require.Len(t, snapshots, 3)
	for i, s := range snapshots {
		require.Equal(t, result.Epochs[i], s.Diagnostics)
		rows, cols := s.Coordinates.Dims()
		require.Equal(t, 10, rows)
		require.Equal(t, CoordinateDim, cols)
	}
	row, _ := m.CoordinateRow(0)
	require.NotEqual(t, -1e9, row[0], "observers must not reach map state")
}

func TestTrainObserverErrorStops(t *testing.T) {
	m := newTestMap(t, 10, 2)
	boom := errors.New("render failed")
	calls := 0
	tc := DefaultTrainConfig(5)
	tc.Observers = []EpochObserver{EpochObserverFunc(func(context.Context, EpochSnapshot) error {
		calls++
		if calls == 2 {
			return boom
		}
		return nil
	})}

	result, err := m.Train(context.Background(), gaussianData(4, 50, 2, 0), tc)
	require.ErrorIs(t, err, boom)
	require.Equal(t, 2, calls)
	require.Len(t, result.Epochs, 2)
}

func TestTrainHonoursCancelledContext(t *testing.T) {
	m := newTestMap(t, 10, 2)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	result, err := m.Train(ctx, gaussianData(4, 50, 2, 0), DefaultTrainConfig(5))
	require.ErrorIs(t, err, context.Canceled)
	require.Empty(t, result.Epochs)
}

func TestTrainDoesNotStopEarlyAtFullConvergence(t *testing.T) {
	m := mapWithWeights(t, mat.NewDense(6, 2, nil))
	data := mat.NewDense(10, 2, nil)
	result, err := m.Train(context.Background(), data, DefaultTrainConfig(4))
	require.NoError(t, err)
	require.Len(t, result.Epochs, 4)
	for _, diag := range result.Epochs {
		require.Equal(t, 1.0, diag.Convergence)
		require.Equal(t, DefaultMinLearningRate, diag.LearningRate)
		require.Equal(t, DefaultMinRadius, diag.NeighborRadius)
	}
}

// recordingMetric is squared Euclidean that remembers the first feature of
// every input it ranks.
type recordingMetric struct {
	seen []float64
}

func (r *recordingMetric) Distances(weights *mat.Dense, x []float64) []float64 {
	r.seen = append(r.seen, x[0])
	rows, _ := weights.Dims()
	out := make([]float64, rows)
	for i := range out {
		d := weights.At(i, 0) - x[0]
		out[i] = d * d
	}
	return out
}

func TestTrainVisitsEverySampleOncePerEpochInFreshOrder(t *testing.T) {
	const samples, epochs = 50, 3
	rec := &recordingMetric{}
	cfg := DefaultConfig(6, 1)
	cfg.Metric = rec
	m, err := NewMap(cfg)
	require.NoError(t, err)

	ids := make([]float64, samples)
	for i := range ids {
		ids[i] = float64(i)
	}
	tc := DefaultTrainConfig(epochs)
	tc.BatchSize = 7
	_, err = m.Train(context.Background(), mat.NewDense(samples, 1, ids), tc)
	require.NoError(t, err)
	require.Len(t, rec.seen, samples*epochs)

	orders := make([][]float64, epochs)
	for e := 0; e < epochs; e++ {
		order := rec.seen[e*samples : (e+1)*samples]
		orders[e] = order
		sorted := append([]float64(nil), order...)
		sort.Float64s(sorted)
		require.Equal(t, ids, sorted, "epoch %d must visit each sample exactly once", e+1)
	}
	require.NotEqual(t, orders[0], orders[1])
	require.NotEqual(t, orders[1], orders[2])
}

func TestTrainReferenceRowsDistinctAndReusedEveryEpoch(t *testing.T) {
	const samples, refSize = 200, 60
	m := newTestMap(t, 30, 2)
	data := gaussianData(21, samples, 2, 0.5)

	var weights []*mat.Dense
	tc := DefaultTrainConfig(4)
	tc.ReferenceSize = refSize
	tc.Observers = []EpochObserver{EpochObserverFunc(func(_ context.Context, s EpochSnapshot) error {
		weights = append(weights, s.Weights)
		return nil
	})}

	result, err := m.Train(context.Background(), data, tc)
	require.NoError(t, err)
	require.Len(t, result.ReferenceRows, refSize)

	seen := make(map[int]bool, refSize)
	for _, row := range result.ReferenceRows {
		require.GreaterOrEqual(t, row, 0)
		require.Less(t, row, samples)
		require.False(t, seen[row], "row %d drawn twice", row)
		seen[row] = true
	}

	reference := mat.NewDense(refSize, 2, nil)
	for i, row := range result.ReferenceRows {
		reference.SetRow(i, data.RawRowView(row))
	}
	for i, w := range weights {
		check := newTestMap(t, 30, 2)
		require.NoError(t, check.SetWeights(w))
		score, err := check.Convergence(reference, DefaultSignificance)
		require.NoError(t, err)
		require.Equal(t, result.ConvergenceHistory[i], score, "epoch %d", i+1)
	}
}
