package som

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// EpochDiagnostics summarises one completed epoch.
type EpochDiagnostics struct {
	Epoch          int
	Convergence    float64
	LearningRate   float64
	NeighborRadius float64
	// MeanBMUDistance is the mean metric distance from each sample to its
	// BMU during the epoch (quantisation error under the configured metric).
	MeanBMUDistance float64
	// MeanNeighbors is the mean neighbor-set size selected per sample.
	MeanNeighbors float64
	// CoordinateSpread is the mean Euclidean distance from node coordinates
	// to their centroid after the epoch.
	CoordinateSpread float64
}

// EpochSnapshot is the read-only state handed to observers after each epoch.
// Coordinates and Weights are private copies.
type EpochSnapshot struct {
	Diagnostics EpochDiagnostics
	Coordinates *mat.Dense
	Weights     *mat.Dense
}

// EpochObserver consumes snapshots after every epoch. Returning an error
// stops training.
type EpochObserver interface {
	ObserveEpoch(ctx context.Context, snapshot EpochSnapshot) error
}

// EpochObserverFunc adapts a function to EpochObserver.
type EpochObserverFunc func(ctx context.Context, snapshot EpochSnapshot) error

func (f EpochObserverFunc) ObserveEpoch(ctx context.Context, snapshot EpochSnapshot) error {
	return f(ctx, snapshot)
}

type TrainResult struct {
	Epochs             []EpochDiagnostics
	ConvergenceHistory []float64
	ReferenceRows      []int
	FinalConvergence   float64
	FinalLearningRate  float64
	FinalRadius        float64
}

// Train runs cfg.Epochs epochs of online competitive learning over data
// (rows are samples, columns must equal Dim). Each epoch shuffles the data,
// walks it in batches of cfg.BatchSize, applies BMU search, weight update
// and neighborhood coordinate update per sample, then measures convergence
// against a reference subsample fixed at the start and decays the learning
// rate and radius toward their floors. Training never stops early on
// convergence; ctx is checked between epochs.
func (m *Map) Train(ctx context.Context, data mat.Matrix, cfg TrainConfig) (TrainResult, error) {
	if err := cfg.validate(m.initialLearningRate, m.initialNeighborRadius); err != nil {
		return TrainResult{}, err
	}
	samples, cols := data.Dims()
	if samples == 0 {
		return TrainResult{}, ErrEmptyDataset
	}
	if cols != m.dim {
		return TrainResult{}, fmt.Errorf("%w: dataset has %d features, want %d", ErrDimensionMismatch, cols, m.dim)
	}
	dense := mat.DenseCopyOf(data)
	if floats.HasNaN(dense.RawMatrix().Data) {
		return TrainResult{}, fmt.Errorf("%w: dataset contains NaN", ErrNonFinite)
	}

	reference, referenceRows := m.referenceSample(dense, cfg.ReferenceSize)
	if len(referenceRows) <= 1 || m.nodes <= 1 {
		return TrainResult{}, fmt.Errorf("%w: reference rows=%d nodes=%d", ErrDegenerateSample, len(referenceRows), m.nodes)
	}

	m.log.Info("training started",
		"nodes", m.nodes,
		"dim", m.dim,
		"samples", samples,
		"epochs", cfg.Epochs,
		"batch_size", cfg.BatchSize,
		"reference_size", len(referenceRows),
	)

	result := TrainResult{
		Epochs:             make([]EpochDiagnostics, 0, cfg.Epochs),
		ConvergenceHistory: make([]float64, 0, cfg.Epochs),
		ReferenceRows:      referenceRows,
	}
	for epoch := 1; epoch <= cfg.Epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		diag, err := m.runEpoch(dense, cfg.BatchSize)
		if err != nil {
			return result, fmt.Errorf("epoch %d: %w", epoch, err)
		}
		convergence, err := m.Convergence(reference, cfg.Significance)
		if err != nil {
			return result, fmt.Errorf("epoch %d convergence: %w", epoch, err)
		}
		m.learningRate = math.Max(cfg.MinLearningRate, m.initialLearningRate*(1-convergence))
		m.neighborRadius = math.Max(cfg.MinNeighborRadius, m.initialNeighborRadius*(1-convergence))

		diag.Epoch = epoch
		diag.Convergence = convergence
		diag.LearningRate = m.learningRate
		diag.NeighborRadius = m.neighborRadius
		diag.CoordinateSpread = coordinateSpread(m.coordinates)
		result.Epochs = append(result.Epochs, diag)
		result.ConvergenceHistory = append(result.ConvergenceHistory, convergence)

		m.log.Debug("epoch complete",
			"epoch", epoch,
			"convergence", convergence,
			"learning_rate", m.learningRate,
			"radius", m.neighborRadius,
			"mean_bmu_distance", diag.MeanBMUDistance,
		)

		if len(cfg.Observers) > 0 {
			snapshot := EpochSnapshot{
				Diagnostics: diag,
				Coordinates: m.Coordinates(),
				Weights:     m.Weights(),
			}
			for _, observer := range cfg.Observers {
				if err := observer.ObserveEpoch(ctx, snapshot); err != nil {
					return result, fmt.Errorf("epoch %d observer: %w", epoch, err)
				}
			}
		}
	}

	result.FinalConvergence = m.lastConvergence
	result.FinalLearningRate = m.learningRate
	result.FinalRadius = m.neighborRadius
	m.log.Info("training finished",
		"convergence", result.FinalConvergence,
		"learning_rate", result.FinalLearningRate,
		"radius", result.FinalRadius,
	)
	return result, nil
}

// Step applies one sample with the map's current learning rate and radius:
// BMU search, neighbor selection, weight update, coordinate update.
func (m *Map) Step(x []float64) (int, error) {
	if err := m.checkInput(x); err != nil {
		return 0, err
	}
	bmu, _, _, err := m.step(x)
	return bmu, err
}

func (m *Map) step(x []float64) (bmu int, distance float64, neighbors int, err error) {
	bmu, distance, err = m.bmu(x)
	if err != nil {
		return 0, 0, 0, err
	}
	selected, err := m.Neighbors(bmu, m.neighborRadius)
	if err != nil {
		return 0, 0, 0, err
	}
	if err := m.UpdateWeights(bmu, x, m.learningRate); err != nil {
		return 0, 0, 0, err
	}
	if err := m.UpdateCoordinates(bmu, selected, m.learningRate); err != nil {
		return 0, 0, 0, err
	}
	return bmu, distance, len(selected), nil
}

func (m *Map) runEpoch(data *mat.Dense, batchSize int) (EpochDiagnostics, error) {
	samples, _ := data.Dims()
	order := m.rng.Perm(samples)

	var totalDistance, totalNeighbors float64
	for start := 0; start < samples; start += batchSize {
		end := start + batchSize
		if end > samples {
			end = samples
		}
		for _, idx := range order[start:end] {
			_, distance, neighbors, err := m.step(data.RawRowView(idx))
			if err != nil {
				return EpochDiagnostics{}, fmt.Errorf("sample %d: %w", idx, err)
			}
			totalDistance += distance
			totalNeighbors += float64(neighbors)
		}
	}
	return EpochDiagnostics{
		MeanBMUDistance: totalDistance / float64(samples),
		MeanNeighbors:   totalNeighbors / float64(samples),
	}, nil
}

// referenceSample draws size rows without replacement. size <= 0 or larger
// than the dataset selects every row in original order.
func (m *Map) referenceSample(data *mat.Dense, size int) (*mat.Dense, []int) {
	samples, cols := data.Dims()
	var rows []int
	if size <= 0 || size >= samples {
		rows = make([]int, samples)
		for i := range rows {
			rows[i] = i
		}
	} else {
		rows = m.rng.Perm(samples)[:size]
	}
	reference := mat.NewDense(len(rows), cols, nil)
	for i, row := range rows {
		reference.SetRow(i, data.RawRowView(row))
	}
	return reference, rows
}

func coordinateSpread(coordinates *mat.Dense) float64 {
	rows, cols := coordinates.Dims()
	centroid := make([]float64, cols)
	col := make([]float64, rows)
	for j := 0; j < cols; j++ {
		mat.Col(col, j, coordinates)
		centroid[j] = stat.Mean(col, nil)
	}
	total := 0.0
	for i := 0; i < rows; i++ {
		total += floats.Distance(coordinates.RawRowView(i), centroid, 2)
	}
	return total / float64(rows)
}
