package som

import (
	"fmt"
	"log/slog"
	"math"

	"orrery/internal/metric"
)

// CoordinateDim is the dimensionality of the embedding space every node lives in.
const CoordinateDim = 3

const (
	DefaultWeightScale     = 0.1
	DefaultCoordinateRange = 10.0
	DefaultLearningRate    = 0.5
	DefaultNeighborRadius  = 2.0
	DefaultBatchSize       = 32
	DefaultReferenceSize   = 1000
	DefaultSignificance    = 0.05
	DefaultMinLearningRate = 0.01
	DefaultMinRadius       = 0.1
)

// Config holds the construction-time hyperparameters of a Map.
type Config struct {
	Nodes int
	Dim   int
	// WeightScale is the standard deviation of the zero-mean noise used to
	// initialise weights.
	WeightScale float64
	// CoordinateRange bounds the initial coordinate cube [0, CoordinateRange)^3.
	CoordinateRange float64
	LearningRate    float64
	NeighborRadius  float64
	// Metric ranks nodes against inputs; nil selects squared Euclidean.
	Metric metric.Metric
	Seed   int64
	// Logger receives training progress; nil discards it.
	Logger *slog.Logger
}

func DefaultConfig(nodes, dim int) Config {
	return Config{
		Nodes:           nodes,
		Dim:             dim,
		WeightScale:     DefaultWeightScale,
		CoordinateRange: DefaultCoordinateRange,
		LearningRate:    DefaultLearningRate,
		NeighborRadius:  DefaultNeighborRadius,
		Seed:            1,
	}
}

func (c Config) validate() error {
	if c.Nodes <= 0 {
		return fmt.Errorf("%w: node count must be > 0, got %d", ErrInvalidConfig, c.Nodes)
	}
	if c.Dim <= 0 {
		return fmt.Errorf("%w: input dimension must be > 0, got %d", ErrInvalidConfig, c.Dim)
	}
	if !nonNegativeFinite(c.WeightScale) {
		return fmt.Errorf("%w: weight scale must be finite and >= 0, got %v", ErrInvalidConfig, c.WeightScale)
	}
	if !(c.CoordinateRange > 0) || math.IsInf(c.CoordinateRange, 0) {
		return fmt.Errorf("%w: coordinate range must be finite and > 0, got %v", ErrInvalidConfig, c.CoordinateRange)
	}
	if !nonNegativeFinite(c.LearningRate) {
		return fmt.Errorf("%w: learning rate must be finite and >= 0, got %v", ErrInvalidConfig, c.LearningRate)
	}
	if !nonNegativeFinite(c.NeighborRadius) {
		return fmt.Errorf("%w: neighbor radius must be finite and >= 0, got %v", ErrInvalidConfig, c.NeighborRadius)
	}
	return nil
}

// TrainConfig drives the epoch loop of Map.Train.
type TrainConfig struct {
	Epochs int
	// BatchSize is the iteration grain only; samples inside a batch are still
	// applied one at a time, in order.
	BatchSize int
	// ReferenceSize is the size of the fixed convergence reference subsample.
	// Values <= 0 or larger than the dataset select the whole dataset.
	ReferenceSize int
	// Significance is forwarded to Convergence, which currently always uses
	// the 95% critical value.
	Significance      float64
	MinLearningRate   float64
	MinNeighborRadius float64
	Observers         []EpochObserver
}

func DefaultTrainConfig(epochs int) TrainConfig {
	return TrainConfig{
		Epochs:            epochs,
		BatchSize:         DefaultBatchSize,
		ReferenceSize:     DefaultReferenceSize,
		Significance:      DefaultSignificance,
		MinLearningRate:   DefaultMinLearningRate,
		MinNeighborRadius: DefaultMinRadius,
	}
}

func (c TrainConfig) validate(initialLearningRate, initialRadius float64) error {
	if c.Epochs <= 0 {
		return fmt.Errorf("%w: epochs must be > 0, got %d", ErrInvalidConfig, c.Epochs)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("%w: batch size must be > 0, got %d", ErrInvalidConfig, c.BatchSize)
	}
	if !nonNegativeFinite(c.MinLearningRate) || c.MinLearningRate > initialLearningRate {
		return fmt.Errorf("%w: min learning rate must be in [0, %v], got %v", ErrInvalidConfig, initialLearningRate, c.MinLearningRate)
	}
	if !nonNegativeFinite(c.MinNeighborRadius) || c.MinNeighborRadius > initialRadius {
		return fmt.Errorf("%w: min neighbor radius must be in [0, %v], got %v", ErrInvalidConfig, initialRadius, c.MinNeighborRadius)
	}
	for i, observer := range c.Observers {
		if observer == nil {
			return fmt.Errorf("%w: observer %d is nil", ErrInvalidConfig, i)
		}
	}
	return nil
}

func nonNegativeFinite(v float64) bool {
	return v >= 0 && !math.IsInf(v, 1)
}
