// Package dataset produces and loads sample matrices for map training.
// Rows are samples; columns are features.
package dataset

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"strings"

	"gonum.org/v1/gonum/mat"
)

var (
	ErrUnknownDataset = errors.New("unknown dataset")
	ErrUnsupportedDim = errors.New("dataset does not support requested dimension")
)

type BlobsConfig struct {
	Samples int
	Dim     int
	Centers int
	// Spread is the per-axis standard deviation around each center.
	Spread float64
	// CenterBox bounds centers to [-CenterBox, CenterBox] on every axis.
	CenterBox float64
}

// Blobs draws isotropic Gaussian clusters. Samples are assigned to centers
// round-robin so every center gets within one sample of an equal share.
func Blobs(rng *rand.Rand, cfg BlobsConfig) (*mat.Dense, error) {
	if cfg.Samples <= 0 || cfg.Dim <= 0 || cfg.Centers <= 0 {
		return nil, fmt.Errorf("blobs requires samples, dim and centers > 0: got %d, %d, %d", cfg.Samples, cfg.Dim, cfg.Centers)
	}
	if cfg.Spread < 0 || cfg.CenterBox < 0 {
		return nil, fmt.Errorf("blobs spread and center box must be >= 0")
	}

	centers := make([][]float64, cfg.Centers)
	for c := range centers {
		centers[c] = make([]float64, cfg.Dim)
		for d := range centers[c] {
			centers[c][d] = (rng.Float64()*2 - 1) * cfg.CenterBox
		}
	}

	out := mat.NewDense(cfg.Samples, cfg.Dim, nil)
	for i := 0; i < cfg.Samples; i++ {
		center := centers[i%cfg.Centers]
		row := out.RawRowView(i)
		for d := range row {
			row[d] = center[d] + rng.NormFloat64()*cfg.Spread
		}
	}
	return out, nil
}

type SpiralConfig struct {
	Samples int
	Turns   float64
	Noise   float64
}

// Spiral samples a conical helix in 3-D: the radius grows with the angle and
// z climbs linearly, with Gaussian jitter of Noise on every axis.
func Spiral(rng *rand.Rand, cfg SpiralConfig) (*mat.Dense, error) {
	if cfg.Samples <= 0 {
		return nil, fmt.Errorf("spiral samples must be > 0, got %d", cfg.Samples)
	}
	if cfg.Turns <= 0 || cfg.Noise < 0 {
		return nil, fmt.Errorf("spiral requires turns > 0 and noise >= 0")
	}

	maxAngle := cfg.Turns * 2 * math.Pi
	out := mat.NewDense(cfg.Samples, 3, nil)
	for i := 0; i < cfg.Samples; i++ {
		t := rng.Float64() * maxAngle
		r := t / maxAngle
		out.SetRow(i, []float64{
			r*math.Cos(t) + rng.NormFloat64()*cfg.Noise,
			r*math.Sin(t) + rng.NormFloat64()*cfg.Noise,
			t/maxAngle*2 - 1 + rng.NormFloat64()*cfg.Noise,
		})
	}
	return out, nil
}

type RingConfig struct {
	Samples int
	Radius  float64
	Noise   float64
}

// Ring samples a circle of Radius in the xy plane. Radial and z jitter are
// Gaussian with standard deviation Noise.
func Ring(rng *rand.Rand, cfg RingConfig) (*mat.Dense, error) {
	if cfg.Samples <= 0 {
		return nil, fmt.Errorf("ring samples must be > 0, got %d", cfg.Samples)
	}
	if cfg.Radius <= 0 || cfg.Noise < 0 {
		return nil, fmt.Errorf("ring requires radius > 0 and noise >= 0")
	}

	out := mat.NewDense(cfg.Samples, 3, nil)
	for i := 0; i < cfg.Samples; i++ {
		theta := rng.Float64() * 2 * math.Pi
		r := cfg.Radius + rng.NormFloat64()*cfg.Noise
		out.SetRow(i, []float64{
			r * math.Cos(theta),
			r * math.Sin(theta),
			rng.NormFloat64() * cfg.Noise,
		})
	}
	return out, nil
}

type generator func(rng *rand.Rand, samples, dim int) (*mat.Dense, error)

var generators = map[string]generator{
	"blobs": func(rng *rand.Rand, samples, dim int) (*mat.Dense, error) {
		return Blobs(rng, BlobsConfig{Samples: samples, Dim: dim, Centers: 4, Spread: 0.5, CenterBox: 5})
	},
	"spiral": func(rng *rand.Rand, samples, dim int) (*mat.Dense, error) {
		if dim != 3 {
			return nil, fmt.Errorf("%w: spiral is 3-D, got %d", ErrUnsupportedDim, dim)
		}
		return Spiral(rng, SpiralConfig{Samples: samples, Turns: 3, Noise: 0.02})
	},
	"ring": func(rng *rand.Rand, samples, dim int) (*mat.Dense, error) {
		if dim != 3 {
			return nil, fmt.Errorf("%w: ring is 3-D, got %d", ErrUnsupportedDim, dim)
		}
		return Ring(rng, RingConfig{Samples: samples, Radius: 1, Noise: 0.05})
	},
}

// Generate builds a named synthetic dataset with default shape parameters.
func Generate(name string, rng *rand.Rand, samples, dim int) (*mat.Dense, error) {
	gen, ok := generators[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("%w: %s (available: %s)", ErrUnknownDataset, name, strings.Join(Names(), ", "))
	}
	return gen(rng, samples, dim)
}

func Names() []string {
	names := make([]string, 0, len(generators))
	for name := range generators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
