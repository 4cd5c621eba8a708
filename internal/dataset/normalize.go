package dataset

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

var ErrUnknownNormalization = errors.New("unknown normalization mode")

const (
	NormalizeNone   = "none"
	NormalizeMinMax = "minmax"
	NormalizeZScore = "zscore"
)

// Normalize rescales every column independently and returns a new matrix.
// minmax maps a column onto [0, 1]; zscore centres it and divides by the
// population standard deviation. Constant columns become all zeros.
func Normalize(data mat.Matrix, mode string) (*mat.Dense, error) {
	out := mat.DenseCopyOf(data)
	var scale func([]float64)
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", NormalizeNone:
		return out, nil
	case NormalizeMinMax:
		scale = minMaxColumn
	case NormalizeZScore:
		scale = zScoreColumn
	default:
		return nil, fmt.Errorf("%w: %s (available: %s)", ErrUnknownNormalization, mode, strings.Join(NormalizationModes(), ", "))
	}

	rows, cols := out.Dims()
	column := make([]float64, rows)
	for j := 0; j < cols; j++ {
		mat.Col(column, j, out)
		scale(column)
		out.SetCol(j, column)
	}
	return out, nil
}

func NormalizationModes() []string {
	modes := []string{NormalizeNone, NormalizeMinMax, NormalizeZScore}
	sort.Strings(modes)
	return modes
}

func minMaxColumn(values []float64) {
	if len(values) == 0 {
		return
	}
	lo, hi := floats.Min(values), floats.Max(values)
	span := hi - lo
	if span == 0 {
		zero(values)
		return
	}
	floats.AddConst(-lo, values)
	floats.Scale(1/span, values)
}

func zScoreColumn(values []float64) {
	if len(values) == 0 {
		return
	}
	mean, std := stat.PopMeanStdDev(values, nil)
	if std == 0 || math.IsNaN(std) {
		zero(values)
		return
	}
	floats.AddConst(-mean, values)
	floats.Scale(1/std, values)
}

func zero(values []float64) {
	for i := range values {
		values[i] = 0
	}
}
