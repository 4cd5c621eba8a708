package som

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

const (
	// criticalValue is the two-sided 95% normal quantile. It is applied
	// regardless of the significance passed to Convergence.
	criticalValue    = 1.96
	maxVarianceRatio = 2.0
	varianceEpsilon  = 1e-8
)

// DimensionCheck records the two statistical tests applied to one feature
// dimension when measuring convergence.
type DimensionCheck struct {
	Dimension      int
	ReferenceMean  float64
	WeightMean     float64
	ReferenceVar   float64
	WeightVar      float64
	MeanBound      float64
	VarianceRatio  float64
	MeanPassed     bool
	VariancePassed bool
}

func (c DimensionCheck) Embedded() bool { return c.MeanPassed && c.VariancePassed }

// ConvergenceReport is the per-dimension breakdown behind a convergence score.
type ConvergenceReport struct {
	Score      float64
	Embedded   int
	Dimensions []DimensionCheck
}

// Convergence returns the fraction of feature dimensions whose node-weight
// distribution matches ref: the difference of means must lie within the
// 95% normal interval and the larger/smaller variance ratio must be <= 2.
// The result is stored as LastConvergence.
//
// significance is accepted for API compatibility but ignored; the critical
// value is always 1.96.
func (m *Map) Convergence(ref mat.Matrix, significance float64) (float64, error) {
	report, err := m.ConvergenceReport(ref, significance)
	if err != nil {
		return 0, err
	}
	return report.Score, nil
}

// ConvergenceReport is Convergence with the per-dimension detail retained.
func (m *Map) ConvergenceReport(ref mat.Matrix, _ float64) (ConvergenceReport, error) {
	nRef, cols := ref.Dims()
	if cols != m.dim {
		return ConvergenceReport{}, fmt.Errorf("%w: reference has %d features, want %d", ErrDimensionMismatch, cols, m.dim)
	}
	if nRef <= 1 {
		return ConvergenceReport{}, fmt.Errorf("%w: reference has %d rows", ErrDegenerateSample, nRef)
	}
	if m.nodes <= 1 {
		return ConvergenceReport{}, fmt.Errorf("%w: map has %d nodes", ErrDegenerateSample, m.nodes)
	}

	report := ConvergenceReport{Dimensions: make([]DimensionCheck, 0, m.dim)}
	refCol := make([]float64, nRef)
	weightCol := make([]float64, m.nodes)
	for d := 0; d < m.dim; d++ {
		mat.Col(refCol, d, ref)
		mat.Col(weightCol, d, m.weights)
		check, err := checkDimension(d, refCol, weightCol)
		if err != nil {
			return ConvergenceReport{}, err
		}
		if check.Embedded() {
			report.Embedded++
		}
		report.Dimensions = append(report.Dimensions, check)
	}
	report.Score = float64(report.Embedded) / float64(m.dim)
	m.lastConvergence = report.Score
	return report, nil
}

func checkDimension(d int, ref, weights []float64) (DimensionCheck, error) {
	refMean, refVar := stat.MeanVariance(ref, nil)
	weightMean, weightVar := stat.MeanVariance(weights, nil)
	for _, v := range []float64{refMean, refVar, weightMean, weightVar} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return DimensionCheck{}, fmt.Errorf("%w: statistics for dimension %d", ErrNonFinite, d)
		}
	}

	bound := criticalValue * math.Sqrt(refVar/float64(len(ref))+weightVar/float64(len(weights)))
	larger, smaller := math.Max(refVar, weightVar), math.Min(refVar, weightVar)
	ratio := larger / (smaller + varianceEpsilon)

	return DimensionCheck{
		Dimension:      d,
		ReferenceMean:  refMean,
		WeightMean:     weightMean,
		ReferenceVar:   refVar,
		WeightVar:      weightVar,
		MeanBound:      bound,
		VarianceRatio:  ratio,
		MeanPassed:     math.Abs(refMean-weightMean) <= bound,
		VariancePassed: ratio <= maxVarianceRatio,
	}, nil
}
