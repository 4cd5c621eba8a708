package stats

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSummarizeConvergence(t *testing.T) {
	summary := SummarizeConvergence([]float64{0.2, 0.6, 0.4, 0.8}, 0.5)

	require.Equal(t, 4, summary.Epochs)
	require.Equal(t, 0.8, summary.Final)
	require.Equal(t, 0.2, summary.Min)
	require.Equal(t, 0.8, summary.Max)
	require.InDelta(t, 0.5, summary.Mean, 1e-12)
	require.InDelta(t, 0.22360679774997896, summary.Std, 1e-12)
	require.Equal(t, 2, summary.FirstEpochAtTarget)
	require.Equal(t, 1, summary.Regressions)
}

func TestSummarizeConvergenceNeverReachesTarget(t *testing.T) {
	summary := SummarizeConvergence([]float64{0.1, 0.2}, 0.9)
	require.Zero(t, summary.FirstEpochAtTarget)
	require.Zero(t, summary.Regressions)
}

func TestSummarizeConvergenceEmpty(t *testing.T) {
	require.Equal(t, ConvergenceSummary{}, SummarizeConvergence(nil, 0.5))
}
