package stats

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// ConvergenceSummary condenses a per-epoch convergence history.
type ConvergenceSummary struct {
	Epochs int     `json:"epochs"`
	Final  float64 `json:"final"`
	Mean   float64 `json:"mean"`
	Std    float64 `json:"std"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	// FirstEpochAtTarget is the 1-based epoch at which convergence first
	// reached the target, or 0 when it never did.
	FirstEpochAtTarget int `json:"first_epoch_at_target"`
	// Regressions counts epochs whose convergence dropped below the previous
	// epoch, i.e. epochs after which the learning rate grew again.
	Regressions int `json:"regressions"`
}

func SummarizeConvergence(history []float64, target float64) ConvergenceSummary {
	if len(history) == 0 {
		return ConvergenceSummary{}
	}
	summary := ConvergenceSummary{
		Epochs: len(history),
		Final:  history[len(history)-1],
		Min:    floats.Min(history),
		Max:    floats.Max(history),
	}
	summary.Mean, summary.Std = stat.PopMeanStdDev(history, nil)
	for i, v := range history {
		if summary.FirstEpochAtTarget == 0 && v >= target {
			summary.FirstEpochAtTarget = i + 1
		}
		if i > 0 && v < history[i-1] {
			summary.Regressions++
		}
	}
	return summary
}
