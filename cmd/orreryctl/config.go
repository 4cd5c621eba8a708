package main

import (
	"encoding/json"
	"fmt"
	"os"

	orreryapi "orrery/pkg/orrery"
)

// loadRunRequestFromConfig reads a run config JSON object whose keys mirror
// the run flags in snake_case. Unknown keys are ignored.
func loadRunRequestFromConfig(path string) (orreryapi.RunRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return orreryapi.RunRequest{}, err
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return orreryapi.RunRequest{}, err
	}

	var req orreryapi.RunRequest
	if v, ok := asString(raw["run_id"]); ok {
		req.RunID = v
	}
	if v, ok := asString(raw["dataset"]); ok {
		req.Dataset = v
	}
	if v, ok := asString(raw["data_csv"]); ok {
		req.DataCSVPath = v
	}
	if v, ok := asString(raw["normalize"]); ok {
		req.Normalize = v
	}
	if v, ok := asInt(raw["samples"]); ok {
		req.Samples = v
	}
	if v, ok := asInt(raw["dim"]); ok {
		req.Dim = v
	}
	if v, ok := asInt(raw["nodes"]); ok {
		req.Nodes = v
	}
	if v, ok := asInt(raw["epochs"]); ok {
		req.Epochs = v
	}
	if v, ok := asInt(raw["batch_size"]); ok {
		req.BatchSize = v
	}
	if v, ok := asInt(raw["reference_size"]); ok {
		req.ReferenceSize = v
	}
	if v, ok := asFloat64(raw["significance"]); ok {
		req.Significance = v
	}
	if v, ok := asFloat64(raw["learning_rate"]); ok {
		req.LearningRate = v
	}
	if v, ok := asFloat64(raw["neighbor_radius"]); ok {
		req.NeighborRadius = v
	}
	if v, ok := asFloat64(raw["min_learning_rate"]); ok {
		req.MinLearningRate = orreryapi.Float64(v)
	}
	if v, ok := asFloat64(raw["min_neighbor_radius"]); ok {
		req.MinNeighborRadius = orreryapi.Float64(v)
	}
	if v, ok := asFloat64(raw["weight_scale"]); ok {
		req.WeightScale = v
	}
	if v, ok := asFloat64(raw["coordinate_range"]); ok {
		req.CoordinateRange = v
	}
	if v, ok := asString(raw["metric"]); ok {
		req.Metric = v
	}
	if v, ok := asInt(raw["workers"]); ok {
		req.Workers = v
	}
	if v, ok := asInt64(raw["seed"]); ok {
		req.Seed = v
	}
	if v, ok := asBool(raw["save_frames"]); ok {
		req.SaveFrames = v
	}

	return req, nil
}

func asString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func asBool(v any) (bool, bool) {
	b, ok := v.(bool)
	return b, ok
}

func asInt(v any) (int, bool) {
	switch x := v.(type) {
	case int:
		return x, true
	case float64:
		return int(x), true
	default:
		return 0, false
	}
}

func asInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int64:
		return x, true
	case int:
		return int64(x), true
	case float64:
		return int64(x), true
	default:
		return 0, false
	}
}

func asFloat64(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	default:
		return 0, false
	}
}

// overrideFromFlags applies the flags named in set on top of req.
func overrideFromFlags(req *orreryapi.RunRequest, set map[string]bool, flagValue map[string]any) error {
	for name := range set {
		v, ok := flagValue[name]
		if !ok {
			continue
		}
		switch name {
		case "run-id":
			req.RunID = v.(string)
		case "dataset":
			req.Dataset = v.(string)
		case "data-csv":
			req.DataCSVPath = v.(string)
		case "normalize":
			req.Normalize = v.(string)
		case "samples":
			req.Samples = v.(int)
		case "dim":
			req.Dim = v.(int)
		case "nodes":
			req.Nodes = v.(int)
		case "epochs":
			req.Epochs = v.(int)
		case "batch-size":
			req.BatchSize = v.(int)
		case "reference-size":
			req.ReferenceSize = v.(int)
		case "significance":
			req.Significance = v.(float64)
		case "lr":
			req.LearningRate = v.(float64)
		case "radius":
			req.NeighborRadius = v.(float64)
		case "min-lr":
			req.MinLearningRate = orreryapi.Float64(v.(float64))
		case "min-radius":
			req.MinNeighborRadius = orreryapi.Float64(v.(float64))
		case "weight-scale":
			req.WeightScale = v.(float64)
		case "coord-range":
			req.CoordinateRange = v.(float64)
		case "metric":
			req.Metric = v.(string)
		case "workers":
			req.Workers = v.(int)
		case "seed":
			req.Seed = v.(int64)
		case "save-frames":
			req.SaveFrames = v.(bool)
		default:
			return fmt.Errorf("unsupported run flag: %s", name)
		}
	}
	return nil
}

func loadOrDefaultRunRequest(configPath string) (orreryapi.RunRequest, error) {
	if configPath == "" {
		return orreryapi.RunRequest{}, nil
	}
	req, err := loadRunRequestFromConfig(configPath)
	if err != nil {
		return orreryapi.RunRequest{}, fmt.Errorf("load config: %w", err)
	}
	return req, nil
}
