package model

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// RunRecord describes one training run. Trained weights and coordinates are
// never part of it; only the configuration and the final scalar state.
type RunRecord struct {
	VersionedRecord
	ID                  string  `json:"id"`
	CreatedAtUTC        string  `json:"created_at_utc"`
	Dataset             string  `json:"dataset"`
	Samples             int     `json:"samples"`
	Nodes               int     `json:"nodes"`
	Dim                 int     `json:"dim"`
	Epochs              int     `json:"epochs"`
	BatchSize           int     `json:"batch_size"`
	ReferenceSize       int     `json:"reference_size"`
	Metric              string  `json:"metric"`
	Seed                int64   `json:"seed"`
	InitialLearningRate float64 `json:"initial_learning_rate"`
	InitialRadius       float64 `json:"initial_radius"`
	FinalConvergence    float64 `json:"final_convergence"`
	FinalLearningRate   float64 `json:"final_learning_rate"`
	FinalRadius         float64 `json:"final_radius"`
}

type EpochDiagnostics struct {
	Epoch            int     `json:"epoch"`
	Convergence      float64 `json:"convergence"`
	LearningRate     float64 `json:"learning_rate"`
	NeighborRadius   float64 `json:"neighbor_radius"`
	MeanBMUDistance  float64 `json:"mean_bmu_distance"`
	MeanNeighbors    float64 `json:"mean_neighbors"`
	CoordinateSpread float64 `json:"coordinate_spread"`
}
