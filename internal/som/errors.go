package som

import "errors"

var (
	ErrInvalidConfig     = errors.New("som: invalid configuration")
	ErrDimensionMismatch = errors.New("som: dimension mismatch")
	ErrIndexOutOfRange   = errors.New("som: node index out of range")
	ErrInvalidRate       = errors.New("som: learning rate must be finite and >= 0")
	// ErrDegenerateSample is returned when a sample is too small for an
	// unbiased variance (fewer than two rows).
	ErrDegenerateSample = errors.New("som: sample too small for unbiased variance")
	ErrNonFinite        = errors.New("som: non-finite value")
	ErrEmptyDataset     = errors.New("som: dataset is empty")
)
