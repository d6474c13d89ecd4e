package vector

import "errors"

var (
	// ErrDimensionMismatch is returned when a vector length differs from the index dimension.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	// ErrInvalidVector is returned for vectors that cannot be normalized (zero, NaN or Inf norm).
	ErrInvalidVector = errors.New("invalid vector")
	// ErrPersistence wraps I/O failures during Save and Load.
	ErrPersistence = errors.New("index persistence failed")
	// ErrCorruptIndex is returned when a persisted index and its ID mapping disagree.
	ErrCorruptIndex = errors.New("corrupt index")
)
