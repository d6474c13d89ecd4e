package vector

import (
	"fmt"

	"github.com/hyperjump/codelens/pkg/utils"
)

// InnerProduct returns a·b. For unit vectors this is their cosine similarity.
func InnerProduct(a, b []float32) float64 {
	return utils.Dot(a, b)
}

// Normalize returns a unit-length copy of x. Vectors whose norm is zero, NaN or
// infinite are rejected with ErrInvalidVector; the input is never modified.
func Normalize(x []float32) ([]float32, error) {
	out := append([]float32(nil), x...)
	if !utils.NormalizeL2(out) {
		return nil, fmt.Errorf("%w: norm is %v", ErrInvalidVector, utils.L2Norm(x))
	}
	return out, nil
}

func checkDimension(got, want int) error {
	if got != want {
		return fmt.Errorf("%w: got %d, expected %d", ErrDimensionMismatch, got, want)
	}
	return nil
}
