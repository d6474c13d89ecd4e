package utils

import "math"

// L2Norm returns the Euclidean length of x, accumulated in float64.
func L2Norm(x []float32) float64 {
	var sum float64
	for _, v := range x {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum)
}

// Dot returns the inner product of a and b, or 0 when their lengths differ.
func Dot(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}

// NormalizeL2 scales x in place to unit length and reports whether it could.
// Zero, NaN and infinite norms leave x unchanged.
func NormalizeL2(x []float32) bool {
	norm := L2Norm(x)
	if norm == 0 || math.IsNaN(norm) || math.IsInf(norm, 0) {
		return false
	}
	inv := 1 / norm
	for i := range x {
		x[i] = float32(float64(x[i]) * inv)
	}
	return true
}

// MeanPool averages the rows of a row-major [len(mask) x dims] matrix whose
// mask entry is non-zero. With no attended rows the result is all zeros.
func MeanPool(rows []float32, mask []int64, dims int) []float32 {
	out := make([]float32, dims)
	var n float32
	for pos, m := range mask {
		if m == 0 || (pos+1)*dims > len(rows) {
			continue
		}
		for i, v := range rows[pos*dims : (pos+1)*dims] {
			out[i] += v
		}
		n++
	}
	if n > 0 {
		for i := range out {
			out[i] /= n
		}
	}
	return out
}
