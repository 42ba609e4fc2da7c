package vector

import "math"

// Normalize returns a unit-length copy of x. The zero vector maps to a zero vector.
func Normalize(x []float32) []float32 {
	out := make([]float32, len(x))
	norm := L2Norm(x)
	if norm == 0 || math.IsNaN(norm) || math.IsInf(norm, 0) {
		return out
	}
	for i, v := range x {
		out[i] = float32(float64(v) / norm)
	}
	return out
}

// InnerProduct returns the inner product of two vectors (for normalized vectors equals cosine similarity).
func InnerProduct(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}

// L2Norm returns the L2 norm of a vector.
func L2Norm(x []float32) float64 {
	var sum float64
	for _, v := range x {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum)
}
