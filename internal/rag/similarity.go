package rag

import "math"

// CosineSimilarity returns the normalised dot product of a and b in [-1, 1].
// A zero-norm vector (including the zero vectors substituted for failed
// embeddings) is defined to have similarity 0 against anything, so such
// documents remain stored but never rank.
func CosineSimilarity(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}

	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		x := float64(a[i])
		y := float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}

	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
