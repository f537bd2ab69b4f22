package rag

import (
	"math"
	"sort"
)

func cosine(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// topK returns the indexes of the k vectors most similar to query, best first. Ties keep
// input order.
func topK(query []float32, vectors [][]float32, k int) []int {
	idx := make([]int, len(vectors))
	scores := make([]float64, len(vectors))
	for i, v := range vectors {
		idx[i] = i
		scores[i] = cosine(query, v)
	}
	sort.SliceStable(idx, func(a, b int) bool { return scores[idx[a]] > scores[idx[b]] })
	if k < len(idx) {
		idx = idx[:k]
	}
	return idx
}
