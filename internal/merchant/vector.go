package merchant

import (
	"math"

	"github.com/cespare/xxhash/v2"
)

// HashVector derives a deterministic unit vector of length dim from key by
// hashing its character trigrams into buckets. Keys that share most of their
// trigrams land close together, so the fallback still clusters near-duplicates.
func HashVector(key string, dim int) []float64 {
	if dim <= 0 {
		return nil
	}
	vec := make([]float64, dim)

	padded := []rune(" " + key + " ")
	for i := 0; i+3 <= len(padded); i++ {
		h := xxhash.Sum64String(string(padded[i : i+3]))
		bucket := h % uint64(dim)
		// The top bit picks a sign so collisions partially cancel.
		if h>>63 == 1 {
			vec[bucket]--
		} else {
			vec[bucket]++
		}
	}

	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	if norm == 0 {
		// A key too short for any trigram still gets a stable direction.
		vec[xxhash.Sum64String(key)%uint64(dim)] = 1
		return vec
	}
	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i] /= norm
	}
	return vec
}

// CosineSimilarity returns the cosine of the angle between a and b. Vectors of
// different lengths come from different embedding spaces and score 0, as does
// any zero vector.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
