package interpret

import (
	"context"
	"math"
	"sort"
)

// CosineSimilarity computes the cosine similarity between two float32 vectors.
// Returns a value between -1.0 and 1.0. Returns 0.0 if either vector has zero magnitude
// or the vectors have different lengths.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0.0
	}

	var dot, magA, magB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}

	magA = math.Sqrt(magA)
	magB = math.Sqrt(magB)
	if magA == 0 || magB == 0 {
		return 0.0
	}
	return dot / (magA * magB)
}

// normalize performs in-place L2 normalization of a float32 vector.
func normalize(vec []float32) {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return
	}
	norm := float32(math.Sqrt(sum))
	for i := range vec {
		vec[i] /= norm
	}
}

// Embedder produces dense vectors for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Available() bool
}

// rolePrototypes are the reference phrases pole descriptions are compared
// against.
var rolePrototypes = map[string]string{
	"Victim":     "I feel helpless, hurt and stuck, things happen to me and I cannot change them",
	"Rescuer":    "I have to save and fix others, I take care of them even when they did not ask",
	"Persecutor": "I blame, criticize, attack and control others, it is their fault",
	"Creator":    "I choose my outcomes and create what I want, I grow from challenges",
	"Coach":      "I support others to find their own answers, I ask questions and encourage",
	"Challenger": "I push others to grow by naming hard truths with respect",
}

// nearestRole returns the prototype role whose embedding is most similar to
// vec, with its similarity. Roles are compared in sorted order so ties are
// stable.
func nearestRole(vec []float32, prototypes map[string][]float32) (string, float64) {
	names := make([]string, 0, len(prototypes))
	for name := range prototypes {
		names = append(names, name)
	}
	sort.Strings(names)

	best, bestScore := "", -2.0
	for _, role := range names {
		if score := CosineSimilarity(vec, prototypes[role]); score > bestScore {
			best, bestScore = role, score
		}
	}
	return best, bestScore
}
