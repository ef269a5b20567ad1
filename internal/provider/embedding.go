package provider

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// HashEmbedder is a deterministic feature-hashing embedder used when no
// embedding service is configured. Words and character trigrams are hashed
// into a fixed number of buckets and the vector is L2-normalised, so texts
// sharing vocabulary have a positive cosine similarity.
type HashEmbedder struct {
	dimensions int
}

// NewHashEmbedder creates a hashing embedder of the given width
func NewHashEmbedder(dimensions int) *HashEmbedder {
	if dimensions <= 0 {
		dimensions = EmbeddingDimensions
	}
	return &HashEmbedder{dimensions: dimensions}
}

func (e *HashEmbedder) Name() string    { return "hash" }
func (e *HashEmbedder) Dimensions() int { return e.dimensions }

// Embed never fails
func (e *HashEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vec := make([]float32, e.dimensions)

	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		vec[e.bucket("w:"+w)] += 1.0

		runes := []rune(w)
		for i := 0; i+3 <= len(runes); i++ {
			vec[e.bucket("t:"+string(runes[i:i+3]))] += 0.5
		}
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		scale := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= scale
		}
	}
	return vec, nil
}

func (e *HashEmbedder) bucket(feature string) int {
	h := fnv.New32a()
	h.Write([]byte(feature))
	return int(h.Sum32() % uint32(e.dimensions))
}

// CosineSimilarity returns the cosine similarity of two vectors, or 0 when
// the lengths differ or either vector is zero.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
