package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"regexp"
	"strings"
)

// HashingEmbedder maps words into a fixed number of buckets and L2-normalises
// the counts. Similarity is purely lexical.
type HashingEmbedder struct {
	dimension    int
	tokenPattern *regexp.Regexp
}

// NewHashingEmbedder creates an embedder with dimension buckets, 256 when not positive.
func NewHashingEmbedder(dimension int) *HashingEmbedder {
	if dimension <= 0 {
		dimension = 256
	}
	return &HashingEmbedder{
		dimension:    dimension,
		tokenPattern: regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*|\p{N}+`),
	}
}

func (h *HashingEmbedder) Dimension() int { return h.dimension }

func (h *HashingEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = h.embedOne(text)
	}
	return vectors, nil
}

func (h *HashingEmbedder) embedOne(text string) []float32 {
	vec := make([]float32, h.dimension)
	for _, tok := range h.tokenPattern.FindAllString(strings.ToLower(text), -1) {
		f := fnv.New32a()
		_, _ = f.Write([]byte(tok))
		vec[f.Sum32()%uint32(h.dimension)]++
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec
}
