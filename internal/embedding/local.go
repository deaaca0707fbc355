package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// LocalProvider produces embeddings by feature hashing: each token is
// hashed into one of the vector's buckets with a hash-derived sign, and
// the result is L2-normalized. No model download, no network, fully
// deterministic. Paraphrase recall is weaker than a learned model's, but
// identical and near-identical phrasings score high, which is the common
// case for repeated questions against the same database.
type LocalProvider struct {
	dimensions int
}

// NewLocalProvider creates a local feature-hashing provider
func NewLocalProvider(dimensions int) *LocalProvider {
	if dimensions <= 0 {
		dimensions = 384
	}

	return &LocalProvider{dimensions: dimensions}
}

// Embed generates a deterministic embedding for the given text
func (p *LocalProvider) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, p.dimensions)

	for _, token := range tokenize(text) {
		h := fnv.New64a()
		_, _ = h.Write([]byte(token))
		sum := h.Sum64()

		bucket := int(sum % uint64(p.dimensions)) //nolint:gosec // dimensions > 0

		sign := float32(1)
		if sum&(1<<63) != 0 {
			sign = -1
		}

		vec[bucket] += sign
	}

	normalize(vec)

	return vec, nil
}

// Dimensions returns the embedding dimensions
func (p *LocalProvider) Dimensions() int {
	return p.dimensions
}

// Name returns the provider name
func (p *LocalProvider) Name() string {
	return "local:feature-hash"
}

// tokenize lowercases and splits on anything that is not a letter or digit
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// normalize scales the vector to unit length in place
func normalize(vec []float32) {
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}

	if norm == 0 {
		return
	}

	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
}
