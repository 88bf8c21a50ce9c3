package search

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	chromem "github.com/philippgille/chromem-go"
)

// HashDimensions is the vector size of the hashing embedder.
const HashDimensions = 256

// NewEmbedder returns the OpenAI embedding function when apiKey is set and
// the local hashing embedder otherwise.
func NewEmbedder(apiKey string) chromem.EmbeddingFunc {
	if apiKey != "" {
		return chromem.NewEmbeddingFuncOpenAI(apiKey, chromem.EmbeddingModelOpenAI3Small)
	}
	return HashEmbedding
}

// HashEmbedding maps text to a normalized bag-of-words vector using feature
// hashing. It needs no network and gives lexical similarity only.
func HashEmbedding(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, HashDimensions)
	for _, tok := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	}) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(tok))
		sum := h.Sum32()
		sign := float32(1)
		if sum&1 == 1 {
			sign = -1
		}
		vec[(sum>>1)%HashDimensions] += sign
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		// chromem rejects zero vectors when normalizing
		vec[0] = 1
		return vec, nil
	}
	inv := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= inv
	}
	return vec, nil
}
