package vector

import (
	"context"
	"crypto/sha256"
	"math"
	"regexp"
	"strings"
	"sync"
)

const DefaultDimensions = 100

var punctuation = regexp.MustCompile(`[^\w\s]`)

// HashEmbedder derives a pseudo-embedding from a cryptographic hash of
// each token. It is a pure function of the input text, which is what
// retrieval caching and the tests rely on; it is a stand-in for a real
// embedding model, not a semantic one.
type HashEmbedder struct {
	dims int

	mu    sync.RWMutex
	words map[string][]float64
}

func NewHashEmbedder(dims int) *HashEmbedder {
	if dims <= 0 {
		dims = DefaultDimensions
	}
	return &HashEmbedder{
		dims:  dims,
		words: make(map[string][]float64),
	}
}

func (e *HashEmbedder) Dimensions() int {
	return e.dims
}

// Embed lowercases, strips punctuation, splits on whitespace, averages
// the per-token vectors and L2-normalizes the result. Empty input maps
// to the zero vector.
func (e *HashEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	cleaned := punctuation.ReplaceAllString(strings.ToLower(text), "")
	words := strings.Fields(cleaned)

	sum := make([]float64, e.dims)
	if len(words) == 0 {
		return sum, nil
	}

	for _, word := range words {
		vec := e.wordVector(word)
		for i, v := range vec {
			sum[i] += v
		}
	}

	var magnitude float64
	for _, v := range sum {
		magnitude += v * v
	}
	magnitude = math.Sqrt(magnitude)
	if magnitude == 0 {
		return sum, nil
	}
	for i := range sum {
		sum[i] /= magnitude
	}
	return sum, nil
}

// wordVector maps hash bytes into [-1, 1), memoized per word.
func (e *HashEmbedder) wordVector(word string) []float64 {
	e.mu.RLock()
	vec, ok := e.words[word]
	e.mu.RUnlock()
	if ok {
		return vec
	}

	hash := sha256.Sum256([]byte(word))
	vec = make([]float64, e.dims)
	for i := 0; i < e.dims; i++ {
		vec[i] = (float64(hash[i%len(hash)]) - 128) / 128
	}

	e.mu.Lock()
	e.words[word] = vec
	e.mu.Unlock()
	return vec
}
