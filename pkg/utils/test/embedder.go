package testutils

import (
	"context"
	"fmt"
	"hash/fnv"
	"math/rand/v2"
	"sync"
)

// MockEmbedderDimensions is the size of the vectors MockEmbedder derives.
const MockEmbedderDimensions = 32

// MockEmbedder is a test embedder that returns predictable embeddings.
// Unless overridden in Embeddings, equal texts map to equal vectors and
// different texts map to nearly orthogonal ones.
type MockEmbedder struct {
	mu         sync.Mutex
	Embeddings map[string][]float32

	// FailOn causes Embed to return an error when the input text matches
	FailOn string

	calls int
}

func NewMockEmbedder() *MockEmbedder {
	return &MockEmbedder{
		Embeddings: make(map[string][]float32),
	}
}

func (m *MockEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++

	if m.FailOn != "" && text == m.FailOn {
		return nil, fmt.Errorf("mock embedding failure for: %s", text)
	}

	if emb, ok := m.Embeddings[text]; ok {
		return emb, nil
	}

	return DeterministicEmbedding(text), nil
}

// Calls reports how many times Embed ran.
func (m *MockEmbedder) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *MockEmbedder) Close() error {
	return nil
}

// DeterministicEmbedding seeds a PRNG from the text hash and draws a vector
// with components in [-1, 1).
func DeterministicEmbedding(text string) []float32 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	seed := h.Sum64()
	r := rand.New(rand.NewPCG(seed, seed>>1|1))

	out := make([]float32, MockEmbedderDimensions)
	for i := range out {
		out[i] = float32(r.Float64()*2 - 1)
	}
	return out
}
