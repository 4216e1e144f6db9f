package ollama_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/memoir/pkg/embeddings/ollama"
	"github.com/papercomputeco/memoir/pkg/retry"
	"github.com/papercomputeco/memoir/pkg/vector"
)

var fastRetry = retry.Policy{Retries: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}

var _ = Describe("Embedder", func() {
	It("posts the model and input to /api/embed", func() {
		var got map[string]string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			Expect(r.URL.Path).To(Equal("/api/embed"))
			_ = json.NewDecoder(r.Body).Decode(&got)
			json.NewEncoder(w).Encode(map[string]any{"embeddings": [][]float32{{0.1, 0.2}}})
		}))
		defer server.Close()

		e, err := ollama.NewEmbedder(ollama.EmbedderConfig{BaseURL: server.URL, Retry: fastRetry})
		Expect(err).NotTo(HaveOccurred())

		emb, err := e.Embed(context.Background(), "likes tea")
		Expect(err).NotTo(HaveOccurred())
		Expect(emb).To(Equal([]float32{0.1, 0.2}))
		Expect(got["model"]).To(Equal(ollama.DefaultEmbeddingModel))
		Expect(got["input"]).To(Equal("likes tea"))
	})

	It("retries throttled requests", func() {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) == 1 {
				http.Error(w, "slow down", http.StatusTooManyRequests)
				return
			}
			json.NewEncoder(w).Encode(map[string]any{"embeddings": [][]float32{{1}}})
		}))
		defer server.Close()

		e, _ := ollama.NewEmbedder(ollama.EmbedderConfig{BaseURL: server.URL, Retry: fastRetry})
		_, err := e.Embed(context.Background(), "x")
		Expect(err).NotTo(HaveOccurred())
		Expect(calls.Load()).To(Equal(int32(2)))
	})

	It("wraps failures in ErrEmbedding without retrying client errors", func() {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			http.Error(w, "bad model", http.StatusBadRequest)
		}))
		defer server.Close()

		e, _ := ollama.NewEmbedder(ollama.EmbedderConfig{BaseURL: server.URL, Retry: fastRetry})
		_, err := e.Embed(context.Background(), "x")
		Expect(err).To(MatchError(vector.ErrEmbedding))
		Expect(calls.Load()).To(Equal(int32(1)))
	})
})
