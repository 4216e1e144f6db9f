package chroma_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/papercomputeco/memoir/pkg/vector"
	"github.com/papercomputeco/memoir/pkg/vector/chroma"
)

const collectionsPath = "/api/v2/tenants/default_tenant/databases/default_database/collections"

var _ = Describe("Driver", func() {
	var logger *zap.Logger

	BeforeEach(func() {
		logger = zap.NewNop()
	})

	Describe("NewDriver", func() {
		It("should return an error when URL is empty", func() {
			_, err := chroma.NewDriver(chroma.Config{URL: ""}, logger)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("chroma URL is required"))
		})

		It("should create a cosine collection when none exists", func() {
			var created map[string]any
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method == http.MethodGet {
					http.Error(w, "not found", http.StatusNotFound)
					return
				}
				Expect(json.NewDecoder(r.Body).Decode(&created)).To(Succeed())
				json.NewEncoder(w).Encode(map[string]string{"id": "new-id", "name": "recall_memories"})
			}))
			defer server.Close()

			_, err := chroma.NewDriver(chroma.Config{URL: server.URL}, logger)
			Expect(err).NotTo(HaveOccurred())
			Expect(created["name"]).To(Equal(chroma.DefaultCollectionName))
			Expect(created["metadata"]).To(HaveKeyWithValue("hnsw:space", "cosine"))
		})

		It("should succeed after retrying when Chroma becomes available", func() {
			var attempts atomic.Int32

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if attempts.Add(1) <= 3 {
					http.Error(w, "service unavailable", http.StatusServiceUnavailable)
					return
				}
				w.Header().Set("Content-Type", "application/json")
				json.NewEncoder(w).Encode(map[string]string{"id": "test-collection-id", "name": "recall_memories"})
			}))
			defer server.Close()

			driver, err := chroma.NewDriver(chroma.Config{
				URL:           server.URL,
				MaxRetries:    5,
				RetryDelay:    time.Millisecond,
				MaxRetryDelay: 5 * time.Millisecond,
			}, logger)
			Expect(err).NotTo(HaveOccurred())
			Expect(driver).NotTo(BeNil())
			Expect(attempts.Load()).To(Equal(int32(4)))
		})

		It("should return an error after exhausting all retries", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "service unavailable", http.StatusServiceUnavailable)
			}))
			defer server.Close()

			_, err := chroma.NewDriver(chroma.Config{
				URL:           server.URL,
				MaxRetries:    3,
				RetryDelay:    time.Millisecond,
				MaxRetryDelay: 5 * time.Millisecond,
			}, logger)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("after 4 attempts"))
		})
	})

	Describe("Interface compliance", func() {
		It("should implement vector.Driver interface", func() {
			var _ vector.Driver = (*chroma.Driver)(nil)
		})
	})

	Describe("operations", func() {
		var (
			server   *httptest.Server
			driver   *chroma.Driver
			lastBody map[string]any
			lastPath string
		)

		BeforeEach(func() {
			server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				if r.Method == http.MethodGet {
					json.NewEncoder(w).Encode(map[string]string{"id": "cid", "name": "recall_memories"})
					return
				}

				lastPath = r.URL.Path
				lastBody = map[string]any{}
				_ = json.NewDecoder(r.Body).Decode(&lastBody)

				switch {
				case strings.HasSuffix(r.URL.Path, "/query"):
					json.NewEncoder(w).Encode(map[string]any{
						"ids":       [][]string{{"m1", "m2"}},
						"distances": [][]float32{{0.02, 0.5}},
						"metadatas": [][]map[string]any{{{"user_id": "alice"}, {"user_id": "alice"}}},
						"documents": [][]string{{"likes tea", "likes coffee"}},
					})
				default:
					w.Write([]byte("{}"))
				}
			}))

			var err error
			driver, err = chroma.NewDriver(chroma.Config{URL: server.URL}, logger)
			Expect(err).NotTo(HaveOccurred())
		})

		AfterEach(func() {
			server.Close()
		})

		It("upserts documents with user metadata and content", func() {
			err := driver.Add(context.Background(), []vector.Document{
				{ID: "m1", UserID: "alice", Content: "likes tea", Embedding: []float32{1, 0}},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(lastPath).To(Equal(collectionsPath + "/cid/upsert"))
			Expect(lastBody["documents"]).To(ConsistOf("likes tea"))
		})

		It("filters queries by user and converts distance to similarity", func() {
			results, err := driver.Query(context.Background(), []float32{1, 0}, 5, vector.Filter{UserID: "alice"})
			Expect(err).NotTo(HaveOccurred())
			Expect(lastBody["where"]).To(HaveKeyWithValue("user_id", "alice"))

			Expect(results).To(HaveLen(2))
			Expect(results[0].Content).To(Equal("likes tea"))
			Expect(results[0].UserID).To(Equal("alice"))
			Expect(results[0].Score).To(BeNumerically("~", 0.98, 1e-6))
			Expect(results[1].Score).To(BeNumerically("~", 0.5, 1e-6))
		})

		It("deletes by id", func() {
			Expect(driver.Delete(context.Background(), []string{"m1"})).To(Succeed())
			Expect(lastPath).To(Equal(collectionsPath + "/cid/delete"))
			Expect(lastBody["ids"]).To(ConsistOf("m1"))
		})
	})
})
