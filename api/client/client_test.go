package client_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/memoir/api"
	"github.com/papercomputeco/memoir/api/client"
	"github.com/papercomputeco/memoir/pkg/chat"
	"github.com/papercomputeco/memoir/pkg/llm"
	"github.com/papercomputeco/memoir/pkg/memory"
)

var _ = Describe("Client", func() {
	var (
		ctx     context.Context
		mux     *http.ServeMux
		backend *httptest.Server
		c       *client.Client
	)

	BeforeEach(func() {
		ctx = context.Background()
		mux = http.NewServeMux()
		backend = httptest.NewServer(mux)
		DeferCleanup(backend.Close)
		c = client.New(backend.URL+"/", nil)
	})

	It("posts a chat turn", func() {
		mux.HandleFunc("POST /v1/chat", func(w http.ResponseWriter, r *http.Request) {
			var req api.ChatRequest
			Expect(json.NewDecoder(r.Body).Decode(&req)).To(Succeed())
			Expect(req.UserID).To(Equal("user_123"))
			Expect(req.Message).To(Equal("hi"))
			Expect(req.Images).To(Equal([]string{"https://example.com/cat.png"}))

			_ = json.NewEncoder(w).Encode(chat.TurnResult{Reply: "Hello there.", HistoryLength: 2})
		})

		res, err := c.Chat(ctx, "user_123", "hi", []string{"https://example.com/cat.png"})
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Reply).To(Equal("Hello there."))
		Expect(res.HistoryLength).To(Equal(2))
	})

	It("escapes the user id in history paths", func() {
		mux.HandleFunc("GET /v1/history/{user}", func(w http.ResponseWriter, r *http.Request) {
			Expect(r.PathValue("user")).To(Equal("a b"))
			_ = json.NewEncoder(w).Encode(api.HistoryResponse{UserID: "a b", Length: 0})
		})

		res, err := c.History(ctx, "a b")
		Expect(err).NotTo(HaveOccurred())
		Expect(res.UserID).To(Equal("a b"))
	})

	It("accepts an empty body on reset", func() {
		mux.HandleFunc("DELETE /v1/history/{user}", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		})

		Expect(c.ResetHistory(ctx, "user_123")).To(Succeed())
	})

	It("saves and searches memories", func() {
		mux.HandleFunc("POST /v1/memories", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusAccepted)
			_ = json.NewEncoder(w).Encode(api.SaveMemoryResponse{Status: "queued", Memory: "likes tea"})
		})
		mux.HandleFunc("GET /v1/memories/search", func(w http.ResponseWriter, r *http.Request) {
			Expect(r.URL.Query().Get("user_id")).To(Equal("user_123"))
			Expect(r.URL.Query().Get("query")).To(Equal("tea & cake"))
			_, _ = w.Write([]byte(`{"status":"success","query":"tea & cake","count":1,"memories":["likes tea"]}`))
		})

		saved, err := c.SaveMemory(ctx, "user_123", "likes tea")
		Expect(err).NotTo(HaveOccurred())
		Expect(saved.Status).To(Equal("queued"))

		found, err := c.SearchMemories(ctx, "user_123", "tea & cake")
		Expect(err).NotTo(HaveOccurred())
		Expect(found.Memories).To(Equal([]string{"likes tea"}))
	})

	It("fetches one memory and reports a missing one as 404", func() {
		mux.HandleFunc("GET /v1/memories/{id}", func(w http.ResponseWriter, r *http.Request) {
			Expect(r.URL.Query().Get("user_id")).To(Equal("user_123"))
			if r.PathValue("id") != "m1" {
				w.WriteHeader(http.StatusNotFound)
				_ = json.NewEncoder(w).Encode(llm.ErrorResponse{Error: "document not found"})
				return
			}
			_ = json.NewEncoder(w).Encode(memory.Fact{ID: "m1", UserID: "user_123", Content: "likes tea"})
		})

		fact, err := c.GetMemory(ctx, "user_123", "m1")
		Expect(err).NotTo(HaveOccurred())
		Expect(fact.Content).To(Equal("likes tea"))

		_, err = c.GetMemory(ctx, "user_123", "m2")
		Expect(client.IsStatus(err, http.StatusNotFound)).To(BeTrue())
	})

	It("returns a StatusError with the API message", func() {
		mux.HandleFunc("POST /v1/chat", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
			_ = json.NewEncoder(w).Encode(llm.ErrorResponse{Error: "model invocation failed"})
		})

		_, err := c.Chat(ctx, "user_123", "hi", nil)
		Expect(client.IsStatus(err, http.StatusBadGateway)).To(BeTrue())
		Expect(err).To(MatchError(ContainSubstring("model invocation failed")))
	})

	It("reads the message of a search error payload", func() {
		mux.HandleFunc("GET /v1/memories/search", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"status":"error","message":"recall memory: missing user identity"}`))
		})

		_, err := c.SearchMemories(ctx, "", "tea")
		Expect(err).To(MatchError(ContainSubstring("missing user identity")))
	})
})
