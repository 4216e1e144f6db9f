package mcp

import (
	"context"
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/memoir/pkg/logger"
	"github.com/papercomputeco/memoir/pkg/memory"
	testutils "github.com/papercomputeco/memoir/pkg/utils/test"
)

func resultText(res *mcp.CallToolResult) string {
	Expect(res.Content).To(HaveLen(1))
	text, ok := res.Content[0].(*mcp.TextContent)
	Expect(ok).To(BeTrue())
	return text.Text
}

var _ = Describe("MCP Server", func() {
	var (
		ctx     context.Context
		vectors *testutils.MockVectorDriver
		svc     *memory.Service
		server  *Server
	)

	BeforeEach(func() {
		ctx = context.Background()
		vectors = testutils.NewMockVectorDriver()

		var err error
		svc, err = memory.NewService(memory.Config{
			VectorDriver: vectors,
			Embedder:     testutils.NewMockEmbedder(),
			Mode:         memory.SaveModeSync,
			Logger:       logger.Nop(),
		})
		Expect(err).NotTo(HaveOccurred())

		server, err = NewServer(Config{Memory: svc, Logger: logger.Nop()})
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("NewServer", func() {
		It("requires a memory service", func() {
			_, err := NewServer(Config{Logger: logger.Nop()})
			Expect(err).To(MatchError(ContainSubstring("memory service is required")))
		})

		It("requires a logger", func() {
			_, err := NewServer(Config{Memory: svc})
			Expect(err).To(MatchError(ContainSubstring("logger is required")))
		})

		It("builds an empty server in noop mode", func() {
			noop, err := NewServer(Config{Noop: true})
			Expect(err).NotTo(HaveOccurred())
			Expect(noop.Handler()).NotTo(BeNil())
		})

		It("returns an HTTP handler", func() {
			Expect(server.Handler()).NotTo(BeNil())
		})
	})

	Describe("save_recall_memory", func() {
		It("rejects a missing user id", func() {
			res, _, err := server.handleSave(ctx, nil, SaveInput{Memory: "likes tea"})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.IsError).To(BeTrue())
			Expect(resultText(res)).To(Equal("user_id is required"))
		})

		It("stores the fact", func() {
			res, out, err := server.handleSave(ctx, nil, SaveInput{UserID: "user_123", Memory: "likes tea"})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.IsError).To(BeFalse())
			Expect(out.ID).NotTo(BeEmpty())
			Expect(resultText(res)).To(Equal("Memory accepted and will be remembered: 'likes tea'"))
		})

		It("reports storage failures", func() {
			vectors.FailAdd = true
			res, _, err := server.handleSave(ctx, nil, SaveInput{UserID: "user_123", Memory: "likes tea"})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.IsError).To(BeTrue())
		})
	})

	Describe("search_recall_memories", func() {
		It("returns the error payload for a missing user id", func() {
			res, _, err := server.handleSearch(ctx, nil, SearchInput{Query: "tea"})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.IsError).To(BeTrue())

			var payload map[string]any
			Expect(json.Unmarshal([]byte(resultText(res)), &payload)).To(Succeed())
			Expect(payload["status"]).To(Equal("error"))
			Expect(payload["message"]).NotTo(BeEmpty())
		})

		It("returns an empty success payload when nothing matches", func() {
			res, out, err := server.handleSearch(ctx, nil, SearchInput{UserID: "user_123", Query: "tea"})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.IsError).To(BeFalse())
			Expect(out.Count).To(BeZero())
			Expect(out.Memories).To(BeEmpty())
			Expect(out.Status).To(Equal("success"))
		})

		It("finds stored facts for the user only", func() {
			_, err := svc.Save(ctx, "user_123", "likes green tea")
			Expect(err).NotTo(HaveOccurred())
			_, err = svc.Save(ctx, "user_456", "likes coffee")
			Expect(err).NotTo(HaveOccurred())

			res, out, err := server.handleSearch(ctx, nil, SearchInput{UserID: "user_123", Query: "likes green tea"})
			Expect(err).NotTo(HaveOccurred())
			Expect(out.Memories).To(Equal([]string{"likes green tea"}))

			var payload map[string]any
			Expect(json.Unmarshal([]byte(resultText(res)), &payload)).To(Succeed())
			Expect(payload["count"]).To(BeNumerically("==", 1))
		})
	})
})
