package middleware_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/papercomputeco/memoir/pkg/history"
	"github.com/papercomputeco/memoir/pkg/llm"
	"github.com/papercomputeco/memoir/pkg/logger"
	"github.com/papercomputeco/memoir/pkg/memory"
	"github.com/papercomputeco/memoir/pkg/middleware"
	testutils "github.com/papercomputeco/memoir/pkg/utils/test"
	"github.com/papercomputeco/memoir/pkg/worker"
)

var _ = Describe("Middleware", func() {
	const userID = "user_123"

	var (
		ctx     context.Context
		store   *testutils.MockStorage
		kv      *testutils.MockCache
		model   *testutils.MockCaller
		vectors *testutils.MockVectorDriver
		recall  *memory.Service
		pool    *worker.Pool
		hist    *history.Manager
		mw      *middleware.Middleware
		turn    middleware.TurnConfig
	)

	BeforeEach(func() {
		ctx = context.Background()
		store = testutils.NewMockStorage()
		kv = testutils.NewMockCache()
		model = testutils.NewMockCaller("they talked about numbers")
		vectors = testutils.NewMockVectorDriver()

		var err error
		pool, err = worker.NewPool(&worker.Config{
			NumWorkers:   1,
			ResultBuffer: 16,
			Logger:       logger.Nop(),
		})
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(pool.Close)

		recall, err = memory.NewService(memory.Config{
			VectorDriver: vectors,
			Embedder:     testutils.NewMockEmbedder(),
			Mode:         memory.SaveModeSync,
			Logger:       logger.Nop(),
		})
		Expect(err).NotTo(HaveOccurred())

		hist, err = history.NewManager(history.Config{
			UserID:     userID,
			Storage:    store,
			Cache:      kv,
			Summarizer: history.NewSummarizer(model),
			Policy:     history.DefaultPolicy(),
			Logger:     logger.Nop(),
		})
		Expect(err).NotTo(HaveOccurred())

		mw = middleware.New(middleware.Config{Memory: recall, Pool: pool, Logger: logger.Nop()})
		turn = middleware.TurnConfig{UserID: userID, History: hist}
	})

	waitFor := func(name string) worker.Result {
		var res worker.Result
		Eventually(pool.Results()).WithTimeout(2 * time.Second).Should(Receive(&res))
		Expect(res.Name).To(Equal(name))
		return res
	}

	Describe("BeforeModel", func() {
		It("rejects a turn without a user or history", func() {
			_, err := mw.BeforeModel(ctx, middleware.TurnConfig{UserID: userID}, nil)
			Expect(err).To(MatchError(middleware.ErrMissingTurnConfig))

			_, err = mw.BeforeModel(ctx, middleware.TurnConfig{History: hist}, nil)
			Expect(err).To(MatchError(middleware.ErrMissingTurnConfig))
		})

		It("prepends the stored conversation to the input", func() {
			hist.Append(ctx, testutils.Conversation(4))
			input := []llm.Message{llm.NewTextMessage(llm.RoleHuman, "what next?")}

			state, err := mw.BeforeModel(ctx, turn, input)
			Expect(err).NotTo(HaveOccurred())
			Expect(state.HistoryLen).To(Equal(4))
			Expect(testutils.Texts(state.Messages)).To(Equal([]string{
				"message 0", "message 1", "message 2", "message 3", "what next?",
			}))
			Expect(testutils.Texts(state.NewMessages())).To(Equal([]string{"what next?"}))
		})

		It("uses the no memories placeholder when nothing is stored", func() {
			state, err := mw.BeforeModel(ctx, turn, []llm.Message{llm.NewTextMessage(llm.RoleHuman, "hi")})
			Expect(err).NotTo(HaveOccurred())
			Expect(state.RecallMemories).To(Equal(middleware.NoMemoriesPlaceholder))
		})

		It("renders stored facts as a list", func() {
			_, err := recall.Save(ctx, userID, "likes green tea")
			Expect(err).NotTo(HaveOccurred())
			_, err = recall.Save(ctx, "someone_else", "likes coffee")
			Expect(err).NotTo(HaveOccurred())

			state, err := mw.BeforeModel(ctx, turn, []llm.Message{llm.NewTextMessage(llm.RoleHuman, "what do I drink?")})
			Expect(err).NotTo(HaveOccurred())
			Expect(state.RecallMemories).To(Equal("- likes green tea"))
		})

		It("degrades to the unavailable placeholder when recall fails", func() {
			vectors.FailQuery = true

			state, err := mw.BeforeModel(ctx, turn, []llm.Message{llm.NewTextMessage(llm.RoleHuman, "hi")})
			Expect(err).NotTo(HaveOccurred())
			Expect(state.RecallMemories).To(Equal(middleware.UnavailablePlaceholder))
		})

		It("reports recall as unavailable without a memory service", func() {
			bare := middleware.New(middleware.Config{})
			state, err := bare.BeforeModel(ctx, turn, []llm.Message{llm.NewTextMessage(llm.RoleHuman, "hi")})
			Expect(err).NotTo(HaveOccurred())
			Expect(state.RecallMemories).To(Equal(middleware.UnavailablePlaceholder))
		})
	})

	Describe("AfterModel", func() {
		It("persists only the retained messages of the turn", func() {
			hist.Append(ctx, testutils.Conversation(2))
			state, err := mw.BeforeModel(ctx, turn, []llm.Message{llm.NewTextMessage(llm.RoleHuman, "remember I like tea")})
			Expect(err).NotTo(HaveOccurred())

			state.Messages = append(state.Messages,
				testutils.ToolUse("t1", "save_recall_memory", map[string]any{"memory": "likes tea"}),
				testutils.ToolResult("t1", "ok"),
				llm.NewTextMessage(llm.RoleAssistant, "Noted."),
			)

			appended, err := mw.AfterModel(ctx, turn, state)
			Expect(err).NotTo(HaveOccurred())
			Expect(testutils.Texts(appended)).To(Equal([]string{"remember I like tea", "Noted."}))
			Expect(hist.Len()).To(Equal(4))

			rows, err := store.Driver.History(ctx, userID)
			Expect(err).NotTo(HaveOccurred())
			Expect(rows).To(HaveLen(4))

			waitFor("summarize")
		})

		It("does nothing when the turn added no retained messages", func() {
			state, err := mw.BeforeModel(ctx, turn, nil)
			Expect(err).NotTo(HaveOccurred())

			appended, err := mw.AfterModel(ctx, turn, state)
			Expect(err).NotTo(HaveOccurred())
			Expect(appended).To(BeEmpty())
			Consistently(pool.Results()).WithTimeout(100 * time.Millisecond).ShouldNot(Receive())
		})
	})

	It("starts the turn after the twentieth message from a summary", func() {
		hist.Append(ctx, testutils.Conversation(18))

		state, err := mw.BeforeModel(ctx, turn, []llm.Message{llm.NewTextMessage(llm.RoleHuman, "message 18")})
		Expect(err).NotTo(HaveOccurred())
		state.Messages = append(state.Messages, llm.NewTextMessage(llm.RoleAssistant, "message 19"))

		_, err = mw.AfterModel(ctx, turn, state)
		Expect(err).NotTo(HaveOccurred())
		Expect(waitFor("summarize").Err).NotTo(HaveOccurred())

		next, err := mw.BeforeModel(ctx, turn, []llm.Message{llm.NewTextMessage(llm.RoleHuman, "and now?")})
		Expect(err).NotTo(HaveOccurred())
		Expect(next.Messages).To(HaveLen(4))
		Expect(next.Messages[0].Role).To(Equal(llm.RoleSummary))
		Expect(testutils.Texts(next.Messages)).To(Equal([]string{
			history.SummaryPrefix + "they talked about numbers",
			"message 18",
			"message 19",
			"and now?",
		}))
	})

	It("records a span per hook", func() {
		rec := tracetest.NewSpanRecorder()
		tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
		prev := otel.GetTracerProvider()
		otel.SetTracerProvider(tp)
		DeferCleanup(func() { otel.SetTracerProvider(prev) })

		traced := middleware.New(middleware.Config{Memory: recall, Logger: logger.Nop()})
		state, err := traced.BeforeModel(ctx, turn, []llm.Message{llm.NewTextMessage(llm.RoleHuman, "hi")})
		Expect(err).NotTo(HaveOccurred())
		_, err = traced.AfterModel(ctx, turn, state)
		Expect(err).NotTo(HaveOccurred())

		names := []string{}
		for _, s := range rec.Ended() {
			names = append(names, s.Name())
		}
		Expect(names).To(Equal([]string{"middleware.before_model", "middleware.after_model"}))
	})
})
