// Package middleware runs around every model call in a chat turn. Before the
// model, it merges the user's stored conversation with the fresh input and
// looks up recall memories; after the model, it persists what the turn added
// and schedules a summarization check.
package middleware

import (
	"context"
	"errors"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/papercomputeco/memoir/pkg/history"
	"github.com/papercomputeco/memoir/pkg/llm"
	"github.com/papercomputeco/memoir/pkg/memory"
	"github.com/papercomputeco/memoir/pkg/worker"
)

const instrumentationName = "github.com/papercomputeco/memoir/pkg/middleware"

// recallWindow is how many trailing messages form the recall query.
const recallWindow = 5

const (
	// NoMemoriesPlaceholder is the recall text when nothing is stored.
	NoMemoriesPlaceholder = "No memories stored yet."

	// UnavailablePlaceholder is the recall text when the lookup failed.
	UnavailablePlaceholder = "Long-term memory is unavailable right now."
)

// ErrMissingTurnConfig is returned when a turn has no user or history.
var ErrMissingTurnConfig = errors.New("middleware: turn config requires a user id and a history manager")

// TurnConfig is supplied by the caller for one turn.
type TurnConfig struct {
	UserID  string
	History *history.Manager
}

func (c TurnConfig) validate() error {
	if c.UserID == "" || c.History == nil {
		return ErrMissingTurnConfig
	}
	return nil
}

// TurnState is built by BeforeModel and threaded through the turn.
type TurnState struct {
	UserID string

	// Messages is the stored conversation followed by this turn's messages.
	// The engine appends model and tool messages here.
	Messages []llm.Message

	// Input is the fresh input the turn started with.
	Input []llm.Message

	// HistoryLen is the conversation length when the turn started. Everything
	// in Messages past it is new.
	HistoryLen int

	// RecallMemories is the rendered recall text (or a placeholder).
	RecallMemories string
}

// NewMessages returns the messages this turn added.
func (s *TurnState) NewMessages() []llm.Message {
	if s.HistoryLen >= len(s.Messages) {
		return nil
	}
	return s.Messages[s.HistoryLen:]
}

// Config configures the Middleware.
type Config struct {
	// Memory answers recall lookups. Nil reports recall as unavailable.
	Memory *memory.Service

	// Pool runs summarization checks. Nil disables them.
	Pool *worker.Pool

	Logger *zap.Logger
}

// Middleware holds the before and after model hooks.
type Middleware struct {
	memory *memory.Service
	pool   *worker.Pool
	tracer trace.Tracer
	logger *zap.Logger
}

func New(cfg Config) *Middleware {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Middleware{
		memory: cfg.Memory,
		pool:   cfg.Pool,
		tracer: otel.Tracer(instrumentationName),
		logger: cfg.Logger.With(zap.String("component", "middleware")),
	}
}

// BeforeModel prepares the turn: it snapshots the conversation, appends the
// input and fills in recall memories. Recall failures never fail the turn.
func (m *Middleware) BeforeModel(ctx context.Context, cfg TurnConfig, input []llm.Message) (*TurnState, error) {
	ctx, span := m.tracer.Start(ctx, "middleware.before_model",
		trace.WithAttributes(attribute.String("user.id", cfg.UserID)))
	defer span.End()

	if err := cfg.validate(); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	stored := cfg.History.Messages()
	state := &TurnState{
		UserID:     cfg.UserID,
		Messages:   append(stored, input...),
		Input:      input,
		HistoryLen: len(stored),
	}

	query := llm.BufferString(llm.Last(state.Messages, recallWindow))
	if strings.TrimSpace(query) == "" && len(input) > 0 {
		query = input[len(input)-1].Text()
	}

	state.RecallMemories = m.recall(ctx, cfg.UserID, query)

	span.SetAttributes(
		attribute.Int("history.length", state.HistoryLen),
		attribute.Int("input.length", len(input)),
	)
	return state, nil
}

func (m *Middleware) recall(ctx context.Context, userID, query string) string {
	if m.memory == nil {
		return UnavailablePlaceholder
	}

	res, err := m.memory.Search(ctx, userID, query)
	if err != nil {
		m.logger.Warn("recall lookup failed",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		trace.SpanFromContext(ctx).RecordError(err)
		return UnavailablePlaceholder
	}

	if res.Status != memory.StatusSuccess {
		return NoMemoriesPlaceholder
	}

	lines := make([]string, 0, len(res.Memories))
	for _, content := range res.Contents() {
		lines = append(lines, "- "+content)
	}
	return strings.Join(lines, "\n")
}

// AfterModel appends the turn's new messages to the conversation and queues
// a summarization check. It returns the messages that were kept.
func (m *Middleware) AfterModel(ctx context.Context, cfg TurnConfig, state *TurnState) ([]llm.Message, error) {
	ctx, span := m.tracer.Start(ctx, "middleware.after_model",
		trace.WithAttributes(attribute.String("user.id", cfg.UserID)))
	defer span.End()

	if err := cfg.validate(); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if state == nil {
		return nil, nil
	}

	appended := cfg.History.Append(ctx, state.NewMessages())
	span.SetAttributes(attribute.Int("messages.appended", len(appended)))
	if len(appended) == 0 {
		return nil, nil
	}

	m.scheduleSummary(cfg)
	return appended, nil
}

func (m *Middleware) scheduleSummary(cfg TurnConfig) {
	if m.pool == nil {
		return
	}

	h := cfg.History
	ok := m.pool.Enqueue(worker.Task{
		Name:   "summarize",
		UserID: cfg.UserID,
		Run: func(ctx context.Context) error {
			_, err := h.SummarizeIfNeeded(ctx)
			return err
		},
	})
	if !ok {
		m.logger.Warn("summarization check skipped", zap.String("user_id", cfg.UserID))
	}
}
