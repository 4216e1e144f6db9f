// Package chat runs a complete conversation turn: it loads the user's
// session, wraps the model call in the memory middleware and resolves the
// model's memory tool calls.
package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/papercomputeco/memoir/pkg/eventstream"
	"github.com/papercomputeco/memoir/pkg/history"
	"github.com/papercomputeco/memoir/pkg/llm"
	"github.com/papercomputeco/memoir/pkg/llm/caller"
	"github.com/papercomputeco/memoir/pkg/memory"
	"github.com/papercomputeco/memoir/pkg/metrics"
	"github.com/papercomputeco/memoir/pkg/middleware"
	"github.com/papercomputeco/memoir/pkg/session"
	"github.com/papercomputeco/memoir/pkg/worker"
)

// DefaultMaxToolRounds bounds how many times one turn may call the model
// back with tool results.
const DefaultMaxToolRounds = 4

var (
	// ErrEmptyMessage is returned for a turn with no text and no images.
	ErrEmptyMessage = errors.New("chat: message is empty")

	// ErrNoReply is returned when the model never produced text.
	ErrNoReply = errors.New("chat: model returned no reply")
)

// Config configures an Engine.
type Config struct {
	Caller     caller.Caller
	Sessions   *session.Registry
	Middleware *middleware.Middleware

	// Memory executes the memory tools. Nil turns tools off.
	Memory *memory.Service

	// Pool publishes turn events. Nil skips them.
	Pool      *worker.Pool
	Publisher eventstream.Publisher

	// Model overrides the caller's default model.
	Model string

	// SystemPrompt is a template containing {recall_memories}.
	SystemPrompt string

	// MaxToolRounds defaults to DefaultMaxToolRounds.
	MaxToolRounds int

	Logger  *zap.Logger
	Metrics *metrics.Metrics
}

// Engine runs chat turns.
type Engine struct {
	caller     caller.Caller
	sessions   *session.Registry
	middleware *middleware.Middleware
	memory     *memory.Service
	pool       *worker.Pool
	publisher  eventstream.Publisher
	model      string
	prompt     string
	maxRounds  int
	tracer     trace.Tracer
	logger     *zap.Logger
	metrics    *metrics.Metrics
}

// TurnResult is what a turn hands back to the client.
type TurnResult struct {
	Reply          string `json:"reply"`
	RecallMemories string `json:"recall_memories"`
	HistoryLength  int    `json:"history_length"`
	Retained       int    `json:"retained"`
}

func NewEngine(cfg Config) (*Engine, error) {
	if cfg.Caller == nil || cfg.Sessions == nil || cfg.Middleware == nil {
		return nil, errors.New("chat: caller, sessions and middleware are required")
	}
	if cfg.MaxToolRounds <= 0 {
		cfg.MaxToolRounds = DefaultMaxToolRounds
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &Engine{
		caller:     cfg.Caller,
		sessions:   cfg.Sessions,
		middleware: cfg.Middleware,
		memory:     cfg.Memory,
		pool:       cfg.Pool,
		publisher:  cfg.Publisher,
		model:      cfg.Model,
		prompt:     cfg.SystemPrompt,
		maxRounds:  cfg.MaxToolRounds,
		tracer:     otel.Tracer("github.com/papercomputeco/memoir/pkg/chat"),
		logger:     cfg.Logger.With(zap.String("component", "chat")),
		metrics:    cfg.Metrics,
	}, nil
}

// Turn runs one user turn end to end. Turns for the same user run one at a
// time. A model failure fails the turn and leaves the conversation as it was.
func (e *Engine) Turn(ctx context.Context, userID, text string, images []string) (*TurnResult, error) {
	if userID == "" {
		return nil, history.ErrMissingUserID
	}

	input := llm.NewImageMessage(text, images...)
	if !input.Retained() && len(input.Content) == 1 {
		return nil, ErrEmptyMessage
	}

	ctx, span := e.tracer.Start(ctx, "chat.turn",
		trace.WithAttributes(attribute.String("user.id", userID)))
	defer span.End()

	start := time.Now()
	unlock := e.sessions.Lock(userID)
	defer unlock()

	hist, err := e.sessions.Get(ctx, userID)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	turn := middleware.TurnConfig{UserID: userID, History: hist}
	state, err := e.middleware.BeforeModel(ctx, turn, []llm.Message{input})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	reply, err := e.converse(ctx, state)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.logger.Error("turn failed", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}

	appended, err := e.middleware.AfterModel(ctx, turn, state)
	if err != nil {
		return nil, err
	}

	elapsed := time.Since(start)
	e.metrics.ObserveTurn(elapsed)
	e.publishTurn(userID, appended, hist.Len(), elapsed)

	span.SetAttributes(attribute.Int("messages.retained", len(appended)))
	return &TurnResult{
		Reply:          reply,
		RecallMemories: state.RecallMemories,
		HistoryLength:  hist.Len(),
		Retained:       len(appended),
	}, nil
}

// converse calls the model until it answers without tool calls, appending
// every model and tool message to state. After the last tool round the model
// is called once more with tool use disabled so it has to answer in text.
func (e *Engine) converse(ctx context.Context, state *middleware.TurnState) (string, error) {
	system := RenderSystemPrompt(e.prompt, state.RecallMemories)

	for round := 0; ; round++ {
		req := &llm.ChatRequest{
			Model:    e.model,
			System:   system,
			Messages: state.Messages,
		}
		final := e.memory == nil || round >= e.maxRounds
		if e.memory != nil {
			// Tool definitions stay while the messages hold tool_use blocks.
			req.Tools = MemoryTools()
			if final {
				req.ToolChoice = llm.ToolChoiceNone
			}
		}

		resp, err := e.caller.Chat(ctx, req)
		if err != nil {
			return "", err
		}

		msg := resp.Message
		msg.Role = llm.RoleAssistant

		calls := msg.ToolCalls()
		if final || len(calls) == 0 {
			// Unanswered tool calls are dropped.
			msg = msg.WithoutToolCalls()
			state.Messages = append(state.Messages, msg)

			reply := msg.Text()
			if reply == "" {
				return "", fmt.Errorf("%w: %w", caller.ErrModel, ErrNoReply)
			}
			return reply, nil
		}
		state.Messages = append(state.Messages, msg)

		for _, call := range calls {
			out, isErr := e.runTool(ctx, state.UserID, call)
			e.logger.Debug("tool executed",
				zap.String("user_id", state.UserID),
				zap.String("tool", call.ToolName),
				zap.Bool("error", isErr),
			)
			state.Messages = append(state.Messages, llm.Message{
				Role: llm.RoleTool,
				Content: []llm.ContentBlock{{
					Type:         llm.BlockToolResult,
					ToolResultID: call.ToolUseID,
					ToolOutput:   out,
					IsError:      isErr,
				}},
			})
		}
	}
}

func (e *Engine) publishTurn(userID string, appended []llm.Message, length int, elapsed time.Duration) {
	if e.pool == nil || e.publisher == nil || len(appended) == 0 {
		return
	}

	ids := make([]string, 0, len(appended))
	for _, m := range appended {
		ids = append(ids, m.ID)
	}
	event := eventstream.NewTurnPersistedEvent(userID, eventstream.TurnPersisted{
		MessageIDs:    ids,
		Retained:      len(appended),
		HistoryLength: length,
		Model:         e.model,
		DurationMs:    elapsed.Milliseconds(),
	})

	publisher := e.publisher
	e.pool.Enqueue(worker.Task{
		Name:   "publish_turn",
		UserID: userID,
		Run: func(ctx context.Context) error {
			return publisher.Publish(ctx, event)
		},
	})
}
