package api

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/papercomputeco/memoir/pkg/chat"
	"github.com/papercomputeco/memoir/pkg/history"
	"github.com/papercomputeco/memoir/pkg/llm"
	"github.com/papercomputeco/memoir/pkg/llm/caller"
	"github.com/papercomputeco/memoir/pkg/memory"
	"github.com/papercomputeco/memoir/pkg/vector"
	"github.com/papercomputeco/memoir/pkg/worker"
)

// ChatRequest is the body of POST /v1/chat.
type ChatRequest struct {
	UserID  string   `json:"user_id"`
	Message string   `json:"message"`
	Images  []string `json:"images,omitempty"`
}

// HistoryResponse contains the conversation a user currently has.
type HistoryResponse struct {
	UserID   string        `json:"user_id"`
	Messages []llm.Message `json:"messages"`
	Length   int           `json:"length"`
}

// SaveMemoryRequest is the body of POST /v1/memories.
type SaveMemoryRequest struct {
	UserID  string `json:"user_id"`
	Content string `json:"content"`
}

// SaveMemoryResponse acknowledges a saved or queued memory.
type SaveMemoryResponse struct {
	Status   string   `json:"status"`
	ID       string   `json:"id,omitempty"`
	Replaced []string `json:"replaced,omitempty"`
	Memory   string   `json:"memory"`
}

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// handleChat runs one chat turn for the requesting user.
func (s *Server) handleChat(c *fiber.Ctx) error {
	var req ChatRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: "invalid request body"})
	}

	res, err := s.config.Engine.Turn(c.Context(), req.UserID, req.Message, req.Images)
	if err != nil {
		return s.fail(c, "chat turn failed", err)
	}

	return c.JSON(res)
}

// handleGetHistory returns the conversation the model would see next turn.
func (s *Server) handleGetHistory(c *fiber.Ctx) error {
	userID := c.Params("user_id")

	hist, err := s.config.Sessions.Get(c.Context(), userID)
	if err != nil {
		return s.fail(c, "history lookup failed", err)
	}

	msgs := hist.Messages()
	if msgs == nil {
		msgs = []llm.Message{}
	}

	return c.JSON(HistoryResponse{
		UserID:   userID,
		Messages: msgs,
		Length:   len(msgs),
	})
}

// handleDeleteHistory drops the cached conversation so the next turn
// reloads it from durable storage.
func (s *Server) handleDeleteHistory(c *fiber.Ctx) error {
	userID := c.Params("user_id")

	unlock := s.config.Sessions.Lock(userID)
	defer unlock()

	hist, err := s.config.Sessions.Get(c.Context(), userID)
	if err != nil {
		return s.fail(c, "history invalidate failed", err)
	}
	if err := hist.Invalidate(c.Context()); err != nil {
		return s.fail(c, "history invalidate failed", err)
	}
	s.config.Sessions.Forget(userID)

	return c.SendStatus(fiber.StatusNoContent)
}

// handleSaveMemory stores a fact for a user.
func (s *Server) handleSaveMemory(c *fiber.Ctx) error {
	var req SaveMemoryRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: "invalid request body"})
	}

	ack, err := s.config.Memory.Save(c.Context(), req.UserID, req.Content)
	if err != nil {
		return s.fail(c, "memory save failed", err)
	}

	if ack.Queued {
		return c.Status(fiber.StatusAccepted).JSON(SaveMemoryResponse{
			Status: "queued",
			Memory: ack.Memory,
		})
	}

	return c.Status(fiber.StatusCreated).JSON(SaveMemoryResponse{
		Status:   "saved",
		ID:       ack.ID,
		Replaced: ack.Replaced,
		Memory:   ack.Memory,
	})
}

// handleSearchMemories searches a user's facts. The body is the same JSON
// payload the search tool hands the model.
func (s *Server) handleSearchMemories(c *fiber.Ctx) error {
	userID := c.Query("user_id")
	query := c.Query("query")

	res, err := s.config.Memory.Search(c.Context(), userID, query)
	if err != nil {
		c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		return c.Status(statusFor(err)).SendString(memory.ErrorPayload(err))
	}

	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.SendString(res.JSON())
}

// handleGetMemory returns one of the user's facts by id.
func (s *Server) handleGetMemory(c *fiber.Ctx) error {
	fact, err := s.config.Memory.Get(c.Context(), c.Query("user_id"), c.Params("id"))
	if err != nil {
		return s.fail(c, "memory lookup failed", err)
	}
	return c.JSON(fact)
}

func (s *Server) fail(c *fiber.Ctx, msg string, err error) error {
	status := statusFor(err)
	if status >= fiber.StatusInternalServerError {
		s.logger.Error(msg, zap.Error(err))
	}
	return c.Status(status).JSON(llm.ErrorResponse{Error: err.Error()})
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, history.ErrMissingUserID),
		errors.Is(err, memory.ErrMissingIdentity),
		errors.Is(err, memory.ErrEmptyContent),
		errors.Is(err, chat.ErrEmptyMessage):
		return fiber.StatusBadRequest
	case errors.Is(err, vector.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, caller.ErrModel):
		return fiber.StatusBadGateway
	case errors.Is(err, worker.ErrQueueFull),
		errors.Is(err, worker.ErrPoolClosed),
		errors.Is(err, memory.ErrQueueFull):
		return fiber.StatusServiceUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return fiber.StatusRequestTimeout
	default:
		return fiber.StatusInternalServerError
	}
}
