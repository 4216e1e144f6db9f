package mcp

import (
	"context"
	"errors"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/papercomputeco/memoir/pkg/memory"
)

var (
	saveToolName    = "save_recall_memory"
	saveDescription = "Save one important, condensed fact about a user to long-term memory. Near-duplicates of an existing fact replace it."

	searchToolName    = "search_recall_memories"
	searchDescription = "Search a user's long-term memory for facts related to a topic. Returns a JSON payload with status, query, count and memories."
)

// SaveInput represents the input arguments for the save_recall_memory tool.
type SaveInput struct {
	UserID string `json:"user_id" jsonschema:"the user the fact belongs to"`
	Memory string `json:"memory" jsonschema:"the fact to remember"`
}

// SaveOutput represents the structured output of a save.
type SaveOutput struct {
	Queued   bool     `json:"queued"`
	ID       string   `json:"id,omitempty"`
	Replaced []string `json:"replaced,omitempty"`
	Message  string   `json:"message"`
}

// SearchInput represents the input arguments for the search_recall_memories tool.
type SearchInput struct {
	UserID string `json:"user_id" jsonschema:"the user whose memories are searched"`
	Query  string `json:"query" jsonschema:"what to look for"`
}

// SearchOutput represents the structured output of a search.
type SearchOutput struct {
	Status   string   `json:"status"`
	Query    string   `json:"query"`
	Count    int      `json:"count"`
	Memories []string `json:"memories"`
}

func errorResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}
}

// handleSave processes a save_recall_memory request via MCP.
func (s *Server) handleSave(ctx context.Context, _ *mcp.CallToolRequest, input SaveInput) (*mcp.CallToolResult, SaveOutput, error) {
	if input.UserID == "" {
		return errorResult("user_id is required"), SaveOutput{}, nil
	}

	ack, err := s.config.Memory.Save(ctx, input.UserID, input.Memory)
	if err != nil {
		if !errors.Is(err, memory.ErrEmptyContent) {
			s.config.Logger.Error("mcp save failed", zap.String("user_id", input.UserID), zap.Error(err))
		}
		return errorResult("Failed to save memory: " + err.Error()), SaveOutput{}, nil
	}

	out := SaveOutput{
		Queued:   ack.Queued,
		ID:       ack.ID,
		Replaced: ack.Replaced,
		Message:  ack.Message(),
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: out.Message},
		},
	}, out, nil
}

// handleSearch processes a search_recall_memories request via MCP. The text
// content is the same JSON payload the chat model sees.
func (s *Server) handleSearch(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (*mcp.CallToolResult, SearchOutput, error) {
	if input.UserID == "" {
		return errorResult(memory.ErrorPayload(memory.ErrMissingIdentity)), SearchOutput{}, nil
	}

	res, err := s.config.Memory.Search(ctx, input.UserID, input.Query)
	if err != nil {
		return errorResult(memory.ErrorPayload(err)), SearchOutput{}, nil
	}

	memories := res.Contents()
	if memories == nil {
		memories = []string{}
	}
	out := SearchOutput{
		Status:   string(memory.StatusSuccess),
		Query:    res.Query,
		Count:    len(memories),
		Memories: memories,
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: res.JSON()},
		},
	}, out, nil
}
