package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/papercomputeco/memoir/pkg/llm"
	"github.com/papercomputeco/memoir/pkg/memory"
)

const (
	ToolSaveRecallMemory     = "save_recall_memory"
	ToolSearchRecallMemories = "search_recall_memories"
)

var errUnknownTool = errors.New("unknown tool")

// MemoryTools are the tool definitions offered to the model. The user id is
// never a tool argument: it always comes from the turn.
func MemoryTools() []llm.Tool {
	return []llm.Tool{
		{
			Name:        ToolSaveRecallMemory,
			Description: "Save one important, condensed fact about the user to long-term memory. Example: 'The user is called An and is planning a trip to Thailand.'",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"memory": map[string]any{
						"type":        "string",
						"description": "The fact to remember.",
					},
				},
				"required": []string{"memory"},
			},
		},
		{
			Name:        ToolSearchRecallMemories,
			Description: "Search long-term memory for facts related to the current topic.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query": map[string]any{
						"type":        "string",
						"description": "What to look for.",
					},
				},
				"required": []string{"query"},
			},
		},
	}
}

// runTool executes one tool_use block for userID and returns the tool
// output. Failures become an error output for the model, never a turn error.
func (e *Engine) runTool(ctx context.Context, userID string, call llm.ContentBlock) (string, bool) {
	switch call.ToolName {
	case ToolSaveRecallMemory:
		ack, err := e.memory.Save(ctx, userID, stringArg(call.ToolInput, "memory"))
		if err != nil {
			return fmt.Sprintf("Error: could not save the memory: %v", err), true
		}
		return ack.Message(), false

	case ToolSearchRecallMemories:
		res, err := e.memory.Search(ctx, userID, stringArg(call.ToolInput, "query"))
		if err != nil {
			return memory.ErrorPayload(err), true
		}
		return res.JSON(), false

	default:
		return fmt.Sprintf("Error: %v: %s", errUnknownTool, call.ToolName), true
	}
}

func stringArg(input map[string]any, key string) string {
	v, _ := input[key].(string)
	return strings.TrimSpace(v)
}
