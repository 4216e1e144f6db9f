// Package testutils holds fakes and fixtures shared by memoir's test suites.
package testutils

import (
	"fmt"

	"github.com/papercomputeco/memoir/pkg/llm"
)

// Conversation builds n alternating human/assistant messages with
// predictable text ("message 0", "message 1", ...).
func Conversation(n int) []llm.Message {
	msgs := make([]llm.Message, 0, n)
	for i := range n {
		role := llm.RoleHuman
		if i%2 == 1 {
			role = llm.RoleAssistant
		}
		msgs = append(msgs, llm.NewTextMessage(role, fmt.Sprintf("message %d", i)))
	}
	return msgs
}

// ToolUse builds an assistant message requesting a tool call.
func ToolUse(id, name string, input map[string]any) llm.Message {
	return llm.Message{
		Role:    llm.RoleAssistant,
		Content: []llm.ContentBlock{{Type: llm.BlockToolUse, ToolUseID: id, ToolName: name, ToolInput: input}},
	}
}

// ToolResult builds the tool message answering a tool call.
func ToolResult(id, output string) llm.Message {
	return llm.Message{
		Role:    llm.RoleTool,
		Content: []llm.ContentBlock{{Type: llm.BlockToolResult, ToolResultID: id, ToolOutput: output}},
	}
}

// Texts returns the text of each message.
func Texts(msgs []llm.Message) []string {
	out := make([]string, len(msgs))
	for i := range msgs {
		out[i] = msgs[i].Text()
	}
	return out
}
