package llm

import (
	"strings"
	"time"
)

// Role identifies who authored a message. The set is closed: every message in
// a conversation is exactly one of these variants.
type Role string

const (
	RoleHuman     Role = "human"
	RoleAssistant Role = "ai"
	RoleSummary   Role = "system"
	RoleTool      Role = "tool"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleHuman, RoleAssistant, RoleSummary, RoleTool:
		return true
	default:
		return false
	}
}

// Prefix is the speaker label used when a conversation is rendered as a
// transcript.
func (r Role) Prefix() string {
	switch r {
	case RoleHuman:
		return "Human"
	case RoleAssistant:
		return "AI"
	case RoleSummary:
		return "System"
	case RoleTool:
		return "Tool"
	default:
		return string(r)
	}
}

// Content block types.
const (
	BlockText       = "text"
	BlockImage      = "image"
	BlockToolUse    = "tool_use"
	BlockToolResult = "tool_result"
)

// Message represents a single message in a conversation.
// Content is stored as an array of ContentBlocks to support multimodal content
// (text, images, tool use, etc.) in a provider-agnostic way.
type Message struct {
	// ID is stable across the cache and the durable store.
	ID        string         `json:"id"`
	Role      Role           `json:"role"`
	Content   []ContentBlock `json:"content"`
	CreatedAt time.Time      `json:"created_at,omitzero"`
}

// ContentBlock represents a single piece of content within a message.
// The Type field determines which other fields are populated.
type ContentBlock struct {
	Type string `json:"type"` // "text", "image", "tool_use", "tool_result"

	// Text content (type="text")
	Text string `json:"text,omitempty"`

	// Image content (type="image")
	ImageURL    string `json:"image_url,omitempty"`    // URL to image
	ImageBase64 string `json:"image_base64,omitempty"` // Base64-encoded image data
	MediaType   string `json:"media_type,omitempty"`   // MIME type (e.g., "image/png")

	// Tool use (type="tool_use") - assistant requesting tool execution
	ToolUseID string         `json:"tool_use_id,omitempty"`
	ToolName  string         `json:"tool_name,omitempty"`
	ToolInput map[string]any `json:"tool_input,omitempty"`

	// Tool result (type="tool_result") - result from tool execution
	ToolResultID string `json:"tool_result_id,omitempty"` // References the tool_use_id
	ToolOutput   string `json:"tool_output,omitempty"`
	IsError      bool   `json:"is_error,omitempty"`
}

// NewTextMessage creates a simple text message with the given role and content.
func NewTextMessage(role Role, text string) Message {
	return Message{
		Role: role,
		Content: []ContentBlock{
			{Type: BlockText, Text: text},
		},
	}
}

// NewImageMessage creates a human message carrying text plus image references.
func NewImageMessage(text string, imageURLs ...string) Message {
	msg := NewTextMessage(RoleHuman, text)
	for _, u := range imageURLs {
		if strings.TrimSpace(u) == "" {
			continue
		}
		msg.Content = append(msg.Content, ContentBlock{Type: BlockImage, ImageURL: u})
	}
	return msg
}

// Text returns the concatenated text content from all text blocks in the message.
func (m *Message) Text() string {
	var b strings.Builder
	for _, block := range m.Content {
		if block.Type == BlockText {
			b.WriteString(block.Text)
		}
	}
	return b.String()
}

// IsToolInvocation reports whether the message is part of a tool round trip:
// a tool-role message or one carrying tool_use / tool_result blocks.
func (m *Message) IsToolInvocation() bool {
	if m.Role == RoleTool {
		return true
	}
	for _, block := range m.Content {
		if block.Type == BlockToolUse || block.Type == BlockToolResult {
			return true
		}
	}
	return false
}

// ToolCalls returns the tool_use blocks of the message.
func (m *Message) ToolCalls() []ContentBlock {
	var calls []ContentBlock
	for _, block := range m.Content {
		if block.Type == BlockToolUse {
			calls = append(calls, block)
		}
	}
	return calls
}

// WithoutToolCalls returns a copy of the message with its tool_use blocks
// removed.
func (m *Message) WithoutToolCalls() Message {
	out := *m
	out.Content = make([]ContentBlock, 0, len(m.Content))
	for _, block := range m.Content {
		if block.Type != BlockToolUse {
			out.Content = append(out.Content, block)
		}
	}
	return out
}

// Retained reports whether the message survives the retention filter: it has
// non-blank text and is not a tool invocation.
func (m *Message) Retained() bool {
	return strings.TrimSpace(m.Text()) != "" && !m.IsToolInvocation()
}

// FilterRetained returns the messages that pass the retention filter, in order.
func FilterRetained(msgs []Message) []Message {
	out := make([]Message, 0, len(msgs))
	for i := range msgs {
		if msgs[i].Retained() {
			out = append(out, msgs[i])
		}
	}
	return out
}

// BufferString renders messages as a plain transcript, one "Speaker: text"
// line per message.
func BufferString(msgs []Message) string {
	lines := make([]string, 0, len(msgs))
	for i := range msgs {
		lines = append(lines, msgs[i].Role.Prefix()+": "+msgs[i].Text())
	}
	return strings.Join(lines, "\n")
}

// Last returns up to n trailing messages.
func Last(msgs []Message, n int) []Message {
	if n <= 0 {
		return nil
	}
	if len(msgs) <= n {
		return msgs
	}
	return msgs[len(msgs)-n:]
}
