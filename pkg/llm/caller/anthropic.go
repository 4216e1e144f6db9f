package caller

import (
	"context"
	"fmt"
	"strings"

	"github.com/papercomputeco/memoir/pkg/llm"
)

const anthropicVersion = "2023-06-01"

type anthropicRequest struct {
	Model       string             `json:"model"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
	Tools       []anthropicTool    `json:"tools,omitempty"`
	ToolChoice  *anthropicChoice   `json:"tool_choice,omitempty"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature *float64           `json:"temperature,omitempty"`
}

type anthropicMessage struct {
	Role    string                  `json:"role"`
	Content []anthropicContentBlock `json:"content"`
}

type anthropicContentBlock struct {
	Type      string           `json:"type"`
	Text      string           `json:"text,omitempty"`
	Source    *anthropicSource `json:"source,omitempty"`
	ID        string           `json:"id,omitempty"`
	Name      string           `json:"name,omitempty"`
	Input     map[string]any   `json:"input,omitempty"`
	ToolUseID string           `json:"tool_use_id,omitempty"`
	Content   string           `json:"content,omitempty"`
	IsError   bool             `json:"is_error,omitempty"`
}

type anthropicSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type,omitempty"`
	Data      string `json:"data,omitempty"`
	URL       string `json:"url,omitempty"`
}

type anthropicTool struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	InputSchema map[string]any `json:"input_schema"`
}

type anthropicChoice struct {
	Type string `json:"type"`
}

type anthropicResponse struct {
	Model      string                  `json:"model"`
	Content    []anthropicContentBlock `json:"content"`
	StopReason string                  `json:"stop_reason"`
	Usage      *struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage,omitempty"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

type anthropicCaller struct {
	t         *transport
	apiKey    string
	model     string
	baseURL   string
	maxTokens int
}

func newAnthropic(t *transport, apiKey, model, baseURL string, maxTokens int) *anthropicCaller {
	return &anthropicCaller{t: t, apiKey: apiKey, model: model, baseURL: baseURL, maxTokens: maxTokens}
}

func (c *anthropicCaller) Name() string { return ProviderAnthropic }

func (c *anthropicCaller) Complete(ctx context.Context, prompt string) (string, error) {
	return complete(ctx, c, prompt)
}

func (c *anthropicCaller) Chat(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	model := orDefault(req.Model, c.model)
	system, messages := toAnthropicMessages(req)

	body := anthropicRequest{
		Model:       model,
		System:      system,
		Messages:    messages,
		MaxTokens:   requestMaxTokens(req, c.maxTokens),
		Temperature: req.Temperature,
	}
	for _, tool := range req.Tools {
		body.Tools = append(body.Tools, anthropicTool{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: tool.InputSchema,
		})
	}
	if req.ToolChoice != "" && len(body.Tools) > 0 {
		body.ToolChoice = &anthropicChoice{Type: req.ToolChoice}
	}

	var result anthropicResponse
	headers := map[string]string{
		"x-api-key":         c.apiKey,
		"anthropic-version": anthropicVersion,
	}
	if err := c.t.postJSON(ctx, c.baseURL+"/v1/messages", headers, body, &result); err != nil {
		return nil, fmt.Errorf("%w: anthropic: %w", ErrModel, err)
	}

	if result.Error != nil {
		return nil, fmt.Errorf("%w: anthropic error: %s", ErrModel, result.Error.Message)
	}
	if len(result.Content) == 0 {
		return nil, fmt.Errorf("%w: anthropic returned no content", ErrModel)
	}

	msg := llm.Message{Role: llm.RoleAssistant}
	for _, block := range result.Content {
		switch block.Type {
		case "text":
			msg.Content = append(msg.Content, llm.ContentBlock{Type: llm.BlockText, Text: block.Text})
		case "tool_use":
			msg.Content = append(msg.Content, llm.ContentBlock{
				Type:      llm.BlockToolUse,
				ToolUseID: block.ID,
				ToolName:  block.Name,
				ToolInput: block.Input,
			})
		}
	}

	resp := &llm.ChatResponse{
		Model:      orDefault(result.Model, model),
		Message:    msg,
		StopReason: result.StopReason,
	}
	if result.Usage != nil {
		resp.Usage = &llm.Usage{
			PromptTokens:     result.Usage.InputTokens,
			CompletionTokens: result.Usage.OutputTokens,
			TotalTokens:      result.Usage.InputTokens + result.Usage.OutputTokens,
		}
	}

	return resp, nil
}

// toAnthropicMessages folds summary messages into the system prompt and
// merges consecutive same-role turns, which the Messages API requires to
// alternate.
func toAnthropicMessages(req *llm.ChatRequest) (string, []anthropicMessage) {
	system := []string{}
	if req.System != "" {
		system = append(system, req.System)
	}

	var out []anthropicMessage
	for _, msg := range req.Messages {
		if msg.Role == llm.RoleSummary {
			if text := msg.Text(); text != "" {
				system = append(system, text)
			}
			continue
		}

		role := "user"
		if msg.Role == llm.RoleAssistant {
			role = "assistant"
		}

		var blocks []anthropicContentBlock
		for _, block := range msg.Content {
			switch block.Type {
			case llm.BlockText:
				if block.Text != "" {
					blocks = append(blocks, anthropicContentBlock{Type: "text", Text: block.Text})
				}
			case llm.BlockImage:
				switch {
				case block.ImageBase64 != "":
					blocks = append(blocks, anthropicContentBlock{Type: "image", Source: &anthropicSource{
						Type: "base64", MediaType: block.MediaType, Data: block.ImageBase64,
					}})
				case block.ImageURL != "":
					blocks = append(blocks, anthropicContentBlock{Type: "image", Source: &anthropicSource{
						Type: "url", URL: block.ImageURL,
					}})
				}
			case llm.BlockToolUse:
				input := block.ToolInput
				if input == nil {
					input = map[string]any{}
				}
				blocks = append(blocks, anthropicContentBlock{
					Type: "tool_use", ID: block.ToolUseID, Name: block.ToolName, Input: input,
				})
			case llm.BlockToolResult:
				role = "user"
				blocks = append(blocks, anthropicContentBlock{
					Type: "tool_result", ToolUseID: block.ToolResultID, Content: block.ToolOutput, IsError: block.IsError,
				})
			}
		}
		if len(blocks) == 0 {
			continue
		}

		if n := len(out); n > 0 && out[n-1].Role == role {
			out[n-1].Content = append(out[n-1].Content, blocks...)
			continue
		}
		out = append(out, anthropicMessage{Role: role, Content: blocks})
	}

	return strings.Join(system, "\n\n"), out
}
