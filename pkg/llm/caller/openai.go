package caller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/papercomputeco/memoir/pkg/llm"
)

type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	Tools       []openAITool    `json:"tools,omitempty"`
	ToolChoice  string          `json:"tool_choice,omitempty"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Temperature *float64        `json:"temperature,omitempty"`
}

type openAIMessage struct {
	Role       string           `json:"role"`
	Content    any              `json:"content"` // string or []openAIContentPart for vision
	ToolCallID string           `json:"tool_call_id,omitempty"`
	ToolCalls  []openAIToolCall `json:"tool_calls,omitempty"`
}

type openAIContentPart struct {
	Type     string          `json:"type"`
	Text     string          `json:"text,omitempty"`
	ImageURL *openAIImageURL `json:"image_url,omitempty"`
}

type openAIImageURL struct {
	URL string `json:"url"`
}

type openAIToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type openAITool struct {
	Type     string         `json:"type"`
	Function openAIFunction `json:"function"`
}

type openAIFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

type openAIResponse struct {
	Model   string `json:"model"`
	Created int64  `json:"created"`
	Choices []struct {
		Message struct {
			Content   *string          `json:"content"`
			ToolCalls []openAIToolCall `json:"tool_calls,omitempty"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage,omitempty"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

type openAICaller struct {
	t         *transport
	apiKey    string
	model     string
	baseURL   string
	maxTokens int
}

func newOpenAI(t *transport, apiKey, model, baseURL string, maxTokens int) *openAICaller {
	return &openAICaller{t: t, apiKey: apiKey, model: model, baseURL: baseURL, maxTokens: maxTokens}
}

func (c *openAICaller) Name() string { return ProviderOpenAI }

func (c *openAICaller) Complete(ctx context.Context, prompt string) (string, error) {
	return complete(ctx, c, prompt)
}

func (c *openAICaller) Chat(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	model := orDefault(req.Model, c.model)
	body := openAIRequest{
		Model:       model,
		Messages:    toOpenAIMessages(req),
		MaxTokens:   requestMaxTokens(req, c.maxTokens),
		Temperature: req.Temperature,
	}
	for _, tool := range req.Tools {
		body.Tools = append(body.Tools, openAITool{
			Type: "function",
			Function: openAIFunction{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  tool.InputSchema,
			},
		})
	}
	if len(body.Tools) > 0 {
		body.ToolChoice = req.ToolChoice
	}

	var result openAIResponse
	headers := map[string]string{"Authorization": "Bearer " + c.apiKey}
	if err := c.t.postJSON(ctx, c.baseURL+"/v1/chat/completions", headers, body, &result); err != nil {
		return nil, fmt.Errorf("%w: openai: %w", ErrModel, err)
	}

	if result.Error != nil {
		return nil, fmt.Errorf("%w: openai error: %s", ErrModel, result.Error.Message)
	}
	if len(result.Choices) == 0 {
		return nil, fmt.Errorf("%w: %w", ErrModel, errors.New("openai returned no choices"))
	}

	choice := result.Choices[0]
	msg := llm.Message{Role: llm.RoleAssistant}
	if choice.Message.Content != nil && *choice.Message.Content != "" {
		msg.Content = append(msg.Content, llm.ContentBlock{Type: llm.BlockText, Text: *choice.Message.Content})
	}
	for _, tc := range choice.Message.ToolCalls {
		var input map[string]any
		if tc.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &input); err != nil {
				return nil, fmt.Errorf("%w: openai tool arguments for %s: %w", ErrModel, tc.Function.Name, err)
			}
		}
		msg.Content = append(msg.Content, llm.ContentBlock{
			Type:      llm.BlockToolUse,
			ToolUseID: tc.ID,
			ToolName:  tc.Function.Name,
			ToolInput: input,
		})
	}

	resp := &llm.ChatResponse{
		Model:      orDefault(result.Model, model),
		Message:    msg,
		StopReason: choice.FinishReason,
	}
	if result.Created > 0 {
		resp.CreatedAt = time.Unix(result.Created, 0).UTC()
	}
	if result.Usage != nil {
		resp.Usage = &llm.Usage{
			PromptTokens:     result.Usage.PromptTokens,
			CompletionTokens: result.Usage.CompletionTokens,
			TotalTokens:      result.Usage.TotalTokens,
		}
	}

	return resp, nil
}

func toOpenAIMessages(req *llm.ChatRequest) []openAIMessage {
	out := make([]openAIMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		out = append(out, openAIMessage{Role: "system", Content: req.System})
	}

	for _, msg := range req.Messages {
		// Tool results become one "tool" message each.
		var results []openAIMessage
		var calls []openAIToolCall
		var parts []openAIContentPart
		hasImage := false

		for _, block := range msg.Content {
			switch block.Type {
			case llm.BlockText:
				parts = append(parts, openAIContentPart{Type: "text", Text: block.Text})
			case llm.BlockImage:
				url := block.ImageURL
				if url == "" && block.ImageBase64 != "" {
					url = "data:" + block.MediaType + ";base64," + block.ImageBase64
				}
				if url != "" {
					hasImage = true
					parts = append(parts, openAIContentPart{Type: "image_url", ImageURL: &openAIImageURL{URL: url}})
				}
			case llm.BlockToolUse:
				args, _ := json.Marshal(block.ToolInput)
				tc := openAIToolCall{ID: block.ToolUseID, Type: "function"}
				tc.Function.Name = block.ToolName
				tc.Function.Arguments = string(args)
				calls = append(calls, tc)
			case llm.BlockToolResult:
				results = append(results, openAIMessage{
					Role:       "tool",
					ToolCallID: block.ToolResultID,
					Content:    block.ToolOutput,
				})
			}
		}

		if len(results) > 0 {
			out = append(out, results...)
			continue
		}

		m := openAIMessage{Role: openAIRole(msg.Role), ToolCalls: calls}
		switch {
		case hasImage:
			m.Content = parts
		case len(parts) > 0 || len(calls) == 0:
			m.Content = msg.Text()
		}
		out = append(out, m)
	}

	return out
}

func openAIRole(r llm.Role) string {
	switch r {
	case llm.RoleAssistant:
		return "assistant"
	case llm.RoleSummary:
		return "system"
	case llm.RoleTool:
		return "tool"
	default:
		return "user"
	}
}
