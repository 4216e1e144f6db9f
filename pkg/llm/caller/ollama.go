package caller

import (
	"context"
	"fmt"

	"github.com/papercomputeco/memoir/pkg/llm"
)

type ollamaChatRequest struct {
	Model    string              `json:"model"`
	Messages []ollamaChatMessage `json:"messages"`
	Stream   bool                `json:"stream"`
	Options  *ollamaOptions      `json:"options,omitempty"`
}

type ollamaChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`

	// Base64-encoded images
	Images []string `json:"images,omitempty"`
}

type ollamaOptions struct {
	Temperature *float64 `json:"temperature,omitempty"`
	NumPredict  *int     `json:"num_predict,omitempty"`
}

type ollamaChatResponse struct {
	Model           string            `json:"model"`
	Message         ollamaChatMessage `json:"message"`
	Done            bool              `json:"done"`
	DoneReason      string            `json:"done_reason,omitempty"`
	PromptEvalCount int               `json:"prompt_eval_count,omitempty"`
	EvalCount       int               `json:"eval_count,omitempty"`
}

// ollamaCaller talks to a local Ollama. It is text only: tool definitions
// are not sent and tool round trips are flattened to their text.
type ollamaCaller struct {
	t       *transport
	model   string
	baseURL string
}

func newOllama(t *transport, model, baseURL string) *ollamaCaller {
	return &ollamaCaller{t: t, model: model, baseURL: baseURL}
}

func (c *ollamaCaller) Name() string { return ProviderOllama }

func (c *ollamaCaller) Complete(ctx context.Context, prompt string) (string, error) {
	return complete(ctx, c, prompt)
}

func (c *ollamaCaller) Chat(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	model := orDefault(req.Model, c.model)

	body := ollamaChatRequest{
		Model:  model,
		Stream: false,
	}
	if req.Temperature != nil || req.MaxTokens != nil {
		body.Options = &ollamaOptions{Temperature: req.Temperature, NumPredict: req.MaxTokens}
	}
	if req.System != "" {
		body.Messages = append(body.Messages, ollamaChatMessage{Role: "system", Content: req.System})
	}
	for _, msg := range req.Messages {
		m := ollamaChatMessage{Role: openAIRole(msg.Role), Content: msg.Text()}
		for _, block := range msg.Content {
			if block.Type == llm.BlockImage && block.ImageBase64 != "" {
				m.Images = append(m.Images, block.ImageBase64)
			}
		}
		if m.Content == "" && len(m.Images) == 0 {
			continue
		}
		body.Messages = append(body.Messages, m)
	}

	var result ollamaChatResponse
	if err := c.t.postJSON(ctx, c.baseURL+"/api/chat", nil, body, &result); err != nil {
		return nil, fmt.Errorf("%w: ollama: %w", ErrModel, err)
	}

	return &llm.ChatResponse{
		Model:      orDefault(result.Model, model),
		Message:    llm.NewTextMessage(llm.RoleAssistant, result.Message.Content),
		StopReason: result.DoneReason,
		Usage: &llm.Usage{
			PromptTokens:     result.PromptEvalCount,
			CompletionTokens: result.EvalCount,
			TotalTokens:      result.PromptEvalCount + result.EvalCount,
		},
	}, nil
}
