package llm

// Tool choice values for ChatRequest.ToolChoice.
const (
	ToolChoiceAuto = "auto"
	ToolChoiceNone = "none"
)

// ChatRequest represents a provider-agnostic chat completion request.
type ChatRequest struct {
	// Model name (e.g., "gpt-4o-mini", "claude-3-5-haiku-latest", "llama3.2")
	Model string `json:"model"`

	// Conversation messages
	Messages []Message `json:"messages"`

	// System prompt (some providers handle this separately from messages)
	System string `json:"system,omitempty"`

	// Tools the model may call during the turn
	Tools []Tool `json:"tools,omitempty"`

	// ToolChoice constrains tool use. ToolChoiceNone keeps the tools in the
	// request but forces a text answer. Empty leaves it to the model.
	ToolChoice string `json:"tool_choice,omitempty"`

	// Generation parameters (unified across providers)
	MaxTokens   *int     `json:"max_tokens,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
}

// Tool describes a function the model is allowed to invoke.
type Tool struct {
	Name        string `json:"name"`
	Description string `json:"description"`

	// InputSchema is a JSON schema object describing the arguments.
	InputSchema map[string]any `json:"input_schema"`
}
