package testutils

import (
	"context"
	"errors"
	"sync"

	"github.com/papercomputeco/memoir/pkg/llm"
)

// ErrMockModel is returned by MockCaller when a failure is injected.
var ErrMockModel = errors.New("mock model failure")

// MockCaller is a scripted model. Chat pops responses from Script in order
// and falls back to Reply once the script runs out. Every request is recorded.
type MockCaller struct {
	mu sync.Mutex

	// Script holds responses returned by successive Chat calls.
	Script []*llm.ChatResponse

	// Reply is the text returned once Script is exhausted.
	Reply string

	// Fail makes every call return ErrMockModel.
	Fail bool

	// Block, when set, is waited on before answering.
	Block chan struct{}

	requests []*llm.ChatRequest
	prompts  []string
}

func NewMockCaller(reply string) *MockCaller {
	return &MockCaller{Reply: reply}
}

func (m *MockCaller) Name() string { return "mock" }

func (m *MockCaller) Complete(ctx context.Context, prompt string) (string, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	m.mu.Unlock()

	resp, err := m.Chat(ctx, &llm.ChatRequest{
		Messages: []llm.Message{llm.NewTextMessage(llm.RoleHuman, prompt)},
	})
	if err != nil {
		return "", err
	}
	return resp.Message.Text(), nil
}

func (m *MockCaller) Chat(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	block := m.Block
	m.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Fail {
		return nil, ErrMockModel
	}

	if len(m.Script) > 0 {
		resp := m.Script[0]
		m.Script = m.Script[1:]
		return resp, nil
	}

	return &llm.ChatResponse{
		Model:      "mock-model",
		Message:    llm.NewTextMessage(llm.RoleAssistant, m.Reply),
		StopReason: "stop",
	}, nil
}

// Requests returns every ChatRequest seen so far.
func (m *MockCaller) Requests() []*llm.ChatRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*llm.ChatRequest(nil), m.requests...)
}

// Prompts returns every prompt passed to Complete.
func (m *MockCaller) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.prompts...)
}

// SetFail toggles failure injection.
func (m *MockCaller) SetFail(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Fail = fail
}
