package testutils

import (
	"context"
	"errors"
	"sync"

	"github.com/papercomputeco/memoir/pkg/vector"
	"github.com/papercomputeco/memoir/pkg/vector/inmemory"
)

// ErrMockVector is returned by MockVectorDriver when a failure is injected.
var ErrMockVector = errors.New("mock vector failure")

// MockVectorDriver wraps the in-memory vector driver with failure injection
// and call recording.
type MockVectorDriver struct {
	*inmemory.Driver

	mu         sync.Mutex
	FailAdd    bool
	FailQuery  bool
	FailDelete bool

	deleted [][]string
}

func NewMockVectorDriver() *MockVectorDriver {
	return &MockVectorDriver{Driver: inmemory.NewDriver()}
}

func (m *MockVectorDriver) Add(ctx context.Context, docs []vector.Document) error {
	if m.fail(&m.FailAdd) {
		return ErrMockVector
	}
	return m.Driver.Add(ctx, docs)
}

func (m *MockVectorDriver) Query(ctx context.Context, embedding []float32, topK int, filter vector.Filter) ([]vector.QueryResult, error) {
	if m.fail(&m.FailQuery) {
		return nil, ErrMockVector
	}
	return m.Driver.Query(ctx, embedding, topK, filter)
}

func (m *MockVectorDriver) Delete(ctx context.Context, ids []string) error {
	if m.fail(&m.FailDelete) {
		return ErrMockVector
	}
	m.mu.Lock()
	m.deleted = append(m.deleted, append([]string(nil), ids...))
	m.mu.Unlock()
	return m.Driver.Delete(ctx, ids)
}

// DeleteCalls returns the id batches passed to Delete.
func (m *MockVectorDriver) DeleteCalls() [][]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]string(nil), m.deleted...)
}

func (m *MockVectorDriver) fail(flag *bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *flag
}
