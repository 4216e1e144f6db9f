package testutils

import (
	"context"
	"errors"
	"sync"

	"github.com/papercomputeco/memoir/pkg/storage"
	"github.com/papercomputeco/memoir/pkg/storage/inmemory"
)

// ErrMockStorage is returned by MockStorage when a failure is injected.
var ErrMockStorage = errors.New("mock storage failure")

// MockStorage wraps the in-memory durable store with failure injection.
type MockStorage struct {
	*inmemory.Driver

	mu          sync.Mutex
	FailInsert  bool
	FailHistory bool

	historyCalls int
}

func NewMockStorage() *MockStorage {
	return &MockStorage{Driver: inmemory.NewDriver()}
}

func (m *MockStorage) Insert(ctx context.Context, rows []storage.Row) error {
	m.mu.Lock()
	fail := m.FailInsert
	m.mu.Unlock()
	if fail {
		return ErrMockStorage
	}
	return m.Driver.Insert(ctx, rows)
}

func (m *MockStorage) History(ctx context.Context, userID string) ([]storage.Row, error) {
	m.mu.Lock()
	m.historyCalls++
	fail := m.FailHistory
	m.mu.Unlock()
	if fail {
		return nil, ErrMockStorage
	}
	return m.Driver.History(ctx, userID)
}

// HistoryCalls reports how many times History ran.
func (m *MockStorage) HistoryCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.historyCalls
}
