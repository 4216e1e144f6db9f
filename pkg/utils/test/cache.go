package testutils

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/papercomputeco/memoir/pkg/cache/inmemory"
)

// ErrMockCache is returned by MockCache when a failure is injected.
var ErrMockCache = errors.New("mock cache failure")

// MockCache wraps the in-memory cache with failure injection and counts how
// often each operation ran.
type MockCache struct {
	*inmemory.Driver

	mu            sync.Mutex
	FailRange     bool
	FailPush      bool
	FailOverwrite bool

	ranges, pushes, overwrites int
}

func NewMockCache() *MockCache {
	return &MockCache{Driver: inmemory.NewDriver()}
}

func (m *MockCache) Range(ctx context.Context, key string) ([]string, error) {
	m.mu.Lock()
	m.ranges++
	fail := m.FailRange
	m.mu.Unlock()
	if fail {
		return nil, ErrMockCache
	}
	return m.Driver.Range(ctx, key)
}

func (m *MockCache) Push(ctx context.Context, key string, values []string, ttl time.Duration) error {
	m.mu.Lock()
	m.pushes++
	fail := m.FailPush
	m.mu.Unlock()
	if fail {
		return ErrMockCache
	}
	return m.Driver.Push(ctx, key, values, ttl)
}

func (m *MockCache) Overwrite(ctx context.Context, key string, values []string, ttl time.Duration) error {
	m.mu.Lock()
	m.overwrites++
	fail := m.FailOverwrite
	m.mu.Unlock()
	if fail {
		return ErrMockCache
	}
	return m.Driver.Overwrite(ctx, key, values, ttl)
}

// Counts returns the number of Range, Push and Overwrite calls.
func (m *MockCache) Counts() (ranges, pushes, overwrites int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ranges, m.pushes, m.overwrites
}

// SetFailures toggles injected failures safely while other goroutines run.
func (m *MockCache) SetFailures(rangeErr, pushErr, overwriteErr bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FailRange, m.FailPush, m.FailOverwrite = rangeErr, pushErr, overwriteErr
}
