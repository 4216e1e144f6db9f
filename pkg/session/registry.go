// Package session owns the per-process set of conversations: one
// history.Manager per user, loaded once and shared by every turn.
package session

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/papercomputeco/memoir/pkg/history"
)

// Registry hands out history managers by user id.
type Registry struct {
	// template is copied for every new manager with UserID filled in.
	template history.Config
	logger   *zap.Logger

	group singleflight.Group

	mu       sync.Mutex
	managers map[string]*history.Manager
	locks    map[string]*sync.Mutex
}

// NewRegistry builds a Registry. template carries the shared storage tiers,
// summarizer and policy; its UserID is ignored.
func NewRegistry(template history.Config) *Registry {
	l := template.Logger
	if l == nil {
		l = zap.NewNop()
	}
	return &Registry{
		template: template,
		logger:   l.With(zap.String("component", "session")),
		managers: make(map[string]*history.Manager),
		locks:    make(map[string]*sync.Mutex),
	}
}

// Get returns the user's manager, building and loading it on first use.
// Concurrent first requests for the same user share one load.
func (r *Registry) Get(ctx context.Context, userID string) (*history.Manager, error) {
	if userID == "" {
		return nil, history.ErrMissingUserID
	}

	if m := r.lookup(userID); m != nil {
		return m, nil
	}

	v, err, _ := r.group.Do(userID, func() (any, error) {
		if m := r.lookup(userID); m != nil {
			return m, nil
		}

		cfg := r.template
		cfg.UserID = userID
		m, err := history.NewManager(cfg)
		if err != nil {
			return nil, err
		}

		// The load outlives any single caller's cancellation.
		m.Load(context.WithoutCancel(ctx))

		r.mu.Lock()
		r.managers[userID] = m
		r.mu.Unlock()

		r.logger.Debug("session opened",
			zap.String("user_id", userID),
			zap.Int("messages", m.Len()),
		)
		return m, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*history.Manager), nil
}

func (r *Registry) lookup(userID string) *history.Manager {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.managers[userID]
}

// Lock serializes turns for one user. The returned func releases the lock.
func (r *Registry) Lock(userID string) func() {
	r.mu.Lock()
	l, ok := r.locks[userID]
	if !ok {
		l = &sync.Mutex{}
		r.locks[userID] = l
	}
	r.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// Forget drops the user's manager so the next Get reloads from storage.
func (r *Registry) Forget(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.managers, userID)
}

// Len returns the number of open sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.managers)
}
