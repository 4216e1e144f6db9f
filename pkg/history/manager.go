// Package history keeps a user's running conversation. The in-memory list is
// the source of truth for a session; every append is written through to the
// durable store and the cache, and long conversations are periodically
// compacted into a summary.
package history

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/papercomputeco/memoir/pkg/cache"
	"github.com/papercomputeco/memoir/pkg/llm"
	"github.com/papercomputeco/memoir/pkg/metrics"
	"github.com/papercomputeco/memoir/pkg/storage"
)

// Config is the configuration for a Manager.
type Config struct {
	// UserID owns the conversation. Required.
	UserID string

	// Storage is the durable store. Required.
	Storage storage.Driver

	// Cache is the fast tier. Required.
	Cache cache.Driver

	// Summarizer compacts long conversations. Nil disables compaction.
	Summarizer *Summarizer

	// Policy decides when to compact (defaults to DefaultPolicy).
	Policy Policy

	// CacheTTL is the cache expiry refreshed on every write (defaults to
	// cache.DefaultTTL).
	CacheTTL time.Duration

	Logger  *zap.Logger
	Metrics *metrics.Metrics
}

// Manager owns one user's conversation.
type Manager struct {
	userID     string
	key        string
	storage    storage.Driver
	cache      cache.Driver
	summarizer *Summarizer
	policy     Policy
	ttl        time.Duration
	logger     *zap.Logger
	metrics    *metrics.Metrics

	// mu guards messages and serializes writes to the cache so a compaction
	// never interleaves with an append's push.
	mu       sync.Mutex
	messages []llm.Message

	// closed is set by Invalidate. A closed manager no longer rewrites the
	// cache.
	closed bool

	// summarizing allows one compaction at a time.
	summarizing sync.Mutex
}

// NewManager builds a Manager with an empty conversation. Call Load to read
// the stored history.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.UserID == "" {
		return nil, ErrMissingUserID
	}
	if cfg.Storage == nil || cfg.Cache == nil {
		return nil, storage.ErrNotConfigured
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = cache.DefaultTTL
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &Manager{
		userID:     cfg.UserID,
		key:        cache.HistoryKey(cfg.UserID),
		storage:    cfg.Storage,
		cache:      cfg.Cache,
		summarizer: cfg.Summarizer,
		policy:     cfg.Policy.withDefaults(),
		ttl:        cfg.CacheTTL,
		logger: cfg.Logger.With(
			zap.String("component", "history"),
			zap.String("user_id", cfg.UserID),
		),
		metrics: cfg.Metrics,
	}, nil
}

// UserID returns the conversation owner.
func (m *Manager) UserID() string {
	return m.userID
}

// Load replaces the in-memory conversation with the stored one, reading the
// cache first and falling back to the durable store. Read failures degrade
// to an empty conversation and are logged, never returned.
func (m *Manager) Load(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if msgs, ok := m.loadCached(ctx); ok {
		m.messages = msgs
		return
	}

	rows, err := m.storage.History(ctx, m.userID)
	if err != nil {
		m.logger.Error("loading history from durable store", zap.Error(err))
		m.messages = nil
		return
	}

	msgs := make([]llm.Message, 0, len(rows))
	for _, row := range rows {
		msgs = append(msgs, row.Message())
	}
	m.messages = llm.FilterRetained(msgs)

	m.logger.Debug("history loaded from durable store", zap.Int("messages", len(m.messages)))

	if len(m.messages) == 0 {
		return
	}

	values, err := encode(m.messages)
	if err == nil {
		err = m.cache.Overwrite(ctx, m.key, values, m.ttl)
	}
	if err != nil {
		m.logger.Warn("priming history cache", zap.Error(err))
	}
}

// loadCached returns the cached conversation in chronological order, or
// false on a miss.
func (m *Manager) loadCached(ctx context.Context) ([]llm.Message, bool) {
	entries, err := m.cache.Range(ctx, m.key)
	if err != nil {
		m.logger.Warn("reading history cache, treating as miss", zap.Error(err))
		m.metrics.CacheLookup("error")
		return nil, false
	}
	if len(entries) == 0 {
		m.metrics.CacheLookup("miss")
		return nil, false
	}

	msgs := make([]llm.Message, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		msg, err := decode(entries[i])
		if err != nil {
			m.logger.Warn("skipping undecodable cache entry", zap.Error(err))
			continue
		}
		msgs = append(msgs, msg)
	}

	msgs = llm.FilterRetained(msgs)
	if len(msgs) == 0 {
		m.metrics.CacheLookup("miss")
		return nil, false
	}

	m.metrics.CacheLookup("hit")
	m.logger.Debug("history loaded from cache", zap.Int("messages", len(msgs)))
	return msgs, true
}

// Messages returns a copy of the conversation.
func (m *Manager) Messages() []llm.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.messages)
}

// Len returns the number of messages in the conversation.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.messages)
}

// Append filters msgs, adds the survivors to the conversation and writes
// them to the durable store and then the cache. Write failures are logged;
// the in-memory conversation keeps the messages either way. Returns the
// messages that were appended.
func (m *Manager) Append(ctx context.Context, msgs []llm.Message) []llm.Message {
	retained := llm.FilterRetained(msgs)
	if len(retained) == 0 {
		return nil
	}

	now := time.Now().UTC()
	for i := range retained {
		if retained[i].ID == "" {
			retained[i].ID = uuid.NewString()
		}
		if retained[i].CreatedAt.IsZero() {
			retained[i].CreatedAt = now
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.messages = append(m.messages, retained...)
	m.metrics.Appended(len(retained))

	rows := make([]storage.Row, 0, len(retained))
	for _, msg := range retained {
		rows = append(rows, storage.NewRow(m.userID, msg))
	}
	if err := m.storage.Insert(ctx, rows); err != nil {
		m.logger.Error("persisting messages", zap.Int("messages", len(rows)), zap.Error(err))
	}

	values, err := encode(retained)
	if err == nil {
		err = m.cache.Push(ctx, m.key, values, m.ttl)
	}
	if err != nil {
		m.logger.Error("caching messages", zap.Int("messages", len(values)), zap.Error(err))
	}

	return retained
}

// SummarizeIfNeeded compacts the conversation when the policy says so: every
// message but the last two is condensed into a single leading summary, and
// the cache is overwritten with the new list. The durable store keeps the
// raw messages. Messages appended while the model runs are kept after the
// compacted tail. On failure the conversation is left untouched and the
// error is logged and returned.
func (m *Manager) SummarizeIfNeeded(ctx context.Context) (bool, error) {
	if m.summarizer == nil {
		return false, nil
	}

	m.summarizing.Lock()
	defer m.summarizing.Unlock()

	if m.isClosed() {
		m.metrics.Summarization("skipped")
		return false, nil
	}

	snapshot := m.Messages()
	if !m.policy.ShouldSummarize(snapshot) || len(snapshot) <= KeepLast {
		m.metrics.Summarization("skipped")
		return false, nil
	}

	cut := len(snapshot) - KeepLast
	text, err := m.summarizer.Summarize(ctx, snapshot[:cut])
	if err != nil {
		m.logger.Error("summarizing conversation", zap.Int("messages", cut), zap.Error(err))
		m.metrics.Summarization("error")
		return false, err
	}

	summary := llm.NewTextMessage(llm.RoleSummary, SummaryPrefix+text)
	summary.ID = uuid.NewString()
	summary.CreatedAt = time.Now().UTC()

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		m.logger.Debug("history invalidated while summarizing, dropping summary")
		m.metrics.Summarization("skipped")
		return false, nil
	}

	// Only appends can happen between the snapshot and now, so everything
	// past the snapshot is new and goes after the kept tail.
	next := make([]llm.Message, 0, 1+KeepLast+len(m.messages)-len(snapshot))
	next = append(next, summary)
	next = append(next, snapshot[cut:]...)
	next = append(next, m.messages[len(snapshot):]...)

	values, err := encode(next)
	if err == nil {
		err = m.cache.Overwrite(ctx, m.key, values, m.ttl)
	}
	if err != nil {
		m.logger.Error("overwriting history cache with summary", zap.Error(err))
		m.metrics.Summarization("error")
		return false, err
	}

	m.messages = next
	m.metrics.Summarization("compacted")
	m.logger.Info("conversation summarized",
		zap.Int("summarized", cut),
		zap.Int("remaining", len(next)),
	)

	return true, nil
}

// Invalidate drops the cached conversation so the next Load reads the
// durable store, and closes the manager: a summary still in flight is
// discarded instead of repopulating the cache.
func (m *Manager) Invalidate(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return m.cache.Delete(ctx, m.key)
}

func (m *Manager) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
