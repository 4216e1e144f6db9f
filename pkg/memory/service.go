// Package memory is memoir's long-term recall memory: short facts about a
// user, stored as embeddings and searched by similarity. Saving a fact
// replaces any stored fact that is nearly identical to it.
package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/papercomputeco/memoir/pkg/embeddings"
	"github.com/papercomputeco/memoir/pkg/eventstream"
	"github.com/papercomputeco/memoir/pkg/metrics"
	"github.com/papercomputeco/memoir/pkg/vector"
	"github.com/papercomputeco/memoir/pkg/worker"
)

const (
	DefaultDedupThreshold float32 = 0.95
	DefaultSaveNeighbors          = 5
	DefaultSearchLimit            = 3
)

// SaveMode selects whether Save waits for the store.
type SaveMode string

const (
	// SaveModeAsync queues the save on the worker pool and returns at once.
	SaveModeAsync SaveMode = "async"

	// SaveModeSync stores the fact before returning.
	SaveModeSync SaveMode = "sync"
)

// ParseSaveMode maps a config string to a SaveMode; empty means async.
func ParseSaveMode(s string) (SaveMode, error) {
	switch SaveMode(strings.ToLower(s)) {
	case "", SaveModeAsync:
		return SaveModeAsync, nil
	case SaveModeSync:
		return SaveModeSync, nil
	default:
		return "", fmt.Errorf("unknown recall save mode %q", s)
	}
}

// Config is the configuration for the Service.
type Config struct {
	// VectorDriver stores the facts. Required.
	VectorDriver vector.Driver

	// Embedder turns text into vectors. Required.
	Embedder embeddings.Embedder

	// Pool runs async saves. Required in SaveModeAsync.
	Pool *worker.Pool

	// Mode defaults to SaveModeAsync.
	Mode SaveMode

	// DedupThreshold is the similarity at or above which a stored fact is
	// replaced by a new save (defaults to 0.95).
	DedupThreshold float32

	// SaveNeighbors is how many neighbors a save inspects (defaults to 5).
	SaveNeighbors int

	// SearchLimit caps search results (defaults to 3).
	SearchLimit int

	// Publisher receives memory saved events. Optional.
	Publisher eventstream.Publisher

	Logger  *zap.Logger
	Metrics *metrics.Metrics
}

// Service saves and searches recall memories.
type Service struct {
	vectors   vector.Driver
	embedder  embeddings.Embedder
	pool      *worker.Pool
	mode      SaveMode
	threshold float32
	neighbors int
	limit     int
	publisher eventstream.Publisher
	logger    *zap.Logger
	metrics   *metrics.Metrics
}

// NewService validates cfg and fills in defaults.
func NewService(cfg Config) (*Service, error) {
	if cfg.VectorDriver == nil || cfg.Embedder == nil {
		return nil, ErrNotConfigured
	}
	if cfg.Mode == "" {
		cfg.Mode = SaveModeAsync
	}
	if cfg.Mode == SaveModeAsync && cfg.Pool == nil {
		return nil, errors.New("recall memory: async save mode requires a worker pool")
	}
	if cfg.DedupThreshold <= 0 {
		cfg.DedupThreshold = DefaultDedupThreshold
	}
	if cfg.SaveNeighbors <= 0 {
		cfg.SaveNeighbors = DefaultSaveNeighbors
	}
	if cfg.SearchLimit <= 0 {
		cfg.SearchLimit = DefaultSearchLimit
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &Service{
		vectors:   cfg.VectorDriver,
		embedder:  cfg.Embedder,
		pool:      cfg.Pool,
		mode:      cfg.Mode,
		threshold: cfg.DedupThreshold,
		neighbors: cfg.SaveNeighbors,
		limit:     cfg.SearchLimit,
		publisher: cfg.Publisher,
		logger:    cfg.Logger.With(zap.String("component", "recall")),
		metrics:   cfg.Metrics,
	}, nil
}

// Mode returns the configured save mode.
func (s *Service) Mode() SaveMode {
	return s.mode
}

// Save stores content as a fact for userID, replacing near-duplicates. In
// async mode the work is queued and the ack reports Queued.
//
// Dedup is query-then-delete without a lock, so two concurrent saves of the
// same fact can both survive.
func (s *Service) Save(ctx context.Context, userID, content string) (SaveAck, error) {
	if userID == "" {
		s.logger.Error("save rejected: missing user id")
		return SaveAck{}, ErrMissingIdentity
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return SaveAck{}, ErrEmptyContent
	}

	if s.mode == SaveModeSync {
		return s.store(ctx, userID, content)
	}

	err := s.pool.Submit(worker.Task{
		Name:   "recall_save",
		UserID: userID,
		Run: func(ctx context.Context) error {
			_, err := s.store(ctx, userID, content)
			return err
		},
	})
	if err != nil {
		s.metrics.RecallSave("dropped")
		if errors.Is(err, worker.ErrQueueFull) {
			return SaveAck{}, fmt.Errorf("%w: %w", ErrQueueFull, err)
		}
		return SaveAck{}, err
	}

	s.metrics.RecallSave("queued")
	s.logger.Debug("recall memory queued", zap.String("user_id", userID))
	return SaveAck{Queued: true, Memory: content}, nil
}

// store deletes stored facts at or above the dedup threshold and inserts
// the new one. The two steps are not atomic: a concurrent save for the same
// user may observe either state.
func (s *Service) store(ctx context.Context, userID, content string) (SaveAck, error) {
	emb, err := s.embedder.Embed(ctx, content)
	if err != nil {
		s.metrics.RecallSave("error")
		return SaveAck{}, fmt.Errorf("embedding memory: %w", err)
	}

	neighbors, err := s.vectors.Query(ctx, emb, s.neighbors, vector.Filter{UserID: userID})
	if err != nil {
		s.metrics.RecallSave("error")
		return SaveAck{}, fmt.Errorf("finding similar memories: %w", err)
	}

	var replaced []string
	for _, n := range neighbors {
		if n.Score >= s.threshold {
			replaced = append(replaced, n.ID)
		}
	}

	if len(replaced) > 0 {
		if err := s.vectors.Delete(ctx, replaced); err != nil {
			s.metrics.RecallSave("error")
			return SaveAck{}, fmt.Errorf("deleting redundant memories: %w", err)
		}
		s.metrics.RecallDedup(len(replaced))
		s.logger.Info("deleted redundant memories",
			zap.String("user_id", userID),
			zap.Int("count", len(replaced)),
		)
	}

	id := uuid.NewString()
	err = s.vectors.Add(ctx, []vector.Document{{
		ID:        id,
		UserID:    userID,
		Content:   content,
		Embedding: emb,
	}})
	if err != nil {
		s.metrics.RecallSave("error")
		return SaveAck{}, fmt.Errorf("storing memory: %w", err)
	}

	s.metrics.RecallSave("stored")
	s.logger.Info("recall memory saved",
		zap.String("user_id", userID),
		zap.String("fact_id", id),
		zap.Bool("replaced", len(replaced) > 0),
	)

	if s.publisher != nil {
		event := eventstream.NewMemorySavedEvent(userID, eventstream.MemorySaved{FactID: id, ReplacedIDs: replaced})
		if err := s.publisher.Publish(ctx, event); err != nil {
			s.logger.Warn("publishing memory saved event", zap.Error(err))
		}
	}

	return SaveAck{ID: id, Replaced: replaced, Memory: content}, nil
}

// Search returns up to SearchLimit facts for userID most similar to query.
// No matches is StatusEmpty, not an error.
func (s *Service) Search(ctx context.Context, userID, query string) (SearchResult, error) {
	if userID == "" {
		s.logger.Error("search rejected: missing user id")
		s.metrics.RecallSearch("error")
		return SearchResult{Status: StatusError, Query: query}, ErrMissingIdentity
	}

	if strings.TrimSpace(query) == "" {
		s.metrics.RecallSearch("empty")
		return SearchResult{Status: StatusEmpty, Query: query}, nil
	}

	emb, err := s.embedder.Embed(ctx, query)
	if err != nil {
		s.metrics.RecallSearch("error")
		return SearchResult{Status: StatusError, Query: query}, fmt.Errorf("%w: %w", ErrSearchFailed, err)
	}

	results, err := s.vectors.Query(ctx, emb, s.limit, vector.Filter{UserID: userID})
	if err != nil {
		s.metrics.RecallSearch("error")
		return SearchResult{Status: StatusError, Query: query}, fmt.Errorf("%w: %w", ErrSearchFailed, err)
	}

	if len(results) == 0 {
		s.metrics.RecallSearch("empty")
		return SearchResult{Status: StatusEmpty, Query: query}, nil
	}

	facts := make([]Fact, 0, len(results))
	for _, r := range results {
		facts = append(facts, Fact{ID: r.ID, UserID: r.UserID, Content: r.Content, Score: r.Score})
	}

	s.metrics.RecallSearch("success")
	s.logger.Debug("recall memories found",
		zap.String("user_id", userID),
		zap.Int("count", len(facts)),
	)
	return SearchResult{Status: StatusSuccess, Query: query, Memories: facts}, nil
}

// Get returns the fact stored under id. A fact owned by another user is
// reported as vector.ErrNotFound.
func (s *Service) Get(ctx context.Context, userID, id string) (Fact, error) {
	if userID == "" {
		return Fact{}, ErrMissingIdentity
	}
	if _, err := uuid.Parse(id); err != nil {
		return Fact{}, fmt.Errorf("recall memory %q: %w", id, vector.ErrNotFound)
	}

	docs, err := s.vectors.Get(ctx, []string{id})
	if err != nil {
		return Fact{}, fmt.Errorf("loading memory: %w", err)
	}

	for _, d := range docs {
		if d.ID == id && d.UserID == userID {
			return Fact{ID: d.ID, UserID: d.UserID, Content: d.Content}, nil
		}
	}
	return Fact{}, fmt.Errorf("recall memory %q: %w", id, vector.ErrNotFound)
}
