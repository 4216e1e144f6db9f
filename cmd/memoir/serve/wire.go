package servecmder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/papercomputeco/memoir/api"
	"github.com/papercomputeco/memoir/api/mcp"
	cacheutils "github.com/papercomputeco/memoir/pkg/cache/utils"
	"github.com/papercomputeco/memoir/pkg/chat"
	"github.com/papercomputeco/memoir/pkg/config"
	"github.com/papercomputeco/memoir/pkg/credentials"
	embeddingutils "github.com/papercomputeco/memoir/pkg/embeddings/utils"
	"github.com/papercomputeco/memoir/pkg/eventstream"
	eventstreamutils "github.com/papercomputeco/memoir/pkg/eventstream/utils"
	"github.com/papercomputeco/memoir/pkg/history"
	"github.com/papercomputeco/memoir/pkg/llm/caller"
	"github.com/papercomputeco/memoir/pkg/memory"
	"github.com/papercomputeco/memoir/pkg/metrics"
	"github.com/papercomputeco/memoir/pkg/middleware"
	"github.com/papercomputeco/memoir/pkg/retry"
	"github.com/papercomputeco/memoir/pkg/session"
	storageutils "github.com/papercomputeco/memoir/pkg/storage/utils"
	"github.com/papercomputeco/memoir/pkg/telemetry"
	vectorutils "github.com/papercomputeco/memoir/pkg/vector/utils"
	"github.com/papercomputeco/memoir/pkg/worker"
)

// server is every long-lived component of a running memoir, in the order
// they were opened.
type server struct {
	telemetry *telemetry.Provider
	pool      *worker.Pool
	publisher eventstream.Publisher
	closers   []namedCloser
	api       *api.Server
	logger    *zap.Logger
}

type namedCloser struct {
	name string
	io.Closer
}

// build opens the stores, starts the worker pool and assembles the API
// server. On error everything opened so far is closed again.
func build(ctx context.Context, cfg *config.Config, configDir string, logger *zap.Logger) (_ *server, err error) {
	s := &server{logger: logger}
	defer func() {
		if err != nil {
			s.close(cfg.ShutdownGrace())
		}
	}()

	s.telemetry, err = telemetry.Init(ctx, telemetry.Config{
		Enabled:      cfg.Telemetry.Enabled,
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
		ServiceName:  cfg.Telemetry.ServiceName,
		SampleRate:   cfg.Telemetry.SampleRate,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("initializing telemetry: %w", err)
	}

	m := metrics.New("memoir")
	policy := retry.DefaultPolicy()

	s.pool, err = worker.NewPool(&worker.Config{
		NumWorkers: cfg.Worker.Workers,
		QueueSize:  cfg.Worker.QueueSize,
		Logger:     logger,
		Metrics:    m,
	})
	if err != nil {
		return nil, fmt.Errorf("creating worker pool: %w", err)
	}

	store, err := storageutils.NewStorageDriver(ctx, &storageutils.NewStorageDriverOpts{
		PostgresURL: cfg.Storage.PostgresURL,
		SQLitePath:  cfg.Storage.SQLitePath,
		Retry:       policy,
		Logger:      logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating storage driver: %w", err)
	}
	s.closers = append(s.closers, namedCloser{"storage", store})

	cache, err := cacheutils.NewCacheDriver(&cacheutils.NewCacheDriverOpts{
		ProviderType: cfg.Cache.Provider,
		Addr:         cfg.Cache.RedisAddr,
		Password:     cfg.Cache.RedisPassword,
		DB:           cfg.Cache.RedisDB,
		Retry:        policy,
		Logger:       logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating cache driver: %w", err)
	}
	s.closers = append(s.closers, namedCloser{"cache", cache})
	logger.Info("using conversation cache", zap.String("provider", cfg.Cache.Provider))

	creds, err := credentials.NewManager(configDir)
	if err != nil {
		logger.Warn("credentials unavailable, using environment only", zap.Error(err))
		creds = nil
	}

	vectors, err := vectorutils.NewVectorDriver(&vectorutils.NewVectorDriverOpts{
		ProviderType: cfg.VectorStore.Provider,
		TargetURL:    cfg.VectorStore.Target,
		Collection:   cfg.VectorStore.Collection,
		APIKey:       cfg.VectorStore.APIKey,
		Dimensions:   cfg.Embedding.Dimensions,
		Logger:       logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating vector driver: %w", err)
	}
	s.closers = append(s.closers, namedCloser{"vector store", vectors})

	embeddingKey, _ := credentials.Resolve(creds, cfg.Embedding.Provider, "")
	embedder, err := embeddingutils.NewEmbedder(&embeddingutils.NewEmbedderOpts{
		ProviderType: cfg.Embedding.Provider,
		TargetURL:    cfg.Embedding.Target,
		Model:        cfg.Embedding.Model,
		APIKey:       embeddingKey,
		Dimensions:   cfg.Embedding.Dimensions,
	})
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}
	s.closers = append(s.closers, namedCloser{"embedder", embedder})

	chatCaller, err := caller.New(caller.Config{
		Provider:    cfg.Model.Provider,
		Model:       cfg.Model.Model,
		BaseURL:     cfg.Model.BaseURL,
		Credentials: creds,
		Retry:       policy,
		Logger:      logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating model caller: %w", err)
	}

	summaryCaller := chatCaller
	if cfg.Model.SummaryModel != "" {
		summaryCaller, err = caller.New(caller.Config{
			Provider:    cfg.Model.Provider,
			Model:       cfg.Model.SummaryModel,
			BaseURL:     cfg.Model.BaseURL,
			Credentials: creds,
			Retry:       policy,
			Logger:      logger,
		})
		if err != nil {
			return nil, fmt.Errorf("creating summary caller: %w", err)
		}
	}

	s.publisher, err = eventstreamutils.NewPublisher(&eventstreamutils.NewPublisherOpts{
		ProviderType: cfg.Events.Provider,
		Brokers:      cfg.Events.Brokers,
		Topic:        cfg.Events.Topic,
		Logger:       logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating event publisher: %w", err)
	}

	mode, err := memory.ParseSaveMode(cfg.Recall.SaveMode)
	if err != nil {
		return nil, err
	}

	recall, err := memory.NewService(memory.Config{
		VectorDriver:   vectors,
		Embedder:       embedder,
		Pool:           s.pool,
		Mode:           mode,
		DedupThreshold: float32(cfg.Recall.DedupThreshold),
		Publisher:      s.publisher,
		Logger:         logger,
		Metrics:        m,
	})
	if err != nil {
		return nil, fmt.Errorf("creating recall memory: %w", err)
	}

	sessions := session.NewRegistry(history.Config{
		Storage:    store,
		Cache:      cache,
		Summarizer: history.NewSummarizer(summaryCaller),
		Policy: history.Policy{
			InitialThreshold: cfg.History.InitialThreshold,
			Interval:         cfg.History.Interval,
		},
		CacheTTL: cfg.CacheTTL(),
		Logger:   logger,
		Metrics:  m,
	})

	engine, err := chat.NewEngine(chat.Config{
		Caller:   chatCaller,
		Sessions: sessions,
		Middleware: middleware.New(middleware.Config{
			Memory: recall,
			Pool:   s.pool,
			Logger: logger,
		}),
		Memory:    recall,
		Pool:      s.pool,
		Publisher: s.publisher,
		Model:     cfg.Model.Model,
		Logger:    logger,
		Metrics:   m,
	})
	if err != nil {
		return nil, fmt.Errorf("creating chat engine: %w", err)
	}

	mcpServer, err := mcp.NewServer(mcp.Config{
		Memory: recall,
		Logger: logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating MCP server: %w", err)
	}

	s.api, err = api.NewServer(api.Config{
		ListenAddr: cfg.API.Listen,
		Engine:     engine,
		Sessions:   sessions,
		Memory:     recall,
		MCP:        mcpServer.Handler(),
		Metrics:    m,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("creating API server: %w", err)
	}

	logger.Info("memoir ready",
		zap.String("listen", cfg.API.Listen),
		zap.String("model_provider", chatCaller.Name()),
		zap.String("vector_store", cfg.VectorStore.Provider),
		zap.String("save_mode", string(mode)),
	)

	return s, nil
}

// close stops intake, drains the worker pool within grace and releases the
// stores in reverse order. Drained tasks may still publish events, so the
// publisher closes after the pool.
func (s *server) close(grace time.Duration) {
	if s.api != nil {
		if err := s.api.Shutdown(); err != nil {
			s.logger.Warn("shutting down API server", zap.Error(err))
		}
	}

	if s.pool != nil {
		ctx, cancel := context.WithTimeout(context.Background(), grace)
		err := s.pool.Shutdown(ctx)
		cancel()
		if errors.Is(err, worker.ErrShutdownTimeout) {
			s.logger.Warn("worker pool did not drain in time", zap.Duration("grace", grace))
		}
	}

	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			s.logger.Warn("closing event publisher", zap.Error(err))
		}
	}

	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i].Close(); err != nil {
			s.logger.Warn("closing "+s.closers[i].name, zap.Error(err))
		}
	}

	if s.telemetry != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.telemetry.Shutdown(ctx); err != nil {
			s.logger.Warn("shutting down telemetry", zap.Error(err))
		}
	}
}
