package config

const (
	defaultCacheProvider = "memory"
	defaultRedisAddr     = "localhost:6379"
	defaultCacheTTL      = "24h"

	defaultVectorProvider   = "sqlite"
	defaultVectorCollection = "recall_memories"

	defaultOllamaTarget        = "http://localhost:11434"
	defaultEmbeddingProvider   = "ollama"
	defaultEmbeddingModel      = "embeddinggemma"
	defaultEmbeddingDimensions = 768

	defaultModelProvider = "ollama"

	defaultInitialThreshold = 20
	defaultInterval         = 10

	defaultSaveMode       = "async"
	defaultDedupThreshold = 0.95

	defaultWorkers       = 3
	defaultQueueSize     = 256
	defaultShutdownGrace = "10s"

	defaultEventsProvider = "nop"
	defaultEventsTopic    = "memoir.events"

	defaultOTLPEndpoint = "localhost:4317"
	defaultServiceName  = "memoir"
	defaultSampleRate   = 1.0

	defaultAPIListen       = ":8081"
	defaultClientAPITarget = "http://localhost:8081"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Cache: CacheConfig{
			Provider:  defaultCacheProvider,
			RedisAddr: defaultRedisAddr,
			TTL:       defaultCacheTTL,
		},
		VectorStore: VectorStoreConfig{
			Provider:   defaultVectorProvider,
			Collection: defaultVectorCollection,
		},
		Embedding: EmbeddingConfig{
			Provider:   defaultEmbeddingProvider,
			Target:     defaultOllamaTarget,
			Model:      defaultEmbeddingModel,
			Dimensions: defaultEmbeddingDimensions,
		},
		Model: ModelConfig{
			Provider: defaultModelProvider,
		},
		History: HistoryConfig{
			InitialThreshold: defaultInitialThreshold,
			Interval:         defaultInterval,
		},
		Recall: RecallConfig{
			SaveMode:       defaultSaveMode,
			DedupThreshold: defaultDedupThreshold,
		},
		Worker: WorkerConfig{
			Workers:       defaultWorkers,
			QueueSize:     defaultQueueSize,
			ShutdownGrace: defaultShutdownGrace,
		},
		Events: EventsConfig{
			Provider: defaultEventsProvider,
			Topic:    defaultEventsTopic,
		},
		Telemetry: TelemetryConfig{
			OTLPEndpoint: defaultOTLPEndpoint,
			ServiceName:  defaultServiceName,
			SampleRate:   defaultSampleRate,
		},
		API: APIConfig{
			Listen: defaultAPIListen,
		},
		Client: ClientConfig{
			APITarget: defaultClientAPITarget,
		},
	}
}
