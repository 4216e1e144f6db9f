package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/papercomputeco/memoir/pkg/dotdir"
)

// EnvPrefix prefixes every environment override, e.g. MEMOIR_API_LISTEN.
const EnvPrefix = "MEMOIR"

// InitViper creates and returns a configured *viper.Viper.
// It sets defaults from NewDefaultConfig(), reads the config.toml file
// (if found via dotdir resolution), and binds environment variables
// with the MEMOIR_ prefix.
//
// Config precedence (highest to lowest):
//  1. CLI flags (once bound via BindRegisteredFlags)
//  2. Environment variables (MEMOIR_API_LISTEN, MEMOIR_CACHE_PROVIDER, etc.)
//  3. config.toml file values
//  4. Defaults from NewDefaultConfig()
func InitViper(configDir string) (*viper.Viper, error) {
	v := viper.New()

	setViperDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("toml")

	ddm := dotdir.NewManager()
	target, err := ddm.Target(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}

	if target != "" {
		v.AddConfigPath(target)
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file not found errors are fine, defaults will apply.
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

// setViperDefaults registers defaults from NewDefaultConfig() into viper
// using dotted-key notation. This keeps defaults.go as the single source of truth.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("version", d.Version)

	v.SetDefault("storage.postgres_url", d.Storage.PostgresURL)
	v.SetDefault("storage.sqlite_path", d.Storage.SQLitePath)

	v.SetDefault("cache.provider", d.Cache.Provider)
	v.SetDefault("cache.redis_addr", d.Cache.RedisAddr)
	v.SetDefault("cache.redis_password", d.Cache.RedisPassword)
	v.SetDefault("cache.redis_db", d.Cache.RedisDB)
	v.SetDefault("cache.ttl", d.Cache.TTL)

	v.SetDefault("vector_store.provider", d.VectorStore.Provider)
	v.SetDefault("vector_store.target", d.VectorStore.Target)
	v.SetDefault("vector_store.collection", d.VectorStore.Collection)
	v.SetDefault("vector_store.api_key", d.VectorStore.APIKey)

	v.SetDefault("embedding.provider", d.Embedding.Provider)
	v.SetDefault("embedding.target", d.Embedding.Target)
	v.SetDefault("embedding.model", d.Embedding.Model)
	v.SetDefault("embedding.dimensions", d.Embedding.Dimensions)

	v.SetDefault("model.provider", d.Model.Provider)
	v.SetDefault("model.model", d.Model.Model)
	v.SetDefault("model.base_url", d.Model.BaseURL)
	v.SetDefault("model.summary_model", d.Model.SummaryModel)

	v.SetDefault("history.initial_threshold", d.History.InitialThreshold)
	v.SetDefault("history.interval", d.History.Interval)

	v.SetDefault("recall.save_mode", d.Recall.SaveMode)
	v.SetDefault("recall.dedup_threshold", d.Recall.DedupThreshold)

	v.SetDefault("worker.workers", d.Worker.Workers)
	v.SetDefault("worker.queue_size", d.Worker.QueueSize)
	v.SetDefault("worker.shutdown_grace", d.Worker.ShutdownGrace)

	v.SetDefault("events.provider", d.Events.Provider)
	v.SetDefault("events.brokers", d.Events.Brokers)
	v.SetDefault("events.topic", d.Events.Topic)

	v.SetDefault("telemetry.enabled", d.Telemetry.Enabled)
	v.SetDefault("telemetry.otlp_endpoint", d.Telemetry.OTLPEndpoint)
	v.SetDefault("telemetry.service_name", d.Telemetry.ServiceName)
	v.SetDefault("telemetry.sample_rate", d.Telemetry.SampleRate)

	v.SetDefault("api.listen", d.API.Listen)
	v.SetDefault("client.api_target", d.Client.APITarget)
}

// FromViper resolves the effective Config from v after flags, environment
// and the config file have been merged.
func FromViper(v *viper.Viper) *Config {
	brokers := v.GetStringSlice("events.brokers")
	if len(brokers) == 0 {
		brokers = nil
	}

	return &Config{
		Version: v.GetInt("version"),
		Storage: StorageConfig{
			PostgresURL: v.GetString("storage.postgres_url"),
			SQLitePath:  v.GetString("storage.sqlite_path"),
		},
		Cache: CacheConfig{
			Provider:      v.GetString("cache.provider"),
			RedisAddr:     v.GetString("cache.redis_addr"),
			RedisPassword: v.GetString("cache.redis_password"),
			RedisDB:       v.GetInt("cache.redis_db"),
			TTL:           v.GetString("cache.ttl"),
		},
		VectorStore: VectorStoreConfig{
			Provider:   v.GetString("vector_store.provider"),
			Target:     v.GetString("vector_store.target"),
			Collection: v.GetString("vector_store.collection"),
			APIKey:     v.GetString("vector_store.api_key"),
		},
		Embedding: EmbeddingConfig{
			Provider:   v.GetString("embedding.provider"),
			Target:     v.GetString("embedding.target"),
			Model:      v.GetString("embedding.model"),
			Dimensions: v.GetUint("embedding.dimensions"),
		},
		Model: ModelConfig{
			Provider:     v.GetString("model.provider"),
			Model:        v.GetString("model.model"),
			BaseURL:      v.GetString("model.base_url"),
			SummaryModel: v.GetString("model.summary_model"),
		},
		History: HistoryConfig{
			InitialThreshold: v.GetInt("history.initial_threshold"),
			Interval:         v.GetInt("history.interval"),
		},
		Recall: RecallConfig{
			SaveMode:       v.GetString("recall.save_mode"),
			DedupThreshold: v.GetFloat64("recall.dedup_threshold"),
		},
		Worker: WorkerConfig{
			Workers:       v.GetUint("worker.workers"),
			QueueSize:     v.GetUint("worker.queue_size"),
			ShutdownGrace: v.GetString("worker.shutdown_grace"),
		},
		Events: EventsConfig{
			Provider: v.GetString("events.provider"),
			Brokers:  brokers,
			Topic:    v.GetString("events.topic"),
		},
		Telemetry: TelemetryConfig{
			Enabled:      v.GetBool("telemetry.enabled"),
			OTLPEndpoint: v.GetString("telemetry.otlp_endpoint"),
			ServiceName:  v.GetString("telemetry.service_name"),
			SampleRate:   v.GetFloat64("telemetry.sample_rate"),
		},
		API: APIConfig{
			Listen: v.GetString("api.listen"),
		},
		Client: ClientConfig{
			APITarget: v.GetString("client.api_target"),
		},
	}
}

// CacheTTL parses the cache TTL, falling back to the default on bad input.
func (c *Config) CacheTTL() time.Duration {
	return parseDuration(c.Cache.TTL, defaultCacheTTL)
}

// ShutdownGrace parses the worker shutdown grace period.
func (c *Config) ShutdownGrace() time.Duration {
	return parseDuration(c.Worker.ShutdownGrace, defaultShutdownGrace)
}

func parseDuration(v, def string) time.Duration {
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		d, _ = time.ParseDuration(def)
	}
	return d
}
