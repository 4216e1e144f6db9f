package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Config represents the persistent memoir configuration stored as config.toml
// in the .memoir/ directory. The TOML layout uses sections for logical grouping.
type Config struct {
	Version     int               `toml:"version"`
	Storage     StorageConfig     `toml:"storage"`
	Cache       CacheConfig       `toml:"cache"`
	VectorStore VectorStoreConfig `toml:"vector_store"`
	Embedding   EmbeddingConfig   `toml:"embedding"`
	Model       ModelConfig       `toml:"model"`
	History     HistoryConfig     `toml:"history"`
	Recall      RecallConfig      `toml:"recall"`
	Worker      WorkerConfig      `toml:"worker"`
	Events      EventsConfig      `toml:"events"`
	Telemetry   TelemetryConfig   `toml:"telemetry"`
	API         APIConfig         `toml:"api"`
	Client      ClientConfig      `toml:"client"`
}

// StorageConfig selects the durable conversation store. PostgresURL wins
// over SQLitePath; with neither set conversations live in memory.
type StorageConfig struct {
	PostgresURL string `toml:"postgres_url,omitempty"`
	SQLitePath  string `toml:"sqlite_path,omitempty"`
}

// CacheConfig holds the conversation cache settings.
type CacheConfig struct {
	Provider      string `toml:"provider,omitempty"`
	RedisAddr     string `toml:"redis_addr,omitempty"`
	RedisPassword string `toml:"redis_password,omitempty"`
	RedisDB       int    `toml:"redis_db,omitempty"`

	// TTL is a Go duration string, e.g. "24h".
	TTL string `toml:"ttl,omitempty"`
}

// VectorStoreConfig holds recall memory store settings.
type VectorStoreConfig struct {
	Provider   string `toml:"provider,omitempty"`
	Target     string `toml:"target,omitempty"`
	Collection string `toml:"collection,omitempty"`
	APIKey     string `toml:"api_key,omitempty"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Provider   string `toml:"provider,omitempty"`
	Target     string `toml:"target,omitempty"`
	Model      string `toml:"model,omitempty"`
	Dimensions uint   `toml:"dimensions,omitempty"`
}

// ModelConfig selects the chat model. SummaryModel, when set, is used for
// conversation summaries instead of Model.
type ModelConfig struct {
	Provider     string `toml:"provider,omitempty"`
	Model        string `toml:"model,omitempty"`
	BaseURL      string `toml:"base_url,omitempty"`
	SummaryModel string `toml:"summary_model,omitempty"`
}

// HistoryConfig holds the summarization thresholds.
type HistoryConfig struct {
	InitialThreshold int `toml:"initial_threshold,omitempty"`
	Interval         int `toml:"interval,omitempty"`
}

// RecallConfig holds recall memory settings.
type RecallConfig struct {
	SaveMode       string  `toml:"save_mode,omitempty"`
	DedupThreshold float64 `toml:"dedup_threshold,omitempty"`
}

// WorkerConfig sizes the background task pool.
type WorkerConfig struct {
	Workers   uint `toml:"workers,omitempty"`
	QueueSize uint `toml:"queue_size,omitempty"`

	// ShutdownGrace is a Go duration string, e.g. "10s".
	ShutdownGrace string `toml:"shutdown_grace,omitempty"`
}

// EventsConfig selects where domain events are published.
type EventsConfig struct {
	Provider string   `toml:"provider,omitempty"`
	Brokers  []string `toml:"brokers,omitempty"`
	Topic    string   `toml:"topic,omitempty"`
}

// TelemetryConfig holds OpenTelemetry trace export settings.
type TelemetryConfig struct {
	Enabled      bool    `toml:"enabled,omitempty"`
	OTLPEndpoint string  `toml:"otlp_endpoint,omitempty"`
	ServiceName  string  `toml:"service_name,omitempty"`
	SampleRate   float64 `toml:"sample_rate,omitempty"`
}

// APIConfig holds API server settings.
type APIConfig struct {
	Listen string `toml:"listen,omitempty"`
}

// ClientConfig holds settings for CLI commands that connect to a running
// memoir server (e.g. memoir chat, memoir recall). Values are full URLs.
type ClientConfig struct {
	APITarget string `toml:"api_target,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

func stringKey(field func(c *Config) *string) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return *field(c) },
		set: func(c *Config, v string) error { *field(c) = v; return nil },
	}
}

func durationKey(name string, field func(c *Config) *string) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return *field(c) },
		set: func(c *Config, v string) error {
			if _, err := time.ParseDuration(v); err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			*field(c) = v
			return nil
		},
	}
}

func intKey(name string, field func(c *Config) *int) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return strconv.Itoa(*field(c)) },
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			*field(c) = n
			return nil
		},
	}
}

func uintKey(name string, field func(c *Config) *uint) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string {
			if *field(c) == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(*field(c)), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			*field(c) = uint(n)
			return nil
		},
	}
}

func floatKey(name string, field func(c *Config) *float64) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return strconv.FormatFloat(*field(c), 'f', -1, 64) },
		set: func(c *Config, v string) error {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			*field(c) = f
			return nil
		},
	}
}

func boolKey(name string, field func(c *Config) *bool) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return strconv.FormatBool(*field(c)) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			*field(c) = b
			return nil
		},
	}
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"storage.postgres_url": stringKey(func(c *Config) *string { return &c.Storage.PostgresURL }),
	"storage.sqlite_path":  stringKey(func(c *Config) *string { return &c.Storage.SQLitePath }),

	"cache.provider":       stringKey(func(c *Config) *string { return &c.Cache.Provider }),
	"cache.redis_addr":     stringKey(func(c *Config) *string { return &c.Cache.RedisAddr }),
	"cache.redis_password": stringKey(func(c *Config) *string { return &c.Cache.RedisPassword }),
	"cache.redis_db":       intKey("cache.redis_db", func(c *Config) *int { return &c.Cache.RedisDB }),
	"cache.ttl":            durationKey("cache.ttl", func(c *Config) *string { return &c.Cache.TTL }),

	"vector_store.provider":   stringKey(func(c *Config) *string { return &c.VectorStore.Provider }),
	"vector_store.target":     stringKey(func(c *Config) *string { return &c.VectorStore.Target }),
	"vector_store.collection": stringKey(func(c *Config) *string { return &c.VectorStore.Collection }),
	"vector_store.api_key":    stringKey(func(c *Config) *string { return &c.VectorStore.APIKey }),

	"embedding.provider":   stringKey(func(c *Config) *string { return &c.Embedding.Provider }),
	"embedding.target":     stringKey(func(c *Config) *string { return &c.Embedding.Target }),
	"embedding.model":      stringKey(func(c *Config) *string { return &c.Embedding.Model }),
	"embedding.dimensions": uintKey("embedding.dimensions", func(c *Config) *uint { return &c.Embedding.Dimensions }),

	"model.provider":      stringKey(func(c *Config) *string { return &c.Model.Provider }),
	"model.model":         stringKey(func(c *Config) *string { return &c.Model.Model }),
	"model.base_url":      stringKey(func(c *Config) *string { return &c.Model.BaseURL }),
	"model.summary_model": stringKey(func(c *Config) *string { return &c.Model.SummaryModel }),

	"history.initial_threshold": intKey("history.initial_threshold", func(c *Config) *int { return &c.History.InitialThreshold }),
	"history.interval":          intKey("history.interval", func(c *Config) *int { return &c.History.Interval }),

	"recall.save_mode": {
		get: func(c *Config) string { return c.Recall.SaveMode },
		set: func(c *Config, v string) error {
			if v != "async" && v != "sync" {
				return fmt.Errorf("invalid value for recall.save_mode: %q (expected async or sync)", v)
			}
			c.Recall.SaveMode = v
			return nil
		},
	},
	"recall.dedup_threshold": floatKey("recall.dedup_threshold", func(c *Config) *float64 { return &c.Recall.DedupThreshold }),

	"worker.workers":        uintKey("worker.workers", func(c *Config) *uint { return &c.Worker.Workers }),
	"worker.queue_size":     uintKey("worker.queue_size", func(c *Config) *uint { return &c.Worker.QueueSize }),
	"worker.shutdown_grace": durationKey("worker.shutdown_grace", func(c *Config) *string { return &c.Worker.ShutdownGrace }),

	"events.provider": stringKey(func(c *Config) *string { return &c.Events.Provider }),
	"events.brokers": {
		get: func(c *Config) string { return strings.Join(c.Events.Brokers, ",") },
		set: func(c *Config, v string) error {
			c.Events.Brokers = splitList(v)
			return nil
		},
	},
	"events.topic": stringKey(func(c *Config) *string { return &c.Events.Topic }),

	"telemetry.enabled":       boolKey("telemetry.enabled", func(c *Config) *bool { return &c.Telemetry.Enabled }),
	"telemetry.otlp_endpoint": stringKey(func(c *Config) *string { return &c.Telemetry.OTLPEndpoint }),
	"telemetry.service_name":  stringKey(func(c *Config) *string { return &c.Telemetry.ServiceName }),
	"telemetry.sample_rate":   floatKey("telemetry.sample_rate", func(c *Config) *float64 { return &c.Telemetry.SampleRate }),

	"api.listen":        stringKey(func(c *Config) *string { return &c.API.Listen }),
	"client.api_target": stringKey(func(c *Config) *string { return &c.Client.APITarget }),
}

// splitList turns "a, b,,c" into [a b c].
func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
