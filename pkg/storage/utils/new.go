// Package storageutils builds the configured durable storage driver.
package storageutils

import (
	"context"

	"go.uber.org/zap"

	"github.com/papercomputeco/memoir/pkg/retry"
	"github.com/papercomputeco/memoir/pkg/storage"
	"github.com/papercomputeco/memoir/pkg/storage/inmemory"
	"github.com/papercomputeco/memoir/pkg/storage/postgres"
	"github.com/papercomputeco/memoir/pkg/storage/sqlite"
)

type NewStorageDriverOpts struct {
	// PostgresURL takes precedence over SQLitePath when both are set.
	PostgresURL string

	// SQLitePath is a file path or ":memory:".
	SQLitePath string

	// MaxConns bounds the PostgreSQL pool.
	MaxConns int32

	Retry  retry.Policy
	Logger *zap.Logger
}

// NewStorageDriver picks PostgreSQL, then SQLite, then the in-memory driver.
func NewStorageDriver(ctx context.Context, o *NewStorageDriverOpts) (storage.Driver, error) {
	logger := o.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	switch {
	case o.PostgresURL != "":
		logger.Info("using PostgreSQL storage")
		return postgres.NewDriver(ctx, postgres.Config{
			URL:      o.PostgresURL,
			MaxConns: o.MaxConns,
			Retry:    o.Retry,
			Logger:   logger,
		})
	case o.SQLitePath != "":
		logger.Info("using SQLite storage", zap.String("path", o.SQLitePath))
		return sqlite.NewDriver(o.SQLitePath, logger)
	default:
		logger.Info("using in-memory storage")
		return inmemory.NewDriver(), nil
	}
}
