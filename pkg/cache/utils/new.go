// Package cacheutils builds the configured cache driver.
package cacheutils

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/papercomputeco/memoir/pkg/cache"
	"github.com/papercomputeco/memoir/pkg/cache/inmemory"
	"github.com/papercomputeco/memoir/pkg/cache/redis"
	"github.com/papercomputeco/memoir/pkg/retry"
)

type NewCacheDriverOpts struct {
	// ProviderType is "redis" or "memory".
	ProviderType string

	Addr     string
	Password string
	DB       int
	PoolSize int

	Retry  retry.Policy
	Logger *zap.Logger
}

func NewCacheDriver(o *NewCacheDriverOpts) (cache.Driver, error) {
	switch o.ProviderType {
	case "redis":
		return redis.NewDriver(redis.Config{
			Addr:     o.Addr,
			Password: o.Password,
			DB:       o.DB,
			PoolSize: o.PoolSize,
			Retry:    o.Retry,
			Logger:   o.Logger,
		})
	case "memory", "inmemory", "":
		return inmemory.NewDriver(), nil
	default:
		return nil, fmt.Errorf("unsupported cache provider: %s", o.ProviderType)
	}
}
