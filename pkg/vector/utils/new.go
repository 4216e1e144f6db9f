package vectorutils

import (
	"fmt"
	"net/url"
	"strconv"

	"go.uber.org/zap"

	"github.com/papercomputeco/memoir/pkg/vector"
	"github.com/papercomputeco/memoir/pkg/vector/chroma"
	"github.com/papercomputeco/memoir/pkg/vector/inmemory"
	"github.com/papercomputeco/memoir/pkg/vector/qdrant"
	"github.com/papercomputeco/memoir/pkg/vector/sqlitevec"
)

type NewVectorDriverOpts struct {
	// ProviderType is one of "qdrant", "chroma", "sqlite" or "memory".
	ProviderType string

	// TargetURL is the server URL for qdrant/chroma or the database path for sqlite.
	TargetURL string

	Collection string
	APIKey     string
	Dimensions uint
	Logger     *zap.Logger
}

func NewVectorDriver(o *NewVectorDriverOpts) (vector.Driver, error) {
	switch o.ProviderType {
	case "qdrant":
		host, port, useTLS, err := parseHostPort(o.TargetURL)
		if err != nil {
			return nil, err
		}
		return qdrant.NewDriver(qdrant.Config{
			Host:           host,
			Port:           port,
			UseTLS:         useTLS,
			APIKey:         o.APIKey,
			CollectionName: o.Collection,
			Dimensions:     o.Dimensions,
		}, o.Logger)
	case "chroma":
		return chroma.NewDriver(chroma.Config{
			URL:            o.TargetURL,
			CollectionName: o.Collection,
		}, o.Logger)
	case "sqlite":
		return sqlitevec.NewDriver(sqlitevec.Config{
			DBPath:     o.TargetURL,
			Dimensions: o.Dimensions,
		}, o.Logger)
	case "memory", "inmemory":
		return inmemory.NewDriver(), nil
	default:
		return nil, fmt.Errorf("unsupported vector store provider: %s", o.ProviderType)
	}
}

// parseHostPort accepts "host", "host:port" or a URL like "https://host:6334".
func parseHostPort(target string) (string, int, bool, error) {
	if target == "" {
		return "", 0, false, fmt.Errorf("qdrant target is required")
	}

	u, err := url.Parse(target)
	if err != nil || u.Host == "" {
		u, err = url.Parse("grpc://" + target)
		if err != nil {
			return "", 0, false, fmt.Errorf("parsing qdrant target %q: %w", target, err)
		}
	}

	port := 0
	if p := u.Port(); p != "" {
		port, err = strconv.Atoi(p)
		if err != nil {
			return "", 0, false, fmt.Errorf("parsing qdrant port %q: %w", p, err)
		}
	}
	return u.Hostname(), port, u.Scheme == "https", nil
}
