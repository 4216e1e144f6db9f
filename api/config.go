// Package api provides memoir's HTTP API: chat turns, conversation history
// and recall memory.
package api

import (
	"net/http"

	"github.com/papercomputeco/memoir/pkg/chat"
	"github.com/papercomputeco/memoir/pkg/memory"
	"github.com/papercomputeco/memoir/pkg/metrics"
	"github.com/papercomputeco/memoir/pkg/session"
)

// Config is the API server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8081")
	ListenAddr string

	// Engine runs chat turns. Required.
	Engine *chat.Engine

	// Sessions holds the per-user conversations. Required.
	Sessions *session.Registry

	// Memory backs the /v1/memories routes. Nil disables them.
	Memory *memory.Service

	// MCP is mounted at /mcp when set.
	MCP http.Handler

	// Metrics is served at /metrics when set.
	Metrics *metrics.Metrics
}
