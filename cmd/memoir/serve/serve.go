// Package servecmder provides the serve command that runs the memoir API.
package servecmder

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/papercomputeco/memoir/pkg/config"
	"github.com/papercomputeco/memoir/pkg/logger"
)

type serveCommander struct {
	flags     serveFlags
	cfg       *config.Config
	configDir string
	debug     bool

	logger *zap.Logger
}

// serveFlags are the flag targets. Values reach the server through viper so
// flags, env vars and config.toml resolve in one place.
type serveFlags struct {
	listen              string
	postgres            string
	sqlitePath          string
	cacheProvider       string
	redisAddr           string
	vectorStoreProvider string
	vectorStoreTarget   string
	embeddingProvider   string
	embeddingTarget     string
	embeddingModel      string
	embeddingDimensions uint
	modelProvider       string
	model               string
	modelBaseURL        string
	saveMode            string
	eventsProvider      string
	workers             uint
}

// serveFlagKeys lists every registry flag the serve command binds.
var serveFlagKeys = []string{
	config.FlagAPIListen,
	config.FlagPostgres,
	config.FlagSQLite,
	config.FlagCacheProvider,
	config.FlagRedisAddr,
	config.FlagVectorStoreProv,
	config.FlagVectorStoreTgt,
	config.FlagEmbeddingProv,
	config.FlagEmbeddingTgt,
	config.FlagEmbeddingModel,
	config.FlagEmbeddingDims,
	config.FlagModelProvider,
	config.FlagModel,
	config.FlagModelBaseURL,
	config.FlagSaveMode,
	config.FlagEventsProvider,
	config.FlagWorkers,
}

const serveLongDesc string = `Run the memoir server.

The server keeps a per-user conversation (cache backed by durable storage,
compacted into summaries as it grows) and a long-term recall memory of
facts searched by similarity before every model call.

Routes:
  POST   /v1/chat                 Run a chat turn
  GET    /v1/history/:user_id     Show the current conversation
  DELETE /v1/history/:user_id     Drop the cached conversation
  POST   /v1/memories             Save a fact
  GET    /v1/memories/search      Search facts
  GET    /metrics                 Prometheus metrics
  ALL    /mcp                     MCP server with the recall memory tools

Every flag can also be set in config.toml or with a MEMOIR_ environment
variable, e.g. MEMOIR_CACHE_PROVIDER=redis.`

const serveShortDesc string = "Run the memoir server"

func NewServeCmd() *cobra.Command {
	cmder := &serveCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(cmder.configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			config.BindRegisteredFlags(v, cmd, config.Flags, serveFlagKeys)
			cmder.cfg = config.FromViper(v)
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			return cmder.run(cmd.Context())
		},
	}

	f := &cmder.flags
	config.AddStringFlag(cmd, config.Flags, config.FlagAPIListen, &f.listen)
	config.AddStringFlag(cmd, config.Flags, config.FlagPostgres, &f.postgres)
	config.AddStringFlag(cmd, config.Flags, config.FlagSQLite, &f.sqlitePath)
	config.AddStringFlag(cmd, config.Flags, config.FlagCacheProvider, &f.cacheProvider)
	config.AddStringFlag(cmd, config.Flags, config.FlagRedisAddr, &f.redisAddr)
	config.AddStringFlag(cmd, config.Flags, config.FlagVectorStoreProv, &f.vectorStoreProvider)
	config.AddStringFlag(cmd, config.Flags, config.FlagVectorStoreTgt, &f.vectorStoreTarget)
	config.AddStringFlag(cmd, config.Flags, config.FlagEmbeddingProv, &f.embeddingProvider)
	config.AddStringFlag(cmd, config.Flags, config.FlagEmbeddingTgt, &f.embeddingTarget)
	config.AddStringFlag(cmd, config.Flags, config.FlagEmbeddingModel, &f.embeddingModel)
	config.AddUintFlag(cmd, config.Flags, config.FlagEmbeddingDims, &f.embeddingDimensions)
	config.AddStringFlag(cmd, config.Flags, config.FlagModelProvider, &f.modelProvider)
	config.AddStringFlag(cmd, config.Flags, config.FlagModel, &f.model)
	config.AddStringFlag(cmd, config.Flags, config.FlagModelBaseURL, &f.modelBaseURL)
	config.AddStringFlag(cmd, config.Flags, config.FlagSaveMode, &f.saveMode)
	config.AddStringFlag(cmd, config.Flags, config.FlagEventsProvider, &f.eventsProvider)
	config.AddUintFlag(cmd, config.Flags, config.FlagWorkers, &f.workers)

	return cmd
}

func (c *serveCommander) run(ctx context.Context) error {
	c.logger = logger.NewLogger(c.debug)
	defer func() { _ = c.logger.Sync() }()

	if ctx == nil {
		ctx = context.Background()
	}

	srv, err := build(ctx, c.cfg, c.configDir, c.logger)
	if err != nil {
		return err
	}
	defer srv.close(c.cfg.ShutdownGrace())

	// Channel to capture errors from the server goroutine
	errChan := make(chan error, 1)

	go func() {
		if err := srv.api.Run(); err != nil {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()

	// Wait for interrupt signal or error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		c.logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
		return nil
	}
}
