package servecmder

import (
	"context"
	"os"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/memoir/pkg/config"
	"github.com/papercomputeco/memoir/pkg/logger"
)

var _ = Describe("NewServeCmd", func() {
	It("registers the shared flags", func() {
		cmd := NewServeCmd()
		Expect(cmd.Use).To(Equal("serve"))

		for _, key := range serveFlagKeys {
			name := config.Flags[key].Name
			Expect(cmd.Flags().Lookup(name)).NotTo(BeNil(), name)
		}
	})

	It("defaults flags from the config defaults", func() {
		cmd := NewServeCmd()
		defaults := config.NewDefaultConfig()

		Expect(cmd.Flags().Lookup("listen").DefValue).To(Equal(defaults.API.Listen))
		Expect(cmd.Flags().Lookup("save-mode").DefValue).To(Equal(defaults.Recall.SaveMode))
	})
})

var _ = Describe("build", func() {
	var (
		ctx    context.Context
		tmpDir string
		cfg    *config.Config
	)

	BeforeEach(func() {
		ctx = context.Background()

		var err error
		tmpDir, err = os.MkdirTemp("", "memoir-serve-test-*")
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(os.RemoveAll, tmpDir)

		cfg = config.NewDefaultConfig()
		cfg.Cache.Provider = "memory"
		cfg.VectorStore.Provider = "memory"
		cfg.Model.Provider = "ollama"
		cfg.Events.Provider = "nop"
	})

	It("assembles an in-memory server", func() {
		srv, err := build(ctx, cfg, tmpDir, logger.Nop())
		Expect(err).NotTo(HaveOccurred())
		Expect(srv.api).NotTo(BeNil())
		Expect(srv.pool).NotTo(BeNil())
		Expect(srv.closers).To(HaveLen(4))

		srv.close(time.Second)
	})

	It("builds a separate summary caller when configured", func() {
		cfg.Model.SummaryModel = "llama3.2:1b"

		srv, err := build(ctx, cfg, tmpDir, logger.Nop())
		Expect(err).NotTo(HaveOccurred())
		srv.close(time.Second)
	})

	It("rejects an unknown cache provider", func() {
		cfg.Cache.Provider = "memcached"

		_, err := build(ctx, cfg, tmpDir, logger.Nop())
		Expect(err).To(MatchError(ContainSubstring("creating cache driver")))
	})

	It("rejects an unknown save mode", func() {
		cfg.Recall.SaveMode = "eventually"

		_, err := build(ctx, cfg, tmpDir, logger.Nop())
		Expect(err).To(MatchError(ContainSubstring("unknown recall save mode")))
	})

	It("rejects an unknown event provider", func() {
		cfg.Events.Provider = "nats"

		_, err := build(ctx, cfg, tmpDir, logger.Nop())
		Expect(err).To(MatchError(ContainSubstring("creating event publisher")))
	})
})
