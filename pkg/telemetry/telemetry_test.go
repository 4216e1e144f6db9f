package telemetry_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/papercomputeco/memoir/pkg/logger"
	"github.com/papercomputeco/memoir/pkg/telemetry"
)

var _ = Describe("Init", func() {
	BeforeEach(func() {
		prev := otel.GetTracerProvider()
		DeferCleanup(func() { otel.SetTracerProvider(prev) })
	})

	It("leaves the global provider alone when disabled", func() {
		before := otel.GetTracerProvider()

		p, err := telemetry.Init(context.Background(), telemetry.Config{}, logger.Nop())
		Expect(err).NotTo(HaveOccurred())
		Expect(p.Enabled()).To(BeFalse())
		Expect(otel.GetTracerProvider()).To(BeIdenticalTo(before))
		Expect(p.Shutdown(context.Background())).To(Succeed())
	})

	It("installs an SDK provider when enabled", func() {
		p, err := telemetry.Init(context.Background(), telemetry.Config{
			Enabled:      true,
			OTLPEndpoint: "localhost:4317",
			SampleRate:   1,
		}, logger.Nop())
		Expect(err).NotTo(HaveOccurred())
		Expect(p.Enabled()).To(BeTrue())
		Expect(otel.GetTracerProvider()).To(BeAssignableToTypeOf(&sdktrace.TracerProvider{}))

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = p.Shutdown(ctx)
	})

	It("treats a nil provider as disabled", func() {
		var p *telemetry.Provider
		Expect(p.Enabled()).To(BeFalse())
		Expect(p.Shutdown(context.Background())).To(Succeed())
	})
})
