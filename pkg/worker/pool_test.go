package worker_test

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/papercomputeco/memoir/pkg/logger"
	"github.com/papercomputeco/memoir/pkg/metrics"
	"github.com/papercomputeco/memoir/pkg/worker"
)

var _ = Describe("Worker Pool", func() {
	var (
		wp *worker.Pool
		m  *metrics.Metrics
	)

	newPool := func(c *worker.Config) *worker.Pool {
		c.Logger = logger.Nop()
		c.Metrics = m
		p, err := worker.NewPool(c)
		Expect(err).NotTo(HaveOccurred())
		return p
	}

	BeforeEach(func() {
		m = metrics.New("test")
	})

	Describe("Enqueue", func() {
		It("runs queued tasks and drains them on Close", func() {
			wp = newPool(&worker.Config{})

			var ran atomic.Int32
			for range 10 {
				ok := wp.Enqueue(worker.Task{
					Name:   "count",
					UserID: "user_123",
					Run: func(context.Context) error {
						ran.Add(1)
						return nil
					},
				})
				Expect(ok).To(BeTrue())
			}

			wp.Close()
			Expect(ran.Load()).To(Equal(int32(10)))
			Expect(testutil.ToFloat64(m.Tasks.WithLabelValues("count", "ok"))).To(Equal(10.0))
		})

		It("returns false when the queue is full", func() {
			wp = newPool(&worker.Config{NumWorkers: 1, QueueSize: 1})

			release := make(chan struct{})
			started := make(chan struct{})
			Expect(wp.Enqueue(worker.Task{Name: "block", Run: func(context.Context) error {
				close(started)
				<-release
				return nil
			}})).To(BeTrue())
			Eventually(started).Should(BeClosed())

			Expect(wp.Enqueue(worker.Task{Name: "fill", Run: func(context.Context) error { return nil }})).To(BeTrue())
			Expect(wp.Enqueue(worker.Task{Name: "overflow", Run: func(context.Context) error { return nil }})).To(BeFalse())
			Expect(wp.Submit(worker.Task{Name: "overflow", Run: func(context.Context) error { return nil }})).To(MatchError(worker.ErrQueueFull))

			close(release)
			wp.Close()
			Expect(testutil.ToFloat64(m.Tasks.WithLabelValues("overflow", "dropped"))).To(Equal(2.0))
		})

		It("rejects tasks after shutdown", func() {
			wp = newPool(&worker.Config{})
			wp.Close()

			err := wp.Submit(worker.Task{Name: "late", Run: func(context.Context) error { return nil }})
			Expect(err).To(MatchError(worker.ErrPoolClosed))
		})
	})

	Describe("Results", func() {
		It("is nil unless a buffer is configured", func() {
			wp = newPool(&worker.Config{})
			Expect(wp.Results()).To(BeNil())
			wp.Close()
		})

		It("reports task outcomes", func() {
			wp = newPool(&worker.Config{ResultBuffer: 4})
			boom := errors.New("boom")

			wp.Enqueue(worker.Task{Name: "fail", UserID: "u1", Run: func(context.Context) error { return boom }})

			var res worker.Result
			Eventually(wp.Results()).Should(Receive(&res))
			Expect(res.Name).To(Equal("fail"))
			Expect(res.UserID).To(Equal("u1"))
			Expect(res.Err).To(MatchError(boom))

			wp.Close()
			Eventually(wp.Results()).Should(BeClosed())
		})

		It("recovers from panicking tasks", func() {
			wp = newPool(&worker.Config{NumWorkers: 1, ResultBuffer: 4})

			wp.Enqueue(worker.Task{Name: "panic", Run: func(context.Context) error { panic("bad") }})
			wp.Enqueue(worker.Task{Name: "after", Run: func(context.Context) error { return nil }})

			var first, second worker.Result
			Eventually(wp.Results()).Should(Receive(&first))
			Eventually(wp.Results()).Should(Receive(&second))
			Expect(first.Err).To(MatchError(ContainSubstring("task panicked")))
			Expect(second.Err).NotTo(HaveOccurred())
			wp.Close()
		})
	})

	Describe("Shutdown", func() {
		It("returns nil when tasks finish within the grace period", func() {
			wp = newPool(&worker.Config{})
			wp.Enqueue(worker.Task{Name: "quick", Run: func(context.Context) error {
				time.Sleep(10 * time.Millisecond)
				return nil
			}})

			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			Expect(wp.Shutdown(ctx)).To(Succeed())
		})

		It("cancels in-flight tasks and reports a timeout", func() {
			wp = newPool(&worker.Config{NumWorkers: 1})

			cancelled := make(chan struct{})
			started := make(chan struct{})
			wp.Enqueue(worker.Task{Name: "slow", Run: func(ctx context.Context) error {
				close(started)
				<-ctx.Done()
				close(cancelled)
				return ctx.Err()
			}})
			Eventually(started).Should(BeClosed())

			ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
			defer cancel()
			Expect(wp.Shutdown(ctx)).To(MatchError(worker.ErrShutdownTimeout))
			Eventually(cancelled).Should(BeClosed())
		})

		It("is idempotent", func() {
			wp = newPool(&worker.Config{})
			Expect(wp.Shutdown(context.Background())).To(Succeed())
			Expect(wp.Shutdown(context.Background())).To(Succeed())
		})
	})
})
