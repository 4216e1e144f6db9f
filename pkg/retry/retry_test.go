package retry_test

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/memoir/pkg/retry"
)

var errFlaky = errors.New("flaky")

func alwaysTransient(error) bool { return true }

var _ = Describe("Retry", func() {
	var (
		ctx    context.Context
		policy retry.Policy
	)

	BeforeEach(func() {
		ctx = context.Background()
		policy = retry.Policy{Retries: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, Jitter: 0.5}
	})

	It("returns immediately on success", func() {
		calls := 0
		err := retry.Do(ctx, policy, alwaysTransient, func(context.Context) error {
			calls++
			return nil
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(calls).To(Equal(1))
	})

	It("retries transient failures until one succeeds", func() {
		calls := 0
		v, err := retry.Value(ctx, policy, alwaysTransient, func(context.Context) (string, error) {
			calls++
			if calls < 3 {
				return "", errFlaky
			}
			return "ok", nil
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(v).To(Equal("ok"))
		Expect(calls).To(Equal(3))
	})

	It("gives up after the configured retries", func() {
		calls := 0
		err := retry.Do(ctx, policy, alwaysTransient, func(context.Context) error {
			calls++
			return errFlaky
		})
		Expect(err).To(MatchError(errFlaky))
		Expect(calls).To(Equal(4))
	})

	It("does not retry errors that are not transient", func() {
		calls := 0
		err := retry.Do(ctx, policy, func(error) bool { return false }, func(context.Context) error {
			calls++
			return errFlaky
		})
		Expect(errors.Is(err, errFlaky)).To(BeTrue())
		Expect(calls).To(Equal(1))
	})

	Describe("IsTransient", func() {
		It("never retries cancellation", func() {
			Expect(retry.IsTransient(context.Canceled)).To(BeFalse())
			Expect(retry.IsTransient(context.DeadlineExceeded)).To(BeFalse())
		})

		It("does not retry plain errors", func() {
			Expect(retry.IsTransient(errFlaky)).To(BeFalse())
		})
	})

	Describe("IsRetryableHTTPStatus", func() {
		It("classifies throttling and server errors", func() {
			Expect(retry.IsRetryableHTTPStatus(429)).To(BeTrue())
			Expect(retry.IsRetryableHTTPStatus(503)).To(BeTrue())
			Expect(retry.IsRetryableHTTPStatus(400)).To(BeFalse())
		})
	})
})
