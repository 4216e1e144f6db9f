package redis_test

import (
	"context"
	"time"

	"github.com/alicebob/miniredis/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/memoir/pkg/cache"
	cacheredis "github.com/papercomputeco/memoir/pkg/cache/redis"
	"github.com/papercomputeco/memoir/pkg/retry"
)

var _ = Describe("Driver", func() {
	var (
		mr     *miniredis.Miniredis
		driver *cacheredis.Driver
		ctx    context.Context
		key    string
	)

	BeforeEach(func() {
		var err error
		mr, err = miniredis.Run()
		Expect(err).NotTo(HaveOccurred())

		driver, err = cacheredis.NewDriver(cacheredis.Config{
			Addr:  mr.Addr(),
			Retry: retry.Policy{Retries: 1, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond},
		})
		Expect(err).NotTo(HaveOccurred())

		ctx = context.Background()
		key = cache.HistoryKey("user_123")
	})

	AfterEach(func() {
		driver.Close()
		mr.Close()
	})

	It("fails to construct when the server is unreachable", func() {
		addr := mr.Addr()
		mr.Close()

		_, err := cacheredis.NewDriver(cacheredis.Config{
			Addr:  addr,
			Retry: retry.Policy{Retries: 0, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond},
		})
		Expect(err).To(HaveOccurred())

		// Restart so AfterEach can close cleanly.
		mr, err = miniredis.Run()
		Expect(err).NotTo(HaveOccurred())
	})

	It("returns an empty list for a missing key", func() {
		vals, err := driver.Range(ctx, key)
		Expect(err).NotTo(HaveOccurred())
		Expect(vals).To(BeEmpty())
	})

	It("keeps the most recent value at index 0", func() {
		Expect(driver.Push(ctx, key, []string{"a", "b"}, time.Hour)).To(Succeed())
		Expect(driver.Push(ctx, key, []string{"c"}, time.Hour)).To(Succeed())

		vals, err := driver.Range(ctx, key)
		Expect(err).NotTo(HaveOccurred())
		Expect(vals).To(Equal([]string{"c", "b", "a"}))
	})

	It("refreshes the expiry on every push", func() {
		Expect(driver.Push(ctx, key, []string{"a"}, cache.DefaultTTL)).To(Succeed())
		mr.FastForward(23 * time.Hour)

		Expect(driver.Push(ctx, key, []string{"b"}, cache.DefaultTTL)).To(Succeed())
		Expect(mr.TTL(key)).To(Equal(cache.DefaultTTL))

		mr.FastForward(23 * time.Hour)
		Expect(mr.Exists(key)).To(BeTrue())

		mr.FastForward(2 * time.Hour)
		Expect(mr.Exists(key)).To(BeFalse())
	})

	It("replaces the whole list on overwrite", func() {
		Expect(driver.Push(ctx, key, []string{"a", "b", "c"}, time.Hour)).To(Succeed())
		Expect(driver.Overwrite(ctx, key, []string{"summary", "y", "z"}, cache.DefaultTTL)).To(Succeed())

		vals, err := driver.Range(ctx, key)
		Expect(err).NotTo(HaveOccurred())
		Expect(vals).To(Equal([]string{"z", "y", "summary"}))
		Expect(mr.TTL(key)).To(Equal(cache.DefaultTTL))
	})

	It("clears the key when overwriting with nothing", func() {
		Expect(driver.Push(ctx, key, []string{"a"}, time.Hour)).To(Succeed())
		Expect(driver.Overwrite(ctx, key, nil, time.Hour)).To(Succeed())
		Expect(mr.Exists(key)).To(BeFalse())
	})

	It("deletes keys", func() {
		Expect(driver.Push(ctx, key, []string{"a"}, time.Hour)).To(Succeed())
		Expect(driver.Delete(ctx, key)).To(Succeed())
		Expect(mr.Exists(key)).To(BeFalse())
	})

	It("rejects calls after close", func() {
		Expect(driver.Close()).To(Succeed())
		_, err := driver.Range(ctx, key)
		Expect(err).To(MatchError(cache.ErrClosed))
	})
})
