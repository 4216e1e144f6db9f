package inmemory_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/memoir/pkg/cache"
	"github.com/papercomputeco/memoir/pkg/cache/inmemory"
)

var _ = Describe("Driver", func() {
	var (
		driver *inmemory.Driver
		now    time.Time
		ctx    context.Context
	)

	BeforeEach(func() {
		now = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		driver = inmemory.NewDriver().WithClock(func() time.Time { return now })
		ctx = context.Background()
	})

	It("orders values newest first", func() {
		Expect(driver.Push(ctx, "k", []string{"a", "b"}, time.Hour)).To(Succeed())
		Expect(driver.Push(ctx, "k", []string{"c"}, time.Hour)).To(Succeed())

		vals, err := driver.Range(ctx, "k")
		Expect(err).NotTo(HaveOccurred())
		Expect(vals).To(Equal([]string{"c", "b", "a"}))
	})

	It("expires keys after the ttl since the last write", func() {
		Expect(driver.Push(ctx, "k", []string{"a"}, cache.DefaultTTL)).To(Succeed())

		now = now.Add(cache.DefaultTTL - time.Minute)
		Expect(driver.Push(ctx, "k", []string{"b"}, cache.DefaultTTL)).To(Succeed())

		now = now.Add(cache.DefaultTTL - time.Minute)
		vals, _ := driver.Range(ctx, "k")
		Expect(vals).To(HaveLen(2))

		now = now.Add(2 * time.Minute)
		vals, _ = driver.Range(ctx, "k")
		Expect(vals).To(BeEmpty())
	})

	It("overwrites the whole list", func() {
		Expect(driver.Push(ctx, "k", []string{"a", "b"}, time.Hour)).To(Succeed())
		Expect(driver.Overwrite(ctx, "k", []string{"s", "z"}, time.Hour)).To(Succeed())

		vals, _ := driver.Range(ctx, "k")
		Expect(vals).To(Equal([]string{"z", "s"}))
	})

	It("rejects calls after close", func() {
		Expect(driver.Close()).To(Succeed())
		Expect(driver.Push(ctx, "k", []string{"a"}, time.Hour)).To(MatchError(cache.ErrClosed))
	})
})
