package session_test

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/memoir/pkg/history"
	"github.com/papercomputeco/memoir/pkg/logger"
	"github.com/papercomputeco/memoir/pkg/session"
	testutils "github.com/papercomputeco/memoir/pkg/utils/test"
)

var _ = Describe("Registry", func() {
	var (
		ctx   context.Context
		store *testutils.MockStorage
		kv    *testutils.MockCache
		reg   *session.Registry
	)

	BeforeEach(func() {
		ctx = context.Background()
		store = testutils.NewMockStorage()
		kv = testutils.NewMockCache()
		reg = session.NewRegistry(history.Config{
			Storage: store,
			Cache:   kv,
			Logger:  logger.Nop(),
		})
	})

	It("rejects a missing user id", func() {
		_, err := reg.Get(ctx, "")
		Expect(err).To(MatchError(history.ErrMissingUserID))
	})

	It("returns the same manager for the same user", func() {
		a, err := reg.Get(ctx, "user_123")
		Expect(err).NotTo(HaveOccurred())
		b, err := reg.Get(ctx, "user_123")
		Expect(err).NotTo(HaveOccurred())
		Expect(a).To(BeIdenticalTo(b))

		c, err := reg.Get(ctx, "user_456")
		Expect(err).NotTo(HaveOccurred())
		Expect(c).NotTo(BeIdenticalTo(a))
		Expect(reg.Len()).To(Equal(2))
	})

	It("loads the stored conversation once", func() {
		seed, err := history.NewManager(history.Config{UserID: "user_123", Storage: store, Cache: kv})
		Expect(err).NotTo(HaveOccurred())
		seed.Append(ctx, testutils.Conversation(3))

		var wg sync.WaitGroup
		for range 8 {
			wg.Add(1)
			go func() {
				defer GinkgoRecover()
				defer wg.Done()
				m, err := reg.Get(ctx, "user_123")
				Expect(err).NotTo(HaveOccurred())
				Expect(m.Len()).To(Equal(3))
			}()
		}
		wg.Wait()

		ranges, _, _ := kv.Counts()
		Expect(ranges).To(Equal(1))
	})

	It("reloads after Forget", func() {
		a, err := reg.Get(ctx, "user_123")
		Expect(err).NotTo(HaveOccurred())

		reg.Forget("user_123")
		b, err := reg.Get(ctx, "user_123")
		Expect(err).NotTo(HaveOccurred())
		Expect(b).NotTo(BeIdenticalTo(a))
	})

	It("serializes turns for one user", func() {
		var inside, peak atomic.Int32
		var wg sync.WaitGroup
		for range 4 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				unlock := reg.Lock("user_123")
				defer unlock()
				n := inside.Add(1)
				if n > peak.Load() {
					peak.Store(n)
				}
				time.Sleep(5 * time.Millisecond)
				inside.Add(-1)
			}()
		}
		wg.Wait()
		Expect(peak.Load()).To(Equal(int32(1)))
	})
})
