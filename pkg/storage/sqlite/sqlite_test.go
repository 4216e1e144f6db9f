package sqlite_test

import (
	"context"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/memoir/pkg/llm"
	"github.com/papercomputeco/memoir/pkg/storage"
	"github.com/papercomputeco/memoir/pkg/storage/sqlite"
)

var _ = Describe("Driver", func() {
	var (
		driver *sqlite.Driver
		ctx    context.Context
		base   time.Time
	)

	BeforeEach(func() {
		ctx = context.Background()
		base = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

		var err error
		driver, err = sqlite.NewDriver(":memory:", nil)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		if driver != nil {
			driver.Close()
		}
	})

	Describe("NewDriver", func() {
		It("creates a driver with file database", func() {
			tmpDir := GinkgoT().TempDir()
			dbPath := filepath.Join(tmpDir, "test.db")

			s, err := sqlite.NewDriver(dbPath, nil)
			Expect(err).NotTo(HaveOccurred())
			defer s.Close()

			// Verify file was created
			_, err = os.Stat(dbPath)
			Expect(err).NotTo(HaveOccurred())
		})

		It("reopens an existing database and keeps its rows", func() {
			dbPath := filepath.Join(GinkgoT().TempDir(), "reopen.db")

			first, err := sqlite.NewDriver(dbPath, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(first.Insert(ctx, []storage.Row{
				{MessageID: "m1", UserID: "u", Text: "persisted", CreatedAt: base},
			})).To(Succeed())
			Expect(first.Close()).To(Succeed())

			second, err := sqlite.NewDriver(dbPath, nil)
			Expect(err).NotTo(HaveOccurred())
			defer second.Close()

			got, err := second.History(ctx, "u")
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(HaveLen(1))
			Expect(got[0].Text).To(Equal("persisted"))
		})
	})

	Describe("Insert and History", func() {
		It("round trips rows oldest first", func() {
			rows := []storage.Row{
				{MessageID: "m1", UserID: "user_123", Text: "hi", CreatedAt: base},
				{MessageID: "m2", UserID: "user_123", IsAssistant: true, Text: "hello", CreatedAt: base.Add(time.Second)},
			}
			Expect(driver.Insert(ctx, rows)).To(Succeed())

			got, err := driver.History(ctx, "user_123")
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(HaveLen(2))
			Expect(got[0].MessageID).To(Equal("m1"))
			Expect(got[0].IsAssistant).To(BeFalse())
			Expect(got[1].MessageID).To(Equal("m2"))
			Expect(got[1].IsAssistant).To(BeTrue())
			Expect(got[1].CreatedAt).To(BeTemporally("==", base.Add(time.Second)))
		})

		It("keeps insertion order for rows with the same timestamp", func() {
			rows := []storage.Row{
				{MessageID: "a", UserID: "u", Text: "first", CreatedAt: base},
				{MessageID: "b", UserID: "u", Text: "second", CreatedAt: base},
			}
			Expect(driver.Insert(ctx, rows)).To(Succeed())

			got, err := driver.History(ctx, "u")
			Expect(err).NotTo(HaveOccurred())
			Expect(got[0].Text).To(Equal("first"))
			Expect(got[1].Text).To(Equal("second"))
		})

		It("skips rows whose message id already exists", func() {
			row := storage.Row{MessageID: "m1", UserID: "u", Text: "once", CreatedAt: base}
			Expect(driver.Insert(ctx, []storage.Row{row})).To(Succeed())

			row.Text = "twice"
			Expect(driver.Insert(ctx, []storage.Row{row, {MessageID: "m2", UserID: "u", Text: "new", CreatedAt: base}})).To(Succeed())

			got, err := driver.History(ctx, "u")
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(HaveLen(2))
			Expect(got[0].Text).To(Equal("once"))
		})

		It("isolates users", func() {
			Expect(driver.Insert(ctx, []storage.Row{
				{MessageID: "m1", UserID: "alice", Text: "a", CreatedAt: base},
				{MessageID: "m2", UserID: "bob", Text: "b", CreatedAt: base},
			})).To(Succeed())

			got, err := driver.History(ctx, "alice")
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(HaveLen(1))
		})

		It("rejects rows without a user", func() {
			err := driver.Insert(ctx, []storage.Row{{MessageID: "m1", Text: "x", CreatedAt: base}})
			Expect(err).To(MatchError(storage.ErrMissingUserID))
		})

		It("returns nothing for an unknown user", func() {
			got, err := driver.History(ctx, "nobody")
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(BeEmpty())
		})
	})

	Describe("NewRow", func() {
		It("maps assistant messages and round trips through Message", func() {
			msg := llm.NewTextMessage(llm.RoleAssistant, "hello")
			msg.ID = "m1"
			msg.CreatedAt = base

			row := storage.NewRow("u", msg)
			Expect(row.IsAssistant).To(BeTrue())
			Expect(row.Message().Role).To(Equal(llm.RoleAssistant))
			Expect(row.Message().ID).To(Equal("m1"))
		})
	})
})
