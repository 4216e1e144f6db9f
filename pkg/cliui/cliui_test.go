package cliui_test

import (
	"bytes"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/memoir/pkg/cliui"
)

var _ = Describe("cliui", func() {
	DescribeTable("FormatDuration",
		func(d time.Duration, want string) {
			Expect(cliui.FormatDuration(d)).To(Equal(want))
		},
		Entry("milliseconds", 12*time.Millisecond, "12ms"),
		Entry("seconds", 3200*time.Millisecond, "3.2s"),
	)

	It("marks failures and successes", func() {
		Expect(cliui.Mark(nil)).To(Equal(cliui.SuccessMark))
		Expect(cliui.Mark(errors.New("boom"))).To(Equal(cliui.FailMark))
	})

	It("runs the step and reports its error", func() {
		var buf bytes.Buffer
		boom := errors.New("boom")

		err := cliui.Step(&buf, "Saving memory", func() error { return boom })
		Expect(err).To(MatchError(boom))
		Expect(buf.String()).To(ContainSubstring("Saving memory"))
		Expect(buf.String()).To(HaveSuffix("\n"))
	})

	It("lists memories", func() {
		Expect(cliui.MemoryList(nil)).To(ContainSubstring("no memories"))

		out := cliui.MemoryList([]string{"likes tea", "lives in Hanoi"})
		Expect(out).To(ContainSubstring("likes tea"))
		Expect(out).To(ContainSubstring("lives in Hanoi"))
	})

	It("renders markdown", func() {
		out, err := cliui.RenderMarkdown("**hello**")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("hello"))
	})
})
