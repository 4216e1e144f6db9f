package chat_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/memoir/pkg/chat"
)

var _ = Describe("RenderSystemPrompt", func() {
	It("substitutes the recalled memories", func() {
		Expect(chat.RenderSystemPrompt("Known facts:\n{recall_memories}\nBe kind.", "- likes tea")).
			To(Equal("Known facts:\n- likes tea\nBe kind."))
	})

	It("falls back to the default template", func() {
		out := chat.RenderSystemPrompt("", "- likes tea")
		Expect(out).To(ContainSubstring("- likes tea"))
		Expect(out).NotTo(ContainSubstring(chat.RecallPlaceholder))
	})

	It("appends memories to a template without a placeholder", func() {
		Expect(chat.RenderSystemPrompt("Be kind.", "- likes tea")).
			To(Equal("Be kind.\n\n## Relevant memories\n- likes tea"))
	})
})
