package history

import (
	"context"
	"fmt"
	"strings"

	"github.com/papercomputeco/memoir/pkg/llm"
	"github.com/papercomputeco/memoir/pkg/llm/caller"
)

// SummaryPrefix starts the text of every summary message.
const SummaryPrefix = "Summary of previous conversation: "

const condensePrompt = "Condense the following conversation into a concise summary:\n\n%s\n\nSummary:"

// Summarizer condenses a run of messages into summary text with a model.
type Summarizer struct {
	caller caller.Completer
}

func NewSummarizer(c caller.Completer) *Summarizer {
	return &Summarizer{caller: c}
}

// Prompt renders the condensation prompt for msgs.
func Prompt(msgs []llm.Message) string {
	return fmt.Sprintf(condensePrompt, llm.BufferString(msgs))
}

// Summarize returns the model's condensed text for msgs.
func (s *Summarizer) Summarize(ctx context.Context, msgs []llm.Message) (string, error) {
	out, err := s.caller.Complete(ctx, Prompt(msgs))
	if err != nil {
		return "", err
	}

	out = strings.TrimSpace(out)
	if out == "" {
		return "", ErrEmptySummary
	}
	return out, nil
}
