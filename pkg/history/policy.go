package history

import "github.com/papercomputeco/memoir/pkg/llm"

// State is the summarization state of a conversation, derived from whether
// its first message is a summary.
type State int

const (
	StateNoSummary State = iota
	StateHasSummary
)

func (s State) String() string {
	if s == StateHasSummary {
		return "has_summary"
	}
	return "no_summary"
}

// KeepLast is how many trailing messages survive a compaction verbatim.
const KeepLast = 2

// Policy decides when a conversation is compacted.
type Policy struct {
	// InitialThreshold is the length that triggers the first summary.
	InitialThreshold int

	// Interval is how many messages may follow an existing summary before
	// the next compaction.
	Interval int
}

// DefaultPolicy summarizes at 20 messages, then every 10.
func DefaultPolicy() Policy {
	return Policy{InitialThreshold: 20, Interval: 10}
}

// State reports whether msgs already starts with a summary.
func (p Policy) State(msgs []llm.Message) State {
	if len(msgs) > 0 && msgs[0].Role == llm.RoleSummary {
		return StateHasSummary
	}
	return StateNoSummary
}

// ShouldSummarize reports whether msgs has grown past the policy's limit.
func (p Policy) ShouldSummarize(msgs []llm.Message) bool {
	if len(msgs) == 0 {
		return false
	}

	switch p.State(msgs) {
	case StateHasSummary:
		return len(msgs)-1 >= p.Interval
	default:
		return len(msgs) >= p.InitialThreshold
	}
}

func (p Policy) withDefaults() Policy {
	def := DefaultPolicy()
	if p.InitialThreshold <= 0 {
		p.InitialThreshold = def.InitialThreshold
	}
	if p.Interval <= 0 {
		p.Interval = def.Interval
	}
	return p
}
