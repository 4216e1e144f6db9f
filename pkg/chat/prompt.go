package chat

import "strings"

// RecallPlaceholder is replaced with the recalled memories in a system
// prompt template.
const RecallPlaceholder = "{recall_memories}"

// DefaultSystemPrompt is used when no template is configured.
const DefaultSystemPrompt = `You are a helpful assistant with long-term memory. You remember important
facts about the user across conversations and use them to personalize your
answers.

## Relevant memories
These are facts you saved about this user in earlier conversations:
{recall_memories}

## Tools
- save_recall_memory: store one short, self-contained fact about the user
  (name, preferences, plans, family) when they share something worth
  remembering.
- search_recall_memories: look up stored facts related to the current topic.

Never invent facts about the user. If a tool reports an error, tell the user
instead of calling it again right away.`

// RenderSystemPrompt substitutes recall into every placeholder of tmpl. A
// template without a placeholder gets the memories appended.
func RenderSystemPrompt(tmpl, recall string) string {
	if tmpl == "" {
		tmpl = DefaultSystemPrompt
	}
	if !strings.Contains(tmpl, RecallPlaceholder) {
		return tmpl + "\n\n## Relevant memories\n" + recall
	}
	return strings.ReplaceAll(tmpl, RecallPlaceholder, recall)
}
