package memory

import (
	"encoding/json"
	"fmt"
)

// Fact is one long-term memory about a user. Facts are never edited: a
// near-duplicate save deletes the old fact and stores a new one.
type Fact struct {
	ID      string  `json:"id"`
	UserID  string  `json:"user_id"`
	Content string  `json:"content"`
	Score   float32 `json:"score,omitempty"`
}

// SaveAck acknowledges a save. Queued saves carry no ID yet.
type SaveAck struct {
	Queued   bool     `json:"queued"`
	ID       string   `json:"id,omitempty"`
	Replaced []string `json:"replaced,omitempty"`
	Memory   string   `json:"memory"`
}

// Message is the acknowledgment text handed back to the model.
func (a SaveAck) Message() string {
	return fmt.Sprintf("Memory accepted and will be remembered: '%s'", a.Memory)
}

// Status is the outcome of a search.
type Status string

const (
	StatusSuccess Status = "success"
	StatusEmpty   Status = "empty"
	StatusError   Status = "error"
)

// SearchResult is the outcome of a search. An empty result is a normal
// outcome, distinct from an error.
type SearchResult struct {
	Status   Status
	Query    string
	Memories []Fact
}

// Contents returns the text of each matched fact, best match first.
func (r SearchResult) Contents() []string {
	out := make([]string, 0, len(r.Memories))
	for _, f := range r.Memories {
		out = append(out, f.Content)
	}
	return out
}

type searchPayload struct {
	Status   Status   `json:"status"`
	Query    string   `json:"query"`
	Count    int      `json:"count"`
	Memories []string `json:"memories"`
}

type errorPayload struct {
	Status  Status `json:"status"`
	Message string `json:"message"`
}

// JSON renders the payload returned by the search tool. Empty results
// report status "success" with a zero count.
func (r SearchResult) JSON() string {
	status := r.Status
	if status == StatusEmpty {
		status = StatusSuccess
	}
	data, _ := json.Marshal(searchPayload{
		Status:   status,
		Query:    r.Query,
		Count:    len(r.Memories),
		Memories: r.Contents(),
	})
	return string(data)
}

// ErrorPayload renders a tool error payload.
func ErrorPayload(err error) string {
	data, _ := json.Marshal(errorPayload{Status: StatusError, Message: err.Error()})
	return string(data)
}
