// Package client is a Go client for the memoir HTTP API, used by the chat
// and recall commands.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/papercomputeco/memoir/api"
	"github.com/papercomputeco/memoir/pkg/chat"
	"github.com/papercomputeco/memoir/pkg/llm"
	"github.com/papercomputeco/memoir/pkg/memory"
)

// DefaultTimeout bounds a single request. Chat turns can be slow.
const DefaultTimeout = 5 * time.Minute

// StatusError is returned for any non-2xx response.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("memoir API returned status %d: %s", e.Code, e.Message)
}

// SearchResponse is the payload of GET /v1/memories/search.
type SearchResponse struct {
	Status   string   `json:"status"`
	Query    string   `json:"query"`
	Count    int      `json:"count"`
	Memories []string `json:"memories"`
	Message  string   `json:"message,omitempty"`
}

type Client struct {
	target string
	http   *http.Client
}

// New returns a client for the API at target, e.g. "http://localhost:8081".
func New(target string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	return &Client{
		target: strings.TrimRight(target, "/"),
		http:   httpClient,
	}
}

// Chat runs one turn for userID.
func (c *Client) Chat(ctx context.Context, userID, message string, images []string) (*chat.TurnResult, error) {
	var res chat.TurnResult
	err := c.do(ctx, http.MethodPost, "/v1/chat", api.ChatRequest{
		UserID:  userID,
		Message: message,
		Images:  images,
	}, &res)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// History returns the conversation the model sees on the next turn.
func (c *Client) History(ctx context.Context, userID string) (*api.HistoryResponse, error) {
	var res api.HistoryResponse
	if err := c.do(ctx, http.MethodGet, "/v1/history/"+url.PathEscape(userID), nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// ResetHistory drops the cached conversation for userID.
func (c *Client) ResetHistory(ctx context.Context, userID string) error {
	return c.do(ctx, http.MethodDelete, "/v1/history/"+url.PathEscape(userID), nil, nil)
}

// SaveMemory stores a fact for userID.
func (c *Client) SaveMemory(ctx context.Context, userID, content string) (*api.SaveMemoryResponse, error) {
	var res api.SaveMemoryResponse
	err := c.do(ctx, http.MethodPost, "/v1/memories", api.SaveMemoryRequest{
		UserID:  userID,
		Content: content,
	}, &res)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// SearchMemories searches userID's facts.
func (c *Client) SearchMemories(ctx context.Context, userID, query string) (*SearchResponse, error) {
	params := url.Values{}
	params.Set("user_id", userID)
	params.Set("query", query)

	var res SearchResponse
	if err := c.do(ctx, http.MethodGet, "/v1/memories/search?"+params.Encode(), nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// GetMemory returns one of userID's facts. A missing fact is a StatusError
// with code 404.
func (c *Client) GetMemory(ctx context.Context, userID, id string) (*memory.Fact, error) {
	params := url.Values{}
	params.Set("user_id", userID)

	var res memory.Fact
	if err := c.do(ctx, http.MethodGet, "/v1/memories/"+url.PathEscape(id)+"?"+params.Encode(), nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.target+path, body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("sending request to memoir API: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return &StatusError{Code: resp.StatusCode, Message: errorMessage(data)}
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}
	return nil
}

// errorMessage pulls the message out of either error body the API sends.
func errorMessage(data []byte) string {
	var body struct {
		llm.ErrorResponse
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &body); err == nil {
		if body.Error != "" {
			return body.Error
		}
		if body.Message != "" {
			return body.Message
		}
	}
	return strings.TrimSpace(string(data))
}

// IsStatus reports whether err is a StatusError with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == code
}
