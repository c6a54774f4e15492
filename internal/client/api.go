package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// APIError carries the HTTP status and the server's error body.
type APIError struct {
	Status  int
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d (%s): %s", e.Status, e.Code, e.Message)
}

// IsRateLimited reports whether err is a 429 from the server.
func IsRateLimited(err error) bool {
	apiErr, ok := err.(*APIError)
	return ok && apiErr.Status == http.StatusTooManyRequests
}

// APIClient talks to the chat backend over REST. The user id is sent as the
// X-User-ID identity header on every request.
type APIClient struct {
	baseURL    string
	userID     string
	httpClient *http.Client
}

func NewAPIClient(baseURL, userID string) *APIClient {
	return &APIClient{
		baseURL: baseURL,
		userID:  userID,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

type sendMessageRequest struct {
	ConversationID string `json:"conversationId"`
	Text           string `json:"text"`
	ReplyToID      string `json:"replyToId,omitempty"`
}

// MessagePage is one page of the conversation history.
type MessagePage struct {
	Messages []Message `json:"messages"`
	Total    int       `json:"total"`
	HasMore  bool      `json:"hasMore"`
}

// MessageQuery selects a history window. After takes precedence in the poll
// path; Limit of zero means the server default.
type MessageQuery struct {
	Limit  int
	Offset int
	Before string
	After  string
}

// SendMessage posts a new message and returns the server-confirmed version
// with its authoritative id and timestamp.
func (c *APIClient) SendMessage(ctx context.Context, conversationID, text, replyToID string) (Message, error) {
	body := sendMessageRequest{
		ConversationID: conversationID,
		Text:           text,
		ReplyToID:      replyToID,
	}

	var msg Message
	if err := c.do(ctx, http.MethodPost, "/messages", nil, body, &msg); err != nil {
		return Message{}, err
	}
	return msg, nil
}

// GetMessages fetches a page of the conversation history.
func (c *APIClient) GetMessages(ctx context.Context, conversationID string, q MessageQuery) (MessagePage, error) {
	params := url.Values{}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Offset > 0 {
		params.Set("offset", strconv.Itoa(q.Offset))
	}
	if q.Before != "" {
		params.Set("before", q.Before)
	}
	if q.After != "" {
		params.Set("after", q.After)
	}

	var page MessagePage
	path := "/conversations/" + url.PathEscape(conversationID) + "/messages"
	if err := c.do(ctx, http.MethodGet, path, params, nil, &page); err != nil {
		return MessagePage{}, err
	}
	return page, nil
}

// FetchSince returns all messages newer than afterID, the poller's fetch.
func (c *APIClient) FetchSince(ctx context.Context, conversationID, afterID string) ([]Message, error) {
	page, err := c.GetMessages(ctx, conversationID, MessageQuery{After: afterID})
	if err != nil {
		return nil, err
	}
	return page.Messages, nil
}

func (c *APIClient) do(ctx context.Context, method, path string, params url.Values, in, out interface{}) error {
	target := c.baseURL + path
	if len(params) > 0 {
		target += "?" + params.Encode()
	}

	var reqBody io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reqBody = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reqBody)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("X-User-ID", c.userID)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		apiErr := &APIError{Status: resp.StatusCode}
		if decodeErr := json.NewDecoder(resp.Body).Decode(apiErr); decodeErr != nil {
			apiErr.Message = resp.Status
		}
		return apiErr
	}

	if out != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
