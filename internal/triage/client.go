package triage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/google/uuid"

	"github.com/comigor/triagem-go/internal/logger"
)

// Channel is the full request/response contract with the triage service.
type Channel interface {
	SendMessage(ctx context.Context, message, sessionID string) (Reply, error)
	ListConversations(ctx context.Context, phoneNumber string) ([]Conversation, error)
	CreateConversation(ctx context.Context, phoneNumber string) (string, error)
	Messages(ctx context.Context, sessionID string) ([]Message, error)
	Summary(ctx context.Context, sessionID string) (RawSummary, error)
}

// Client talks to the triage service over HTTP. Every call is a single
// request: no retries, no caching.
type Client struct {
	baseURL string
	client  *http.Client
}

var _ Channel = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.client = hc
		}
	}
}

// NewClient creates a Client for the service at baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		client:  &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SendMessage posts a chat turn. An empty sessionID lets the service
// assign one; an empty message bootstraps the conversation.
func (c *Client) SendMessage(ctx context.Context, message, sessionID string) (Reply, error) {
	var reply Reply
	err := c.do(ctx, "send message", http.MethodPost, "/chat/message",
		messageRequest{Message: message, SessionID: sessionID}, &reply)
	return reply, err
}

// ListConversations returns the prior conversations for a phone number.
func (c *Client) ListConversations(ctx context.Context, phoneNumber string) ([]Conversation, error) {
	var out []Conversation
	if err := c.do(ctx, "list conversations", http.MethodGet, "/chat/"+url.PathEscape(phoneNumber), nil, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []Conversation{}
	}
	return out, nil
}

// CreateConversation starts a new session for a phone number.
func (c *Client) CreateConversation(ctx context.Context, phoneNumber string) (string, error) {
	const op = "create conversation"
	var resp createResponse
	if err := c.do(ctx, op, http.MethodPost, "/chat/", createRequest{PhoneNumber: phoneNumber}, &resp); err != nil {
		return "", err
	}
	if resp.SessionID == "" {
		return "", &ParseError{Op: op, Err: errors.New("missing session_id")}
	}
	return resp.SessionID, nil
}

// Messages returns the full history of a session in server order.
func (c *Client) Messages(ctx context.Context, sessionID string) ([]Message, error) {
	var out []Message
	if err := c.do(ctx, "fetch messages", http.MethodGet, "/chat/messages/"+url.PathEscape(sessionID), nil, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []Message{}
	}
	return out, nil
}

// Summary returns the raw triage record of a session.
func (c *Client) Summary(ctx context.Context, sessionID string) (RawSummary, error) {
	var out RawSummary
	err := c.do(ctx, "fetch summary", http.MethodGet, "/chat/triage/"+url.PathEscape(sessionID), nil, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, op, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	requestID := uuid.NewString()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)

	logger.L.Debug("triage request", "op", op, "method", method, "path", path, "request_id", requestID)

	resp, err := c.client.Do(req)
	if err != nil {
		logger.L.Warn("triage request failed", "op", op, "request_id", requestID, "error", err)
		return &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransportError{Op: op, StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		logger.L.Warn("triage request rejected", "op", op, "request_id", requestID, "status", resp.StatusCode, "body", truncate(raw, 512))
		return &TransportError{Op: op, StatusCode: resp.StatusCode}
	}

	if err := json.Unmarshal(raw, out); err != nil {
		logger.L.Warn("triage response malformed", "op", op, "request_id", requestID, "error", err)
		return &ParseError{Op: op, Err: err}
	}
	return nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
