// Package client is the editor's HTTP client for the paper backend. It
// speaks the flat document payload and the generation contract, and turns
// backend error envelopes into typed errors the editor can branch on.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/paperdesk/paperdesk/paper"
	"github.com/paperdesk/paperdesk/section"
)

// maxResponseSize limits response bodies to prevent memory exhaustion.
const maxResponseSize = 10 * 1024 * 1024 // 10MB

// BackendError is a non-2xx response carrying the backend's message.
type BackendError struct {
	StatusCode int
	Message    string
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("backend error (status %d): %s", e.StatusCode, e.Message)
}

// NotFoundError reports a paper that does not exist on the backend.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("paper %s not found", e.ID)
}

// Client talks to one paper backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(client *Client) {
		client.httpClient = c
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(client *Client) {
		client.logger = logger
	}
}

// New creates a client for the backend at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 300 * time.Second, // Generation calls are slow
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Structure fetches the section structure definition.
func (c *Client) Structure(ctx context.Context) (*section.Graph, error) {
	var specs []section.Spec
	if err := c.do(ctx, http.MethodGet, "/api/structure", nil, &specs); err != nil {
		return nil, err
	}
	return section.NewGraph(specs)
}

// ListPapers fetches the paper list.
func (c *Client) ListPapers(ctx context.Context) ([]paper.Info, error) {
	var out []paper.Info
	if err := c.do(ctx, http.MethodGet, "/api/papers", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// LoadPaper fetches one paper by id. A missing paper is a *NotFoundError.
func (c *Client) LoadPaper(ctx context.Context, id string) (*paper.Document, error) {
	var doc paper.Document
	err := c.do(ctx, http.MethodGet, "/api/paper/"+id, nil, &doc)
	if err != nil {
		var be *BackendError
		if errors.As(err, &be) && be.StatusCode == http.StatusNotFound {
			return nil, &NotFoundError{ID: id}
		}
		return nil, err
	}
	doc.ID = id
	return &doc, nil
}

// SavePaper writes the full document back to the backend.
func (c *Client) SavePaper(ctx context.Context, doc *paper.Document) error {
	return c.do(ctx, http.MethodPost, "/api/paper/"+doc.ID, doc, nil)
}

// CreatePaper asks the backend for a fresh empty paper.
func (c *Client) CreatePaper(ctx context.Context) (*paper.Info, error) {
	var out struct {
		Status string     `json:"status"`
		Paper  paper.Info `json:"paper"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/papers/new", struct{}{}, &out); err != nil {
		return nil, err
	}
	return &out.Paper, nil
}

// RenamePaper sets the display name of a paper.
func (c *Client) RenamePaper(ctx context.Context, id, name string) error {
	body := map[string]string{"newName": name}
	return c.do(ctx, http.MethodPost, "/api/paper/rename/"+id, body, nil)
}

// DeletePaper removes a paper from the backend.
func (c *Client) DeletePaper(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/paper/"+id, nil, nil)
}

// Generate runs one AI action against a section and returns the proposed
// content. The request carries the full document so the backend can build
// context from completed dependencies.
func (c *Client) Generate(ctx context.Context, req *paper.GenerateRequest) (string, error) {
	var out struct {
		Content string `json:"content"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/generate", req, &out); err != nil {
		return "", err
	}
	return out.Content, nil
}

// do executes one request and decodes the response into out (when non-nil).
// Non-2xx responses decode the error envelope into a *BackendError.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.logger.Debug("backend request", "method", method, "path", path)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeError(resp.StatusCode, data)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// decodeError turns an error envelope into a *BackendError, falling back
// to the raw body when the envelope does not parse.
func decodeError(statusCode int, body []byte) error {
	var envelope struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Message != "" {
		return &BackendError{StatusCode: statusCode, Message: envelope.Message}
	}

	msg := string(body)
	if len(msg) > 200 {
		msg = msg[:200] + "..."
	}
	return &BackendError{StatusCode: statusCode, Message: msg}
}
