package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultTimeout = 30 * time.Second

// Client talks to the project dashboard API. Tokens come from outside; the
// client only attaches them.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
	blobs   BlobStore
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.client.Timeout = d }
}

// WithBlobStore sends asset bytes to blob storage and posts only a reference
// to the asset endpoint.
func WithBlobStore(b BlobStore) Option {
	return func(c *Client) { c.blobs = b }
}

func New(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) BaseURL() string { return c.baseURL }

// --- HTTP helpers ---

func (c *Client) resolve(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.baseURL + path
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.resolve(path), body)
	if err != nil {
		return nil, err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	return resp, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body any) (*http.Response, error) {
	if body == nil {
		return c.do(ctx, method, path, nil, "")
	}
	b, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}
	return c.do(ctx, method, path, bytes.NewReader(b), "application/json")
}

func decodeResponse[T any](resp *http.Response) (T, error) {
	defer resp.Body.Close()
	var zero T

	if resp.StatusCode >= 400 {
		return zero, newStatusError(resp)
	}

	var wrapper struct {
		Data T `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&wrapper); err != nil {
		return zero, fmt.Errorf("decoding response: %w", err)
	}
	return wrapper.Data, nil
}

// --- Pagination helper ---

type pagedResult[T any] struct {
	data       []T
	nextCursor string
}

func decodePagedResponse[T any](resp *http.Response) (pagedResult[T], error) {
	defer resp.Body.Close()
	var zero pagedResult[T]

	if resp.StatusCode >= 400 {
		return zero, newStatusError(resp)
	}

	var wrapper struct {
		Data       []T    `json:"data"`
		NextCursor string `json:"next_cursor"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&wrapper); err != nil {
		return zero, fmt.Errorf("decoding response: %w", err)
	}
	return pagedResult[T]{data: wrapper.Data, nextCursor: wrapper.NextCursor}, nil
}

// checkResponse drains and closes resp, returning a StatusError for non-2xx.
func checkResponse(resp *http.Response) error {
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return newStatusError(resp)
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}

// --- Queue-facing operations ---

// Replay sends a queued command verbatim. Relative URLs are resolved against
// the base URL.
func (c *Client) Replay(ctx context.Context, method, url string, body []byte) error {
	var r io.Reader
	contentType := ""
	if len(body) > 0 {
		r = bytes.NewReader(body)
		contentType = "application/json"
	}
	resp, err := c.do(ctx, method, url, r, contentType)
	if err != nil {
		return err
	}
	return checkResponse(resp)
}

// CreateEntity posts body to endpoint and returns the server-confirmed id.
func (c *Client) CreateEntity(ctx context.Context, endpoint string, body any) (string, error) {
	resp, err := c.doJSON(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return "", err
	}
	created, err := decodeResponse[struct {
		ID string `json:"id"`
	}](resp)
	if err != nil {
		return "", err
	}
	if created.ID == "" {
		return "", fmt.Errorf("creating entity at %s: response has no id", endpoint)
	}
	return created.ID, nil
}

// Ping checks that the API is reachable.
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodGet, "/health", nil, "")
	if err != nil {
		return err
	}
	return checkResponse(resp)
}
