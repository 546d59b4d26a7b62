// Package api is the HTTP client for the Norman platform: authentication,
// persistence (records and status flags), link pulling, output retrieval
// and health.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/norman-ai/norman-sdk-go/pkg/errs"
	"go.uber.org/zap"
)

const (
	DefaultBaseURL = "https://api.norman-ai.com"
	requestIDKey   = "X-Request-ID"
)

// StatusError is returned for any non-2xx response.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Message    string
	RequestID  string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.StatusCode, http.StatusText(e.StatusCode))
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

// Is maps 401/403 to errs.ErrUnauthenticated and 404 to errs.ErrNotFound.
func (e *StatusError) Is(target error) bool {
	switch target {
	case errs.ErrUnauthenticated:
		return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
	case errs.ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	}
	return false
}

// Client talks JSON to the platform API. Retrieval uses a separate client
// without a total timeout since output streams may be long.
type Client struct {
	baseURL string
	http    *http.Client
	stream  *http.Client
}

type Option func(*Client)

// WithHTTPClient replaces both underlying clients.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
			c.stream = hc
		}
	}
}

// WithTimeout bounds each JSON request.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			hc := *c.http
			hc.Timeout = d
			c.http = &hc
		}
	}
}

func New(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
		stream:  &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) BaseURL() string { return c.baseURL }

func (c *Client) newRequest(ctx context.Context, method, path, token string, in any) (*http.Request, error) {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("encode %s body: %w", path, err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(requestIDKey, uuid.NewString())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

// do sends in as JSON and decodes the response into out when out is non-nil.
func (c *Client) do(ctx context.Context, method, path, token string, in, out any) error {
	req, err := c.newRequest(ctx, method, path, token, in)
	if err != nil {
		return err
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	zap.L().Debug("api call",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.String("request_id", req.Header.Get(requestIDKey)),
		zap.Duration("took", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(req, resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func statusError(req *http.Request, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	se := &StatusError{
		Method:     req.Method,
		Path:       req.URL.Path,
		StatusCode: resp.StatusCode,
		RequestID:  req.Header.Get(requestIDKey),
	}
	var m map[string]any
	if json.Unmarshal(body, &m) == nil {
		for _, key := range []string{"message", "detail", "error"} {
			if msg, ok := m[key].(string); ok && msg != "" {
				se.Message = msg
				break
			}
		}
	}
	if se.Message == "" {
		se.Message = strings.TrimSpace(string(body))
	}
	return se
}
