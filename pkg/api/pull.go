package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/norman-ai/norman-sdk-go/pkg/errs"
	"github.com/norman-ai/norman-sdk-go/pkg/model"
)

// SubmitLinks asks the platform to fetch the links itself. Completion is
// observed through status flags only.
func (c *Client) SubmitLinks(ctx context.Context, token string, req model.LinkRequest) error {
	var route string
	switch req.Kind {
	case model.TargetAsset:
		route = RouteAssetLinks
	case model.TargetInput:
		route = RouteInputLinks
	default:
		return errs.Invalid("link request without target kind")
	}
	return c.do(ctx, http.MethodPost, route, token, req, nil)
}

// OpenOutput opens the byte stream of one invocation output. The stream is
// finite, cannot be restarted and must be closed by the caller.
func (c *Client) OpenOutput(ctx context.Context, token string, req model.OutputRequest) (io.ReadCloser, error) {
	path := fmt.Sprintf("%s/%s/%s/%s/%s", RouteOutput,
		url.PathEscape(req.AccountID),
		url.PathEscape(req.ModelID),
		url.PathEscape(req.InvocationID),
		url.PathEscape(req.OutputID))

	hr, err := c.newRequest(ctx, http.MethodGet, path, token, nil)
	if err != nil {
		return nil, err
	}
	hr.Header.Set("Accept", "application/octet-stream")

	resp, err := c.stream.Do(hr)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, statusError(hr, resp)
	}
	return resp.Body, nil
}

// Health returns the decoded body of GET /health.
func (c *Client) Health(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	if err := c.do(ctx, http.MethodGet, RouteHealth, "", nil, &out); err != nil {
		return nil, fmt.Errorf("heartbeat failed: %w", err)
	}
	return out, nil
}
