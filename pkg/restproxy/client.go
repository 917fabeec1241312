package restproxy

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/samvad-hq/rest-records-fetcher/pkg/httpclient"
)

// Response is the fully buffered reply of a records fetch.
type Response struct {
	URL        string
	StatusCode int
	Header     http.Header
	Body       []byte
}

// OK reports whether the proxy answered with a 2xx status.
func (r *Response) OK() bool {
	return r != nil && r.StatusCode >= 200 && r.StatusCode < 300
}

// Client issues records requests against a REST proxy.
type Client struct {
	http   httpclient.Client
	accept string
}

// NewClient wraps an HTTP client. An empty accept value falls back to ContentTypeJSONV2.
func NewClient(client httpclient.Client, accept string) *Client {
	accept = strings.TrimSpace(accept)
	if accept == "" {
		accept = ContentTypeJSONV2
	}
	return &Client{http: client, accept: accept}
}

// FetchRecords performs one GET against the endpoint's records URL and buffers the body.
// The status code is reported but never treated as an error.
func (c *Client) FetchRecords(ctx context.Context, ep Endpoint) (*Response, error) {
	if c == nil || c.http == nil {
		return nil, fmt.Errorf("restproxy client is not initialized")
	}

	target, err := ep.RecordsURL()
	if err != nil {
		return nil, fmt.Errorf("build records url: %w", err)
	}

	resp, err := c.http.Get(ctx, target, map[string]string{"Accept": c.accept})
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", target, err)
	}

	return &Response{
		URL:        target,
		StatusCode: resp.StatusCode(),
		Header:     resp.Header(),
		Body:       resp.Body(),
	}, nil
}

// Snippet trims a response body for log output.
func Snippet(body []byte) string {
	const maxLen = 512
	s := strings.TrimSpace(string(body))
	if len(s) > maxLen {
		return s[:maxLen] + "..."
	}
	if s == "" {
		return "<empty>"
	}
	return s
}
