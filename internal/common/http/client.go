// internal/common/http/client.go
package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// maxBodyBytes bounds how much of a response body is read.
const maxBodyBytes = 4 << 20

type Client struct {
	httpClient *http.Client
	headers    http.Header
}

func NewClient(timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		headers: http.Header{},
	}
}

// WithHeader sets a header sent on every request.
func (c *Client) WithHeader(key, value string) *Client {
	c.headers.Set(key, value)
	return c
}

func (c *Client) Do(req *http.Request) (*http.Response, error) {
	for k, vs := range c.headers {
		if req.Header.Get(k) == "" {
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}
	}
	return c.httpClient.Do(req)
}

func (c *Client) DoWithContext(ctx context.Context, req *http.Request) (*http.Response, error) {
	req = req.WithContext(ctx)
	return c.Do(req)
}

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Body       []byte
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// DoJSON sends body encoded as JSON (when non-nil) and reads the whole
// response. Non-2xx statuses are returned, not turned into errors.
func (c *Client) DoJSON(ctx context.Context, method, url string, body interface{}) (*Response, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return &Response{StatusCode: resp.StatusCode, Body: data}, nil
}
