// Package transport provides the REST client for an agent server and a
// memoizing cache that hands out one client per base URL.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// Client talks to one agent server. Every call except Health and Projects is
// scoped by a directory (project path) query parameter.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for the given base URL. The URL is normalized
// by stripping any trailing slash.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: NormalizeURL(baseURL),
		http:    &http.Client{},
	}
}

// NormalizeURL strips trailing slashes from a server URL.
func NormalizeURL(raw string) string {
	return strings.TrimRight(raw, "/")
}

// BaseURL returns the normalized base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// APIError is an error response decoded from the server's error envelope.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("server error %d (%s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("server error %d", e.Status)
}

type errorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// do issues a request and decodes the JSON response into out (if non-nil).
// Non-2xx responses are decoded into an APIError.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		var env errorEnvelope
		if data, readErr := io.ReadAll(io.LimitReader(resp.Body, 1<<16)); readErr == nil {
			if json.Unmarshal(data, &env) == nil {
				apiErr.Code = env.Error.Code
				apiErr.Message = env.Error.Message
			}
		}
		return apiErr
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func dirQuery(directory string) url.Values {
	q := url.Values{}
	if directory != "" {
		q.Set("directory", directory)
	}
	return q
}
