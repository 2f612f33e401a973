package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"
)

// DefaultTimeout bounds each request
const DefaultTimeout = 10 * time.Second

// ToggleResult is the authoritative outcome of a toggle
type ToggleResult struct {
	Engaged bool `json:"engaged"`
	Count   int  `json:"count"`
}

// State seeds a view: every target the actor likes plus counters for the requested ids
type State struct {
	LikeCounts     map[string]int `json:"likeCounts"`
	CommentCounts  map[string]int `json:"commentCounts"`
	LikedTargetIDs []string       `json:"likedTargetIds"`
}

// Client talks to the appview on behalf of one signed-in actor
type Client struct {
	http    *http.Client
	baseURL string
	token   string
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the pooled cleanhttp client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithTimeout overrides DefaultTimeout
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// NewClient creates a client. token may be empty for anonymous reads.
func NewClient(baseURL, token string, opts ...Option) *Client {
	hc := cleanhttp.DefaultPooledClient()
	hc.Timeout = DefaultTimeout
	c := &Client{
		http:    hc,
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// HasSession reports whether the client carries credentials
func (c *Client) HasSession() bool {
	return c.token != ""
}

// Toggle flips the actor's like on a target
func (c *Client) Toggle(ctx context.Context, targetID string) (*ToggleResult, error) {
	path := "/api/likes/" + url.PathEscape(targetID) + "/toggle"
	var out ToggleResult
	if err := c.do(ctx, http.MethodPost, path, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// State fetches the liked set and counters for targetIDs
func (c *Client) State(ctx context.Context, targetIDs []string) (*State, error) {
	path := "/api/likes/state"
	if len(targetIDs) > 0 {
		path += "?targets=" + url.QueryEscape(strings.Join(targetIDs, ","))
	}
	var out State
	if err := c.do(ctx, http.MethodGet, path, &out); err != nil {
		return nil, err
	}
	if out.LikeCounts == nil {
		out.LikeCounts = map[string]int{}
	}
	if out.CommentCounts == nil {
		out.CommentCounts = map[string]int{}
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, out interface{}) error {
	op := method + " " + path

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return ErrUnauthorized
	case resp.StatusCode == http.StatusNotFound:
		return ErrTargetNotFound
	case resp.StatusCode >= 500:
		return &NetworkError{Op: op, Status: resp.StatusCode}
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("%s: unexpected status %d: %s", op, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &NetworkError{Op: op, Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	return nil
}
