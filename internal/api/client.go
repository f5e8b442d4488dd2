package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/banshee-data/deadreckon/internal/httputil"
)

// Error is a non-2xx response from the service.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

// Client talks to a running deadreckon service.
type Client struct {
	base string
	http httputil.HTTPClient
}

// NewClient targets baseURL, e.g. "http://localhost:8080". A nil hc uses
// http.DefaultClient.
func NewClient(baseURL string, hc httputil.HTTPClient) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base url %q", baseURL)
	}
	if hc == nil {
		hc = httputil.NewStandardClient(nil)
	}
	return &Client{base: strings.TrimRight(baseURL, "/"), http: hc}, nil
}

func (c *Client) do(ctx context.Context, method, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer httputil.DrainClose(resp.Body)

	if resp.StatusCode/100 != 2 {
		var body struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&body)
		return &Error{Status: resp.StatusCode, Message: body.Error}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s response: %w", path, err)
	}
	return nil
}

// Latest returns the newest sample with speed in unit ("" for the server default).
func (c *Client) Latest(ctx context.Context, unit string) (SampleResponse, error) {
	var out SampleResponse
	path := "/motion/latest"
	if unit != "" {
		path += "?units=" + url.QueryEscape(unit)
	}
	err := c.do(ctx, http.MethodGet, path, &out)
	return out, err
}

func (c *Client) Stats(ctx context.Context) (StatsResponse, error) {
	var out StatsResponse
	err := c.do(ctx, http.MethodGet, "/motion/stats", &out)
	return out, err
}

// Reset asks the service to reset its estimator and clear its history.
func (c *Client) Reset(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/motion/reset", nil)
}
