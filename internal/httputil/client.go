// Package httputil holds the JSON response helpers shared by handlers and a
// small client abstraction for talking to a running service.
package httputil

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
)

// HTTPClient is the subset of *http.Client used by API clients.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// NewStandardClient returns c, or http.DefaultClient when c is nil.
func NewStandardClient(c *http.Client) HTTPClient {
	if c == nil {
		return http.DefaultClient
	}
	return c
}

// HandlerClient serves requests in-process against Handler and records
// them. It lets client code be tested against a real mux without a socket.
type HandlerClient struct {
	Handler http.Handler

	mu       sync.Mutex
	requests []*http.Request
}

func NewHandlerClient(h http.Handler) *HandlerClient {
	return &HandlerClient{Handler: h}
}

func (c *HandlerClient) Do(req *http.Request) (*http.Response, error) {
	c.mu.Lock()
	c.requests = append(c.requests, req)
	c.mu.Unlock()

	if req.RemoteAddr == "" {
		req.RemoteAddr = "127.0.0.1:0"
	}
	rec := httptest.NewRecorder()
	c.Handler.ServeHTTP(rec, req)
	resp := rec.Result()
	resp.Request = req
	return resp, nil
}

// Requests returns the recorded requests in order.
func (c *HandlerClient) Requests() []*http.Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*http.Request(nil), c.requests...)
}

// ErrorClient fails every request with Err.
type ErrorClient struct{ Err error }

func (c ErrorClient) Do(*http.Request) (*http.Response, error) { return nil, c.Err }

// DrainClose discards the rest of body and closes it so the connection can
// be reused.
func DrainClose(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, body)
	body.Close()
}
