// Package httpclient defines the minimal HTTP client abstraction
// collectors and observers are built against, so they stay unit
// testable against a mock rather than a real transport.
package httpclient

import (
	"context"
	"io"
	"net/http"
	"time"
)

// Response is the subset of *http.Response collectors/observers need.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// IsSuccess reports whether the response's status code is 2xx.
func (r Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Client is the HTTP contract production code and test doubles both
// implement. Collectors never reach for *http.Client directly so that a
// fake transport can be substituted in tests.
type Client interface {
	Do(ctx context.Context, req *http.Request) (Response, error)
}

// New returns the production Client, wrapping a standard library
// *http.Client with the given timeout.
func New(timeout time.Duration) Client {
	return &stdClient{
		inner: &http.Client{Timeout: timeout},
	}
}

type stdClient struct {
	inner *http.Client
}

func (c *stdClient) Do(ctx context.Context, req *http.Request) (Response, error) {
	resp, err := c.inner.Do(req.WithContext(ctx))
	if err != nil {
		return Response{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, err
	}

	return Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}, nil
}
