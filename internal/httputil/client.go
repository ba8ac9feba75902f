// Package httputil provides the hardened HTTP transport used by the resolver
// and downloader, plus input sanitization utilities.
package httputil

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// MobileUserAgent is the iPhone Safari agent the share pages are served to.
const MobileUserAgent = "Mozilla/5.0 (iPhone; CPU iPhone OS 26_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/26.0 Mobile/15E148 Safari/604.1"

// maxBodySize caps buffered response bodies. Streams are not limited.
const maxBodySize = 10 * 1024 * 1024

// Request describes a single GET.
type Request struct {
	URL             string
	Header          http.Header
	Timeout         time.Duration // Zero means no per-request deadline beyond ctx
	FollowRedirects bool
}

// Response is a fully buffered response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// IsRedirect reports whether the status is 3xx.
func (r *Response) IsRedirect() bool {
	return r.StatusCode >= 300 && r.StatusCode < 400
}

// OK reports whether the status is 2xx.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Transport is the GET capability consumed by the pipeline.
type Transport interface {
	// Get performs a buffered GET.
	Get(ctx context.Context, req Request) (*Response, error)

	// Stream performs a GET and hands back the open response. The caller
	// closes the body. Redirects are always followed.
	Stream(ctx context.Context, req Request) (*http.Response, error)
}

// Client implements Transport on net/http with bounded retries.
type Client struct {
	follow    *http.Client
	noFollow  *http.Client
	userAgent string
	retry     RetryConfig
	logger    zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithUserAgent sets the default User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithRetry sets the retry budget for transient server errors.
func WithRetry(cfg RetryConfig) Option {
	return func(c *Client) {
		c.retry = cfg
	}
}

// WithLogger sets the logger used for retry notices.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a hardened client with secure defaults.
func NewClient(opts ...Option) *Client {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
		ForceAttemptHTTP2:   true,
		MaxIdleConns:        10,
		IdleConnTimeout:     30 * time.Second,
		DisableCompression:  false,
		MaxIdleConnsPerHost: 5,
	}

	c := &Client{
		follow: &http.Client{Transport: transport},
		noFollow: &http.Client{
			Transport: transport,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		userAgent: MobileUserAgent,
		retry:     DefaultRetryConfig(),
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get performs a GET, retrying transient server errors, and buffers the body.
func (c *Client) Get(ctx context.Context, req Request) (*Response, error) {
	if err := ValidateURL(req.URL); err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}

	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	client := c.noFollow
	if req.FollowRedirects {
		client = c.follow
	}

	var out *Response
	err := retryTransient(ctx, c.logger, c.retry, req.URL, func() (int, error) {
		resp, err := c.do(ctx, client, req)
		if err != nil {
			return 0, err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
		if err != nil {
			return 0, fmt.Errorf("reading response: %w", err)
		}
		out = &Response{
			StatusCode: resp.StatusCode,
			Header:     resp.Header,
			Body:       body,
		}
		return resp.StatusCode, nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Stream performs a GET and returns the open response for streaming.
// Non-2xx responses are closed and reported as errors.
func (c *Client) Stream(ctx context.Context, req Request) (*http.Response, error) {
	if err := ValidateURL(req.URL); err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}

	var out *http.Response
	err := retryTransient(ctx, c.logger, c.retry, req.URL, func() (int, error) {
		resp, err := c.do(ctx, c.follow, req)
		if err != nil {
			return 0, err
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			resp.Body.Close()
			return resp.StatusCode, &StatusError{StatusCode: resp.StatusCode, URL: req.URL}
		}
		out = resp
		return resp.StatusCode, nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, client *http.Client, req Request) (*http.Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	if httpReq.Header.Get("User-Agent") == "" {
		httpReq.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	return resp, nil
}

// StatusError reports an unexpected HTTP status.
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d for %s", e.StatusCode, e.URL)
}

// IsStatus reports whether err is a *StatusError with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == code
}
