// internal/common/http/client.go
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// Client wraps a retryablehttp client with a fixed User-Agent and JSON helpers. 429/5xx
// answers and transport errors are retried.
type Client struct {
	rc        *retryablehttp.Client
	userAgent string
}

type Option func(*Client)

func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// WithRetries sets how many times a 429/5xx or transport error is retried. Attempt n waits
// base*2^(n-1) unless the upstream sends Retry-After.
func WithRetries(n int, base time.Duration) Option {
	return func(c *Client) {
		c.rc.RetryMax = n
		c.rc.RetryWaitMin = base
		c.rc.RetryWaitMax = base << uint(max(n, 0))
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.rc.HTTPClient = hc }
}

func NewClient(timeout time.Duration, opts ...Option) *Client {
	rc := retryablehttp.NewClient()
	rc.HTTPClient = &http.Client{Timeout: timeout}
	rc.Logger = nil
	rc.RetryMax = 0
	rc.RetryWaitMin = 100 * time.Millisecond
	rc.RetryWaitMax = 100 * time.Millisecond
	rc.CheckRetry = retryTransient
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler

	c := &Client{rc: rc}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func retryTransient(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		return true, nil
	}
	return resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500, nil
}

// StatusError is returned when the upstream answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream returned %d: %s", e.StatusCode, e.Body)
}

func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return c.DoWithContext(req.Context(), req)
}

// DoWithContext sends req, retrying transient failures. When retries run out on a 429/5xx
// the last response is returned as is. Transport errors never carry the request's query
// string, which may hold API keys.
func (c *Client) DoWithContext(ctx context.Context, req *http.Request) (*http.Response, error) {
	req = req.WithContext(ctx)
	if c.userAgent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	rreq, err := retryablehttp.FromRequest(req)
	if err != nil {
		return nil, err
	}
	resp, err := c.rc.Do(rreq)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, redactQuery(err)
	}
	return resp, nil
}

func redactQuery(err error) error {
	var ue *url.Error
	if !errors.As(err, &ue) {
		return err
	}
	if u, perr := url.Parse(ue.URL); perr == nil {
		u.RawQuery = ""
		u.ForceQuery = false
		ue.URL = u.String()
	} else {
		ue.URL, _, _ = strings.Cut(ue.URL, "?")
	}
	return err
}

// GetBytes fetches rawURL and returns the body of a 2xx response.
func (c *Client) GetBytes(ctx context.Context, rawURL string, headers map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return c.readAll(ctx, req)
}

// GetJSON fetches rawURL with query params and decodes the JSON body into out.
func (c *Client) GetJSON(ctx context.Context, rawURL string, params url.Values, out interface{}) error {
	if len(params) > 0 {
		sep := "?"
		if strings.Contains(rawURL, "?") {
			sep = "&"
		}
		rawURL += sep + params.Encode()
	}
	body, err := c.GetBytes(ctx, rawURL, map[string]string{"Accept": "application/json"})
	if err != nil {
		return err
	}
	return json.Unmarshal(body, out)
}

// PostFormJSON posts form values and decodes the JSON answer into out.
func (c *Client) PostFormJSON(ctx context.Context, rawURL string, form url.Values, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	body, err := c.readAll(ctx, req)
	if err != nil {
		return err
	}
	return json.Unmarshal(body, out)
}

func (c *Client) readAll(ctx context.Context, req *http.Request) ([]byte, error) {
	resp, err := c.DoWithContext(ctx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet := string(body)
		if len(snippet) > 512 {
			snippet = snippet[:512]
		}
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(snippet)}
	}
	return body, nil
}
