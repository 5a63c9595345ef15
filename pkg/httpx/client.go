// Package httpx is the outbound HTTP layer shared by the submit and lookup
// clients. It classifies failures into NetworkError (no response) and
// StatusError (non-2xx response).
package httpx

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Doer executes HTTP requests. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Options controls NewHTTPClient.
type Options struct {
	// Timeout bounds a whole request. Zero keeps the transport defaults.
	Timeout           time.Duration
	DisableKeepAlives bool
}

// NewHTTPClient builds a dedicated client so connections can be closed after a command.
func NewHTTPClient(opt Options) (*http.Client, *http.Transport) {
	keepAlive := 30 * time.Second
	if opt.DisableKeepAlives {
		// A negative KeepAlive means "disable" for net.Dialer.
		keepAlive = -1
	}
	d := &net.Dialer{Timeout: 30 * time.Second, KeepAlive: keepAlive}

	tr := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           d.DialContext,
		MaxIdleConns:          4,
		MaxIdleConnsPerHost:   1,
		IdleConnTimeout:       10 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		DisableKeepAlives:     opt.DisableKeepAlives,
		ForceAttemptHTTP2:     true,
	}
	return &http.Client{Transport: tr, Timeout: opt.Timeout}, tr
}

// Client issues form posts and JSON reads on top of a Doer.
type Client struct {
	doer      Doer
	userAgent string
}

func New(doer Doer, userAgent string) *Client {
	if doer == nil {
		doer = http.DefaultClient
	}
	return &Client{doer: doer, userAgent: strings.TrimSpace(userAgent)}
}

// PostForm submits form as application/x-www-form-urlencoded. Any 2xx status
// is success; the response body is drained and discarded.
func (c *Client) PostForm(ctx context.Context, endpoint string, form url.Values) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if !isSuccess(resp.StatusCode) {
		return resp.StatusCode, &StatusError{Code: resp.StatusCode, Method: req.Method, URL: endpoint}
	}
	return resp.StatusCode, nil
}

// GetJSON fetches endpoint and decodes a 2xx JSON body into v.
func (c *Client) GetJSON(ctx context.Context, endpoint string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return &StatusError{Code: resp.StatusCode, Method: req.Method, URL: endpoint}
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", endpoint, err)
	}
	return nil
}

func (c *Client) do(req *http.Request) (*http.Response, error) {
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	resp, err := c.doer.Do(req)
	if err != nil {
		return nil, &NetworkError{Method: req.Method, URL: req.URL.String(), Err: err}
	}
	return resp, nil
}

func isSuccess(code int) bool { return code >= 200 && code < 300 }
