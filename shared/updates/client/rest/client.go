package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/netbirdio/updater/shared/updates/http/util"
	"github.com/netbirdio/updater/version"
)

// Client is the REST client of the update server
type Client struct {
	managementURL string
	httpClient    *http.Client
	userAgent     string
	authHeader    string

	// Updates update check, report and history APIs
	Updates *UpdatesAPI

	// Manifests manifest ingest APIs
	Manifests *ManifestsAPI
}

// Option configures a Client
type Option func(*Client)

// WithHttpClient overrides the default http client
func WithHttpClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithUserAgent overrides the default user agent
func WithUserAgent(userAgent string) Option {
	return func(c *Client) {
		c.userAgent = userAgent
	}
}

// WithToken authenticates publisher requests with a static token
func WithToken(token string) Option {
	return func(c *Client) {
		c.authHeader = "Token " + token
	}
}

// New creates a client for the update server at managementURL
func New(managementURL string, opts ...Option) *Client {
	c := &Client{
		managementURL: strings.TrimSuffix(managementURL, "/"),
		httpClient:    &http.Client{Timeout: 30 * time.Second},
		userAgent:     "updater/" + version.UpdaterVersion(),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.Updates = &UpdatesAPI{c: c}
	c.Manifests = &ManifestsAPI{c: c}
	return c
}

// APIError is returned for non 2xx responses
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("update server returned %d: %s", e.StatusCode, e.Message)
}

// Temporary reports whether retrying the same request may succeed
func (e *APIError) Temporary() bool {
	return e.StatusCode >= http.StatusInternalServerError || e.StatusCode == http.StatusTooManyRequests
}

// NewRequest performs an http request with a JSON body and returns the raw response for non error codes
func (c *Client) NewRequest(ctx context.Context, method, path string, body any, query url.Values) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		bs, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(bs)
	}

	target := c.managementURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if c.authHeader != "" {
		req.Header.Set("Authorization", c.authHeader)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	defer resp.Body.Close()

	apiErr := &APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	var errResp util.ErrorResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64*1024)).Decode(&errResp); err == nil && errResp.Message != "" {
		apiErr.Message = errResp.Message
	}
	return nil, apiErr
}

// ErrMalformedResponse is returned when a response body cannot be decoded
var ErrMalformedResponse = errors.New("malformed response")

func parseResponse[T any](resp *http.Response) (T, error) {
	var ret T
	if resp.Body == nil {
		return ret, fmt.Errorf("%w: empty body", ErrMalformedResponse)
	}
	if err := json.NewDecoder(resp.Body).Decode(&ret); err != nil {
		return ret, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return ret, nil
}
