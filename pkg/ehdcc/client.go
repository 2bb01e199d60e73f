// Package ehdcc provides a client for the European Hydrological Data
// Collection Centre (EHDCC) web API, the station metadata and time-series
// source used by the EFAS and GloFAS flood awareness systems.
package ehdcc

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DefaultBaseURL is the root of the EHDCC operational web API.
const DefaultBaseURL = "https://ehdcc.soologic.com/wsOperational/webapi"

const defaultTimeout = 30 * time.Second

// StatusError reports a non-200 response from the API.
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("request to %s failed with status %d", e.URL, e.StatusCode)
}

// Client issues authenticated requests against the EHDCC web API. All calls
// are synchronous and stateless; a Client is safe to reuse across calls.
type Client struct {
	baseURL    string
	user       string
	password   string
	httpClient *http.Client
	log        *zap.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithBaseURL overrides the API root (useful against test servers).
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient swaps the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger attaches a logger. Without one the client is silent.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// NewClient builds a client that authenticates with HTTP basic auth.
func NewClient(user, password string, opts ...Option) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		user:       user,
		password:   password,
		httpClient: &http.Client{Timeout: defaultTimeout},
		log:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// get issues one authenticated GET and returns the raw body.
func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(c.user, c.password)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response from %s: %w", url, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{StatusCode: resp.StatusCode, URL: url}
	}
	return body, nil
}
