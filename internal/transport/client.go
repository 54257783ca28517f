package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// DefaultUserAgent identifies the service to geocoding vendors.
const DefaultUserAgent = "Meridian-Geocoding/1.0 (https://github.com/UnknownOlympus/meridian)"

// HTTPClient defines the interface for making HTTP requests.
// This allows for easy mocking in tests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// ErrUnexpectedStatus is returned when a vendor answers with a non-2xx status code.
var ErrUnexpectedStatus = errors.New("unexpected status code")

// Client fetches JSON documents with GET requests and URL-encoded query parameters.
type Client struct {
	client    HTTPClient   // HTTP client for making requests
	userAgent string       // User-Agent sent with every request
	log       *slog.Logger // Logger for logging operations
}

// NewClient creates a Client backed by an http.Client with the given timeout.
func NewClient(timeout time.Duration, userAgent string, log *slog.Logger) *Client {
	return NewClientWithHTTP(&http.Client{Timeout: timeout}, userAgent, log)
}

// NewClientWithHTTP creates a Client with a custom HTTP client.
// Useful for testing with mocked HTTP clients.
func NewClientWithHTTP(client HTTPClient, userAgent string, log *slog.Logger) *Client {
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}

	return &Client{client: client, userAgent: userAgent, log: log}
}

// GetJSON issues a GET request to endpoint with params merged into its query string
// and decodes the JSON body into v.
//
// Network errors, non-2xx responses and malformed JSON are all returned as errors,
// so a failed call is never mistaken for an empty payload.
func (c *Client) GetJSON(ctx context.Context, endpoint string, params url.Values, v any) error {
	reqURL, err := url.Parse(endpoint)
	if err != nil {
		return fmt.Errorf("failed to parse endpoint URL: %w", err)
	}

	query := reqURL.Query()
	for key, values := range params {
		query[key] = values
	}
	reqURL.RawQuery = query.Encode()

	c.log.DebugContext(ctx, "Geocoding request URL", "url", reqURL.String())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute geocoding request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		c.log.ErrorContext(ctx, "Geocoding API error", "host", reqURL.Host, "status", resp.StatusCode, "body", string(body))
		return fmt.Errorf("%w: %d: %s", ErrUnexpectedStatus, resp.StatusCode, string(body))
	}

	c.log.DebugContext(ctx, "Geocoding raw response", "host", reqURL.Host, "body", string(body))

	if err = json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}
