// Package elevenlabs talks to the ElevenLabs Conversational AI service: it fetches
// signed conversation URLs and opens the duplex conversation socket.
package elevenlabs

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

	"github.com/fasthttp/websocket"
)

const (
	DefaultSignedURLEndpoint = "https://api.elevenlabs.io/v1/convai/conversation/get-signed-url"

	apiKeyHeader = "xi-api-key"
)

var ErrMissingSignedURL = errors.New("elevenlabs: response has no signed_url")

// APIError is returned for any non-2xx response from the vendor.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("elevenlabs: status %d: %s", e.StatusCode, e.Body)
}

type Option func(*Client)

type Client struct {
	apiKey            string
	signedURLEndpoint string
	httpClient        *http.Client
	dialer            *websocket.Dialer
	readLimit         int64
}

func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:            strings.TrimSpace(apiKey),
		signedURLEndpoint: DefaultSignedURLEndpoint,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 10 * time.Second,
		},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

func WithSignedURLEndpoint(endpoint string) Option {
	return func(c *Client) {
		if trimmed := strings.TrimSpace(endpoint); trimmed != "" {
			c.signedURLEndpoint = trimmed
		}
	}
}

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

func WithHandshakeTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.dialer.HandshakeTimeout = d
		}
	}
}

// WithReadLimit caps the size of a single inbound upstream frame.
func WithReadLimit(n int64) Option {
	return func(c *Client) {
		if n > 0 {
			c.readLimit = n
		}
	}
}

type signedURLResponse struct {
	SignedURL string `json:"signed_url"`
}

// GetSignedURL requests a short-lived conversation URL for agentID.
func (c *Client) GetSignedURL(ctx context.Context, agentID string) (string, error) {
	endpoint, err := url.Parse(c.signedURLEndpoint)
	if err != nil {
		return "", fmt.Errorf("elevenlabs: parse endpoint: %w", err)
	}
	q := endpoint.Query()
	q.Set("agent_id", agentID)
	endpoint.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return "", fmt.Errorf("elevenlabs: build request: %w", err)
	}
	req.Header.Set(apiKeyHeader, c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("elevenlabs: signed url request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return "", fmt.Errorf("elevenlabs: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var out signedURLResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("elevenlabs: decode response: %w", err)
	}
	if strings.TrimSpace(out.SignedURL) == "" {
		return "", ErrMissingSignedURL
	}
	return out.SignedURL, nil
}

// Connect dials the conversation socket behind a signed URL.
func (c *Client) Connect(ctx context.Context, signedURL string) (*websocket.Conn, error) {
	conn, resp, err := c.dialer.DialContext(ctx, signedURL, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("elevenlabs: dial conversation (status %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("elevenlabs: dial conversation: %w", err)
	}
	if c.readLimit > 0 {
		conn.SetReadLimit(c.readLimit)
	}
	return conn, nil
}
