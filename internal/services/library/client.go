package library

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"courier/internal/config"
)

const userAgent = "Courier-Go/0.1.0"

const (
	uploadsPath = "/api/uploads"
	assetsPath  = "/api/assets"
	healthPath  = "/api/health"
)

// HTTPDoer describes the HTTP client used by the library client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client performs authenticated requests against the library server.
type Client struct {
	baseURL  *url.URL
	token    string
	meta     HTTPDoer
	transfer HTTPDoer
}

// New builds a Client from application config. Metadata requests use the
// request timeout; payload transfers use the longer upload timeout.
func New(cfg *config.Config) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("library client requires config")
	}
	base, err := parseBaseURL(cfg.Library.BaseURL)
	if err != nil {
		return nil, err
	}
	return &Client{
		baseURL:  base,
		token:    strings.TrimSpace(cfg.Library.APIToken),
		meta:     &http.Client{Timeout: time.Duration(cfg.Library.RequestTimeout) * time.Second},
		transfer: &http.Client{Timeout: time.Duration(cfg.Library.UploadTimeout) * time.Second},
	}, nil
}

// NewWithDoers constructs a Client around injected HTTP doers for testing.
func NewWithDoers(baseURL, token string, meta, transfer HTTPDoer) (*Client, error) {
	base, err := parseBaseURL(baseURL)
	if err != nil {
		return nil, err
	}
	if transfer == nil {
		transfer = meta
	}
	return &Client{baseURL: base, token: strings.TrimSpace(token), meta: meta, transfer: transfer}, nil
}

// BaseURL returns the configured server root.
func (c *Client) BaseURL() string {
	if c == nil || c.baseURL == nil {
		return ""
	}
	return c.baseURL.String()
}

// HealthURL returns the endpoint connectivity probes target.
func (c *Client) HealthURL() string {
	if c == nil || c.baseURL == nil {
		return ""
	}
	return c.baseURL.ResolveReference(&url.URL{Path: healthPath}).String()
}

// Health checks whether the library server answers its health endpoint.
func (c *Client) Health(ctx context.Context) error {
	if c == nil {
		return fmt.Errorf("client is nil")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.HealthURL(), nil)
	if err != nil {
		return fmt.Errorf("build health request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	c.authorize(req)

	resp, err := c.meta.Do(req)
	if err != nil {
		return fmt.Errorf("library health check: %w", err)
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode >= 300 {
		return newStatusError(healthPath, resp)
	}
	return nil
}

// RequestDestination asks the server for an upload slot for the described file.
func (c *Client) RequestDestination(ctx context.Context, req DestinationRequest) (*Destination, error) {
	if c == nil {
		return nil, fmt.Errorf("client is nil")
	}
	var dest Destination
	if err := c.doJSON(ctx, http.MethodPost, uploadsPath, req, &dest); err != nil {
		return nil, err
	}
	if strings.TrimSpace(dest.UploadURL) == "" {
		return nil, fmt.Errorf("library returned destination without upload_url")
	}
	return &dest, nil
}

// Transfer delivers the payload bytes into the destination slot.
func (c *Client) Transfer(ctx context.Context, dest *Destination, mimeType string, payload []byte) error {
	if c == nil {
		return fmt.Errorf("client is nil")
	}
	if dest == nil || strings.TrimSpace(dest.UploadURL) == "" {
		return fmt.Errorf("transfer requires a destination")
	}
	target, err := c.resolveUploadURL(dest.UploadURL)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, target, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build transfer request: %w", err)
	}
	req.ContentLength = int64(len(payload))
	req.Header.Set("User-Agent", userAgent)
	if mimeType != "" {
		req.Header.Set("Content-Type", mimeType)
	}
	c.authorize(req)

	resp, err := c.transfer.Do(req)
	if err != nil {
		return fmt.Errorf("transfer payload: %w", err)
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode >= 300 {
		return newStatusError("transfer", resp)
	}
	return nil
}

// RegisterAsset finalizes a transferred upload as a library asset.
func (c *Client) RegisterAsset(ctx context.Context, req RegistrationRequest) (*Asset, error) {
	if c == nil {
		return nil, fmt.Errorf("client is nil")
	}
	var asset Asset
	if err := c.doJSON(ctx, http.MethodPost, assetsPath, req, &asset); err != nil {
		return nil, err
	}
	return &asset, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body any, dest any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", path, err)
		}
		reader = bytes.NewReader(encoded)
	}

	reqURL := c.baseURL.ResolveReference(&url.URL{Path: path})
	req, err := http.NewRequestWithContext(ctx, method, reqURL.String(), reader)
	if err != nil {
		return fmt.Errorf("build %s request: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.authorize(req)

	resp, err := c.meta.Do(req)
	if err != nil {
		return fmt.Errorf("execute %s request: %w", path, err)
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode >= 300 {
		return newStatusError(path, resp)
	}
	if dest == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func (c *Client) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

// resolveUploadURL accepts absolute upload URLs and resolves server-relative
// ones against the configured base.
func (c *Client) resolveUploadURL(raw string) (string, error) {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("parse upload_url %q: %w", raw, err)
	}
	if parsed.IsAbs() {
		return parsed.String(), nil
	}
	return c.baseURL.ResolveReference(parsed).String(), nil
}

func drainAndClose(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 4096))
	_ = body.Close()
}

// StatusError reports a non-success HTTP response from the library server.
type StatusError struct {
	Operation string
	Code      int
	Snippet   string
}

func (e *StatusError) Error() string {
	if e.Snippet != "" {
		return fmt.Sprintf("library %s returned %d: %s", e.Operation, e.Code, e.Snippet)
	}
	return fmt.Sprintf("library %s returned %d", e.Operation, e.Code)
}

func newStatusError(operation string, resp *http.Response) *StatusError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	return &StatusError{
		Operation: operation,
		Code:      resp.StatusCode,
		Snippet:   strings.TrimSpace(string(body)),
	}
}

func parseBaseURL(raw string) (*url.URL, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(raw), "/")
	if trimmed == "" {
		return nil, fmt.Errorf("library base URL is empty")
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "https://" + trimmed
	}
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse library base URL %q: %w", raw, err)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("library base URL %q is missing a host", raw)
	}
	parsed.RawQuery = ""
	parsed.Fragment = ""
	return parsed, nil
}
