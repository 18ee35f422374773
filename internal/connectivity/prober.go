package connectivity

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"courier/internal/config"
	"courier/internal/services/library"
)

// Prober performs one reachability check. A nil error means the backend
// answered; every other outcome (timeout, refused connection, bad status)
// reads as offline.
type Prober interface {
	Probe(ctx context.Context) error
}

// ProberFunc adapts a plain function to the Prober interface.
type ProberFunc func(ctx context.Context) error

// Probe implements Prober.
func (f ProberFunc) Probe(ctx context.Context) error {
	return f(ctx)
}

// NewProber selects the reachability check from config: an explicit probe URL
// when one is configured, otherwise the library server's health endpoint.
func NewProber(cfg *config.Config, client *library.Client) Prober {
	if cfg != nil {
		if target := strings.TrimSpace(cfg.Connectivity.ProbeURL); target != "" {
			return &urlProber{url: target, client: &http.Client{}}
		}
	}
	if client == nil {
		return ProberFunc(func(context.Context) error {
			return fmt.Errorf("no probe target configured")
		})
	}
	return ProberFunc(client.Health)
}

// urlProber issues a GET against a fixed URL. Timeouts come from the caller's
// context, not the HTTP client.
type urlProber struct {
	url    string
	client *http.Client
}

func (p *urlProber) Probe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return fmt.Errorf("build probe request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("probe request: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("probe %s returned %d", p.url, resp.StatusCode)
	}
	return nil
}
