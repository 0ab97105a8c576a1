package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/freedkr/moonshot-translate/internal/config"
)

// WebCaptureClient renders a URL to an image so the rest of the
// pipeline can treat it like any uploaded image material (spec §4.6,
// "URL add" ingress path). Only the orchestrator calls it (spec §9
// Open Question 2: a single entry point, not a public endpoint).
type WebCaptureClient interface {
	Provider
	Capture(ctx context.Context, url string) (imageBytes []byte, contentType string, err error)
	// CapturePDF renders url as a PDF. translated selects which view
	// the renderer produces: false for the original page, true for the
	// translated overlay view (spec §4.4.5).
	CapturePDF(ctx context.Context, url string, translated bool) (pdfBytes []byte, err error)
}

// HTTPWebCaptureClient calls an external screenshot/render service.
type HTTPWebCaptureClient struct {
	name       string
	endpoint   string
	httpClient *http.Client
}

// NewHTTPWebCaptureClient builds a web-capture client from cfg.
func NewHTTPWebCaptureClient(name string, cfg config.ProviderEndpointConfig) *HTTPWebCaptureClient {
	return &HTTPWebCaptureClient{
		name:       name,
		endpoint:   cfg.ServiceURL,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

func (c *HTTPWebCaptureClient) Name() string { return c.name }
func (c *HTTPWebCaptureClient) Close() error { return nil }

func (c *HTTPWebCaptureClient) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 500 {
		return fmt.Errorf("web-capture provider %s unhealthy: status %d", c.name, resp.StatusCode)
	}
	return nil
}

type captureRequest struct {
	URL string `json:"url"`
}

// Capture requests a full-page screenshot of url.
func (c *HTTPWebCaptureClient) Capture(ctx context.Context, url string) ([]byte, string, error) {
	body, err := json.Marshal(captureRequest{URL: url})
	if err != nil {
		return nil, "", fmt.Errorf("encode capture request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/api/capture", bytes.NewReader(body))
	if err != nil {
		return nil, "", fmt.Errorf("build capture request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("capture request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("read capture response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, "", fmt.Errorf("capture request rejected: %d: %s", resp.StatusCode, raw)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "image/png"
	}
	return raw, contentType, nil
}

type capturePDFRequest struct {
	URL        string `json:"url"`
	Translated bool   `json:"translated"`
}

// CapturePDF requests a full-page PDF rendering of url. When
// translated is true the renderer is asked for the translated overlay
// view rather than the original page.
func (c *HTTPWebCaptureClient) CapturePDF(ctx context.Context, url string, translated bool) ([]byte, error) {
	body, err := json.Marshal(capturePDFRequest{URL: url, Translated: translated})
	if err != nil {
		return nil, fmt.Errorf("encode capture-pdf request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/api/capture/pdf", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build capture-pdf request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("capture-pdf request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read capture-pdf response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("capture-pdf request rejected: %d: %s", resp.StatusCode, raw)
	}
	return raw, nil
}
