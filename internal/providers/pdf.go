package providers

import (
	"bytes"
	"encoding/json"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/freedkr/moonshot-translate/internal/config"
)

// PDFRasterizer renders one page of a PDF to a raster image so the
// PDF-ingest stage can treat each page like an uploaded image (spec
// §4.4.6). It is the headless-browser PDF renderer named as an
// external collaborator in spec §1; this client only speaks its HTTP
// contract, mirroring HTTPWebCaptureClient's shape.
type PDFRasterizer interface {
	Provider
	PageCount(ctx context.Context, pdfPath string) (int, error)
	RasterizePage(ctx context.Context, pdfPath string, page int) (imageBytes []byte, contentType string, err error)
}

// HTTPPDFRasterizer calls an external PDF-rasterization service.
type HTTPPDFRasterizer struct {
	name       string
	endpoint   string
	httpClient *http.Client
}

// NewHTTPPDFRasterizer builds a PDF rasterizer client from cfg.
func NewHTTPPDFRasterizer(name string, cfg config.ProviderEndpointConfig) *HTTPPDFRasterizer {
	return &HTTPPDFRasterizer{
		name:       name,
		endpoint:   cfg.ServiceURL,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

func (c *HTTPPDFRasterizer) Name() string { return c.name }
func (c *HTTPPDFRasterizer) Close() error { return nil }

func (c *HTTPPDFRasterizer) HealthCheck(ctx context.Context) error {
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
		return fmt.Errorf("pdf rasterizer %s unhealthy: status %d", c.name, resp.StatusCode)
	}
	return nil
}

type pageCountRequest struct {
	PDFPath string `json:"pdfPath"`
}

type pageCountResponse struct {
	Pages int `json:"pages"`
}

// PageCount asks the renderer how many pages pdfPath has.
func (c *HTTPPDFRasterizer) PageCount(ctx context.Context, pdfPath string) (int, error) {
	body, err := json.Marshal(pageCountRequest{PDFPath: pdfPath})
	if err != nil {
		return 0, fmt.Errorf("encode page-count request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/api/pdf/page-count", bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("build page-count request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("page-count request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("read page-count response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return 0, fmt.Errorf("page-count request rejected: %d: %s", resp.StatusCode, raw)
	}

	var out pageCountResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return 0, fmt.Errorf("decode page-count response: %w", err)
	}
	return out.Pages, nil
}

type rasterizeRequest struct {
	PDFPath string `json:"pdfPath"`
	Page    int    `json:"page"`
}

// RasterizePage renders the given 1-indexed page to an image.
func (c *HTTPPDFRasterizer) RasterizePage(ctx context.Context, pdfPath string, page int) ([]byte, string, error) {
	body, err := json.Marshal(rasterizeRequest{PDFPath: pdfPath, Page: page})
	if err != nil {
		return nil, "", fmt.Errorf("encode rasterize request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/api/pdf/rasterize", bytes.NewReader(body))
	if err != nil {
		return nil, "", fmt.Errorf("build rasterize request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("rasterize request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("read rasterize response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, "", fmt.Errorf("rasterize request rejected: %d: %s", resp.StatusCode, raw)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "image/jpeg"
	}
	return raw, contentType, nil
}
