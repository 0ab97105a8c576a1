package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/freedkr/moonshot-translate/internal/config"
	"github.com/freedkr/moonshot-translate/internal/model"
)

// OCRClient submits an image for OCR + baseline translation (spec
// §4.4.2). Recoverable errors (timeouts, 5xx) should be retried by
// the caller using Backoff; malformed-request/auth errors are fatal.
type OCRClient interface {
	Provider
	Translate(ctx context.Context, imagePath, sourceLang, targetLang string) (*model.TranslationTextInfo, error)
}

// HTTPOCRClient calls an external OCR+translate endpoint over HTTP,
// the shape entity_recognition_service.py's requests.post client
// uses for its own sibling service.
type HTTPOCRClient struct {
	name       string
	endpoint   string
	httpClient *http.Client
}

// NewHTTPOCRClient builds an OCR client from cfg.
func NewHTTPOCRClient(name string, cfg config.ProviderEndpointConfig) *HTTPOCRClient {
	return &HTTPOCRClient{
		name:     name,
		endpoint: cfg.ServiceURL,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

func (c *HTTPOCRClient) Name() string { return c.name }

func (c *HTTPOCRClient) Close() error { return nil }

func (c *HTTPOCRClient) HealthCheck(ctx context.Context) error {
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
		return fmt.Errorf("ocr provider %s unhealthy: status %d", c.name, resp.StatusCode)
	}
	return nil
}

type ocrRequest struct {
	ImagePath  string `json:"image_path"`
	SourceLang string `json:"source_lang"`
	TargetLang string `json:"target_lang"`
}

// Translate calls the OCR service once (the caller applies the
// spec §5 retry schedule around Translate, not Translate itself).
func (c *HTTPOCRClient) Translate(ctx context.Context, imagePath, sourceLang, targetLang string) (*model.TranslationTextInfo, error) {
	body, err := json.Marshal(ocrRequest{ImagePath: imagePath, SourceLang: sourceLang, TargetLang: targetLang})
	if err != nil {
		return nil, model.NewProviderFatal(c.name, "encode ocr request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/api/ocr/translate", bytes.NewReader(body))
	if err != nil {
		return nil, model.NewProviderFatal(c.name, "build ocr request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, model.NewProviderRecoverable(c.name, "ocr request failed", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, model.NewProviderRecoverable(c.name, "read ocr response", err)
	}

	if resp.StatusCode >= 500 {
		return nil, model.NewProviderRecoverable(c.name, fmt.Sprintf("ocr service returned %d", resp.StatusCode), nil)
	}
	if resp.StatusCode >= 400 {
		return nil, model.NewProviderFatal(c.name, fmt.Sprintf("ocr request rejected: %d: %s", resp.StatusCode, raw), nil)
	}

	var result model.TranslationTextInfo
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, model.NewProviderFatal(c.name, "decode ocr response", err)
	}
	return &result, nil
}
