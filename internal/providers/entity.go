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

// EntityClient recognizes named entities in an OCR result (spec
// §4.4.3), grounded on entity_recognition_service.py's
// recognize_entities: "fast"/"identify" maps to EntityModeStandard,
// "deep"/"analyze" maps to EntityModeDeep.
type EntityClient interface {
	Provider
	Recognize(ctx context.Context, textInfo *model.TranslationTextInfo, mode model.EntityMode) (map[string]interface{}, error)
}

// HTTPEntityClient calls an external entity-recognition HTTP API.
type HTTPEntityClient struct {
	name       string
	endpoint   string
	httpClient *http.Client
}

// NewHTTPEntityClient builds an entity client from cfg.
func NewHTTPEntityClient(name string, cfg config.ProviderEndpointConfig) *HTTPEntityClient {
	return &HTTPEntityClient{
		name:       name,
		endpoint:   cfg.ServiceURL,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

func (c *HTTPEntityClient) Name() string { return c.name }
func (c *HTTPEntityClient) Close() error { return nil }

func (c *HTTPEntityClient) HealthCheck(ctx context.Context) error {
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
		return fmt.Errorf("entity provider %s unhealthy: status %d", c.name, resp.StatusCode)
	}
	return nil
}

// entityAPIMode maps the pipeline's EntityMode onto the upstream
// API's own vocabulary, as entity_recognition_service.py does
// internally ("fast" -> "identify", "deep" -> "analyze").
func entityAPIMode(mode model.EntityMode) string {
	if mode == model.EntityModeDeep {
		return "analyze"
	}
	return "identify"
}

type entityRequest struct {
	OCRResult interface{} `json:"ocr_result"`
	Mode      string      `json:"mode"`
}

// Recognize calls the entity API once; the caller is responsible for
// the retry/fallback policy in spec §4.4.3 (recoverable -> fall back
// to translated, fatal -> fail).
func (c *HTTPEntityClient) Recognize(ctx context.Context, textInfo *model.TranslationTextInfo, mode model.EntityMode) (map[string]interface{}, error) {
	body, err := json.Marshal(entityRequest{OCRResult: textInfo, Mode: entityAPIMode(mode)})
	if err != nil {
		return nil, model.NewProviderFatal(c.name, "encode entity request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/api/entity/analyze", bytes.NewReader(body))
	if err != nil {
		return nil, model.NewProviderFatal(c.name, "build entity request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, model.NewProviderRecoverable(c.name, "entity request failed", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, model.NewProviderRecoverable(c.name, "read entity response", err)
	}

	if resp.StatusCode >= 500 {
		return nil, model.NewProviderRecoverable(c.name, fmt.Sprintf("entity service returned %d", resp.StatusCode), nil)
	}
	if resp.StatusCode >= 400 {
		return nil, model.NewProviderFatal(c.name, fmt.Sprintf("entity request rejected: %d: %s", resp.StatusCode, raw), nil)
	}

	var result map[string]interface{}
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, model.NewProviderFatal(c.name, "decode entity response", err)
	}
	if ok, _ := result["success"].(bool); !ok {
		errMsg, _ := result["error"].(string)
		return nil, model.NewProviderRecoverable(c.name, "entity api reported failure: "+errMsg, nil)
	}
	return result, nil
}
