package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	"github.com/freedkr/moonshot-translate/internal/config"
	"github.com/freedkr/moonshot-translate/internal/model"
)

// LLMClient refines a batch of OCR regions (spec §4.4.4), grounded on
// llm_service.py's optimize_translations/_optimize_batch: regions are
// chunked into batches, and an optional TranslationGuidance steers
// person/location/organization/term naming.
type LLMClient interface {
	Provider
	RefineBatch(ctx context.Context, regions []model.Region, guidance *model.TranslationGuidance) ([]model.LLMTranslationItem, error)
}

// HTTPLLMClient calls an external LLM refinement HTTP API.
type HTTPLLMClient struct {
	name       string
	endpoint   string
	httpClient *http.Client
}

// NewHTTPLLMClient builds an LLM client from cfg.
func NewHTTPLLMClient(name string, cfg config.ProviderEndpointConfig) *HTTPLLMClient {
	return &HTTPLLMClient{
		name:       name,
		endpoint:   cfg.ServiceURL,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

func (c *HTTPLLMClient) Name() string { return c.name }
func (c *HTTPLLMClient) Close() error { return nil }

func (c *HTTPLLMClient) HealthCheck(ctx context.Context) error {
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
		return fmt.Errorf("llm provider %s unhealthy: status %d", c.name, resp.StatusCode)
	}
	return nil
}

type llmBatchRequest struct {
	Regions  []model.Region             `json:"regions"`
	Guidance *model.TranslationGuidance `json:"entity_guidance,omitempty"`
	Prompt   string                     `json:"prompt"`
}

type llmBatchResponse struct {
	Translations []model.LLMTranslationItem `json:"translations"`
}

// RefineBatch sends one batch (already chunked by the caller per
// config.PipelineConfig.LLMBatchSize) and returns its refined
// translations. Missing ids in the response are backfilled by the
// caller, mirroring _optimize_batch's fallback-to-baseline-text logic.
func (c *HTTPLLMClient) RefineBatch(ctx context.Context, regions []model.Region, guidance *model.TranslationGuidance) ([]model.LLMTranslationItem, error) {
	body, err := json.Marshal(llmBatchRequest{Regions: regions, Guidance: guidance, Prompt: BuildPrompt(regions, guidance)})
	if err != nil {
		return nil, model.NewProviderFatal(c.name, "encode llm request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/api/llm/refine", bytes.NewReader(body))
	if err != nil {
		return nil, model.NewProviderFatal(c.name, "build llm request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, model.NewProviderRecoverable(c.name, "llm request failed", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, model.NewProviderRecoverable(c.name, "read llm response", err)
	}

	if resp.StatusCode >= 500 {
		return nil, model.NewProviderRecoverable(c.name, fmt.Sprintf("llm service returned %d", resp.StatusCode), nil)
	}
	if resp.StatusCode >= 400 {
		return nil, model.NewProviderFatal(c.name, fmt.Sprintf("llm request rejected: %d: %s", resp.StatusCode, raw), nil)
	}

	var decoded llmBatchResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, model.NewProviderFatal(c.name, "decode llm response", err)
	}
	return decoded.Translations, nil
}

// ChunkRegions splits regions into batches of at most batchSize,
// mirroring optimize_translations' manual batching loop.
func ChunkRegions(regions []model.Region, batchSize int) [][]model.Region {
	if batchSize <= 0 {
		batchSize = len(regions)
	}
	if batchSize <= 0 {
		return nil
	}
	var batches [][]model.Region
	for i := 0; i < len(regions); i += batchSize {
		end := i + batchSize
		if end > len(regions) {
			end = len(regions)
		}
		batches = append(batches, regions[i:end])
	}
	return batches
}

// BackfillMissing fills in any region id absent from translations with
// its baseline OCR translation, matching _optimize_batch's
// fallback-to-original-destination-text behavior.
func BackfillMissing(regions []model.Region, translations []model.LLMTranslationItem) []model.LLMTranslationItem {
	present := make(map[string]bool, len(translations))
	for _, t := range translations {
		present[t.ID] = true
	}
	out := make([]model.LLMTranslationItem, len(translations))
	copy(out, translations)
	for _, r := range regions {
		if !present[r.ID] {
			out = append(out, model.LLMTranslationItem{ID: r.ID, Translation: r.Dst, Original: r.Src})
		}
	}
	return out
}

// BuildPrompt renders one batch's textual LLM prompt: a "[id] src"
// line per region, followed by a guidance section per populated
// TranslationGuidance category, sorted alphabetically by Chinese key
// so the same batch always yields byte-identical prompt text.
func BuildPrompt(regions []model.Region, guidance *model.TranslationGuidance) string {
	var b strings.Builder
	b.WriteString("Translate each numbered line from its source language to English. ")
	b.WriteString(fmt.Sprintf("Return exactly %d translations, one per id.\n\n", len(regions)))
	for _, r := range regions {
		fmt.Fprintf(&b, "[%s] %s\n", r.ID, r.Src)
	}

	if guidance != nil {
		sections := []struct {
			label string
			pairs map[string]string
		}{
			{"persons", guidance.Persons},
			{"locations", guidance.Locations},
			{"organizations", guidance.Organizations},
			{"terms", guidance.Terms},
		}
		for _, section := range sections {
			if len(section.pairs) == 0 {
				continue
			}
			keys := make([]string, 0, len(section.pairs))
			for k := range section.pairs {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			fmt.Fprintf(&b, "\nUse these exact %s translations:\n", section.label)
			for _, k := range keys {
				fmt.Fprintf(&b, "%s -> %s\n", k, section.pairs[k])
			}
		}
	}

	return b.String()
}

// Reconcile backfills missing ids (via BackfillMissing), then corrects
// swap errors: if translations[i]'s text exactly matches another
// region's baseline Dst rather than its own, the LLM likely attributed
// region i's output to the wrong id, so region i's own OCR baseline is
// trusted instead. The result is sorted by id.
func Reconcile(regions []model.Region, translations []model.LLMTranslationItem) []model.LLMTranslationItem {
	baselineByID := make(map[string]string, len(regions))
	for _, r := range regions {
		baselineByID[r.ID] = r.Dst
	}

	filled := BackfillMissing(regions, translations)
	out := make([]model.LLMTranslationItem, len(filled))
	copy(out, filled)

	for i, t := range out {
		own := baselineByID[t.ID]
		if t.Translation == own {
			continue
		}
		for otherID, otherBaseline := range baselineByID {
			if otherID != t.ID && t.Translation == otherBaseline && otherBaseline != "" {
				out[i].Translation = own
				break
			}
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
