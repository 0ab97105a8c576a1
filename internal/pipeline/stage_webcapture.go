package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"log"

	"github.com/freedkr/moonshot-translate/internal/model"
)

// runWebCaptureStage renders the material's URL as two PDFs — the
// original page and the translated overlay view (spec §4.4.5) — and
// stores both, reusing a cached translated PDF on an MD5(url) cache
// hit instead of re-rendering it. Unlike the state-table stages,
// capture failure leaves the material at uploaded with
// translation_error set rather than transitioning to failed; no later
// action re-runs the capture for that material.
func (o *Orchestrator) runWebCaptureStage(ctx context.Context, materialID string) {
	m, err := o.store.GetMaterial(ctx, materialID)
	if err != nil {
		log.Printf("pipeline: web-capture lookup failed for %s: %v", materialID, err)
		return
	}

	captureCtx, cancel := context.WithTimeout(ctx, o.cfg.WebCaptureTimeout)
	defer cancel()

	originalPath, err := o.captureAndStore(captureCtx, m.ID, "original", m.URL, false)
	if err != nil {
		o.recordWebCaptureError(ctx, m, fmt.Errorf("capture original page: %w", err))
		return
	}

	translatedPath, fromCache, err := o.captureTranslatedCached(captureCtx, m.ID, m.URL)
	if err != nil {
		o.recordWebCaptureError(ctx, m, fmt.Errorf("capture translated view: %w", err))
		return
	}
	if !fromCache && o.webCaptureCache != nil {
		o.webCaptureCache.Set(ctx, m.URL, translatedPath)
	}

	updated, err := o.store.UpdateMaterial(ctx, materialID, m.Version, func(mat *model.Material) {
		mat.OriginalPDFPath = originalPath
		mat.TranslatedImagePath = translatedPath
		mat.TranslationError = ""
	})
	if err != nil {
		log.Printf("pipeline: web-capture persist failed for %s: %v", materialID, err)
		return
	}

	o.invalidate(ctx, updated.ClientID)
	o.publishUpdated(updated)
}

// captureAndStore renders url as a PDF (translated selects the view)
// and uploads it under a name derived from materialID and label.
func (o *Orchestrator) captureAndStore(ctx context.Context, materialID, label, url string, translated bool) (string, error) {
	pdf, err := o.webCapture.CapturePDF(ctx, url, translated)
	if err != nil {
		return "", err
	}
	objectName := fmt.Sprintf("materials/%s_%s.pdf", materialID, label)
	if err := o.storage.UploadFile(ctx, objectName, bytes.NewReader(pdf), int64(len(pdf)), "application/pdf"); err != nil {
		return "", fmt.Errorf("store %s pdf: %w", label, err)
	}
	return objectName, nil
}

// captureTranslatedCached returns url's translated-view PDF path,
// reusing the MD5(url)-keyed cache on a hit (spec §4.4.5) instead of
// re-rendering it.
func (o *Orchestrator) captureTranslatedCached(ctx context.Context, materialID, url string) (path string, fromCache bool, err error) {
	if o.webCaptureCache != nil {
		if cached, ok := o.webCaptureCache.Get(ctx, url); ok {
			return cached, true, nil
		}
	}
	path, err = o.captureAndStore(ctx, materialID, "translated", url, true)
	return path, false, err
}

// recordWebCaptureError persists the failure onto the material (best
// effort) and logs it; it does not transition the state machine, so
// the material stays at uploaded.
func (o *Orchestrator) recordWebCaptureError(ctx context.Context, m *model.Material, err error) {
	log.Printf("pipeline: web-capture failed for %s: %v", m.ID, err)
	updated, updErr := o.store.UpdateMaterial(ctx, m.ID, m.Version, func(mat *model.Material) {
		mat.TranslationError = err.Error()
	})
	if updErr != nil {
		log.Printf("pipeline: web-capture error persist failed for %s: %v", m.ID, updErr)
		return
	}
	o.publishUpdated(updated)
}
