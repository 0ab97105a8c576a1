package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"log"

	"github.com/freedkr/moonshot-translate/internal/imaging"
	"github.com/freedkr/moonshot-translate/internal/model"
)

// runPDFSplitStage rasterizes one page of a material's source PDF,
// normalizes it to the ingress bounds, stores it, and advances the
// page from splitting to split_completed (spec §4.4.6). Like
// web-capture, this isn't a state-table transition the way OCR/entity/LLM
// are: a page's failure only ever gets retried by re-running the
// whole upload, so there is no ocr-fail-style recoverable branch here.
func (o *Orchestrator) runPDFSplitStage(ctx context.Context, materialID string) {
	m, err := o.store.GetMaterial(ctx, materialID)
	if err != nil {
		log.Printf("pipeline: pdf-split lookup failed for %s: %v", materialID, err)
		return
	}

	rasterCtx, cancel := context.WithTimeout(ctx, o.cfg.PDFRasterizeTimeout)
	raw, contentType, err := o.pdf.RasterizePage(rasterCtx, m.PDFOriginalFile, m.PDFPageNumber)
	cancel()
	if err != nil {
		o.failPDFPage(ctx, m, fmt.Errorf("rasterize page %d: %w", m.PDFPageNumber, err))
		return
	}

	normalized, _, err := imaging.Normalize(raw, imaging.Bounds{
		MaxDimension: o.cfg.IngressMaxDimension,
		MaxBytes:     o.cfg.IngressMaxBytes,
	})
	if err != nil {
		o.failPDFPage(ctx, m, fmt.Errorf("normalize page %d: %w", m.PDFPageNumber, err))
		return
	}

	objectName := fmt.Sprintf("materials/%s_p%d.jpg", m.PDFSessionID, m.PDFPageNumber)
	if err := o.storage.UploadFile(ctx, objectName, bytes.NewReader(normalized), int64(len(normalized)), contentType); err != nil {
		o.failPDFPage(ctx, m, fmt.Errorf("store page %d: %w", m.PDFPageNumber, err))
		return
	}

	updated, err := o.store.UpdateMaterial(ctx, materialID, m.Version, func(mat *model.Material) {
		mat.FilePath = objectName
		mat.TranslationError = ""
		mat.SetStep(model.StepSplitCompleted)
	})
	if err != nil {
		log.Printf("pipeline: pdf-split persist failed for %s: %v", materialID, err)
		return
	}
	o.invalidate(ctx, updated.ClientID)
	o.publishUpdated(updated)
}

// failPDFPage moves a single page to failed without touching its
// siblings: spec §3's sibling invariant covers total_pages/page_number
// and confirm/unconfirm propagation, not per-page rasterize failures.
func (o *Orchestrator) failPDFPage(ctx context.Context, m *model.Material, err error) {
	log.Printf("pipeline: pdf-split failed for %s: %v", m.ID, err)
	updated, updErr := o.store.UpdateMaterial(ctx, m.ID, m.Version, func(mat *model.Material) {
		mat.SetStep(model.StepFailed)
		mat.TranslationError = err.Error()
	})
	if updErr != nil {
		log.Printf("pipeline: pdf-split error persist failed for %s: %v", m.ID, updErr)
		return
	}
	o.invalidate(ctx, updated.ClientID)
	o.publishUpdated(updated)
}
