// Package pipeline is the Pipeline Orchestrator (E): it advances
// Materials through the state machine in the background, one
// exclusive task per material at a time, publishing Event Bus
// updates as it goes. Grounded on processor_orchestrator.go's
// stage-dispatch-and-wrap-error shape, generalized from a single
// fixed five-stage pipeline to the state machine's branching graph.
package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/freedkr/moonshot-translate/internal/cache"
	"github.com/freedkr/moonshot-translate/internal/config"
	"github.com/freedkr/moonshot-translate/internal/database"
	"github.com/freedkr/moonshot-translate/internal/events"
	"github.com/freedkr/moonshot-translate/internal/imaging"
	"github.com/freedkr/moonshot-translate/internal/model"
	"github.com/freedkr/moonshot-translate/internal/pipeline/statemachine"
	"github.com/freedkr/moonshot-translate/internal/providers"
	"github.com/freedkr/moonshot-translate/internal/storage"
)

// Orchestrator wires the Store, Event Bus, state machine, provider
// clients, and worker pool together. Every exported method is safe to
// call from an HTTP handler: it does its own locking and returns
// quickly, leaving any slow work to run on the pool.
type Orchestrator struct {
	store           database.MaterialStore
	cache           *cache.ListCache
	webCaptureCache *cache.WebCaptureCache
	hub             *events.Hub
	locks           *MaterialLocks
	pool            *Pool
	cfg             config.PipelineConfig
	storage         storage.StorageInterface

	ocr        providers.OCRClient
	entity     providers.EntityClient
	llm        providers.LLMClient
	webCapture providers.WebCaptureClient
	pdf        providers.PDFRasterizer

	ocrManager    *providers.Manager
	entityManager *providers.Manager
	llmManager    *providers.Manager

	backoff providers.Backoff
}

// Deps bundles the Orchestrator's collaborators for construction.
type Deps struct {
	Store           database.MaterialStore
	Cache           *cache.ListCache
	WebCaptureCache *cache.WebCaptureCache
	Hub             *events.Hub
	Pool            *Pool
	Config          config.PipelineConfig
	Storage         storage.StorageInterface
	OCR             providers.OCRClient
	Entity          providers.EntityClient
	LLM             providers.LLMClient
	WebCapture      providers.WebCaptureClient
	PDF             providers.PDFRasterizer
	OCRManager      *providers.Manager
	EntityManager   *providers.Manager
	LLMManager      *providers.Manager
}

// NewOrchestrator builds an Orchestrator from deps.
func NewOrchestrator(deps Deps) *Orchestrator {
	return &Orchestrator{
		store:           deps.Store,
		cache:           deps.Cache,
		webCaptureCache: deps.WebCaptureCache,
		hub:             deps.Hub,
		locks:           NewMaterialLocks(),
		pool:            deps.Pool,
		cfg:             deps.Config,
		storage:         deps.Storage,
		ocr:             deps.OCR,
		entity:          deps.Entity,
		llm:             deps.LLM,
		webCapture:      deps.WebCapture,
		pdf:             deps.PDF,
		ocrManager:      deps.OCRManager,
		entityManager:   deps.EntityManager,
		llmManager:      deps.LLMManager,
		backoff:         providers.NewBackoff(),
	}
}

// stageRunner is implemented by each stage_*.go file: run performs the
// blocking provider work and returns the terminal action to apply
// (ocr-success/ocr-fail, er-success/er-recoverable-fail/er-fatal, ...)
// plus a mutate func that writes the stage's output (OCR regions,
// entity result, LLM translations) onto the material being persisted.
// mutate may be nil when the stage produced no new data (e.g. a fatal
// error with nothing to record beyond the error message).
type stageRunner func(ctx context.Context, o *Orchestrator, m *model.Material) (statemachine.Action, func(*model.Material), error)

// beginAction is the shared entry point for every user-triggered
// transition: it claims the material's lock, validates and applies
// the requested transition, persists and publishes it, then (for
// transitions that land on a processing state) hands the material off
// to the pool to run the matching stage.
func (o *Orchestrator) beginAction(ctx context.Context, materialID string, action statemachine.Action, smCtx statemachine.Context, mutate func(*model.Material), runner stageRunner) (*model.Material, error) {
	if !o.locks.TryAcquire(materialID) {
		return nil, model.NewConflict(materialID)
	}
	releaseOnReturn := true
	defer func() {
		if releaseOnReturn {
			o.locks.Release(materialID)
		}
	}()

	m, err := o.store.GetMaterial(ctx, materialID)
	if err != nil {
		return nil, err
	}
	if statemachine.IsProcessing(m.ProcessingStep) {
		return nil, model.NewConflict(materialID)
	}
	if !statemachine.CanDo(m.ProcessingStep, action) {
		return nil, fmt.Errorf("action %s is not valid from step %s", action, m.ProcessingStep)
	}

	result, ok := statemachine.Apply(m.ProcessingStep, action, smCtx)
	if !ok {
		return nil, fmt.Errorf("action %s is not valid from step %s", action, m.ProcessingStep)
	}

	updated, err := o.store.UpdateMaterial(ctx, materialID, m.Version, func(mat *model.Material) {
		if result.ClearsIntermediate {
			mat.ClearIntermediateResults()
		}
		if mutate != nil {
			mutate(mat)
		}
		mat.SetStep(result.To)
	})
	if err != nil {
		return nil, err
	}
	o.invalidate(ctx, updated.ClientID)
	o.publishUpdated(updated)

	if runner != nil && statemachine.IsProcessing(result.To) {
		releaseOnReturn = false
		o.pool.Submit(func(ctx context.Context) {
			defer o.locks.Release(materialID)
			o.runStage(ctx, materialID, runner)
		})
	}

	return updated, nil
}

// runStage executes runner with the stage's configured timeout,
// applies the resulting auto transition (and, if the table names one,
// immediately auto-chains into the next stage), and persists/publishes
// the outcome. Any error not already typed as a provider error is
// treated as fatal, matching processor_orchestrator.go's wrapError.
func (o *Orchestrator) runStage(ctx context.Context, materialID string, runner stageRunner) {
	m, err := o.store.GetMaterial(ctx, materialID)
	if err != nil {
		log.Printf("pipeline: stage lookup failed for %s: %v", materialID, err)
		return
	}

	stageCtx, cancel := context.WithTimeout(ctx, o.stageTimeout(m.ProcessingStep))
	action, applyOutput, runErr := runner(stageCtx, o, m)
	cancel()

	if runErr != nil {
		log.Printf("pipeline: stage %s failed for %s: %v", m.ProcessingStep, materialID, runErr)
	}

	for {
		result, ok := statemachine.Apply(m.ProcessingStep, action, statemachine.Context{
			HasLLMResult:        len(m.LLMTranslationResult) > 0,
			AutoConfirmEntities: m.EntityRecognitionMode == model.EntityModeDeep,
		})
		if !ok {
			log.Printf("pipeline: stage produced unrecognized action %s from %s", action, m.ProcessingStep)
			return
		}

		updated, err := o.store.UpdateMaterial(ctx, materialID, m.Version, func(mat *model.Material) {
			if result.ClearsIntermediate {
				mat.ClearIntermediateResults()
			}
			if applyOutput != nil {
				applyOutput(mat)
			}
			mat.SetStep(result.To)
			if runErr != nil {
				mat.TranslationError = runErr.Error()
			}
		})
		if err != nil {
			log.Printf("pipeline: persisting stage result for %s failed: %v", materialID, err)
			return
		}
		o.invalidate(ctx, updated.ClientID)
		o.publishUpdated(updated)
		m = updated

		if result.AutoChain == "" {
			return
		}
		// auto-chain directly into the next stage (entity_confirmed -> llm_translating)
		action = result.AutoChain
		nextResult, ok := statemachine.Apply(m.ProcessingStep, action, statemachine.Context{})
		if !ok {
			return
		}
		if !statemachine.IsProcessing(nextResult.To) {
			continue
		}
		chained, err := o.store.UpdateMaterial(ctx, materialID, m.Version, func(mat *model.Material) {
			mat.SetStep(nextResult.To)
		})
		if err != nil {
			log.Printf("pipeline: auto-chain persist failed for %s: %v", materialID, err)
			return
		}
		o.invalidate(ctx, chained.ClientID)
		o.publishUpdated(chained)
		m = chained

		runner, ok = stageRunnerFor(nextResult.To)
		if !ok {
			return
		}
		stageCtx, cancel = context.WithTimeout(ctx, o.stageTimeout(m.ProcessingStep))
		action, applyOutput, runErr = runner(stageCtx, o, m)
		cancel()
		if runErr != nil {
			log.Printf("pipeline: chained stage %s failed for %s: %v", m.ProcessingStep, materialID, runErr)
		}
	}
}

func (o *Orchestrator) stageTimeout(step model.ProcessingStep) time.Duration {
	switch step {
	case model.StepTranslating:
		return o.cfg.OCRTimeout
	case model.StepEntityRecognizing:
		return o.cfg.EntityTimeout
	case model.StepLLMTranslating:
		return o.cfg.LLMBatchTimeout
	default:
		return o.cfg.OCRTimeout
	}
}

func (o *Orchestrator) invalidate(ctx context.Context, clientID string) {
	if o.cache != nil {
		o.cache.Invalidate(ctx, clientID)
	}
}

func (o *Orchestrator) publishUpdated(m *model.Material) {
	if o.hub == nil {
		return
	}
	ev := events.MaterialUpdated(m.ID, m.Status, string(m.ProcessingStep), m.Progress, m.FinalImagePath, "", m.FilePath)
	o.hub.Publish(events.ClientRoom(m.ClientID), ev)
	o.hub.Publish(events.MaterialRoom(m.ID), ev)
	if m.ProcessingStep == model.StepFailed && m.TranslationError != "" {
		errEv := events.MaterialError(m.ID, m.TranslationError)
		o.hub.Publish(events.ClientRoom(m.ClientID), errEv)
	}
}

// stageRunnerFor resolves which stage_*.go runner owns a processing
// step, used by runStage's auto-chain loop.
func stageRunnerFor(step model.ProcessingStep) (stageRunner, bool) {
	switch step {
	case model.StepTranslating:
		return runOCRStage, true
	case model.StepEntityRecognizing:
		return runEntityStage, true
	case model.StepLLMTranslating:
		return runLLMStage, true
	default:
		return nil, false
	}
}

// StartTranslation kicks off OCR + baseline translation from
// uploaded/split_completed/failed (spec §4.4.1).
func (o *Orchestrator) StartTranslation(ctx context.Context, materialID string) (*model.Material, error) {
	return o.beginAction(ctx, materialID, statemachine.ActionStartTranslate, statemachine.Context{}, nil, runOCRStage)
}

// RecognizeEntities starts entity recognition from translated (spec §4.4.3).
func (o *Orchestrator) RecognizeEntities(ctx context.Context, materialID string, mode model.EntityMode) (*model.Material, error) {
	return o.beginAction(ctx, materialID, statemachine.ActionStartEntityRecognize, statemachine.Context{}, func(m *model.Material) {
		m.EntityRecognitionEnabled = true
		m.EntityRecognitionMode = mode
		m.EntityRecognitionTriggered = true
	}, runEntityStage)
}

// ConfirmEntities records the user's confirmed entity edits and
// auto-chains into LLM refinement (spec §4.4.4, §4.5).
func (o *Orchestrator) ConfirmEntities(ctx context.Context, materialID string, edits model.EntityUserEdits) (*model.Material, error) {
	propagated, err := o.store.UpdateSiblings(ctx, materialID, []model.ProcessingStep{model.StepEntityPendingConfirm}, func(m *model.Material) {
		m.EntityUserEdits = &edits
		m.EntityRecognitionConfirmed = true
	})
	if err != nil {
		return nil, err
	}
	for _, m := range propagated {
		o.invalidate(ctx, m.ClientID)
	}

	if _, err := o.beginAction(ctx, materialID, statemachine.ActionConfirmEntities, statemachine.Context{}, nil, nil); err != nil {
		return nil, err
	}
	return o.LLMTranslate(ctx, materialID)
}

// LLMTranslate starts (or retries) LLM refinement from
// translated/entity_confirmed (spec §4.4.4).
func (o *Orchestrator) LLMTranslate(ctx context.Context, materialID string) (*model.Material, error) {
	return o.beginAction(ctx, materialID, statemachine.ActionStartLLM, statemachine.Context{}, nil, runLLMStage)
}

// Confirm marks a material reviewed and, if it has a pdf_session_id,
// propagates the confirmation to every sibling page atomically (spec
// §4.5), the same way Unconfirm propagates its rollback.
func (o *Orchestrator) Confirm(ctx context.Context, materialID string, selected model.SelectedResult) (*model.Material, error) {
	if !o.locks.TryAcquire(materialID) {
		return nil, model.NewConflict(materialID)
	}
	defer o.locks.Release(materialID)

	m, err := o.store.GetMaterial(ctx, materialID)
	if err != nil {
		return nil, err
	}
	if statemachine.IsProcessing(m.ProcessingStep) {
		return nil, model.NewConflict(materialID)
	}
	if !statemachine.CanDo(m.ProcessingStep, statemachine.ActionConfirm) {
		return nil, fmt.Errorf("action %s is not valid from step %s", statemachine.ActionConfirm, m.ProcessingStep)
	}
	result, _ := statemachine.Apply(m.ProcessingStep, statemachine.ActionConfirm, statemachine.Context{})

	propagated, err := o.store.UpdateSiblings(ctx, materialID, nil, func(mat *model.Material) {
		mat.SelectedResult = selected
		mat.SetStep(result.To)
	})
	if err != nil {
		return nil, err
	}
	var self *model.Material
	for _, mat := range propagated {
		o.invalidate(ctx, mat.ClientID)
		o.publishUpdated(mat)
		if mat.ID == materialID {
			self = mat
		}
	}
	return self, nil
}

// Unconfirm reopens a confirmed material for further edits, and
// propagates to every PDF sibling (spec §3 invariant, §4.5).
func (o *Orchestrator) Unconfirm(ctx context.Context, materialID string) (*model.Material, error) {
	if !o.locks.TryAcquire(materialID) {
		return nil, model.NewConflict(materialID)
	}
	defer o.locks.Release(materialID)

	m, err := o.store.GetMaterial(ctx, materialID)
	if err != nil {
		return nil, err
	}
	smCtx := statemachine.Context{HasLLMResult: len(m.LLMTranslationResult) > 0}
	if !statemachine.CanDo(m.ProcessingStep, statemachine.ActionUnconfirm) {
		return nil, fmt.Errorf("action %s is not valid from step %s", statemachine.ActionUnconfirm, m.ProcessingStep)
	}
	result, _ := statemachine.Apply(m.ProcessingStep, statemachine.ActionUnconfirm, smCtx)

	propagated, err := o.store.UpdateSiblings(ctx, materialID, nil, func(mat *model.Material) {
		mat.SetStep(result.To)
	})
	if err != nil {
		return nil, err
	}
	var self *model.Material
	for _, mat := range propagated {
		o.invalidate(ctx, mat.ClientID)
		o.publishUpdated(mat)
		if mat.ID == materialID {
			self = mat
		}
	}
	return self, nil
}

// Retranslate clears all intermediate results and restarts OCR,
// usable from any non-null step (spec §4.3's global action).
func (o *Orchestrator) Retranslate(ctx context.Context, materialID string) (*model.Material, error) {
	return o.beginAction(ctx, materialID, statemachine.ActionRetranslate, statemachine.Context{}, nil, runOCRStage)
}

// Rotate rotates the source image 90° clockwise in place, clears all
// intermediate results, and resets to uploaded; usable from any
// non-null step (spec §4.3's global action, §4.4's rotate action).
func (o *Orchestrator) Rotate(ctx context.Context, materialID string) (*model.Material, error) {
	if !o.locks.TryAcquire(materialID) {
		return nil, model.NewConflict(materialID)
	}
	defer o.locks.Release(materialID)

	m, err := o.store.GetMaterial(ctx, materialID)
	if err != nil {
		return nil, err
	}
	if statemachine.IsProcessing(m.ProcessingStep) {
		return nil, model.NewConflict(materialID)
	}
	if !statemachine.CanDo(m.ProcessingStep, statemachine.ActionRotate) {
		return nil, fmt.Errorf("action %s is not valid from step %s", statemachine.ActionRotate, m.ProcessingStep)
	}
	result, _ := statemachine.Apply(m.ProcessingStep, statemachine.ActionRotate, statemachine.Context{})

	if m.FilePath != "" {
		reader, err := o.storage.DownloadFile(ctx, m.FilePath)
		if err != nil {
			return nil, fmt.Errorf("read source image: %w", err)
		}
		raw, err := io.ReadAll(reader)
		reader.Close()
		if err != nil {
			return nil, fmt.Errorf("read source image: %w", err)
		}
		rotated, err := imaging.RotateClockwise90(raw)
		if err != nil {
			return nil, fmt.Errorf("rotate source image: %w", err)
		}
		if err := o.storage.UploadFile(ctx, m.FilePath, bytes.NewReader(rotated), int64(len(rotated)), "image/jpeg"); err != nil {
			return nil, fmt.Errorf("store rotated image: %w", err)
		}
	}

	updated, err := o.store.UpdateMaterial(ctx, materialID, m.Version, func(mat *model.Material) {
		if result.ClearsIntermediate {
			mat.ClearIntermediateResults()
		}
		mat.SetStep(result.To)
	})
	if err != nil {
		return nil, err
	}
	o.invalidate(ctx, updated.ClientID)
	o.publishUpdated(updated)
	return updated, nil
}

// WebCapture creates a webpage Material for url and enqueues the
// web-capture stage that renders it to an image (spec §4.6). This is
// the orchestrator's only capture entry point — there is no separate
// public capture endpoint (spec §9 Open Question 2).
func (o *Orchestrator) WebCapture(ctx context.Context, clientID, url string) (*model.Material, error) {
	m := &model.Material{
		ID:       uuid.NewString(),
		ClientID: clientID,
		Kind:     model.MaterialKindWebpage,
		URL:      url,
	}
	m.SetStep(model.StepUploaded)

	if err := o.store.InsertMaterial(ctx, m); err != nil {
		return nil, err
	}
	o.invalidate(ctx, clientID)
	o.publishUpdated(m)

	if o.locks.TryAcquire(m.ID) {
		o.pool.Submit(func(ctx context.Context) {
			defer o.locks.Release(m.ID)
			o.runWebCaptureStage(ctx, m.ID)
		})
	}

	return m, nil
}

// SaveRegions stores user-edited region overlays without touching the
// processing step (spec §4.5).
func (o *Orchestrator) SaveRegions(ctx context.Context, materialID string, expectedVersion int, regions []model.EditedRegion) (*model.Material, error) {
	updated, err := o.store.UpdateMaterial(ctx, materialID, expectedVersion, func(m *model.Material) {
		m.EditedRegions = regions
		m.HasEditedVersion = true
		m.SelectedResult = model.SelectedResultAPI
	})
	if err != nil {
		return nil, err
	}
	o.invalidate(ctx, updated.ClientID)
	o.publishUpdated(updated)
	return updated, nil
}

// SaveFinalImage uploads the browser-rendered final composite and
// records it as the authoritative export artifact (spec §4.5).
func (o *Orchestrator) SaveFinalImage(ctx context.Context, materialID string, expectedVersion int, imageBytes []byte, contentType string) (*model.Material, error) {
	objectName := fmt.Sprintf("materials/%s_final.jpg", materialID)
	if err := o.storage.UploadFile(ctx, objectName, bytes.NewReader(imageBytes), int64(len(imageBytes)), contentType); err != nil {
		return nil, fmt.Errorf("store final image: %w", err)
	}

	updated, err := o.store.UpdateMaterial(ctx, materialID, expectedVersion, func(m *model.Material) {
		m.FinalImagePath = objectName
		m.HasEditedVersion = true
	})
	if err != nil {
		return nil, err
	}
	o.invalidate(ctx, updated.ClientID)
	o.publishUpdated(updated)
	return updated, nil
}

// IngestPDF creates one Material per page of pdfPath immediately in
// splitting, sharing a new pdf_session_id, and enqueues a background
// rasterize task for each page (spec §4.4.6). Pages do not
// auto-translate; the user presses translate once split_completed.
func (o *Orchestrator) IngestPDF(ctx context.Context, clientID, pdfPath, originalFilename string) ([]*model.Material, error) {
	pageCount, err := o.pdf.PageCount(ctx, pdfPath)
	if err != nil {
		return nil, fmt.Errorf("count pdf pages: %w", err)
	}
	if pageCount <= 0 {
		return nil, fmt.Errorf("pdf %s has no pages", originalFilename)
	}

	sessionID := uuid.NewString()
	materials := make([]*model.Material, pageCount)
	for i := 0; i < pageCount; i++ {
		m := &model.Material{
			ID:               uuid.NewString(),
			ClientID:         clientID,
			Kind:             model.MaterialKindPDF,
			OriginalFilename: originalFilename,
			PDFSessionID:     sessionID,
			PDFPageNumber:    i + 1,
			PDFTotalPages:    pageCount,
			PDFOriginalFile:  pdfPath,
		}
		m.SetStep(model.StepSplitting)
		materials[i] = m
	}

	if err := o.store.InsertMaterials(ctx, materials); err != nil {
		return nil, err
	}
	o.invalidate(ctx, clientID)
	for _, m := range materials {
		o.publishUpdated(m)
	}

	for _, m := range materials {
		materialID := m.ID
		if o.locks.TryAcquire(materialID) {
			o.pool.Submit(func(ctx context.Context) {
				defer o.locks.Release(materialID)
				o.runPDFSplitStage(ctx, materialID)
			})
		}
	}

	return materials, nil
}
