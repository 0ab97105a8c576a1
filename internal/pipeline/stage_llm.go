package pipeline

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/freedkr/moonshot-translate/internal/model"
	"github.com/freedkr/moonshot-translate/internal/pipeline/statemachine"
	"github.com/freedkr/moonshot-translate/internal/providers"
)

// runLLMStage drives llm_translating (spec §4.4.4): chunk the OCR
// regions into batches, refine each with the guidance confirmed
// during entity recognition (if any), and reconcile the result against
// the OCR baseline (backfilling absent ids, undoing swap errors)
// before persisting, mirroring llm_service.py's
// optimize_translations/_optimize_batch. A failing batch doesn't abort
// the whole stage: remaining batches still run, and the stage only
// fails if every batch failed (spec §4.4.4 point 5).
func runLLMStage(ctx context.Context, o *Orchestrator, m *model.Material) (statemachine.Action, func(*model.Material), error) {
	if m.TranslationTextInfo == nil || len(m.TranslationTextInfo.Regions) == 0 {
		return statemachine.ActionLLMFail, func(mat *model.Material) {
			mat.TranslationError = "no OCR regions available for LLM refinement"
		}, nil
	}

	var guidance *model.TranslationGuidance
	if m.EntityUserEdits != nil {
		guidance = &m.EntityUserEdits.TranslationGuidance
	}

	regions := m.TranslationTextInfo.Regions
	batches := providers.ChunkRegions(regions, o.cfg.LLMBatchSize)

	var all []model.LLMTranslationItem
	var succeeded int
	var lastErr error

	for _, batch := range batches {
		start := time.Now()
		translations, err := o.llm.RefineBatch(ctx, batch, guidance)
		if o.llmManager != nil {
			o.llmManager.RecordResult(o.llm.Name(), time.Since(start), err)
		}
		if err != nil {
			lastErr = err
			continue
		}
		succeeded++
		all = append(all, providers.Reconcile(batch, translations)...)
	}

	if succeeded == 0 {
		return statemachine.ActionLLMFail, func(mat *model.Material) {
			mat.TranslationError = fmt.Sprintf("all %d llm batches failed: %v", len(batches), lastErr)
		}, lastErr
	}

	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })

	return statemachine.ActionLLMSuccess, func(mat *model.Material) {
		mat.LLMTranslationResult = all
		mat.TranslationError = ""
		mat.Progress = 100
	}, nil
}
