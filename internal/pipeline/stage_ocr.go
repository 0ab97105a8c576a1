package pipeline

import (
	"context"
	"time"

	"github.com/freedkr/moonshot-translate/internal/model"
	"github.com/freedkr/moonshot-translate/internal/pipeline/statemachine"
)

// runOCRStage drives the translating step (spec §4.4.2): call the OCR
// provider, retrying on recoverable errors with the 2s/4s/8s backoff
// schedule, and map the outcome onto ocr-success/ocr-fail.
func runOCRStage(ctx context.Context, o *Orchestrator, m *model.Material) (statemachine.Action, func(*model.Material), error) {
	sourceLang, targetLang := "zh", "en"
	if m.TranslationTextInfo != nil {
		if m.TranslationTextInfo.SourceLang != "" {
			sourceLang = m.TranslationTextInfo.SourceLang
		}
		if m.TranslationTextInfo.TargetLang != "" {
			targetLang = m.TranslationTextInfo.TargetLang
		}
	}

	var lastErr error
	for attempt := 0; attempt < o.backoff.MaxTry; attempt++ {
		if err := o.backoff.Sleep(ctx, attempt); err != nil {
			return statemachine.ActionOCRFail, nil, err
		}

		start := time.Now()
		result, err := o.ocr.Translate(ctx, m.FilePath, sourceLang, targetLang)
		if o.ocrManager != nil {
			o.ocrManager.RecordResult(o.ocr.Name(), time.Since(start), err)
		}
		if err == nil {
			textInfo := result
			return statemachine.ActionOCRSuccess, func(mat *model.Material) {
				mat.TranslationTextInfo = textInfo
				mat.TranslationError = ""
				mat.Progress = 100
			}, nil
		}

		lastErr = err
		if !isRecoverable(err) {
			break
		}
	}

	return statemachine.ActionOCRFail, nil, lastErr
}
